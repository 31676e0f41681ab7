package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alecgard/venuedesk/internal/config"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/user"
)

// backends are the storage layers every command works against.
type backends struct {
	pool  *pgxpool.Pool
	store docstore.Store
	users user.Repository
	close func()
}

// openBackends connects the document store and account repository selected
// by cfg. The memory driver keeps everything in process.
func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	if !cfg.UsesPostgres() {
		slog.Warn("using in-memory store; data is lost on exit")
		return &backends{
			store: docstore.NewMemoryStore(),
			users: user.NewMemoryStore(cfg.Auth.SessionTTL),
			close: func() {},
		}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("opening database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	slog.Info("connected to database")

	docs := docstore.NewPostgresStore(pool)
	return &backends{
		pool:  pool,
		store: docs,
		users: user.NewStore(pool, cfg.Auth.SessionTTL),
		close: func() {
			docs.Close()
			pool.Close()
		},
	}, nil
}

// loadConfig reads and validates the configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var errNeedsPostgres = errors.New("this command needs the postgres store driver; the memory store does not outlive the process")
