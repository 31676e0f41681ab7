package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alecgard/venuedesk/internal/api"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/metrics"
	"github.com/alecgard/venuedesk/internal/policy"
	"github.com/alecgard/venuedesk/internal/ratelimit"
	"github.com/alecgard/venuedesk/internal/user"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Venuedesk API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	m := metrics.New()
	store := docstore.Instrument(b.store, m)
	engine := policy.NewEngine(store, policy.AllowSelfRoleChange(cfg.Auth.AllowSelfRoleChange))
	guarded := policy.NewGuard(store, engine, policy.Mode(cfg.Policy.Mode), m)
	if cfg.Auth.AllowSelfRoleChange {
		slog.Warn("self role change is enabled; any user can make themselves system admin")
	}

	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)
	go limiter.RunPruner(ctx, cfg.RateLimit.Window)

	go cleanSessions(ctx, b.users, time.Hour)

	deps := api.RouterDeps{
		Store:          guarded,
		Provider:       user.NewAuthAdapter(b.users),
		Limiter:        limiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		InviteTTL:      cfg.Invites.TTL,
	}
	if b.pool != nil {
		deps.DB = b.pool
		pool := b.pool
		m.RegisterDBPool(func() metrics.PoolStats {
			s := pool.Stat()
			return metrics.PoolStats{
				Total:         s.TotalConns(),
				Idle:          s.IdleConns(),
				Acquired:      s.AcquiredConns(),
				Max:           s.MaxConns(),
				Acquires:      s.AcquireCount(),
				EmptyAcquires: s.EmptyAcquireCount(),
				AcquireWait:   s.AcquireDuration(),
			}
		})
	}

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      api.NewRouter(deps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr(), "store", cfg.Store.Driver, "policy_mode", cfg.Policy.Mode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Ends open session streams before the server waits on them.
	cancel()

	return srv.Shutdown(shutdownCtx)
}

// cleanSessions deletes expired sessions every interval until ctx ends.
func cleanSessions(ctx context.Context, users user.Repository, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := users.CleanExpiredSessions(ctx)
			if err != nil {
				slog.Error("cleaning expired sessions", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("cleaned expired sessions", "count", n)
			}
		}
	}
}
