package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/venuedesk/internal/auth"
)

// DefaultSessionTTL is how long a session stays valid.
const DefaultSessionTTL = 7 * 24 * time.Hour

const pgErrCodeUniqueViolation = "23505"

// Repository stores accounts and sessions.
type Repository interface {
	CreateAccount(ctx context.Context, email, password, displayName string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)
	CreateSession(ctx context.Context, accountID string) (string, *Session, error)
	GetSessionAccount(ctx context.Context, token string) (*Account, error)
	DeleteSession(ctx context.Context, token string) error
	CleanExpiredSessions(ctx context.Context) (int64, error)
}

// Store provides database operations for accounts and sessions.
type Store struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

// NewStore creates a new account store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool, sessionTTL time.Duration) *Store {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &Store{pool: pool, ttl: sessionTTL}
}

func scanAccount(scan func(dest ...any) error) (*Account, error) {
	a := &Account{}
	var displayName *string
	if err := scan(&a.ID, &a.Email, &a.PasswordHash, &displayName, &a.CreatedAt); err != nil {
		return nil, err
	}
	if displayName != nil {
		a.DisplayName = *displayName
	}
	return a, nil
}

// CreateAccount inserts a new account with a bcrypt-hashed password.
func (s *Store) CreateAccount(ctx context.Context, email, password, displayName string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating account id: %w", err)
	}

	var name *string
	if displayName != "" {
		name = &displayName
	}
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`INSERT INTO accounts (id, email, password_hash, display_name)
			 VALUES ($1, $2, $3, $4)
			 RETURNING id::text, email, password_hash, display_name, created_at`,
			id.String(), email, string(hash), name,
		).Scan(dest...)
	})
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrCodeUniqueViolation {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}
	return a, nil
}

// GetByEmail retrieves an account by email address.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT id::text, email, password_hash, display_name, created_at
			 FROM accounts WHERE email = $1`, email,
		).Scan(dest...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting account by email: %w", err)
	}
	return a, nil
}

// CreateSession creates a new session for the given account. It returns the
// opaque plaintext token (to be sent to the client) and the stored session.
func (s *Store) CreateSession(ctx context.Context, accountID string) (string, *Session, error) {
	plaintext, err := auth.GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}

	now := time.Now()
	sess := &Session{}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO sessions (token_hash, account_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)
		 RETURNING token_hash, account_id::text, created_at, expires_at`,
		auth.HashKey(plaintext), accountID, now, now.Add(s.ttl),
	).Scan(&sess.TokenHash, &sess.AccountID, &sess.CreatedAt, &sess.ExpiresAt)
	if err != nil {
		return "", nil, fmt.Errorf("creating session: %w", err)
	}
	return plaintext, sess, nil
}

// GetSessionAccount looks up a session by its plaintext token and returns the
// associated account. Expired and unknown sessions yield
// auth.ErrInvalidSession.
func (s *Store) GetSessionAccount(ctx context.Context, plaintext string) (*Account, error) {
	a, err := scanAccount(func(dest ...any) error {
		return s.pool.QueryRow(ctx,
			`SELECT a.id::text, a.email, a.password_hash, a.display_name, a.created_at
			 FROM sessions s JOIN accounts a ON s.account_id = a.id
			 WHERE s.token_hash = $1 AND s.expires_at > now()`,
			auth.HashKey(plaintext),
		).Scan(dest...)
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, auth.ErrInvalidSession
	}
	if err != nil {
		return nil, fmt.Errorf("getting session account: %w", err)
	}
	return a, nil
}

// DeleteSession removes a session by its plaintext token.
func (s *Store) DeleteSession(ctx context.Context, plaintext string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, auth.HashKey(plaintext))
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// CleanExpiredSessions deletes all sessions that have expired.
func (s *Store) CleanExpiredSessions(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("cleaning expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CheckPassword verifies a plaintext password against the account's stored
// hash.
func CheckPassword(a *Account, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}
