package user

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alecgard/venuedesk/internal/auth"
)

// MemoryStore is an in-process Repository used with the memory store driver
// and in tests.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account // by email
	sessions map[string]*Session // by token hash
	ttl      time.Duration
	now      func() time.Time
}

// NewMemoryStore returns an empty account store.
func NewMemoryStore(sessionTTL time.Duration) *MemoryStore {
	if sessionTTL <= 0 {
		sessionTTL = DefaultSessionTTL
	}
	return &MemoryStore{
		accounts: make(map[string]*Account),
		sessions: make(map[string]*Session),
		ttl:      sessionTTL,
		now:      time.Now,
	}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, email, password, displayName string) (*Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generating account id: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[email]; ok {
		return nil, ErrEmailTaken
	}
	a := &Account{
		ID:           id.String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
		CreatedAt:    m.now(),
	}
	m.accounts[email] = a
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetByEmail(ctx context.Context, email string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[email]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, accountID string) (string, *Session, error) {
	plaintext, err := auth.GenerateSessionToken()
	if err != nil {
		return "", nil, err
	}
	now := m.now()
	sess := &Session{
		TokenHash: auth.HashKey(plaintext),
		AccountID: accountID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	m.mu.Lock()
	m.sessions[sess.TokenHash] = sess
	m.mu.Unlock()
	return plaintext, sess, nil
}

func (m *MemoryStore) GetSessionAccount(ctx context.Context, plaintext string) (*Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[auth.HashKey(plaintext)]
	if !ok || !sess.ExpiresAt.After(m.now()) {
		return nil, auth.ErrInvalidSession
	}
	for _, a := range m.accounts {
		if a.ID == sess.AccountID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, auth.ErrInvalidSession
}

func (m *MemoryStore) DeleteSession(ctx context.Context, plaintext string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, auth.HashKey(plaintext))
	return nil
}

func (m *MemoryStore) CleanExpiredSessions(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := m.now()
	for k, s := range m.sessions {
		if s.ExpiresAt.Before(now) {
			delete(m.sessions, k)
			n++
		}
	}
	return n, nil
}
