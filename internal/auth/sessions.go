package auth

import (
	"context"
	"sync"
)

// Sessions tracks the live clients restored from each session token, so a
// sign-out made on one connection reaches every client holding that session.
// Tokens are indexed by HashKey; plaintext is never kept.
type Sessions struct {
	mu      sync.Mutex
	clients map[string]map[*Client]struct{}
}

func NewSessions() *Sessions {
	return &Sessions{clients: make(map[string]map[*Client]struct{})}
}

// Track registers c under token until the returned function is called.
func (s *Sessions) Track(token string, c *Client) func() {
	key := HashKey(token)
	s.mu.Lock()
	set, ok := s.clients[key]
	if !ok {
		set = make(map[*Client]struct{})
		s.clients[key] = set
	}
	set[c] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.clients[key], c)
			if len(s.clients[key]) == 0 {
				delete(s.clients, key)
			}
		})
	}
}

// Len returns the number of tracked clients.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.clients {
		n += len(set)
	}
	return n
}

// SignOut revokes token with the provider, then signs out every client
// tracked under it. Clients are signed out even when revocation fails.
func (s *Sessions) SignOut(ctx context.Context, p Provider, token string) error {
	err := p.SignOut(ctx, token)

	s.mu.Lock()
	set := s.clients[HashKey(token)]
	clients := make([]*Client, 0, len(set))
	for c := range set {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.set("", nil)
	}
	return err
}
