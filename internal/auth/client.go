package auth

import (
	"context"
	"sync"
)

// Client holds one client's session against a Provider and notifies
// subscribers of every session change: sign-in, sign-up, sign-out and
// restore.
type Client struct {
	provider Provider

	mu    sync.Mutex
	token string
	user  *User
	subs  map[*subscription]struct{}
}

type subscription struct {
	ch chan *User
}

// NewClient returns a signed-out client.
func NewClient(p Provider) *Client {
	return &Client{
		provider: p,
		subs:     make(map[*subscription]struct{}),
	}
}

// Subscribe returns a channel that receives the current user immediately and
// then the user after every change (nil when signed out). Only the latest
// undelivered value is kept. Call the returned function to unsubscribe; it
// closes the channel.
func (c *Client) Subscribe() (<-chan *User, func()) {
	s := &subscription{ch: make(chan *User, 1)}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	s.ch <- c.user
	c.mu.Unlock()

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, s)
			close(s.ch)
			c.mu.Unlock()
		})
	}
}

// SignIn authenticates with the provider and publishes the new user.
func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	token, user, err := c.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	c.set(token, user)
	return user, nil
}

// SignUp creates an account, signs it in and publishes the new user.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*User, error) {
	token, user, err := c.provider.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	c.set(token, user)
	return user, nil
}

// Restore resumes a session from a previously issued token. An invalid token
// leaves the client signed out.
func (c *Client) Restore(ctx context.Context, token string) (*User, error) {
	user, err := c.provider.LookupSession(ctx, token)
	if err != nil {
		c.set("", nil)
		return nil, err
	}
	c.set(token, user)
	return user, nil
}

// SignOut ends the session with the provider and publishes a nil user. The
// local state is cleared even when the provider call fails.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.mu.Unlock()

	var err error
	if token != "" {
		err = c.provider.SignOut(ctx, token)
	}
	c.set("", nil)
	return err
}

// Token returns the current session token, or "" when signed out.
func (c *Client) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// CurrentUser returns the signed-in user, or nil.
func (c *Client) CurrentUser() *User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Client) set(token string, user *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
	c.user = user
	for s := range c.subs {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- user
	}
}
