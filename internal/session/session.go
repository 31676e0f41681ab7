// Package session tracks the signed-in user and their live profile for one
// client. It follows the identity provider's session changes, makes sure a
// profile exists for every user that signs in, and keeps exactly one profile
// subscription open at a time.
package session

import (
	"context"
	"log/slog"

	"github.com/alecgard/venuedesk/internal/auth"
	"github.com/alecgard/venuedesk/internal/docstore"
	"github.com/alecgard/venuedesk/internal/paths"
	"github.com/alecgard/venuedesk/internal/profile"
	"github.com/alecgard/venuedesk/internal/schema"
)

// Identity is the provider-side session the manager follows.
type Identity interface {
	Subscribe() (<-chan *auth.User, func())
	SignOut(ctx context.Context) error
}

// State is the published identity session state.
type State struct {
	User    *auth.User
	Profile *schema.User
	Loading bool
	Err     error
}

// Manager is the identity session component.
type Manager struct {
	identity Identity
	store    docstore.Store
	profiles *profile.Service
	state    *Cell[State]

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager starts observing identity. The manager runs until Close is
// called or ctx is cancelled.
func NewManager(ctx context.Context, identity Identity, store docstore.Store) *Manager {
	ctx, cancel := context.WithCancel(ctx)
	m := &Manager{
		identity: identity,
		store:    store,
		profiles: profile.NewService(store),
		state:    NewCell(State{Loading: true}),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	changes, unsubscribe := identity.Subscribe()
	go m.run(ctx, changes, unsubscribe)
	return m
}

// State returns the current state.
func (m *Manager) State() State { return m.state.Get() }

// Subscribe returns a channel of state changes starting with the current
// state, and a function that ends the subscription.
func (m *Manager) Subscribe() (<-chan State, func()) { return m.state.Subscribe() }

// SignOut signs the user out with the provider. The state is torn down when
// the resulting session change arrives.
func (m *Manager) SignOut(ctx context.Context) error {
	return m.identity.SignOut(ctx)
}

// Close stops the manager and its profile subscription and closes every
// state subscription.
func (m *Manager) Close() {
	m.cancel()
	<-m.done
	m.state.Close()
}

// Done is closed when the manager has stopped.
func (m *Manager) Done() <-chan struct{} { return m.done }

func (m *Manager) run(ctx context.Context, changes <-chan *auth.User, unsubscribe func()) {
	defer close(m.done)
	defer unsubscribe()

	var (
		user  *auth.User
		watch *docstore.Watch
		snaps <-chan docstore.Snapshot
	)
	stopWatch := func() {
		if watch != nil {
			watch.Stop()
			watch = nil
			snaps = nil
		}
	}
	defer stopWatch()

	for {
		select {
		case <-ctx.Done():
			return

		case u, ok := <-changes:
			if !ok {
				return
			}
			// The previous profile subscription must be gone before anything
			// is published for the new user.
			stopWatch()
			user = u
			if u == nil {
				m.state.Set(State{})
				continue
			}
			m.state.Set(State{User: u, Loading: true})

			if _, err := m.profiles.Ensure(ctx, u); err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Error("ensuring profile", "user_id", u.ID, "error", err)
				m.state.Set(State{User: u, Err: err})
				continue
			}
			w, err := m.store.Watch(ctx, paths.UserDoc(u.ID))
			if err != nil {
				slog.Error("watching profile", "user_id", u.ID, "error", err)
				m.state.Set(State{User: u, Err: err})
				continue
			}
			watch = w
			snaps = w.C()

		case snap, ok := <-snaps:
			if !ok {
				snaps = nil
				continue
			}
			if snap.Err != nil {
				slog.Error("profile snapshot", "user_id", user.ID, "error", snap.Err)
				m.state.Set(State{User: user, Err: snap.Err})
				continue
			}
			var p *schema.User
			if snap.Doc != nil {
				decoded, err := profile.Decode(snap.Doc)
				if err != nil {
					slog.Error("decoding profile", "user_id", user.ID, "error", err)
					m.state.Set(State{User: user, Err: err})
					continue
				}
				p = decoded
			}
			m.state.Set(State{User: user, Profile: p})
		}
	}
}
