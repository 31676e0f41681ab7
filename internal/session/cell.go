package session

import "sync"

// Cell holds a value and notifies subscribers whenever it changes. Each
// subscriber keeps at most one undelivered value: a newer value replaces an
// older one that was never read.
type Cell[T any] struct {
	mu    sync.Mutex
	value T
	subs  map[*cellSub[T]]struct{}
}

type cellSub[T any] struct {
	ch chan T
}

// NewCell returns a cell holding initial.
func NewCell[T any](initial T) *Cell[T] {
	return &Cell[T]{value: initial, subs: make(map[*cellSub[T]]struct{})}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set stores v and notifies every subscriber.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = v
	for s := range c.subs {
		select {
		case <-s.ch:
		default:
		}
		s.ch <- v
	}
}

// Subscribe returns a channel that receives the current value and then every
// later one. The returned function unsubscribes and closes the channel; it is
// safe to call more than once.
func (c *Cell[T]) Subscribe() (<-chan T, func()) {
	s := &cellSub[T]{ch: make(chan T, 1)}
	c.mu.Lock()
	c.subs[s] = struct{}{}
	s.ch <- c.value
	c.mu.Unlock()

	return s.ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.subs[s]; ok {
			delete(c.subs, s)
			close(s.ch)
		}
	}
}

// Close unsubscribes everyone.
func (c *Cell[T]) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for s := range c.subs {
		delete(c.subs, s)
		close(s.ch)
	}
}
