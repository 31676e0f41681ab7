package docstore

import (
	"context"
	"sync"
)

// Watch is a live subscription to one document. Snapshots arrive on C; the
// channel is closed once the watch ends.
type Watch struct {
	ref  DocRef
	c    chan Snapshot
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// C returns the snapshot channel.
func (w *Watch) C() <-chan Snapshot { return w.c }

// Ref returns the watched document.
func (w *Watch) Ref() DocRef { return w.ref }

// Stop ends the watch. It blocks until the delivery goroutine has exited, so
// no snapshot is emitted after Stop returns. Stop is idempotent.
func (w *Watch) Stop() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

// Done is closed once the watch has ended, either by Stop or because the
// context passed to Store.Watch was cancelled.
func (w *Watch) Done() <-chan struct{} { return w.done }

// startWatch runs the delivery loop for ref. fetch reads the current state;
// signal fires whenever the document may have changed. Signals coalesce, so a
// slow consumer only ever receives the latest state.
func startWatch(ctx context.Context, ref DocRef, h *hub, fetch func(context.Context) Snapshot) *Watch {
	w := &Watch{
		ref:  ref,
		c:    make(chan Snapshot),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	sub := h.subscribe(ref.Path())

	go func() {
		defer close(w.done)
		defer close(w.c)
		defer h.unsubscribe(ref.Path(), sub)

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-w.stop:
				cancel()
			case <-ctx.Done():
			}
		}()

		for {
			snap := fetch(ctx)
			if ctx.Err() != nil {
				return
			}
			select {
			case w.c <- snap:
			case <-ctx.Done():
				return
			}
			select {
			case <-sub.signal:
			case <-ctx.Done():
				return
			}
		}
	}()
	return w
}

// hub fans change notifications out to the watches of each document path.
type hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscriber]struct{}
}

type subscriber struct {
	signal chan struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*subscriber]struct{})}
}

func (h *hub) subscribe(path string) *subscriber {
	s := &subscriber{signal: make(chan struct{}, 1)}
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[path]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.subs[path] = set
	}
	set[s] = struct{}{}
	return s
}

func (h *hub) unsubscribe(path string, s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set := h.subs[path]
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, path)
	}
}

// publish marks path as changed. It never blocks.
func (h *hub) publish(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs[path] {
		select {
		case s.signal <- struct{}{}:
		default:
		}
	}
}

// active returns the number of live subscribers.
func (h *hub) active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}
