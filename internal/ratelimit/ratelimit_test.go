package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(rate int, window time.Duration) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	l := New(rate, window)
	l.now = clock.Now
	return l, clock
}

// step is one action against a limiter: wait, then take n tokens and expect
// the given number of them to be granted.
type step struct {
	wait    time.Duration
	takes   int
	granted int
}

func TestTakeSequences(t *testing.T) {
	tests := []struct {
		name  string
		rate  int
		steps []step
	}{
		{
			name:  "burst up to the rate",
			rate:  3,
			steps: []step{{takes: 5, granted: 3}},
		},
		{
			name: "refills one token per rate/window",
			rate: 60, // one per second
			steps: []step{
				{takes: 61, granted: 60},
				{wait: time.Second, takes: 2, granted: 1},
				{wait: 5 * time.Second, takes: 6, granted: 5},
			},
		},
		{
			name: "partial refill does not grant",
			rate: 60,
			steps: []step{
				{takes: 60, granted: 60},
				{wait: 500 * time.Millisecond, takes: 1, granted: 0},
				{wait: 500 * time.Millisecond, takes: 1, granted: 1},
			},
		},
		{
			name: "idle time caps at the rate",
			rate: 4,
			steps: []step{
				{takes: 2, granted: 2},
				{wait: time.Hour, takes: 10, granted: 4},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, clock := newTestLimiter(tt.rate, time.Minute)
			for i, s := range tt.steps {
				clock.Advance(s.wait)
				granted := 0
				for j := 0; j < s.takes; j++ {
					if l.Take("user-1").Allowed {
						granted++
					}
				}
				if granted != s.granted {
					t.Fatalf("step %d: granted %d of %d, want %d", i, granted, s.takes, s.granted)
				}
			}
		})
	}
}

func TestKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, time.Minute)

	if !l.Take("user-1").Allowed || l.Take("user-1").Allowed {
		t.Fatal("user-1 should get exactly one token")
	}
	if !l.Take("user-2").Allowed {
		t.Fatal("user-2 has its own bucket")
	}
}

func TestConcurrentTakesNeverOvergrant(t *testing.T) {
	l, _ := newTestLimiter(50, time.Minute)

	var granted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				if l.Take("shared").Allowed {
					granted.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := granted.Load(); got != 50 {
		t.Fatalf("granted %d tokens, want exactly 50", got)
	}
}

func TestResult(t *testing.T) {
	l, clock := newTestLimiter(10, time.Minute) // one token per 6s

	r := l.Take("user-1")
	if !r.Allowed || r.Limit != 10 || r.Remaining != 9 {
		t.Fatalf("first take: %+v", r)
	}
	if want := clock.Now().Add(6 * time.Second); !r.ResetAt.Equal(want) {
		t.Errorf("resetAt = %v, want %v", r.ResetAt, want)
	}

	for i := 0; i < 2; i++ {
		l.Take("user-1")
	}
	r = l.Take("user-1")
	if !r.Allowed || r.Remaining != 6 {
		t.Fatalf("unexpected result %+v", r)
	}
	if want := clock.Now().Add(24 * time.Second); !r.ResetAt.Equal(want) {
		t.Errorf("resetAt = %v, want %v", r.ResetAt, want)
	}

	// Waiting out the deficit refills the bucket completely.
	clock.Advance(24 * time.Second)
	r = l.Take("user-1")
	if r.Remaining != 9 {
		t.Errorf("remaining after full refill = %d, want 9", r.Remaining)
	}
}

func TestDeniedTakeReportsZeroRemaining(t *testing.T) {
	l, clock := newTestLimiter(1, time.Minute)
	l.Take("user-1")

	r := l.Take("user-1")
	if r.Allowed || r.Remaining != 0 {
		t.Fatalf("unexpected denied result %+v", r)
	}
	if !r.ResetAt.After(clock.Now()) {
		t.Errorf("resetAt %v should be in the future", r.ResetAt)
	}
}

func TestPrune(t *testing.T) {
	l, clock := newTestLimiter(5, time.Minute)

	l.Take("idle")
	clock.Advance(2 * time.Minute)
	l.Take("active")

	if n := l.Prune(time.Minute); n != 1 {
		t.Fatalf("pruned %d keys, want 1", n)
	}
	if l.Len() != 1 {
		t.Fatalf("%d keys left, want 1", l.Len())
	}

	// A pruned key starts over with a full bucket.
	if r := l.Take("idle"); r.Remaining != 4 {
		t.Errorf("remaining after re-creation = %d, want 4", r.Remaining)
	}
}

func TestRunPrunerStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	l, _ := newTestLimiter(5, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.RunPruner(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunPruner did not return after cancel")
	}
}
