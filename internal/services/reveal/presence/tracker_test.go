package presence

import (
	"context"
	"sync"
	"testing"
	"time"
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
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.May, 1, 10, 0, 0, 0, time.UTC)}
}

func TestTrackerStalenessWithoutStopSignal(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock.Now)

	tracker.Set("c1", "alice", true)
	if got := tracker.Active("c1"); len(got) != 1 || got[0].UserID != "alice" {
		t.Fatalf("active = %+v", got)
	}

	clock.Advance(StaleAfter)
	if got := tracker.Active("c1"); len(got) != 1 {
		t.Fatalf("expected typer at exactly the boundary, got %+v", got)
	}

	clock.Advance(time.Millisecond)
	if got := tracker.Active("c1"); len(got) != 0 {
		t.Fatalf("expected stale typer excluded, got %+v", got)
	}
}

func TestTrackerLastWriteWins(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock.Now)

	tracker.Set("c1", "alice", true)
	tracker.Set("c1", "bob", true)
	tracker.Set("c1", "alice", false)

	got := tracker.Active("c1")
	if len(got) != 1 || got[0].UserID != "bob" {
		t.Fatalf("active = %+v", got)
	}

	clock.Advance(2 * time.Second)
	tracker.Set("c1", "bob", true)
	clock.Advance(2 * time.Second)
	if got := tracker.Active("c1"); len(got) != 1 {
		t.Fatalf("refresh should extend liveness, got %+v", got)
	}
}

func TestTrackerSweepAndForget(t *testing.T) {
	clock := newClock()
	tracker := NewTracker(clock.Now)

	tracker.Set("c1", "alice", true)
	tracker.Set("c2", "bob", true)
	clock.Advance(StaleAfter + time.Second)
	tracker.Set("c2", "carol", true)

	if removed := tracker.Sweep(); removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}
	if got := tracker.Active("c2"); len(got) != 1 || got[0].UserID != "carol" {
		t.Fatalf("active c2 = %+v", got)
	}

	tracker.Forget("c2")
	if got := tracker.Active("c2"); len(got) != 0 {
		t.Fatalf("active after forget = %+v", got)
	}
}

func TestTrackerRunStopsOnCancel(t *testing.T) {
	tracker := NewTracker(nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tracker.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("run did not stop")
	}
}
