// Package presence tracks ephemeral typing state per connection member.
//
// Entries are never persisted. A reader treats an entry as stale once
// StaleAfter has passed since the last keystroke, which covers clients that
// disconnect without sending a stop signal.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"
)

// StaleAfter bounds how long a typing signal stays live without a refresh.
const StaleAfter = 3 * time.Second

// State is one member's typing presence.
type State struct {
	ConnectionID string
	UserID       string
	IsTyping     bool
	LastTypedAt  time.Time
}

// Live reports whether the state still counts as typing at now.
func (s State) Live(now time.Time) bool {
	return s.IsTyping && now.Sub(s.LastTypedAt) <= StaleAfter
}

// Tracker holds last-write-wins typing state keyed by connection and user.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]map[string]State
	clock   func() time.Time
}

// NewTracker builds a tracker using clock for timestamps.
func NewTracker(clock func() time.Time) *Tracker {
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{
		entries: make(map[string]map[string]State),
		clock:   clock,
	}
}

// Set records the member's typing state and returns it.
func (t *Tracker) Set(connectionID string, userID string, isTyping bool) State {
	state := State{
		ConnectionID: connectionID,
		UserID:       userID,
		IsTyping:     isTyping,
		LastTypedAt:  t.clock().UTC(),
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !isTyping {
		if members, ok := t.entries[connectionID]; ok {
			delete(members, userID)
			if len(members) == 0 {
				delete(t.entries, connectionID)
			}
		}
		return state
	}
	members, ok := t.entries[connectionID]
	if !ok {
		members = make(map[string]State, 2)
		t.entries[connectionID] = members
	}
	members[userID] = state
	return state
}

// Active returns the live typers of a connection, ordered by user ID.
func (t *Tracker) Active(connectionID string) []State {
	now := t.clock()

	t.mu.Lock()
	defer t.mu.Unlock()
	var out []State
	for _, state := range t.entries[connectionID] {
		if state.Live(now) {
			out = append(out, state)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Forget drops every entry for a connection.
func (t *Tracker) Forget(connectionID string) {
	t.mu.Lock()
	delete(t.entries, connectionID)
	t.mu.Unlock()
}

// Sweep removes stale entries and returns how many were dropped.
func (t *Tracker) Sweep() int {
	now := t.clock()

	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for connectionID, members := range t.entries {
		for userID, state := range members {
			if !state.Live(now) {
				delete(members, userID)
				removed++
			}
		}
		if len(members) == 0 {
			delete(t.entries, connectionID)
		}
	}
	return removed
}

// Run sweeps on every tick until ctx ends.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = StaleAfter
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Sweep()
		}
	}
}
