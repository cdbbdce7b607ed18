package liveness

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/roach88/cellsync/internal/table"
)

// DefaultInterval is how often the sweep runs.
const DefaultInterval = 5 * time.Second

// Change is the outcome of one sweep.
type Change struct {
	// Stale lists sessions that went stale since the previous sweep.
	Stale []string
	// Revived lists sessions that heartbeated again after being stale.
	Revived []string
}

// Empty reports whether the sweep changed nothing.
func (c Change) Empty() bool { return len(c.Stale) == 0 && len(c.Revived) == 0 }

// Config controls a Tracker.
type Config struct {
	Window   time.Duration
	Interval time.Duration
	// Now reads the wall clock. Defaults to time.Now.
	Now func() time.Time
}

// Tracker runs the periodic liveness sweep.
//
// View is called once per sweep and must run fn against a consistent view of
// the tables (the engine calls it under its read lock). OnChange is called
// outside that view whenever the stale set changes.
//
// Thread-safety: all methods are safe for concurrent use.
type Tracker struct {
	window   time.Duration
	interval time.Duration
	now      func() time.Time
	view     func(fn func(*table.Tables))
	onChange func(Change)

	// sweeping serializes sweeps so changes are reported once, in order
	sweeping sync.Mutex
	mu       sync.Mutex
	stale    map[string]bool

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewTracker creates a stopped tracker. onChange may be nil.
func NewTracker(cfg Config, view func(fn func(*table.Tables)), onChange func(Change)) *Tracker {
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Tracker{
		window:   cfg.Window,
		interval: cfg.Interval,
		now:      cfg.Now,
		view:     view,
		onChange: onChange,
		stale:    make(map[string]bool),
	}
}

// Window returns the heartbeat window.
func (t *Tracker) Window() time.Duration { return t.window }

// Now reads the tracker's clock.
func (t *Tracker) Now() time.Time { return t.now() }

// Overlay wraps src with the tracker's current view of liveness.
func (t *Tracker) Overlay(src interface {
	Rows(name string) ([]table.Row, error)
}) Overlay {
	return Overlay{Source: src, Now: t.now(), Window: t.window}
}

// Stale reports whether the last sweep saw sessionID as stale.
func (t *Tracker) Stale(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stale[sessionID]
}

// Sweep evaluates every session once and reports what changed.
func (t *Tracker) Sweep() Change {
	t.sweeping.Lock()
	defer t.sweeping.Unlock()

	now := t.now()
	var current []string
	t.view(func(tb *table.Tables) {
		current = Evaluate(tb, now, t.window)
	})

	next := make(map[string]bool, len(current))
	for _, id := range current {
		next[id] = true
	}

	var change Change
	t.mu.Lock()
	for _, id := range current {
		if !t.stale[id] {
			change.Stale = append(change.Stale, id)
		}
	}
	for id := range t.stale {
		if !next[id] {
			change.Revived = append(change.Revived, id)
		}
	}
	t.stale = next
	t.mu.Unlock()

	if change.Empty() {
		return change
	}
	sort.Strings(change.Revived)
	for _, id := range change.Stale {
		slog.Warn("kernel session stale", "session", id, "window", t.window)
	}
	for _, id := range change.Revived {
		slog.Info("kernel session revived", "session", id)
	}
	if t.onChange != nil {
		t.onChange(change)
	}
	return change
}

// Start launches the sweep loop. Calling Start on a running tracker does
// nothing. The loop stops when ctx is cancelled or Stop is called.
func (t *Tracker) Start(ctx context.Context) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	if t.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done

	slog.Info("liveness tracker starting", "window", t.window, "interval", t.interval)
	go func() {
		defer close(done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit. Safe to call on a
// stopped tracker.
func (t *Tracker) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	if t.cancel == nil {
		return
	}
	t.cancel()
	<-t.done
	t.cancel = nil
	t.done = nil
	slog.Info("liveness tracker stopped")
}

// Running reports whether the sweep loop is active.
func (t *Tracker) Running() bool {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	return t.cancel != nil
}
