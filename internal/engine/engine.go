package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/liveness"
	"github.com/roach88/cellsync/internal/materialize"
	"github.com/roach88/cellsync/internal/query"
	"github.com/roach88/cellsync/internal/store"
	"github.com/roach88/cellsync/internal/table"
)

// DefaultCommitRetries bounds how often a commit is retried after losing
// an optimistic head check to another writer.
const DefaultCommitRetries = 3

// Config configures an engine.
type Config struct {
	// StoreID names the notebook store. Required.
	StoreID string
	// LivenessWindow is the heartbeat window (liveness.DefaultWindow if zero).
	LivenessWindow time.Duration
	// SweepInterval is the liveness sweep period (liveness.DefaultInterval if zero).
	SweepInterval time.Duration
}

// Option adjusts an engine at construction.
type Option func(*Engine)

// WithClock sets the clock used for server-side timestamps and liveness.
func WithClock(c Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithCommitRetries sets how many times a conflicting append is retried
// after catching up. Zero disables retries.
func WithCommitRetries(n int) Option {
	return func(e *Engine) { e.retries = max(n, 0) }
}

// WithIDGenerator sets the generator used by helper operations.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// Engine coordinates one store: commits, projection, subscriptions and
// liveness.
//
// Thread-safety: all methods are safe for concurrent use.
type Engine struct {
	store    *store.Store
	registry *event.Registry
	storeID  string
	clock    Clock
	ids      IDGenerator
	retries  int

	mu     sync.RWMutex
	tables *table.Tables
	head   int64
	closed bool

	hub     *query.Hub
	tracker *liveness.Tracker
}

// Commit is a request to append one event.
type Commit struct {
	Name    event.Name
	Payload json.RawMessage
	// ActorID is the authenticated committer. Required.
	ActorID string
	// ClientTimestamp, when set, becomes the event time. Otherwise the
	// engine clock stamps the event.
	ClientTimestamp *time.Time
}

// Result describes a committed (or locally applied) event.
type Result struct {
	Event  event.Event
	Effect materialize.Effect
}

// Open builds an engine for cfg.StoreID by replaying its log from the start.
// Every record's content-addressed id is verified on the way.
func Open(ctx context.Context, s *store.Store, reg *event.Registry, cfg Config, opts ...Option) (*Engine, error) {
	if cfg.StoreID == "" {
		return nil, fmt.Errorf("open engine: store id is required")
	}
	e := &Engine{
		store:    s,
		registry: reg,
		storeID:  cfg.StoreID,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		retries:  DefaultCommitRetries,
		tables:   table.New(),
		hub:      query.NewHub(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.tracker = liveness.NewTracker(liveness.Config{
		Window:   cfg.LivenessWindow,
		Interval: cfg.SweepInterval,
		Now:      e.clock.Now,
	}, e.view, e.livenessChanged)

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.catchUp(ctx); err != nil {
		return nil, fmt.Errorf("open engine %s: %w", cfg.StoreID, err)
	}

	slog.Info("engine opened",
		"store", e.storeID,
		"head", e.head,
	)
	return e, nil
}

// StoreID returns the store the engine coordinates.
func (e *Engine) StoreID() string { return e.storeID }

// Registry returns the event registry.
func (e *Engine) Registry() *event.Registry { return e.registry }

// Start launches the liveness sweep. Idempotent.
func (e *Engine) Start(ctx context.Context) {
	e.tracker.Start(ctx)
}

// Stop halts the liveness sweep. Idempotent.
func (e *Engine) Stop() {
	e.tracker.Stop()
}

// Close stops the sweep and closes every subscription. The store is left
// open; its owner closes it.
func (e *Engine) Close() {
	e.tracker.Stop()
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.hub.Close()
}

// Commit validates and appends one event, then folds it into the tables.
//
// Schema failures return *event.SchemaValidationError; boundary failures
// return *CommitError. In both cases nothing is appended.
func (e *Engine) Commit(ctx context.Context, c Commit) (Result, error) {
	if c.ActorID == "" {
		return Result{}, newCommitError(CodeMissingActor, c.Name, "actor id is required")
	}
	p, err := e.registry.Decode(c.Name, c.Payload)
	if err != nil {
		return Result{}, err
	}

	kind, _ := e.registry.Lookup(c.Name)
	if kind.Local {
		return e.applyLocal(c, p)
	}

	return e.commit(ctx, c.ActorID, c.ClientTimestamp, func(t *table.Tables) (event.Payload, error) {
		if err := checkBoundary(t, p); err != nil {
			return nil, err
		}
		return p, nil
	})
}

// CommitWire commits an event in its wire shape:
//
//	{ "name": "v1.CellCreated", "payload": {...}, "clientTimestamp": "..." }
func (e *Engine) CommitWire(ctx context.Context, actorID string, data []byte) (Result, error) {
	w, err := event.ParseWire(data)
	if err != nil {
		return Result{}, err
	}
	return e.Commit(ctx, Commit{
		Name:            event.Name(w.Name),
		Payload:         w.Payload,
		ActorID:         actorID,
		ClientTimestamp: w.ClientTimestamp,
	})
}

// checkBoundary rejects events that would corrupt the store rather than
// merely violate protocol.
func checkBoundary(t *table.Tables, p event.Payload) error {
	if _, ok := p.(*event.NotebookInitializedPayload); ok && t.Notebook() != nil {
		return newCommitError(CodeNotebookExists, p.EventName(), "store already has notebook %s", t.Notebook().ID)
	}
	return nil
}

// errSkip aborts a commit attempt without error: the helper found nothing
// to do against the current tables.
var errSkip = errors.New("nothing to commit")

// commit runs the append loop. prepare is called under the write lock
// against the current tables on every attempt and returns the payload to
// append; it may return errSkip.
func (e *Engine) commit(ctx context.Context, actorID string, clientTS *time.Time, prepare func(*table.Tables) (event.Payload, error)) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	for attempt := 0; attempt <= e.retries; attempt++ {
		if e.closed {
			return Result{}, ErrClosed
		}
		p, err := prepare(e.tables)
		if err != nil {
			return Result{}, err
		}
		// Helper payloads never went through Decode.
		if err := e.registry.Validate(p); err != nil {
			return Result{}, err
		}
		raw, err := event.Encode(p)
		if err != nil {
			return Result{}, err
		}

		ts := e.clock.Now()
		if clientTS != nil {
			ts = *clientTS
		}
		rec, err := e.store.Append(ctx, store.Record{
			StoreID:     e.storeID,
			Name:        string(p.EventName()),
			Payload:     raw,
			ActorID:     actorID,
			TimestampMs: ts.UnixMilli(),
		}, e.head)
		if errors.Is(err, store.ErrConflict) {
			lastErr = err
			slog.Debug("commit conflict, catching up",
				"store", e.storeID,
				"event", p.EventName(),
				"attempt", attempt+1,
			)
			if err := e.catchUp(ctx); err != nil {
				return Result{}, err
			}
			continue
		}
		if err != nil {
			return Result{}, fmt.Errorf("commit %s: %w", p.EventName(), err)
		}

		res, err := e.applyRecord(rec)
		if err != nil {
			return Result{}, fmt.Errorf("commit %s: %w", p.EventName(), err)
		}
		slog.Info("event committed",
			"store", e.storeID,
			"seq", rec.Seq,
			"event", rec.Name,
			"actor", rec.ActorID,
		)
		return res, nil
	}
	return Result{}, fmt.Errorf("commit to %s: gave up after %d attempts: %w", e.storeID, e.retries+1, lastErr)
}

// catchUp folds every record past the current head. Caller holds the write
// lock.
func (e *Engine) catchUp(ctx context.Context) error {
	recs, err := e.store.ReplayFrom(ctx, e.storeID, e.head)
	if err != nil {
		return fmt.Errorf("catch up: %w", err)
	}
	for _, rec := range recs {
		if err := rec.Verify(); err != nil {
			return fmt.Errorf("catch up: %w", err)
		}
		if _, err := e.applyRecord(rec); err != nil {
			return fmt.Errorf("catch up: %w", err)
		}
	}
	return nil
}

// applyRecord decodes a stored record, folds it, logs violations and
// publishes to subscribers. Caller holds the write lock.
func (e *Engine) applyRecord(rec store.Record) (Result, error) {
	if rec.Seq != e.head+1 {
		return Result{}, fmt.Errorf("record %s#%d out of order: head is %d", rec.StoreID, rec.Seq, e.head)
	}
	ev, err := decodeRecord(e.registry, rec)
	if err != nil {
		return Result{}, err
	}

	eff := materialize.Apply(e.tables, ev)
	e.head = rec.Seq
	logViolations(e.storeID, eff)
	e.hub.Publish(e.overlay(), e.head, eff.Touched)
	return Result{Event: ev, Effect: eff}, nil
}

// applyLocal applies a local-only event to this process's tables.
func (e *Engine) applyLocal(c Commit, p event.Payload) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Result{}, ErrClosed
	}

	ts := e.clock.Now()
	if c.ClientTimestamp != nil {
		ts = *c.ClientTimestamp
	}
	ev := event.Event{
		StoreID:   e.storeID,
		Name:      p.EventName(),
		ActorID:   c.ActorID,
		Timestamp: eventTime(ts.UnixMilli()),
		Payload:   p,
	}
	eff := materialize.Apply(e.tables, ev)
	e.hub.Publish(e.overlay(), e.head, eff.Touched)
	slog.Debug("local event applied", "store", e.storeID, "event", ev.Name)
	return Result{Event: ev, Effect: eff}, nil
}

// decodeRecord turns a stored record back into a typed event.
func decodeRecord(reg *event.Registry, rec store.Record) (event.Event, error) {
	name := event.Name(rec.Name)
	p, err := reg.Decode(name, rec.Payload)
	if err != nil {
		return event.Event{}, fmt.Errorf("decode %s#%d: %w", rec.StoreID, rec.Seq, err)
	}
	return event.Event{
		StoreID:   rec.StoreID,
		Seq:       rec.Seq,
		ID:        rec.ID,
		Name:      name,
		ActorID:   rec.ActorID,
		Timestamp: eventTime(rec.TimestampMs),
		Payload:   p,
	}, nil
}

func logViolations(storeID string, eff materialize.Effect) {
	for _, v := range eff.Violations {
		slog.Warn("protocol violation",
			"store", storeID,
			"seq", v.Seq,
			"event", v.Event,
			"entity", v.EntityID,
			"code", v.Code,
			"detail", v.Detail,
		)
	}
}

// Sync folds any records other writers appended since the last commit.
func (e *Engine) Sync(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catchUp(ctx)
}

// Head returns the last folded log position.
func (e *Engine) Head() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.head
}

// Snapshot returns a deep copy of the tables as of Head.
func (e *Engine) Snapshot() (*table.Tables, int64) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tables.Clone(), e.head
}

// Query evaluates spec against the current tables with liveness applied.
func (e *Engine) Query(spec query.Spec) (query.ResultSet, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	rs, err := query.Run(e.overlay(), spec)
	if err != nil {
		return query.ResultSet{}, err
	}
	rs.Seq = e.head
	return rs, nil
}

// Subscribe registers a live query. onUpdate receives the current result
// first and then a new result after every change to spec.Table, in commit
// order.
func (e *Engine) Subscribe(spec query.Spec, onUpdate func(query.ResultSet)) (*query.Subscription, error) {
	// The read lock keeps publishes out while the initial result is computed
	// and the subscription registered, so no commit is missed or doubled.
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil, ErrClosed
	}
	return e.hub.Subscribe(e.overlay(), e.head, spec, onUpdate)
}

// SweepLiveness runs one liveness sweep now.
func (e *Engine) SweepLiveness() liveness.Change {
	return e.tracker.Sweep()
}

// overlay is the query source: live tables with liveness applied.
func (e *Engine) overlay() query.Source {
	return e.tracker.Overlay(e.tables)
}

// view gives the tracker a consistent read of the tables.
func (e *Engine) view(fn func(*table.Tables)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.tables)
}

// livenessChanged refreshes kernel-session subscriptions after a sweep saw
// staleness change.
func (e *Engine) livenessChanged(liveness.Change) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.hub.Publish(e.overlay(), e.head, []string{table.KernelSessions})
}
