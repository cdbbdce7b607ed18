package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/cellsync/internal/engine"
	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/query"
	"github.com/roach88/cellsync/internal/store"
	"github.com/roach88/cellsync/internal/table"
	"github.com/roach88/cellsync/internal/testutil"
)

const (
	defaultStore = "scenario"
	defaultActor = "u1"

	// ExpectSchema matches a payload schema rejection in Step.ExpectError.
	ExpectSchema = "schema"
	// ExpectConflict matches an exhausted commit retry in Step.ExpectError.
	ExpectConflict = "conflict"
)

// runner holds the per-run state.
type runner struct {
	ctx    context.Context
	eng    *engine.Engine
	clock  *testutil.ManualClock
	result *Result
}

// Run executes a scenario against a fresh in-memory store and returns the
// result. The returned error covers setup and trace collection; failed
// expectations land in Result.Errors.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	s, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer s.Close()

	reg, err := event.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("failed to load registry: %w", err)
	}

	start := DefaultStart
	if scenario.Start != "" {
		start, err = time.Parse(time.RFC3339, scenario.Start)
		if err != nil {
			return nil, fmt.Errorf("start: %w", err)
		}
	}
	var window time.Duration
	if scenario.Window != "" {
		window, err = time.ParseDuration(scenario.Window)
		if err != nil {
			return nil, fmt.Errorf("window: %w", err)
		}
	}

	var ids engine.IDGenerator = testutil.NewSequenceGenerator("q")
	if len(scenario.IDs) > 0 {
		ids = engine.NewFixedGenerator(scenario.IDs...)
	}

	storeID := scenario.Store
	if storeID == "" {
		storeID = defaultStore
	}
	clock := testutil.NewManualClock(start)
	eng, err := engine.Open(ctx, s, reg, engine.Config{
		StoreID:        storeID,
		LivenessWindow: window,
	}, engine.WithClock(clock), engine.WithIDGenerator(ids))
	if err != nil {
		return nil, err
	}
	defer eng.Close()

	r := &runner{ctx: ctx, eng: eng, clock: clock, result: NewResult()}
	for i, step := range scenario.Steps {
		r.step(i, step)
	}
	for i, a := range scenario.Assertions {
		if err := r.assert(a); err != nil {
			r.result.AddError(fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}

	if err := r.collect(s, storeID); err != nil {
		return nil, err
	}
	return r.result, nil
}

// step runs one step and records any unmet expectation.
func (r *runner) step(index int, step Step) {
	actor := step.Actor
	if actor == "" {
		actor = defaultActor
	}

	var err error
	switch {
	case step.Commit != "":
		err = r.commit(actor, step)
	case step.Request != nil:
		err = r.request(actor, step.Request)
	case step.Claim != nil:
		err = r.claim(actor, step.Claim)
	case step.Recover != nil:
		err = r.recoverOrphans(actor, step.Recover)
	case step.Advance != "":
		d, perr := time.ParseDuration(step.Advance)
		if perr != nil {
			err = perr
			break
		}
		r.clock.Advance(d)
	case step.Sweep:
		r.eng.SweepLiveness()
	}

	if msg := checkExpectedError(step.ExpectError, err); msg != "" {
		r.result.AddError(fmt.Sprintf("steps[%d]: %s", index, msg))
	}
}

func (r *runner) commit(actor string, step Step) error {
	payload := step.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	_, err = r.eng.Commit(r.ctx, engine.Commit{
		Name:    event.Name(step.Commit),
		Payload: raw,
		ActorID: actor,
	})
	return err
}

func (r *runner) request(actor string, req *RequestStep) error {
	id, _, err := r.eng.RequestExecution(r.ctx, actor, engine.ExecutionRequest{
		CellID:         req.Cell,
		Priority:       req.Priority,
		ExecutionCount: req.Count,
	})
	if err != nil {
		return err
	}
	if req.Expect != "" && id != req.Expect {
		return &expectationError{fmt.Sprintf("request got queue id %q, want %q", id, req.Expect)}
	}
	return nil
}

func (r *runner) claim(actor string, c *ClaimStep) error {
	entry, ok, err := r.eng.ClaimNext(r.ctx, actor, c.Session)
	if err != nil {
		return err
	}
	got := "none"
	if ok {
		got = entry.ID
	}
	if c.Expect != "" && got != c.Expect {
		return &expectationError{fmt.Sprintf("claim by %s got %q, want %q", c.Session, got, c.Expect)}
	}
	return nil
}

func (r *runner) recoverOrphans(actor string, rec *RecoverStep) error {
	ids, err := r.eng.RecoverOrphans(r.ctx, actor)
	if err != nil {
		return err
	}
	if rec.Expect == nil {
		return nil
	}
	if strings.Join(ids, ",") != strings.Join(rec.Expect, ",") {
		return &expectationError{fmt.Sprintf("recovered %v, want %v", ids, rec.Expect)}
	}
	return nil
}

// expectationError is a step that ran but returned the wrong answer.
type expectationError struct{ msg string }

func (e *expectationError) Error() string { return e.msg }

// checkExpectedError compares a step error against its expectation and
// returns a failure message, or "" when they agree.
func checkExpectedError(want string, err error) string {
	var unmet *expectationError
	if errors.As(err, &unmet) {
		return unmet.msg
	}
	if want == "" {
		if err != nil {
			return fmt.Sprintf("unexpected error: %v", err)
		}
		return ""
	}
	if err == nil {
		return fmt.Sprintf("expected %s error, got none", want)
	}
	if errorMatches(want, err) {
		return ""
	}
	return fmt.Sprintf("expected %s error, got: %v", want, err)
}

func errorMatches(want string, err error) bool {
	switch want {
	case ExpectSchema:
		return event.IsSchemaError(err)
	case ExpectConflict:
		return engine.IsConflict(err)
	}
	var ce *engine.CommitError
	return errors.As(err, &ce) && string(ce.Code) == want
}

// collect fills the trace and rendered state from the store and engine.
func (r *runner) collect(s *store.Store, storeID string) error {
	recs, err := s.ReplayFrom(r.ctx, storeID, 0)
	if err != nil {
		return fmt.Errorf("failed to read trace: %w", err)
	}

	tables, head := r.eng.Snapshot()
	bySeq := map[int64][]string{}
	for _, v := range tables.Violations {
		bySeq[v.Seq] = append(bySeq[v.Seq], v.Code+" "+v.EntityID)
	}

	r.result.Head = head
	for _, rec := range recs {
		r.result.Trace = append(r.result.Trace, TraceEvent{
			Seq:        rec.Seq,
			Name:       rec.Name,
			Actor:      rec.ActorID,
			Violations: bySeq[rec.Seq],
		})
	}

	cells, err := query.Run(tables, query.Spec{
		Table:   table.Cells,
		OrderBy: []query.Order{{Column: "position"}},
	})
	if err != nil {
		return err
	}
	for _, row := range cells.Rows {
		r.result.Cells = append(r.result.Cells, renderCell(row.(*table.Cell)))
	}

	entries := make([]*table.QueueEntry, 0, len(tables.Queue))
	for _, q := range tables.Queue {
		entries = append(entries, q)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	for _, q := range entries {
		r.result.Queue = append(r.result.Queue, renderEntry(q))
	}
	return nil
}

func renderCell(c *table.Cell) string {
	line := fmt.Sprintf("%s pos=%d state=%s count=%d", c.ID, c.Position, c.ExecutionState, c.ExecutionCount)
	if !c.Live() {
		line += " deleted"
	}
	return line
}

func renderEntry(q *table.QueueEntry) string {
	session := "-"
	if q.AssignedKernelSession != nil {
		session = *q.AssignedKernelSession
	}
	line := fmt.Sprintf("%s cell=%s status=%s session=%s count=%d", q.ID, q.CellID, q.Status, session, q.ExecutionCount)
	if q.ErrorReason != nil {
		line += " error=" + *q.ErrorReason
	}
	return line
}
