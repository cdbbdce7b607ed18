package materialize

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/ir"
	"github.com/roach88/cellsync/internal/table"
)

// randomLog builds a structurally valid but adversarial event sequence over a
// small id space so that duplicates, races and illegal transitions are common.
func randomLog(seed int64, n int) []event.Event {
	r := rand.New(rand.NewSource(seed))
	pick := func(prefix string, k int) string { return fmt.Sprintf("%s%d", prefix, r.Intn(k)+1) }
	statuses := []string{"starting", "ready", "busy"}

	events := make([]event.Event, 0, n+1)
	add := func(p event.Payload) {
		seq := int64(len(events) + 1)
		events = append(events, event.Event{
			StoreID:   "store",
			Seq:       seq,
			Name:      p.EventName(),
			ActorID:   pick("u", 3),
			Timestamp: epoch.Add(time.Duration(seq) * time.Second),
			Payload:   p,
		})
	}

	add(&event.NotebookInitializedPayload{ID: "nb1", OwnerID: "u1"})
	for len(events) < n {
		switch r.Intn(14) {
		case 0:
			add(&event.CellCreatedPayload{ID: pick("c", 4), CellType: "code", Position: int64(r.Intn(10)), CreatedBy: "u1"})
		case 1:
			add(&event.CellSourceChangedPayload{ID: pick("c", 4), Source: pick("src", 9)})
		case 2:
			add(&event.CellDeletedPayload{ID: pick("c", 4)})
		case 3:
			add(&event.CellOutputAddedPayload{ID: pick("o", 12), CellID: pick("c", 4), OutputType: "stream", Data: ir.Object{"text": ir.String("x")}})
		case 4:
			add(&event.CellOutputsClearedPayload{CellID: pick("c", 4), Wait: r.Intn(2) == 0})
		case 5, 6:
			add(&event.ExecutionRequestedPayload{QueueID: pick("q", 15), CellID: pick("c", 4), ExecutionCount: int64(r.Intn(4)), RequestedBy: "u1", Priority: int64(r.Intn(3))})
		case 7:
			add(&event.ExecutionAssignedPayload{QueueID: pick("q", 15), KernelSessionID: pick("s", 3)})
		case 8:
			add(&event.ExecutionStartedPayload{QueueID: pick("q", 15)})
		case 9:
			status := event.CompletionSuccess
			if r.Intn(3) == 0 {
				status = event.CompletionError
			}
			add(&event.ExecutionCompletedPayload{QueueID: pick("q", 15), Status: status})
		case 10:
			add(&event.ExecutionCancelledPayload{QueueID: pick("q", 15)})
		case 11:
			add(&event.KernelSessionStartedPayload{SessionID: pick("s", 3), KernelType: "python3"})
		case 12:
			add(&event.KernelSessionHeartbeatPayload{SessionID: pick("s", 3), Status: statuses[r.Intn(len(statuses))]})
		case 13:
			add(&event.KernelSessionTerminatedPayload{SessionID: pick("s", 3)})
		}
	}
	return events
}

func TestProperty_ReplayIsDeterministic(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		events := randomLog(seed, 300)

		first := Fold(events)
		second := Fold(events)

		d1, err := first.Digest()
		require.NoError(t, err)
		d2, err := second.Digest()
		require.NoError(t, err)
		require.Equal(t, d1, d2, "seed %d", seed)
		require.Equal(t, first, second, "seed %d", seed)
	}
}

func TestProperty_ReduceMatchesApply(t *testing.T) {
	events := randomLog(42, 200)

	pure := table.New()
	for _, ev := range events {
		pure, _ = Reduce(pure, ev)
	}
	assert.Equal(t, Fold(events), pure)
}

var statusRank = map[table.QueueStatus]int{
	table.QueueRequested: 0,
	table.QueueAssigned:  1,
	table.QueueRunning:   2,
	table.QueueCompleted: 3,
	table.QueueError:     3,
	table.QueueCancelled: 3,
}

func TestProperty_QueueStatusOrdering(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		events := randomLog(seed, 300)
		tb := table.New()
		last := map[string]table.QueueStatus{}

		for _, ev := range events {
			Apply(tb, ev)
			for id, q := range tb.Queue {
				prev, seen := last[id]
				if seen {
					if statusRank[prev] == 3 {
						require.Equal(t, prev, q.Status, "seed %d seq %d: terminal entry %s changed", seed, ev.Seq, id)
					}
					require.GreaterOrEqual(t, statusRank[q.Status], statusRank[prev],
						"seed %d seq %d: entry %s went %s -> %s", seed, ev.Seq, id, prev, q.Status)
				}
				last[id] = q.Status
			}
		}
	}
}

func TestProperty_ExecutionCountMonotonic(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		events := randomLog(seed, 300)
		tb := table.New()
		last := map[string]int64{}

		for _, ev := range events {
			Apply(tb, ev)
			for id, c := range tb.Cells {
				require.GreaterOrEqual(t, c.ExecutionCount, last[id], "seed %d seq %d cell %s", seed, ev.Seq, id)
				last[id] = c.ExecutionCount
			}
		}
	}
}

func TestProperty_CellStateMatchesLatestEntry(t *testing.T) {
	for seed := int64(1); seed <= 10; seed++ {
		tb := Fold(randomLog(seed, 300))
		for id, c := range tb.Cells {
			if !c.Live() {
				continue
			}
			entries := tb.EntriesOf(id)
			if len(entries) == 0 {
				assert.Equal(t, table.StateIdle, c.ExecutionState, "seed %d cell %s", seed, id)
				continue
			}
			latest := entries[len(entries)-1]
			want := map[table.QueueStatus]table.ExecutionState{
				table.QueueRequested: table.StateQueued,
				table.QueueAssigned:  table.StateQueued,
				table.QueueRunning:   table.StateRunning,
				table.QueueCompleted: table.StateCompleted,
				table.QueueError:     table.StateError,
				table.QueueCancelled: table.StateIdle,
			}[latest.Status]
			assert.Equal(t, want, c.ExecutionState, "seed %d cell %s", seed, id)
		}
	}
}
