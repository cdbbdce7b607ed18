package engine

import (
	"context"
	"fmt"

	"github.com/roach88/cellsync/internal/event"
	"github.com/roach88/cellsync/internal/materialize"
	"github.com/roach88/cellsync/internal/store"
	"github.com/roach88/cellsync/internal/table"
)

// Replay rebuilds a store's tables from its log without an engine.
//
// Replay is the same fold the engine performs on commit: records are
// verified, decoded and applied in seq order, and time comes only from the
// records. Replaying the same log twice yields equal tables and digests.
// Local-only state (uiState) is not in the log and comes back empty.
func Replay(ctx context.Context, s *store.Store, reg *event.Registry, storeID string) (*table.Tables, int64, error) {
	recs, err := s.ReplayFrom(ctx, storeID, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("replay %s: %w", storeID, err)
	}
	t := table.New()
	var head int64
	for _, rec := range recs {
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if err := rec.Verify(); err != nil {
			return nil, 0, fmt.Errorf("replay: %w", err)
		}
		ev, err := decodeRecord(reg, rec)
		if err != nil {
			return nil, 0, fmt.Errorf("replay: %w", err)
		}
		materialize.Apply(t, ev)
		head = rec.Seq
	}
	return t, head, nil
}

// DigestMismatchError reports a projection that a fresh replay does not
// reproduce.
type DigestMismatchError struct {
	Head     int64
	Live     string
	Replayed string
}

// Error implements the error interface.
func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("replay at seq %d diverged: live digest %s, replayed %s", e.Head, e.Live, e.Replayed)
}

// VerifyReplay replays the log up to the engine's head and compares the
// authoritative digest against the live tables.
func (e *Engine) VerifyReplay(ctx context.Context) (string, error) {
	live, head := e.Snapshot()
	replayed, replayedHead, err := Replay(ctx, e.store, e.registry, e.storeID)
	if err != nil {
		return "", err
	}
	if replayedHead != head {
		// Another writer appended since the snapshot; fold the live copy
		// forward before comparing.
		if err := e.Sync(ctx); err != nil {
			return "", err
		}
		live, head = e.Snapshot()
		if replayedHead != head {
			return "", fmt.Errorf("verify replay: log head %d, engine head %d", replayedHead, head)
		}
	}

	liveDigest, err := live.Digest()
	if err != nil {
		return "", fmt.Errorf("verify replay: %w", err)
	}
	replayedDigest, err := replayed.Digest()
	if err != nil {
		return "", fmt.Errorf("verify replay: %w", err)
	}
	if liveDigest != replayedDigest {
		return "", &DigestMismatchError{Head: head, Live: liveDigest, Replayed: replayedDigest}
	}
	return liveDigest, nil
}
