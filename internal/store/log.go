package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/cellsync/internal/ir"
)

// AnyHead disables the optimistic head check in Append.
const AnyHead int64 = -1

// ErrConflict is returned by Append when the store head moved past the
// caller's expected head.
var ErrConflict = errors.New("store head moved")

// Record is one committed event as stored in the log.
type Record struct {
	StoreID string
	// Seq is the 1-based log position, assigned by Append.
	Seq int64
	// ID is the content-addressed event id, assigned by Append.
	ID      string
	Name    string
	Payload []byte
	ActorID string
	// TimestampMs is the event time in unix milliseconds.
	TimestampMs int64
}

// Verify recomputes the content-addressed id and compares it to the stored one.
func (r Record) Verify() error {
	id, err := ir.EventID(r.StoreID, r.Seq, r.Name, r.Payload, r.ActorID, r.TimestampMs)
	if err != nil {
		return fmt.Errorf("verify %s#%d: %w", r.StoreID, r.Seq, err)
	}
	if id != r.ID {
		return fmt.Errorf("verify %s#%d: id mismatch: stored %s, computed %s", r.StoreID, r.Seq, r.ID, id)
	}
	return nil
}

// Append commits rec at the next position of its store and returns it with
// Seq and ID filled in.
//
// When expectedHead is not AnyHead, the append succeeds only if the store's
// current head equals expectedHead; otherwise ErrConflict is returned and
// nothing is written.
func (s *Store) Append(ctx context.Context, rec Record, expectedHead int64) (Record, error) {
	if rec.StoreID == "" {
		return Record{}, fmt.Errorf("append: store id is required")
	}
	payload, err := ir.Canonicalize(rec.Payload)
	if err != nil {
		return Record{}, fmt.Errorf("append: payload: %w", err)
	}
	rec.Payload = payload

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("append: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	head, err := headTx(ctx, tx, rec.StoreID)
	if err != nil {
		return Record{}, fmt.Errorf("append: %w", err)
	}
	if expectedHead != AnyHead && expectedHead != head {
		return Record{}, fmt.Errorf("append to %s: expected head %d, found %d: %w", rec.StoreID, expectedHead, head, ErrConflict)
	}

	rec.Seq = head + 1
	rec.ID, err = ir.EventID(rec.StoreID, rec.Seq, rec.Name, rec.Payload, rec.ActorID, rec.TimestampMs)
	if err != nil {
		return Record{}, fmt.Errorf("append: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO events
		(store_id, seq, id, name, payload, actor_id, timestamp_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		rec.StoreID,
		rec.Seq,
		rec.ID,
		rec.Name,
		string(rec.Payload),
		rec.ActorID,
		rec.TimestampMs,
	)
	if err != nil {
		return Record{}, fmt.Errorf("append: insert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("append: commit: %w", err)
	}
	return rec, nil
}

func headTx(ctx context.Context, tx *sql.Tx, storeID string) (int64, error) {
	var head int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE store_id = ?`, storeID,
	).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("read head: %w", err)
	}
	return head, nil
}

// Head returns the last committed seq of a store, 0 when empty.
func (s *Store) Head(ctx context.Context, storeID string) (int64, error) {
	var head int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM events WHERE store_id = ?`, storeID,
	).Scan(&head)
	if err != nil {
		return 0, fmt.Errorf("head of %s: %w", storeID, err)
	}
	return head, nil
}

// ReplayFrom returns every record of a store with seq > afterSeq, in order.
// ReplayFrom(ctx, id, 0) is the full history.
func (s *Store) ReplayFrom(ctx context.Context, storeID string, afterSeq int64) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, seq, id, name, payload, actor_id, timestamp_ms
		FROM events
		WHERE store_id = ? AND seq > ?
		ORDER BY seq ASC
	`, storeID, afterSeq)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", storeID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// ListOptions pages through a store's log.
type ListOptions struct {
	// AfterSeq excludes records at or before this position.
	AfterSeq int64
	// Limit caps the page size. Zero means DefaultListLimit.
	Limit int
	// Name filters by event name when set.
	Name string
}

// DefaultListLimit is the page size used when ListOptions.Limit is zero.
const DefaultListLimit = 100

// ListEvents returns one page of records in log order.
func (s *Store) ListEvents(ctx context.Context, storeID string, opts ListOptions) ([]Record, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `
		SELECT store_id, seq, id, name, payload, actor_id, timestamp_ms
		FROM events
		WHERE store_id = ? AND seq > ?`
	args := []any{storeID, opts.AfterSeq}
	if opts.Name != "" {
		query += ` AND name = ?`
		args = append(args, opts.Name)
	}
	query += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events of %s: %w", storeID, err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// StoreInfo summarizes one store in the database.
type StoreInfo struct {
	StoreID string
	Head    int64
	Events  int64
}

// ListStores returns every store with at least one event, ordered by id.
func (s *Store) ListStores(ctx context.Context) ([]StoreInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT store_id, MAX(seq), COUNT(*)
		FROM events
		GROUP BY store_id
		ORDER BY store_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	defer rows.Close()

	stores := []StoreInfo{}
	for rows.Next() {
		var info StoreInfo
		if err := rows.Scan(&info.StoreID, &info.Head, &info.Events); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		stores = append(stores, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stores: %w", err)
	}
	return stores, nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	records := []Record{}
	for rows.Next() {
		var (
			rec     Record
			payload string
		)
		if err := rows.Scan(&rec.StoreID, &rec.Seq, &rec.ID, &rec.Name, &payload, &rec.ActorID, &rec.TimestampMs); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.Payload = []byte(payload)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return records, nil
}
