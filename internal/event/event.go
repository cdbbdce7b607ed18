package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/cellsync/internal/ir"
)

// Event is an immutable fact from a store's log (or, for local kinds, a
// client-local fact that never reaches the log).
type Event struct {
	// StoreID is the notebook instance whose log holds the event.
	StoreID string
	// Seq is the log position, starting at 1. Zero for local-only events.
	Seq int64
	// ID is the content-addressed identity assigned by the log.
	ID string
	// Name is the versioned event name.
	Name Name
	// ActorID is the authenticated actor that committed the event.
	ActorID string
	// Timestamp is the event time. Materializers read time only from here.
	Timestamp time.Time
	// Payload is the typed body.
	Payload Payload
}

// Wire is the external event shape:
//
//	{ "name": "v1.CellCreated", "payload": {...}, "clientTimestamp": "2025-01-02T15:04:05Z" }
type Wire struct {
	Name            string          `json:"name"`
	Payload         json.RawMessage `json:"payload"`
	ClientTimestamp *time.Time      `json:"clientTimestamp,omitempty"`
}

// ParseWire decodes the wire shape. Payload validation is left to the Registry.
func ParseWire(data []byte) (Wire, error) {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return Wire{}, &SchemaValidationError{Field: "event", Message: fmt.Sprintf("malformed event: %v", err)}
	}
	if w.Name == "" {
		return Wire{}, &SchemaValidationError{Field: "name", Message: "event name is required"}
	}
	if len(w.Payload) == 0 {
		return Wire{}, &SchemaValidationError{Event: Name(w.Name), Field: "payload", Message: "payload is required"}
	}
	return w, nil
}

// Encode serializes a payload to canonical JSON for the log.
func Encode(p Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.EventName(), err)
	}
	canonical, err := ir.Canonicalize(raw)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.EventName(), err)
	}
	return canonical, nil
}
