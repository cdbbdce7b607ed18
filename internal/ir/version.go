package ir

// Version constants stamped into the event log.
const (
	// SchemaVersion is the event payload schema generation ("v1." names).
	SchemaVersion = "1"

	// EngineVersion is the cellsync engine version.
	EngineVersion = "0.1.0"
)
