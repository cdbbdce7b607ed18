package table

import "fmt"

// Table names.
const (
	Notebooks      = "notebook"
	Cells          = "cells"
	Outputs        = "outputs"
	KernelSessions = "kernelSessions"
	Queue          = "executionQueue"
	Actors         = "actors"
	Presences      = "presence"
	Tags           = "tags"
	TagAssignments = "notebookTags"
	Violations     = "violations"
	UIStates       = "uiState"
)

// ColumnType is the value domain of a column.
type ColumnType string

const (
	TypeString ColumnType = "string"
	TypeInt    ColumnType = "int"
	TypeBool   ColumnType = "bool"
	TypeTime   ColumnType = "time"
	// TypeData is opaque structured data. Not comparable in predicates.
	TypeData ColumnType = "data"
)

// Column describes one column of a table.
type Column struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema describes a queryable table.
type Schema struct {
	Name string
	// Key names the primary key column ("" for composite keys).
	Key     string
	Columns []Column
	// Local tables are client-local and excluded from the digest.
	Local bool
}

// Column looks up a column by name.
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

func col(name string, t ColumnType) Column { return Column{Name: name, Type: t} }

func nullable(name string, t ColumnType) Column { return Column{Name: name, Type: t, Nullable: true} }

var schemas = []Schema{
	{Name: Notebooks, Key: "id", Columns: []Column{
		col("id", TypeString),
		nullable("title", TypeString),
		col("ownerId", TypeString),
		col("createdAt", TypeTime),
		col("lastModified", TypeTime),
	}},
	{Name: Cells, Key: "id", Columns: []Column{
		col("id", TypeString),
		col("notebookId", TypeString),
		col("cellType", TypeString),
		col("position", TypeInt),
		col("source", TypeString),
		col("createdBy", TypeString),
		col("createdAt", TypeTime),
		col("executionCount", TypeInt),
		col("executionState", TypeString),
		nullable("deletedAt", TypeTime),
		nullable("deletedBy", TypeString),
		col("pendingClear", TypeBool),
	}},
	{Name: Outputs, Key: "id", Columns: []Column{
		col("id", TypeString),
		col("cellId", TypeString),
		col("outputType", TypeString),
		col("data", TypeData),
		col("position", TypeInt),
		col("createdAt", TypeTime),
		nullable("displayId", TypeString),
		nullable("executionCount", TypeInt),
	}},
	{Name: KernelSessions, Key: "sessionId", Columns: []Column{
		col("sessionId", TypeString),
		col("kernelId", TypeString),
		col("kernelType", TypeString),
		col("status", TypeString),
		col("isActive", TypeBool),
		col("canExecuteCode", TypeBool),
		col("canExecuteSql", TypeBool),
		col("canExecuteAi", TypeBool),
		col("startedAt", TypeTime),
		col("lastHeartbeatAt", TypeTime),
		nullable("terminatedAt", TypeTime),
		nullable("terminationReason", TypeString),
	}},
	{Name: Queue, Key: "id", Columns: []Column{
		col("id", TypeString),
		col("cellId", TypeString),
		col("executionCount", TypeInt),
		col("requestedBy", TypeString),
		col("requestedAt", TypeTime),
		col("priority", TypeInt),
		col("status", TypeString),
		nullable("assignedKernelSession", TypeString),
		nullable("assignedAt", TypeTime),
		nullable("startedAt", TypeTime),
		nullable("completedAt", TypeTime),
		nullable("errorReason", TypeString),
		col("seq", TypeInt),
	}},
	{Name: Actors, Key: "id", Columns: []Column{
		col("id", TypeString),
		col("displayName", TypeString),
		nullable("avatar", TypeString),
		col("type", TypeString),
	}},
	{Name: Presences, Key: "userId", Columns: []Column{
		col("userId", TypeString),
		nullable("cellId", TypeString),
		col("updatedAt", TypeTime),
	}},
	{Name: Tags, Key: "id", Columns: []Column{
		col("id", TypeString),
		col("name", TypeString),
		col("color", TypeString),
	}},
	{Name: TagAssignments, Columns: []Column{
		col("notebookId", TypeString),
		col("tagId", TypeString),
	}},
	{Name: Violations, Columns: []Column{
		col("seq", TypeInt),
		col("event", TypeString),
		col("entityId", TypeString),
		col("code", TypeString),
		col("detail", TypeString),
	}},
	{Name: UIStates, Key: "key", Local: true, Columns: []Column{
		col("key", TypeString),
		col("value", TypeData),
		col("updatedAt", TypeTime),
	}},
}

// Lookup returns the schema of the named table.
func Lookup(name string) (Schema, bool) {
	for _, s := range schemas {
		if s.Name == name {
			return s, true
		}
	}
	return Schema{}, false
}

// MustLookup is Lookup for compile-time table names.
func MustLookup(name string) Schema {
	s, ok := Lookup(name)
	if !ok {
		panic(fmt.Sprintf("table: unknown table %q", name))
	}
	return s
}

// Schemas returns every table schema in registry order.
func Schemas() []Schema {
	out := make([]Schema, len(schemas))
	copy(out, schemas)
	return out
}

// Names returns every table name in registry order.
func Names() []string {
	out := make([]string, len(schemas))
	for i, s := range schemas {
		out[i] = s.Name
	}
	return out
}
