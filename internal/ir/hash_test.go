package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterminism(t *testing.T) {
	payload := []byte(`{"id":"nb1","ownerId":"u1"}`)

	id1, err := EventID("store-1", 1, "v1.NotebookInitialized", payload, "u1", 1000)
	require.NoError(t, err)
	id2, err := EventID("store-1", 1, "v1.NotebookInitialized", payload, "u1", 1000)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
}

func TestEventIDIgnoresPayloadFormatting(t *testing.T) {
	a, err := EventID("s", 1, "v1.CellMoved", []byte(`{"id":"c1","position":2}`), "u1", 5)
	require.NoError(t, err)
	b, err := EventID("s", 1, "v1.CellMoved", []byte(`{ "position": 2, "id": "c1" }`), "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEventIDChangesWithInput(t *testing.T) {
	base, err := EventID("s", 1, "v1.CellMoved", []byte(`{"id":"c1"}`), "u1", 5)
	require.NoError(t, err)

	variants := []struct {
		name    string
		store   string
		seq     int64
		event   string
		payload string
		actor   string
		ts      int64
	}{
		{"store", "s2", 1, "v1.CellMoved", `{"id":"c1"}`, "u1", 5},
		{"seq", "s", 2, "v1.CellMoved", `{"id":"c1"}`, "u1", 5},
		{"name", "s", 1, "v1.CellDeleted", `{"id":"c1"}`, "u1", 5},
		{"payload", "s", 1, "v1.CellMoved", `{"id":"c2"}`, "u1", 5},
		{"actor", "s", 1, "v1.CellMoved", `{"id":"c1"}`, "u2", 5},
		{"timestamp", "s", 1, "v1.CellMoved", `{"id":"c1"}`, "u1", 6},
	}

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			id, err := EventID(v.store, v.seq, v.event, []byte(v.payload), v.actor, v.ts)
			require.NoError(t, err)
			assert.NotEqual(t, base, id)
		})
	}
}

func TestEventIDNumberSpelling(t *testing.T) {
	a, err := EventID("s", 1, "v1.CellOutputAdded", []byte(`{"data":{"score":0.5}}`), "u1", 5)
	require.NoError(t, err)
	b, err := EventID("s", 1, "v1.CellOutputAdded", []byte(`{"data":{"score":5e-1}}`), "u1", 5)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDigestDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, Digest(DomainEvent, data), Digest(DomainTables, data))
	assert.Equal(t, Digest(DomainTables, data), Digest(DomainTables, data))
}
