package event

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cellsync/internal/ir"
)

func newRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry()
	require.NoError(t, err)
	return r
}

func TestNewRegistry_BindsEveryKind(t *testing.T) {
	r := newRegistry(t)
	names := r.Names()
	require.Len(t, names, len(kinds))
	assert.Equal(t, NotebookInitialized, names[0])

	k, ok := r.Lookup(UIStateSet)
	require.True(t, ok)
	assert.True(t, k.Local)
	assert.Equal(t, "#uiStateSet", k.Definition)

	_, ok = r.Lookup("v1.Nope")
	assert.False(t, ok)
}

func TestDecode_CellCreated(t *testing.T) {
	r := newRegistry(t)
	p, err := r.Decode(CellCreated, []byte(`{"id":"c1","cellType":"code","position":1,"createdBy":"u1"}`))
	require.NoError(t, err)

	cc, ok := p.(*CellCreatedPayload)
	require.True(t, ok)
	assert.Equal(t, "c1", cc.ID)
	assert.Equal(t, "code", cc.CellType)
	assert.Equal(t, int64(1), cc.Position)
	assert.Nil(t, cc.Source)
	assert.Equal(t, CellCreated, p.EventName())
}

func TestDecode_OutputData(t *testing.T) {
	r := newRegistry(t)
	raw := []byte(`{"id":"o1","cellId":"c1","outputType":"stream","data":{"name":"stdout","text":"hi\n"}}`)
	p, err := r.Decode(CellOutputAdded, raw)
	require.NoError(t, err)

	out := p.(*CellOutputAddedPayload)
	assert.Equal(t, ir.String("hi\n"), out.Data["text"])
	assert.Nil(t, out.Position)
}

func TestDecode_OutputDataNumbers(t *testing.T) {
	r := newRegistry(t)
	raw := []byte(`{"id":"o1","cellId":"c1","outputType":"display_data","data":{"application/json":{"score":0.93,"scale":1e-7,"n":3}}}`)
	p, err := r.Decode(CellOutputAdded, raw)
	require.NoError(t, err)

	bundle := p.(*CellOutputAddedPayload).Data["application/json"].(ir.Object)
	assert.Equal(t, ir.Number(0.93), bundle["score"])
	assert.Equal(t, ir.Number(1e-7), bundle["scale"])
	assert.Equal(t, ir.Int(3), bundle["n"])

	encoded, err := Encode(p)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"application/json":{"n":3,"scale":1e-7,"score":0.93}`)

	p, err = r.Decode(DisplayDataUpdated, []byte(`{"displayId":"d1","data":{"image/png":"iVBO","width":640.5}}`))
	require.NoError(t, err)
	assert.Equal(t, ir.Number(640.5), p.(*DisplayDataUpdatedPayload).Data["width"])
}

func TestDecode_UnknownName(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Decode("v1.CellExploded", []byte(`{}`))
	require.Error(t, err)

	var se *SchemaValidationError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "name", se.Field)
}

func TestDecode_MissingRequiredField(t *testing.T) {
	r := newRegistry(t)
	_, err := r.Decode(CellCreated, []byte(`{"id":"c1","position":1,"createdBy":"u1"}`))
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
	assert.Contains(t, err.Error(), "cellType")
}

func TestDecode_Rejections(t *testing.T) {
	r := newRegistry(t)
	tests := []struct {
		name string
		kind Name
		raw  string
	}{
		{"unknown field", CellCreated, `{"id":"c1","cellType":"code","position":1,"createdBy":"u1","extra":true}`},
		{"bad enum", CellCreated, `{"id":"c1","cellType":"spreadsheet","position":1,"createdBy":"u1"}`},
		{"empty id", CellCreated, `{"id":"","cellType":"code","position":1,"createdBy":"u1"}`},
		{"float position", CellMoved, `{"id":"c1","position":1.5}`},
		{"wrong type", NotebookTitleChanged, `{"title":7}`},
		{"not an object", CellDeleted, `["c1"]`},
		{"malformed", CellDeleted, `{"id":`},
		{"bad status", ExecutionCompleted, `{"queueId":"q1","status":"maybe"}`},
		{"bad heartbeat", KernelSessionHeartbeat, `{"sessionId":"s1","status":"sleeping"}`},
		{"float execution count", CellOutputAdded, `{"id":"o1","cellId":"c1","outputType":"execute_result","data":{},"executionCount":1.5}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Decode(tt.kind, []byte(tt.raw))
			require.Error(t, err)
			assert.True(t, IsSchemaError(err), "got %T: %v", err, err)
		})
	}
}

func TestDecode_UIStateAcceptsAnyValue(t *testing.T) {
	r := newRegistry(t)
	p, err := r.Decode(UIStateSet, []byte(`{"key":"sidebar","value":{"open":true}}`))
	require.NoError(t, err)

	ui := p.(*UIStateSetPayload)
	assert.Equal(t, "sidebar", ui.Key)
	assert.Equal(t, ir.Object{"open": ir.Bool(true)}, ui.Value)
}

func TestValidate_TypedPayload(t *testing.T) {
	r := newRegistry(t)
	require.NoError(t, r.Validate(&CellMovedPayload{ID: "c1", Position: 3}))

	err := r.Validate(&CellMovedPayload{Position: 3})
	require.Error(t, err)
	assert.True(t, IsSchemaError(err))
}

func TestParseWire(t *testing.T) {
	w, err := ParseWire([]byte(`{"name":"v1.CellDeleted","payload":{"id":"c1"}}`))
	require.NoError(t, err)
	assert.Equal(t, "v1.CellDeleted", w.Name)
	assert.JSONEq(t, `{"id":"c1"}`, string(w.Payload))
	assert.Nil(t, w.ClientTimestamp)

	_, err = ParseWire([]byte(`{"payload":{}}`))
	assert.True(t, IsSchemaError(err))

	_, err = ParseWire([]byte(`{"name":"v1.CellDeleted"}`))
	assert.True(t, IsSchemaError(err))

	_, err = ParseWire([]byte(`nope`))
	assert.True(t, IsSchemaError(err))
}

func TestEncode_Canonical(t *testing.T) {
	raw, err := Encode(&CellCreatedPayload{ID: "c1", CellType: "code", Position: 2, CreatedBy: "u1"})
	require.NoError(t, err)
	assert.Equal(t, `{"cellType":"code","createdBy":"u1","id":"c1","position":2}`, string(raw))
}

func TestNameHelpers(t *testing.T) {
	assert.True(t, CellCreated.Versioned())
	assert.False(t, UIStateSet.Versioned())
	assert.Equal(t, "CellCreated", CellCreated.Short())
}
