package event

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// Registry validates and decodes event payloads against the embedded CUE
// schema. One definition per kind; all definitions are closed.
//
// A Registry is safe for concurrent use.
type Registry struct {
	// cue.Context is not safe for concurrent use
	mu    sync.Mutex
	ctx   *cue.Context
	defs  map[Name]cue.Value
	kinds map[Name]Kind
	order []Name
}

// NewRegistry compiles the schema and binds every registered kind to its
// definition. A kind without a definition is a programming error.
func NewRegistry() (*Registry, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}

	r := &Registry{
		ctx:   ctx,
		defs:  make(map[Name]cue.Value, len(kinds)),
		kinds: make(map[Name]Kind, len(kinds)),
	}
	for _, k := range kinds {
		def := schema.LookupPath(cue.ParsePath(k.Definition))
		if !def.Exists() {
			return nil, fmt.Errorf("event schema has no definition %s for %s", k.Definition, k.Name)
		}
		r.defs[k.Name] = def
		r.kinds[k.Name] = k
		r.order = append(r.order, k.Name)
	}
	return r, nil
}

// Lookup returns the kind registered under name.
func (r *Registry) Lookup(name Name) (Kind, bool) {
	k, ok := r.kinds[name]
	return k, ok
}

// Names lists every registered name in declaration order.
func (r *Registry) Names() []Name {
	out := make([]Name, len(r.order))
	copy(out, r.order)
	return out
}

// Decode validates raw against the definition for name and returns the typed
// payload. Every failure is a *SchemaValidationError naming the offending field.
func (r *Registry) Decode(name Name, raw []byte) (Payload, error) {
	kind, ok := r.kinds[name]
	if !ok {
		return nil, &SchemaValidationError{Event: name, Field: "name", Message: fmt.Sprintf("unknown event %q", name)}
	}
	if err := r.validate(name, raw); err != nil {
		return nil, err
	}

	p := kind.New()
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, &SchemaValidationError{Event: name, Field: "payload", Message: err.Error()}
	}
	return p, nil
}

// Validate checks a typed payload by encoding it and running the schema.
func (r *Registry) Validate(p Payload) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return &SchemaValidationError{Event: p.EventName(), Field: "payload", Message: err.Error()}
	}
	if _, ok := r.kinds[p.EventName()]; !ok {
		return &SchemaValidationError{Event: p.EventName(), Field: "name", Message: fmt.Sprintf("unknown event %q", p.EventName())}
	}
	return r.validate(p.EventName(), raw)
}

func (r *Registry) validate(name Name, raw []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := r.ctx.CompileBytes(raw, cue.Filename("payload.json"))
	if err := data.Err(); err != nil {
		return &SchemaValidationError{Event: name, Field: "payload", Message: firstMessage(err)}
	}
	if data.IncompleteKind() != cue.StructKind {
		return &SchemaValidationError{Event: name, Field: "payload", Message: "payload must be an object"}
	}

	err := r.defs[name].Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}
	field, msg := describe(err)
	return &SchemaValidationError{Event: name, Field: field, Message: msg}
}

// describe picks the first CUE error and renders its path without the
// definition selector.
func describe(err error) (string, string) {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return "payload", err.Error()
	}
	e := errs[0]
	var parts []string
	for _, sel := range e.Path() {
		if strings.HasPrefix(sel, "#") {
			continue
		}
		parts = append(parts, sel)
	}
	field := strings.Join(parts, ".")
	if field == "" {
		field = "payload"
	}
	format, args := e.Msg()
	return field, fmt.Sprintf(format, args...)
}

func firstMessage(err error) string {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err.Error()
	}
	format, args := errs[0].Msg()
	return fmt.Sprintf(format, args...)
}
