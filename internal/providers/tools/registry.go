package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sandevgo/tuskmem/internal/core"
)

var ErrDuplicateTool = errors.New("tool already registered")

type Handler func(ctx context.Context, args json.RawMessage) (string, error)

type Definition struct {
	Name        string
	Description string
	Schema      string // JSON Schema of the arguments object
	Handler     Handler
}

type entry struct {
	def    Definition
	schema *jsonschema.Schema
}

var _ core.ToolExecutor = (*Registry)(nil)

// Registry is the static name → tool lookup the turn loop executes against.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
	}
}

func (r *Registry) Register(defs ...Definition) error {
	compiled := make([]*entry, 0, len(defs))
	for _, def := range defs {
		if def.Name == "" || def.Handler == nil {
			return fmt.Errorf("tool %q: name and handler are required", def.Name)
		}
		schema, err := compileSchema(def.Name, def.Schema)
		if err != nil {
			return fmt.Errorf("tool %q: %w", def.Name, err)
		}
		compiled = append(compiled, &entry{def: def, schema: schema})
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range compiled {
		if _, exists := r.entries[e.def.Name]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateTool, e.def.Name)
		}
	}
	for _, e := range compiled {
		r.entries[e.def.Name] = e
		r.order = append(r.order, e.def.Name)
	}
	return nil
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[name]
	return ok
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions returns the tools in registration order.
func (r *Registry) Definitions() []core.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]core.Tool, 0, len(r.order))
	for _, name := range r.order {
		def := r.entries[name].def
		params := json.RawMessage(def.Schema)
		if strings.TrimSpace(def.Schema) == "" {
			params = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		defs = append(defs, core.Tool{
			Type: "function",
			Function: core.Function{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return defs
}

func (r *Registry) Execute(ctx context.Context, call core.ToolCall) (string, error) {
	r.mu.RLock()
	e, ok := r.entries[call.Name]
	r.mu.RUnlock()
	if !ok {
		return "", &core.UnknownToolError{Name: call.Name, CallID: call.ID}
	}

	args := call.Arguments
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}

	if e.schema != nil {
		dec := json.NewDecoder(bytes.NewReader(args))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return "", fmt.Errorf("invalid arguments: %w", err)
		}
		if err := e.schema.Validate(v); err != nil {
			return "", fmt.Errorf("arguments do not match schema: %w", err)
		}
	}

	return e.def.Handler(ctx, args)
}

func compileSchema(name, schema string) (*jsonschema.Schema, error) {
	if strings.TrimSpace(schema) == "" {
		return nil, nil
	}

	url := name + ".schema.json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, nil
}
