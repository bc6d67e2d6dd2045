package tool

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var validToolName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

type registered struct {
	desc    Descriptor
	schema  *jsonschema.Schema
	handler Handler
}

// Registry maps tool names to handlers. All registration happens during
// startup; after that the registry is read-only and safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registered
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]registered{}}
}

// Register binds a descriptor to a handler. A duplicate name is a
// configuration error and is rejected so it surfaces at startup, not at call
// time. The descriptor's input schema is compiled here; an uncompilable
// schema is likewise a startup failure.
func (r *Registry) Register(desc Descriptor, h Handler) error {
	if !validToolName.MatchString(desc.Name) {
		return fmt.Errorf("invalid tool name %q", desc.Name)
	}
	if h == nil {
		return fmt.Errorf("tool %s: nil handler", desc.Name)
	}
	schema, err := compileSchema(desc.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: compile input schema: %w", desc.Name, err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[desc.Name]; exists {
		return fmt.Errorf("tool %s already registered", desc.Name)
	}
	r.tools[desc.Name] = registered{desc: desc, schema: schema, handler: h}
	return nil
}

// Resolve returns the handler for name.
func (r *Registry) Resolve(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, false
	}
	return t.handler, true
}

// Describe returns the descriptor for name.
func (r *Registry) Describe(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t.desc, ok
}

// List returns all descriptors sorted by name. The same list backs both the
// transport-facing tool manifest and the model's function-calling manifest,
// so the two can never drift apart.
func (r *Registry) List() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns all registered tool names sorted.
func (r *Registry) Names() []string {
	descs := r.List()
	out := make([]string, len(descs))
	for i, d := range descs {
		out[i] = d.Name
	}
	return out
}

// Subsystems groups tool names by owning subsystem, for status reporting.
func (r *Registry) Subsystems() map[string][]string {
	out := map[string][]string{}
	for _, d := range r.List() {
		out[d.Subsystem] = append(out[d.Subsystem], d.Name)
	}
	return out
}

func (r *Registry) lookup(name string) (registered, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func compileSchema(params map[string]any) (*jsonschema.Schema, error) {
	if params == nil {
		params = map[string]any{
			"type":       "object",
			"properties": map[string]any{},
		}
	}
	b, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", strings.NewReader(string(b))); err != nil {
		return nil, err
	}
	return c.Compile("schema.json")
}
