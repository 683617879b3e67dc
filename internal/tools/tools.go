// Package tools provides the capability registry and dispatch framework.
//
// A Tool is a named, schema-described action the model may request.
// Dispatch resolves the name, validates arguments against the declared
// schema, and runs the handler. Every failure mode — unknown name, bad
// arguments, handler error — is converted into a textual observation so
// a single broken capability can never abort the conversation.
package tools

import (
	"context"
	"fmt"
	"sort"
)

// Handler executes one capability invocation and returns an observation
// string for the model.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Tool represents a callable capability.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry holds available tools.
type Registry struct {
	tools map[string]*Tool
	order []string // registration order, for stable schema offering
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]*Tool),
	}
}

// Register adds a tool to the registry. Registering a name twice is a
// programming error and fails rather than silently replacing the handler.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tool name is required")
	}
	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Name)
	}
	r.tools[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register for static wiring at startup, where a
// duplicate name means the process is misassembled.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get retrieves a tool by name. Returns nil if not registered.
func (r *Registry) Get(name string) *Tool {
	return r.tools[name]
}

// Has reports whether name is a registered tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// List returns all tool schemas in the shape the model API expects,
// in registration order.
func (r *Registry) List() []map[string]any {
	var result []map[string]any
	for _, name := range r.order {
		t := r.tools[name]
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        t.Name,
				"description": t.Description,
				"parameters":  t.Schema.Parameters(),
			},
		})
	}
	return result
}

// FilteredCopy returns a registry containing only the named tools.
// Unregistered names are skipped; an agent's enabled set is validated
// separately at agent creation.
func (r *Registry) FilteredCopy(names []string) *Registry {
	allowed := make(map[string]bool, len(names))
	for _, n := range names {
		allowed[n] = true
	}

	out := NewRegistry()
	for _, name := range r.order {
		if allowed[name] {
			out.tools[name] = r.tools[name]
			out.order = append(out.order, name)
		}
	}
	return out
}

// UnknownNames returns the subset of names not present in the registry,
// sorted. Used to reject agent configurations referencing capabilities
// that do not exist.
func (r *Registry) UnknownNames(names []string) []string {
	var out []string
	for _, n := range names {
		if !r.Has(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Execute resolves and runs a tool, returning typed errors:
// [*UnknownToolError] when the name is not registered (no handler runs),
// [*InvalidArgumentsError] when args fail schema validation (no handler
// runs), or the handler's own error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (string, error) {
	tool := r.tools[name]
	if tool == nil {
		return "", &UnknownToolError{Name: name}
	}

	if err := tool.Schema.Validate(name, args); err != nil {
		return "", err
	}

	return tool.Handler(ctx, args)
}

// Dispatch runs a tool and always returns an observation string. Failures
// of any kind become text the model can react to; they never propagate.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) string {
	result, err := r.Execute(ctx, name, args)
	if err != nil {
		return "tool failed: " + err.Error()
	}
	return result
}
