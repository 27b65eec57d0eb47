package registry

import (
	"fmt"
	"log/slog"
	"sort"
)

// Module is the interface that all tool modules implement to be registered.
type Module interface {
	Register(r *Registry)
}

// Tool holds the compiled Go parts of one tool.
type Tool struct {
	Description string
	// NewInput returns a pointer to a fresh input struct carrying the
	// tool's defaults. Fields are bound to arguments by `hcl` tags.
	NewInput func() any
	// Fn has the signature func(context.Context, *Input) (cty.Value, error)
	// where *Input is the type NewInput returns.
	Fn any
	// Outputs names the attributes of the object Fn returns.
	Outputs []string
}

// HasOutput reports whether the tool publishes the named output.
func (t *Tool) HasOutput(name string) bool {
	for _, o := range t.Outputs {
		if o == name {
			return true
		}
	}
	return false
}

// Registry holds all the registered tools for a single application instance.
type Registry struct {
	tools map[string]*Tool
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// RegisterTool registers a tool under name. Registering a name twice is a
// programming error and panics.
func (r *Registry) RegisterTool(name string, tool *Tool) {
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool with name '%s' already registered", name))
	}
	slog.Debug("Registering tool.", "name", name)
	r.tools[name] = tool
}

// Tool returns the tool registered under name.
func (r *Registry) Tool(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
