package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rin1809/fwexec/genai/llm"
)

// Handler is a function that executes a tool call with given arguments.
// It returns the tool's result as a string.
type Handler func(ctx context.Context, args map[string]interface{}) (string, error)

// Kind classifies a tool execution outcome.
type Kind string

const (
	KindOK          Kind = "ok"
	KindError       Kind = "error"
	KindUnsupported Kind = "unsupported"
	KindInvalidArgs Kind = "invalid_args"
	KindDenied      Kind = "denied"
)

// Result is the outcome of one tool call, fed back to the model as text.
type Result struct {
	Name    string
	Text    string
	IsError bool
	Kind    Kind
}

// Registry is a closed set of tool variants; each name maps to exactly one
// definition and handler.
type Registry struct {
	definitions map[string]llm.ToolDefinition
	handlers    map[string]Handler
	order       []string

	debugWriter io.Writer
}

// NewRegistry creates a new empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		definitions: make(map[string]llm.ToolDefinition),
		handlers:    make(map[string]Handler),
	}
}

// Register registers a tool definition and handler in this registry.
func (r *Registry) Register(def llm.ToolDefinition, handler Handler) {
	if _, ok := r.definitions[def.Name]; !ok {
		r.order = append(r.order, def.Name)
	}
	r.definitions[def.Name] = def
	r.handlers[def.Name] = handler
}

// Definitions returns all registered tool definitions in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.definitions[name])
	}
	return defs
}

// Tools returns the registered definitions as function tools.
func (r *Registry) Tools() []llm.Tool {
	var tools []llm.Tool
	for _, def := range r.Definitions() {
		tools = append(tools, llm.NewFunctionTool(def))
	}
	return tools
}

// Execute invokes the handler registered under name. Unknown names, policy
// refusals, invalid arguments and handler errors are all reported in the
// Result rather than as a Go error.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]interface{}) *Result {
	handler, ok := r.handlers[name]
	if !ok {
		if idx := strings.LastIndex(name, "."); idx > 0 {
			name = name[idx+1:]
			handler, ok = r.handlers[name]
		}
	}
	if !ok {
		r.debugf("[tool] %s not supported\n", name)
		return &Result{Name: name, Text: fmt.Sprintf("tool '%s' is not supported", name), IsError: true, Kind: KindUnsupported}
	}
	if policy := FromContext(ctx); !policy.IsAllowed(name) {
		r.debugf("[tool] %s denied by policy\n", name)
		return &Result{Name: name, Text: fmt.Sprintf("tool '%s' is not allowed", name), IsError: true, Kind: KindDenied}
	}
	fixed, problems := ValidateArgs(r.definitions[name], args)
	if len(problems) > 0 {
		return &Result{Name: name, Text: "invalid arguments: " + FormatProblems(problems), IsError: true, Kind: KindInvalidArgs}
	}

	r.debugf("[tool] call %s args=%v\n", name, fixed)
	text, err := handler(ctx, fixed)
	if err != nil {
		r.debugf("[tool] error %s: %v\n", name, err)
		return &Result{Name: name, Text: err.Error(), IsError: true, Kind: KindError}
	}
	r.debugf("[tool] result %s: %s\n", name, text)
	return &Result{Name: name, Text: text, Kind: KindOK}
}

// SetDebugLogger attaches a writer receiving every call made through the
// registry (name, args, result, error). nil disables it.
func (r *Registry) SetDebugLogger(w io.Writer) {
	r.debugWriter = w
}

func (r *Registry) debugf(format string, args ...interface{}) {
	if r.debugWriter != nil {
		_, _ = fmt.Fprintf(r.debugWriter, format, args...)
	}
}

// Typed adapts a handler taking a decoded argument struct.
func Typed[T any](fn func(ctx context.Context, input *T) (string, error)) Handler {
	return func(ctx context.Context, args map[string]interface{}) (string, error) {
		input := new(T)
		data, err := json.Marshal(args)
		if err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
		if err = json.Unmarshal(data, input); err != nil {
			return "", fmt.Errorf("invalid tool arguments: %w", err)
		}
		return fn(ctx, input)
	}
}
