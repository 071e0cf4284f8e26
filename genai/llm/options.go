package llm

// Options carries the generation configuration resolved once per request.
type Options struct {
	Model          string          `json:"model" yaml:"model"`
	Temperature    float64         `json:"temperature" yaml:"temperature"`
	TopK           int             `json:"top_k" yaml:"top_k"`
	TopP           float64         `json:"top_p" yaml:"top_p"`
	MaxTokens      int             `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
	SafetySettings []SafetySetting `json:"safety_settings,omitempty" yaml:"safety_settings,omitempty"`
	Tools          []Tool          `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Clone returns a shallow copy whose slices can be replaced independently.
func (o *Options) Clone() *Options {
	if o == nil {
		return &Options{}
	}
	cloned := *o
	cloned.SafetySettings = append([]SafetySetting(nil), o.SafetySettings...)
	cloned.Tools = append([]Tool(nil), o.Tools...)
	return &cloned
}

// Tool is a function the model may call. Only "function" tools exist.
type Tool struct {
	Type       string         `json:"type" yaml:"type"`
	Definition ToolDefinition `json:"definition" yaml:"definition"`
}

// ToolDefinition describes a callable function; Parameters is a JSON Schema
// object and Required lists the mandatory argument names.
type ToolDefinition struct {
	Name        string                 `json:"name" yaml:"name"`
	Description string                 `json:"description,omitempty" yaml:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Required    []string               `json:"required,omitempty" yaml:"required"`
}

// NewFunctionTool wraps definition as a function tool.
func NewFunctionTool(definition ToolDefinition) Tool {
	return Tool{Type: "function", Definition: definition}
}
