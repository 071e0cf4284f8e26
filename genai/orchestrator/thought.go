package orchestrator

import "time"

// ThoughtType identifies a transparency log entry.
type ThoughtType string

const (
	ThoughtCallRequest ThoughtType = "function_call_request"
	ThoughtCallResult  ThoughtType = "function_call_result"
)

// Thought is one append-only transparency log entry exposed to the caller.
type Thought struct {
	Type       ThoughtType            `json:"type"`
	ToolName   string                 `json:"tool_name"`
	ToolArgs   map[string]interface{} `json:"tool_args,omitempty"`
	ResultData string                 `json:"result_data,omitempty"`
	IsError    bool                   `json:"is_error,omitempty"`
	Timestamp  time.Time              `json:"timestamp"`
}

// Thoughts is the ordered transparency log of one orchestration.
type Thoughts []*Thought

// OrEmpty returns a non-nil slice so it encodes as [] rather than null.
func (t Thoughts) OrEmpty() Thoughts {
	if t == nil {
		return Thoughts{}
	}
	return t
}
