package llm

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Model is a text generation backend. Implementations are bound to one
// credential and model name.
type Model interface {
	Generate(ctx context.Context, request *GenerateRequest) (*GenerateResponse, error)
}

// MessageRole represents the role of the message sender.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// Message represents one conversation turn.
type Message struct {
	Role       MessageRole `json:"role"`
	Name       string      `json:"name,omitempty"`
	Content    string      `json:"content,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolCallId string      `json:"tool_call_id,omitempty"`
}

// ToolCall represents a structured tool invocation requested by the model.
type ToolCall struct {
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Type      string                 `json:"type,omitempty"`
}

// SafetyRating is a per-category content risk assessment returned by the backend.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
	Blocked     bool   `json:"blocked,omitempty"`
}

// GenerateRequest represents a request to a chat-based LLM.
type GenerateRequest struct {
	Messages []Message `json:"messages"`
	Options  *Options  `json:"options,omitempty"`
}

// GenerateResponse represents a response from a chat-based LLM.
type GenerateResponse struct {
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
	Model   string   `json:"model,omitempty"`
	// BlockReason is set when the prompt itself was blocked and no choice was produced.
	BlockReason   string         `json:"block_reason,omitempty"`
	PromptRatings []SafetyRating `json:"prompt_ratings,omitempty"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index         int            `json:"index"`
	Message       Message        `json:"message"`
	FinishReason  string         `json:"finish_reason"`
	SafetyRatings []SafetyRating `json:"safety_ratings,omitempty"`
}

// Usage represents token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// FinishReasonStop is the normal end-of-turn finish reason.
const FinishReasonStop = "STOP"

// IsStop reports whether the finish reason denotes a normal stop.
func IsStop(reason string) bool {
	return strings.EqualFold(reason, FinishReasonStop)
}

// NewUserMessage creates a new message with the "user" role.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewSystemMessage creates a new message with the "system" role.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// NewAssistantMessageWithToolCalls creates an assistant message carrying tool calls.
func NewAssistantMessageWithToolCalls(content string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: toolCalls}
}

// NewToolResultMessage creates a tool result message answering call.
func NewToolResultMessage(call ToolCall, content string) Message {
	return Message{Role: RoleTool, Name: call.Name, ToolCallId: call.ID, Content: content}
}

// NewToolCall creates a function tool call with a generated id.
func NewToolCall(name string, args map[string]interface{}) ToolCall {
	return ToolCall{ID: uuid.NewString(), Name: name, Arguments: args, Type: "function"}
}
