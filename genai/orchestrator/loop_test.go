package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rin1809/fwexec/genai/llm"
	"github.com/rin1809/fwexec/genai/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedModel struct {
	responses []*llm.GenerateResponse
	repeat    *llm.GenerateResponse
	err       error
	requests  []*llm.GenerateRequest
}

func (m *scriptedModel) Generate(ctx context.Context, request *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.requests = append(m.requests, request)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp, nil
	}
	return m.repeat, nil
}

func finalText(text string) *llm.GenerateResponse {
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: text}, FinishReason: "STOP"}}}
}

func toolCall(command string) *llm.GenerateResponse {
	call := llm.ToolCall{ID: "call", Name: "get_fortigate_data", Arguments: map[string]interface{}{"command": command}}
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}}}}}
}

func newRegistry(executed *[]string) *tool.Registry {
	registry := tool.NewRegistry()
	registry.Register(llm.ToolDefinition{Name: "get_fortigate_data", Required: []string{"command"}},
		func(ctx context.Context, args map[string]interface{}) (string, error) {
			command := args["command"].(string)
			*executed = append(*executed, command)
			if command == "show bogus" {
				return "", errors.New("[EXECUTION ERROR]: command 'show bogus' failed. Details: Command fail. Output: ")
			}
			return "$ " + command + "\nok\n", nil
		})
	return registry
}

var fixedTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func TestLoop_FinalTextOnly(t *testing.T) {
	var executed []string
	model := &scriptedModel{repeat: finalText("```python\nprint(\"hello\")\n```")}
	loop := New(model, newRegistry(&executed))

	output, err := loop.Run(context.Background(), &Input{Prompt: "write a hello world script", Options: &llm.Options{Temperature: 0.7}, Mode: ModeGenerate, Extension: "py"})
	require.NoError(t, err)
	assert.Equal(t, `print("hello")`, output.Text)
	assert.Empty(t, output.Thoughts)
	assert.Empty(t, executed)
	require.Len(t, model.requests, 1)
	assert.Equal(t, 1, output.Turns)
	assert.Len(t, model.requests[0].Options.Tools, 1)
}

func TestLoop_ToolThenFinal(t *testing.T) {
	var executed []string
	model := &scriptedModel{responses: []*llm.GenerateResponse{
		toolCall("show bogus"),
		toolCall("show firewall policy"),
		finalText("```fortios\nconfig firewall policy\nedit 0\nend\n```"),
	}}
	options := &llm.Options{Temperature: 0.2, TopK: 5}
	loop := New(model, newRegistry(&executed), WithClock(func() time.Time { return fixedTime }))

	output, err := loop.Run(context.Background(), &Input{Prompt: "allow https", Options: options, Mode: ModeGenerate, Extension: "fortios"})
	require.NoError(t, err)
	assert.Equal(t, "config firewall policy\nedit 0\nend", output.Text)
	assert.Equal(t, []string{"show bogus", "show firewall policy"}, executed)
	require.Len(t, output.Thoughts, 4)
	assert.Equal(t, &Thought{Type: ThoughtCallRequest, ToolName: "get_fortigate_data", ToolArgs: map[string]interface{}{"command": "show bogus"}, Timestamp: fixedTime}, output.Thoughts[0])
	assert.Equal(t, ThoughtCallResult, output.Thoughts[1].Type)
	assert.True(t, output.Thoughts[1].IsError)
	assert.Contains(t, output.Thoughts[1].ResultData, "[EXECUTION ERROR]")
	assert.False(t, output.Thoughts[3].IsError)

	require.Len(t, model.requests, 3)
	last := model.requests[2]
	require.Len(t, last.Messages, 5)
	assert.Equal(t, llm.RoleTool, last.Messages[4].Role)
	assert.Equal(t, "$ show firewall policy\nok\n", last.Messages[4].Content)
	for _, request := range model.requests {
		assert.EqualValues(t, 0.2, request.Options.Temperature)
		assert.Equal(t, 5, request.Options.TopK)
	}
	assert.Empty(t, options.Tools)
}

func TestLoop_IterationCap(t *testing.T) {
	var executed []string
	model := &scriptedModel{repeat: toolCall("get system status")}
	loop := New(model, newRegistry(&executed), WithMaxIterations(7))

	output, err := loop.Run(context.Background(), &Input{Prompt: "loop", Options: &llm.Options{}})
	assert.Nil(t, output)
	var loopErr *LoopError
	require.True(t, errors.As(err, &loopErr))
	assert.Equal(t, ReasonIterationCap, loopErr.Reason)
	assert.Len(t, model.requests, 7)
	assert.Len(t, loopErr.Thoughts, 14)
	assert.Len(t, executed, 7)
}

func TestLoop_Failures(t *testing.T) {
	testCases := []struct {
		description  string
		model        *scriptedModel
		expectReason Reason
		expectFinish string
		thoughts     int
	}{
		{
			description:  "empty turn after a tool call",
			model:        &scriptedModel{responses: []*llm.GenerateResponse{toolCall("get system status"), {Choices: []llm.Choice{{}}}}},
			expectReason: ReasonEmptyTurn,
			thoughts:     2,
		},
		{
			description: "safety stop",
			model: &scriptedModel{repeat: &llm.GenerateResponse{Choices: []llm.Choice{{
				FinishReason:  "SAFETY",
				SafetyRatings: []llm.SafetyRating{{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Probability: "HIGH"}},
			}}}},
			expectReason: ReasonNotStopped,
			expectFinish: "SAFETY",
		},
		{
			description:  "blocked prompt",
			model:        &scriptedModel{repeat: &llm.GenerateResponse{BlockReason: "SAFETY"}},
			expectReason: ReasonNotStopped,
			expectFinish: "SAFETY",
		},
		{
			description:  "backend error",
			model:        &scriptedModel{err: errors.New("API key not valid")},
			expectReason: ReasonBackendFailed,
		},
	}

	for _, tc := range testCases {
		var executed []string
		_, err := New(tc.model, newRegistry(&executed)).Run(context.Background(), &Input{Prompt: "x", Options: &llm.Options{}})
		var loopErr *LoopError
		require.True(t, errors.As(err, &loopErr), tc.description)
		assert.Equal(t, tc.expectReason, loopErr.Reason, tc.description)
		assert.Equal(t, tc.expectFinish, loopErr.FinishReason, tc.description)
		assert.Len(t, loopErr.Thoughts, tc.thoughts, tc.description)
		assert.NotEmpty(t, loopErr.Error(), tc.description)
	}
}

func TestLoop_ChatMode(t *testing.T) {
	var executed []string
	model := &scriptedModel{repeat: finalText("[thinking] checking policies\nPolicy 3 allows HTTPS.\n[processing]\nNo changes needed.")}
	output, err := New(model, newRegistry(&executed)).Run(context.Background(), &Input{System: "context", Prompt: "is https allowed?", Options: &llm.Options{}, Mode: ModeChat})
	require.NoError(t, err)
	assert.Equal(t, "Policy 3 allows HTTPS.\nNo changes needed.", output.Text)
	assert.Equal(t, llm.RoleSystem, model.requests[0].Messages[0].Role)
}
