package gemini

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rin1809/fwexec/genai/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToRequest(t *testing.T) {
	call := llm.ToolCall{ID: "1", Name: "get_fortigate_data", Arguments: map[string]interface{}{"command": "get system status"}}
	testCases := []struct {
		description string
		input       *llm.GenerateRequest
		expected    *Request
	}{
		{
			description: "system instruction and user prompt",
			input: &llm.GenerateRequest{
				Messages: []llm.Message{
					llm.NewSystemMessage("You are a FortiGate assistant."),
					llm.NewUserMessage("Hello"),
				},
				Options: &llm.Options{Temperature: 0.7, TopP: 0.95, TopK: 40},
			},
			expected: &Request{
				SystemInstruction: &SystemInstruction{Role: "system", Parts: []Part{{Text: "You are a FortiGate assistant."}}},
				Contents:          []Content{{Role: "user", Parts: []Part{{Text: "Hello"}}}},
				GenerationConfig:  &GenerationConfig{Temperature: floatPtr(0.7), TopP: floatPtr(0.95), TopK: intPtr(40)},
			},
		},
		{
			description: "tool call round trip",
			input: &llm.GenerateRequest{
				Messages: []llm.Message{
					llm.NewUserMessage("status?"),
					llm.NewAssistantMessageWithToolCalls("", call),
					llm.NewToolResultMessage(call, "Version: v7.2.5"),
				},
			},
			expected: &Request{
				Contents: []Content{
					{Role: "user", Parts: []Part{{Text: "status?"}}},
					{Role: "model", Parts: []Part{{FunctionCall: &FunctionCall{Name: "get_fortigate_data", Args: map[string]interface{}{"command": "get system status"}}}}},
					{Role: "user", Parts: []Part{{FunctionResponse: &FunctionResponse{Name: "get_fortigate_data", Response: map[string]interface{}{"output": "Version: v7.2.5"}}}}},
				},
			},
		},
		{
			description: "safety settings and tools",
			input: &llm.GenerateRequest{
				Messages: []llm.Message{llm.NewUserMessage("hi")},
				Options: &llm.Options{
					Temperature:    0,
					SafetySettings: []llm.SafetySetting{{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"}},
					Tools: []llm.Tool{llm.NewFunctionTool(llm.ToolDefinition{
						Name: "get_fortigate_data",
						Parameters: map[string]interface{}{
							"type":                 "object",
							"additionalProperties": false,
							"properties":           map[string]interface{}{"command": map[string]interface{}{"type": "string"}},
						},
					})},
				},
			},
			expected: &Request{
				Contents:         []Content{{Role: "user", Parts: []Part{{Text: "hi"}}}},
				GenerationConfig: &GenerationConfig{Temperature: floatPtr(0)},
				SafetySettings:   []SafetySetting{{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_NONE"}},
				Tools: []Tool{{FunctionDeclarations: []FunctionDeclaration{{
					Name: "get_fortigate_data",
					Parameters: map[string]interface{}{
						"type":       "object",
						"properties": map[string]interface{}{"command": map[string]interface{}{"type": "string"}},
					},
				}}}},
				ToolConfig: &ToolConfig{FunctionCallingConfig: &FunctionCallingConfig{Mode: "AUTO"}},
			},
		},
	}

	for _, tc := range testCases {
		actual, err := ToRequest(tc.input)
		require.NoError(t, err, tc.description)
		assert.EqualValues(t, tc.expected, actual, tc.description)
	}
}

func TestToRequest_NoContent(t *testing.T) {
	_, err := ToRequest(&llm.GenerateRequest{Messages: []llm.Message{llm.NewSystemMessage("only system")}})
	assert.Error(t, err)
}

func TestToLLMSResponse(t *testing.T) {
	testCases := []struct {
		description string
		input       *Response
		verify      func(t *testing.T, actual *llm.GenerateResponse)
	}{
		{
			description: "text parts are joined",
			input: &Response{
				Candidates: []Candidate{{
					Content:      Content{Role: "model", Parts: []Part{{Text: "Hello "}, {Text: "there"}}},
					FinishReason: "STOP",
				}},
				UsageMetadata: &UsageMetadata{PromptTokenCount: 10, CandidatesTokenCount: 5, TotalTokenCount: 15},
			},
			verify: func(t *testing.T, actual *llm.GenerateResponse) {
				require.Len(t, actual.Choices, 1)
				assert.Equal(t, "Hello there", actual.Choices[0].Message.Content)
				assert.True(t, llm.IsStop(actual.Choices[0].FinishReason))
				assert.Equal(t, &llm.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, actual.Usage)
			},
		},
		{
			description: "function call becomes tool call",
			input: &Response{
				Candidates: []Candidate{{
					Content: Content{Role: "model", Parts: []Part{{FunctionCall: &FunctionCall{Name: "get_fortigate_data", Args: map[string]interface{}{"command": "show firewall policy"}}}}},
				}},
			},
			verify: func(t *testing.T, actual *llm.GenerateResponse) {
				require.Len(t, actual.Choices[0].Message.ToolCalls, 1)
				call := actual.Choices[0].Message.ToolCalls[0]
				assert.Equal(t, "get_fortigate_data", call.Name)
				assert.Equal(t, "show firewall policy", call.Arguments["command"])
				assert.NotEmpty(t, call.ID)
			},
		},
		{
			description: "blocked prompt",
			input: &Response{
				PromptFeedback: &PromptFeedback{BlockReason: "SAFETY", SafetyRatings: []SafetyRating{{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Probability: "HIGH", Blocked: true}}},
			},
			verify: func(t *testing.T, actual *llm.GenerateResponse) {
				assert.Empty(t, actual.Choices)
				assert.Equal(t, "SAFETY", actual.BlockReason)
				require.Len(t, actual.PromptRatings, 1)
				assert.True(t, actual.PromptRatings[0].Blocked)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.description, func(t *testing.T) {
			tc.verify(t, ToLLMSResponse(tc.input))
		})
	}
}

func TestClient_Generate(t *testing.T) {
	testCases := []struct {
		description string
		status      int
		body        string
		expectText  string
		expectErr   string
	}{
		{
			description: "success",
			status:      http.StatusOK,
			body:        `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":1,"candidatesTokenCount":1,"totalTokenCount":2}}`,
			expectText:  "ok",
		},
		{
			description: "invalid key",
			status:      http.StatusBadRequest,
			body:        `{"error":{"code":400,"message":"API key not valid. Please pass a valid API key.","status":"INVALID_ARGUMENT"}}`,
			expectErr:   "API key not valid",
		},
	}

	for _, tc := range testCases {
		var path, key string
		var sent Request
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			key = r.URL.Query().Get("key")
			data, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(data, &sent)
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))

		var usage *llm.Usage
		client := NewClient("secret", "gemini-1.5-flash", WithBaseURL(server.URL+"/v1beta/models"),
			WithUsageListener(func(model string, u *llm.Usage) { usage = u }))
		resp, err := client.Generate(context.Background(), &llm.GenerateRequest{Messages: []llm.Message{llm.NewUserMessage("ping")}})
		server.Close()

		assert.Equal(t, "/v1beta/models/gemini-1.5-flash:generateContent", path, tc.description)
		assert.Equal(t, "secret", key, tc.description)
		require.Len(t, sent.Contents, 1, tc.description)
		if tc.expectErr != "" {
			require.Error(t, err, tc.description)
			assert.True(t, strings.Contains(err.Error(), tc.expectErr), tc.description)
			apiErr, ok := err.(*APIError)
			require.True(t, ok, tc.description)
			assert.Equal(t, tc.status, apiErr.StatusCode, tc.description)
			continue
		}
		require.NoError(t, err, tc.description)
		assert.Equal(t, tc.expectText, resp.Choices[0].Message.Content, tc.description)
		assert.Equal(t, "gemini-1.5-flash", resp.Model, tc.description)
		assert.Equal(t, 2, usage.TotalTokens, tc.description)
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
