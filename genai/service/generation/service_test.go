package generation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rin1809/fwexec/genai/credential"
	"github.com/rin1809/fwexec/genai/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	response *llm.GenerateResponse
	err      error
	requests []*llm.GenerateRequest
}

func (s *stubModel) Generate(ctx context.Context, request *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	s.requests = append(s.requests, request)
	return s.response, s.err
}

func textResponse(text string) *llm.GenerateResponse {
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: text}, FinishReason: "STOP"}}}
}

func TestModelConfig_UnmarshalJSON(t *testing.T) {
	testCases := []struct {
		description string
		input       string
		expected    ModelConfig
		expectErr   bool
	}{
		{
			description: "camel case",
			input:       `{"modelName":"gemini-1.5-pro","temperature":0.2,"topP":0.5,"topK":10,"safetySetting":"BLOCK_NONE"}`,
			expected:    ModelConfig{ModelName: "gemini-1.5-pro", Temperature: floatPtr(0.2), TopP: floatPtr(0.5), TopK: intPtr(10), SafetySetting: "BLOCK_NONE"},
		},
		{
			description: "snake case with string numbers",
			input:       `{"model_name":"gemini-1.5-flash","temperature":"0.9","top_p":"1","top_k":"32","api_key":"k"}`,
			expected:    ModelConfig{APIKey: "k", ModelName: "gemini-1.5-flash", Temperature: floatPtr(0.9), TopP: floatPtr(1), TopK: intPtr(32)},
		},
		{
			description: "empty",
			input:       `{}`,
			expected:    ModelConfig{},
		},
		{
			description: "bad number",
			input:       `{"temperature":"hot"}`,
			expectErr:   true,
		},
	}

	for _, tc := range testCases {
		var actual ModelConfig
		err := json.Unmarshal([]byte(tc.input), &actual)
		if tc.expectErr {
			assert.Error(t, err, tc.description)
			continue
		}
		require.NoError(t, err, tc.description)
		assert.Equal(t, tc.expected, actual, tc.description)
	}
}

func TestService_Resolve(t *testing.T) {
	service := New(credential.New("process"), nil, Defaults{})

	resolved, err := service.Resolve(nil)
	require.NoError(t, err)
	assert.Equal(t, credential.Key{Value: "process", Source: credential.SourceDefault}, resolved.Key)
	assert.Equal(t, DefaultModel, resolved.Options.Model)
	assert.EqualValues(t, DefaultTemperature, resolved.Options.Temperature)
	assert.EqualValues(t, DefaultTopK, resolved.Options.TopK)
	assert.Equal(t, llm.SafetySettingsFor(llm.BlockMediumAndAbove), resolved.Options.SafetySettings)

	resolved, err = service.Resolve(&ModelConfig{APIKey: "caller", Temperature: floatPtr(0), SafetySetting: "BLOCK_NONE"})
	require.NoError(t, err)
	assert.Equal(t, "caller", resolved.Key.Value)
	assert.EqualValues(t, 0, resolved.Options.Temperature)
	assert.Equal(t, llm.BlockNone, resolved.Options.SafetySettings[0].Threshold)

	resolved, err = New(credential.New("process"), nil, Defaults{Temperature: floatPtr(0)}).Resolve(nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, resolved.Options.Temperature)

	_, err = New(credential.New(""), nil, Defaults{}).Resolve(&ModelConfig{})
	var genErr *Error
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, KindConfig, genErr.Kind)
	assert.Equal(t, 400, genErr.HTTPStatus())
}

func TestService_Generate(t *testing.T) {
	testCases := []struct {
		description string
		model       *stubModel
		cleanup     bool
		expected    string
		expectKind  Kind
	}{
		{
			description: "plain text",
			model:       &stubModel{response: textResponse("  hello  ")},
			expected:    "hello",
		},
		{
			description: "review cleanup",
			model:       &stubModel{response: textResponse("Here is the review:\n\n[thinking about it]\n1. Looks fine.\n[processing]\n2. Add tests.")},
			cleanup:     true,
			expected:    "1. Looks fine.\n2. Add tests.",
		},
		{
			description: "blocked prompt",
			model:       &stubModel{response: &llm.GenerateResponse{BlockReason: "SAFETY"}},
			expectKind:  KindPolicy,
		},
		{
			description: "invalid key",
			model:       &stubModel{err: errors.New("gemini API error (status 400): API key not valid. Please pass a valid API key.")},
			expectKind:  KindConfig,
		},
		{
			description: "deadline",
			model:       &stubModel{err: context.DeadlineExceeded},
			expectKind:  KindTimeout,
		},
		{
			description: "other upstream",
			model:       &stubModel{err: errors.New("internal error")},
			expectKind:  KindUpstream,
		},
	}

	for _, tc := range testCases {
		var boundKey, boundModel string
		service := New(credential.New("process"), func(apiKey, model string) llm.Model {
			boundKey, boundModel = apiKey, model
			return tc.model
		}, Defaults{})
		actual, err := service.Generate(context.Background(), "prompt", &ModelConfig{ModelName: "gemini-1.5-pro"}, tc.cleanup)
		assert.Equal(t, "process", boundKey, tc.description)
		assert.Equal(t, "gemini-1.5-pro", boundModel, tc.description)
		if tc.expectKind != "" {
			var genErr *Error
			require.True(t, errors.As(err, &genErr), tc.description)
			assert.Equal(t, tc.expectKind, genErr.Kind, tc.description)
			continue
		}
		require.NoError(t, err, tc.description)
		assert.Equal(t, tc.expected, actual, tc.description)
		require.Len(t, tc.model.requests, 1, tc.description)
		assert.Equal(t, "prompt", tc.model.requests[0].Messages[0].Content, tc.description)
	}
}

func TestClassify(t *testing.T) {
	testCases := []struct {
		description string
		err         error
		expected    Kind
	}{
		{description: "missing model", err: errors.New("models/x is not found for API version v1beta"), expected: KindConfig},
		{description: "permission", err: errors.New("Permission denied on resource"), expected: KindConfig},
		{description: "invalid param", err: errors.New("Invalid value at 'generation_config.top_k'"), expected: KindConfig},
		{description: "timeout", err: errors.New("client timeout exceeded"), expected: KindTimeout},
		{description: "safety", err: errors.New("finish reason SAFETY"), expected: KindPolicy},
		{description: "already classified", err: &Error{Kind: KindPolicy, Message: "x"}, expected: KindPolicy},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Classify(tc.err, "m").Kind, tc.description)
	}
}

func floatPtr(v float64) *float64 { return &v }

func intPtr(v int) *int { return &v }
