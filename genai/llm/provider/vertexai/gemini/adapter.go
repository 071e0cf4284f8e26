package gemini

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/rin1809/fwexec/genai/llm"
)

// ToRequest converts an llm.GenerateRequest to a Gemini Request
func ToRequest(request *llm.GenerateRequest) (*Request, error) {
	if request == nil {
		return nil, fmt.Errorf("request was nil")
	}
	req := &Request{Contents: make([]Content, 0, len(request.Messages))}

	if options := request.Options; options != nil {
		config := &GenerationConfig{MaxOutputTokens: options.MaxTokens}
		temperature, topP, topK := options.Temperature, options.TopP, options.TopK
		config.Temperature = &temperature
		if topP > 0 {
			config.TopP = &topP
		}
		if topK > 0 {
			config.TopK = &topK
		}
		req.GenerationConfig = config

		for _, setting := range options.SafetySettings {
			req.SafetySettings = append(req.SafetySettings, SafetySetting{Category: setting.Category, Threshold: setting.Threshold})
		}

		if len(options.Tools) > 0 {
			declarations := make([]FunctionDeclaration, 0, len(options.Tools))
			for _, tool := range options.Tools {
				// Always assign a sanitised parameters map so unsupported keys
				// are removed at every nesting level.
				var params map[string]interface{}
				if tool.Definition.Parameters != nil {
					params = sanitizeSchema(tool.Definition.Parameters).(map[string]interface{})
				}
				declarations = append(declarations, FunctionDeclaration{
					Name:        tool.Definition.Name,
					Description: tool.Definition.Description,
					Parameters:  params,
				})
			}
			req.Tools = []Tool{{FunctionDeclarations: declarations}}
			req.ToolConfig = &ToolConfig{FunctionCallingConfig: &FunctionCallingConfig{Mode: "AUTO"}}
		}
	}

	for _, msg := range request.Messages {
		switch {
		case msg.Role == llm.RoleSystem:
			// system messages go to the top-level systemInstruction
			if req.SystemInstruction == nil {
				req.SystemInstruction = &SystemInstruction{Role: "system"}
			}
			req.SystemInstruction.Parts = append(req.SystemInstruction.Parts, Part{Text: msg.Content})
		case len(msg.ToolCalls) > 0:
			content := Content{Role: roleModel}
			if msg.Content != "" {
				content.Parts = append(content.Parts, Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				content.Parts = append(content.Parts, Part{FunctionCall: &FunctionCall{Name: tc.Name, Args: tc.Arguments}})
			}
			req.Contents = append(req.Contents, content)
		case msg.Role == llm.RoleTool:
			// functionResponse parts are sent with the user role
			req.Contents = append(req.Contents, Content{
				Role: roleUser,
				Parts: []Part{{FunctionResponse: &FunctionResponse{
					Name:     msg.Name,
					Response: toResponseObject(msg.Content),
				}}},
			})
		case msg.Role == llm.RoleAssistant:
			req.Contents = append(req.Contents, Content{Role: roleModel, Parts: []Part{{Text: msg.Content}}})
		default:
			req.Contents = append(req.Contents, Content{Role: roleUser, Parts: []Part{{Text: msg.Content}}})
		}
	}
	if len(req.Contents) == 0 {
		return nil, fmt.Errorf("request has no content messages")
	}
	return req, nil
}

// sanitizeSchema removes fields that are not accepted by Gemini v1beta
// (e.g., additionalProperties) and recurses into nested objects.
func sanitizeSchema(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		cleaned := make(map[string]interface{}, rv.Len())
		for _, key := range rv.MapKeys() {
			kStr := fmt.Sprintf("%v", key.Interface())
			if kStr == "additionalProperties" || strings.HasPrefix(kStr, "x-") {
				continue
			}
			cleaned[kStr] = sanitizeSchema(rv.MapIndex(key).Interface())
		}
		return cleaned
	case reflect.Slice, reflect.Array:
		arr := make([]interface{}, rv.Len())
		for i := range arr {
			arr[i] = sanitizeSchema(rv.Index(i).Interface())
		}
		return arr
	default:
		return v
	}
}

// toResponseObject wraps tool output as the JSON object Gemini expects. JSON
// objects are passed through, anything else becomes {"output": text}.
func toResponseObject(s string) map[string]interface{} {
	var v map[string]interface{}
	if err := json.Unmarshal([]byte(s), &v); err == nil && v != nil {
		return v
	}
	return map[string]interface{}{"output": s}
}

// ToLLMSResponse converts a Response to an llm.GenerateResponse
func ToLLMSResponse(resp *Response) *llm.GenerateResponse {
	result := &llm.GenerateResponse{Choices: make([]llm.Choice, 0, len(resp.Candidates))}
	if feedback := resp.PromptFeedback; feedback != nil {
		result.BlockReason = feedback.BlockReason
		result.PromptRatings = toRatings(feedback.SafetyRatings)
	}

	for i, candidate := range resp.Candidates {
		choice := llm.Choice{
			Index:         i,
			FinishReason:  candidate.FinishReason,
			SafetyRatings: toRatings(candidate.SafetyRatings),
		}
		message := llm.Message{Role: llm.RoleAssistant}
		var text strings.Builder
		for _, part := range candidate.Content.Parts {
			switch {
			case part.FunctionCall != nil:
				message.ToolCalls = append(message.ToolCalls, llm.NewToolCall(part.FunctionCall.Name, part.FunctionCall.Args))
			case part.Text != "":
				text.WriteString(part.Text)
			}
		}
		message.Content = text.String()
		choice.Message = message
		result.Choices = append(result.Choices, choice)
	}

	if resp.UsageMetadata != nil {
		result.Usage = &llm.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CompletionTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}
	return result
}

func toRatings(ratings []SafetyRating) []llm.SafetyRating {
	if len(ratings) == 0 {
		return nil
	}
	result := make([]llm.SafetyRating, 0, len(ratings))
	for _, r := range ratings {
		result = append(result, llm.SafetyRating{Category: r.Category, Probability: r.Probability, Blocked: r.Blocked})
	}
	return result
}
