package gemini

import (
	"encoding/json"
	"fmt"
	"strings"
)

// APIError is a non-200 response from the Gemini API.
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("gemini API error (status %d %s): %s", e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("gemini API error (status %d): %s", e.StatusCode, e.Message)
}

type errorEnvelope struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func newAPIError(statusCode int, body []byte) *APIError {
	result := &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}
	var envelope errorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		result.Message = envelope.Error.Message
		result.Status = envelope.Error.Status
	}
	return result
}
