package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a generation failure.
type Kind string

const (
	KindConfig   Kind = "config"
	KindPolicy   Kind = "policy"
	KindTimeout  Kind = "timeout"
	KindUpstream Kind = "upstream"
)

// Error is a classified generation failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus maps the error kind to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindConfig, KindPolicy:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func newError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

var invalidParams = []string{"temperature", "top_p", "top_k", "safety_settings", "topp", "topk"}

// Classify converts a backend error into an *Error.
func Classify(err error, model string) *Error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	message := err.Error()
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(message, "API key not valid"):
		return newError(KindConfig, err, "configuration error: API key is not valid")
	case strings.Contains(message, "Could not find model") || strings.Contains(lower, "is not found") ||
		strings.Contains(lower, "permission denied"):
		return newError(KindConfig, err, "configuration error: model '%s' not found or not accessible", model)
	case strings.Contains(lower, "invalid") && containsAny(lower, invalidParams):
		return newError(KindConfig, err, "configuration error: invalid generation parameter (temperature/top_p/top_k/safety): %s", message)
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(message, "Deadline Exceeded") || strings.Contains(lower, "timeout"):
		return newError(KindTimeout, err, "network error: request to the generation API timed out, please retry")
	case strings.Contains(strings.ToUpper(message), "SAFETY"):
		return newError(KindPolicy, err, "request or response may violate the safety policy: %s", clip(message, 100))
	}
	return newError(KindUpstream, err, "generation API error: %s", message)
}

func containsAny(text string, candidates []string) bool {
	for _, candidate := range candidates {
		if strings.Contains(text, candidate) {
			return true
		}
	}
	return false
}

func clip(text string, n int) string {
	if len(text) <= n {
		return text
	}
	return text[:n] + "..."
}
