package orchestrator

import (
	"fmt"

	"github.com/rin1809/fwexec/genai/llm"
)

// Reason names why an orchestration failed.
type Reason string

const (
	ReasonEmptyTurn     Reason = "empty_turn"
	ReasonNotStopped    Reason = "not_stopped"
	ReasonIterationCap  Reason = "iteration_cap"
	ReasonBackendFailed Reason = "backend_failed"
)

// LoopError is a terminal orchestration failure. Thoughts holds every tool
// call made before the failure.
type LoopError struct {
	Reason        Reason
	FinishReason  string
	SafetyRatings []llm.SafetyRating
	Thoughts      Thoughts
	Err           error
}

func (e *LoopError) Error() string {
	switch e.Reason {
	case ReasonEmptyTurn:
		return "model returned an invalid turn (no content or parts)"
	case ReasonNotStopped:
		return fmt.Sprintf("model returned neither a function call nor final text; finish reason: %s, safety: %s", e.FinishReason, formatRatings(e.SafetyRatings))
	case ReasonIterationCap:
		return "maximum number of tool calls exceeded"
	}
	return fmt.Sprintf("model call failed: %v", e.Err)
}

func (e *LoopError) Unwrap() error {
	return e.Err
}

func formatRatings(ratings []llm.SafetyRating) string {
	if len(ratings) == 0 {
		return "N/A"
	}
	result := ""
	for i, r := range ratings {
		if i > 0 {
			result += ", "
		}
		result += r.Category + "=" + r.Probability
	}
	return result
}
