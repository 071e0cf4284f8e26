package base

import "github.com/rin1809/fwexec/genai/llm"

// UsageListener is a callback used by provider clients to report token usage
// for each successful request.
type UsageListener func(model string, usage *llm.Usage)

// OnUsage invokes the listener; a nil listener is a no-op.
func (f UsageListener) OnUsage(model string, usage *llm.Usage) {
	if f == nil || usage == nil {
		return
	}
	f(model, usage)
}
