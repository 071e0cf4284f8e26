// Package usage aggregates token usage reported by generation backends.
package usage

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rin1809/fwexec/genai/llm"
)

// Stat accumulates token numbers for a single model.
type Stat struct {
	Calls            int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Aggregator collects usage grouped by model name. It is safe for concurrent use.
type Aggregator struct {
	mux      sync.RWMutex
	perModel map[string]*Stat
}

// OnUsage matches provider/base.UsageListener so the aggregator can be handed
// to provider clients directly.
func (a *Aggregator) OnUsage(model string, u *llm.Usage) {
	if u == nil {
		return
	}
	total := u.TotalTokens
	if total == 0 {
		total = u.PromptTokens + u.CompletionTokens
	}
	a.Add(model, u.PromptTokens, u.CompletionTokens, total)
}

// Add records one call for model.
func (a *Aggregator) Add(model string, prompt, completion, total int) {
	a.mux.Lock()
	defer a.mux.Unlock()
	if a.perModel == nil {
		a.perModel = map[string]*Stat{}
	}
	stat, ok := a.perModel[model]
	if !ok {
		stat = &Stat{}
		a.perModel[model] = stat
	}
	stat.Calls++
	stat.PromptTokens += prompt
	stat.CompletionTokens += completion
	stat.TotalTokens += total
}

// Stat returns a copy of the usage recorded for model.
func (a *Aggregator) Stat(model string) Stat {
	a.mux.RLock()
	defer a.mux.RUnlock()
	if stat, ok := a.perModel[model]; ok {
		return *stat
	}
	return Stat{}
}

// Totals returns accumulated prompt, completion and total tokens across all models.
func (a *Aggregator) Totals() (prompt, completion, total int) {
	a.mux.RLock()
	defer a.mux.RUnlock()
	for _, stat := range a.perModel {
		prompt += stat.PromptTokens
		completion += stat.CompletionTokens
		total += stat.TotalTokens
	}
	return prompt, completion, total
}

// Keys returns sorted list of model names.
func (a *Aggregator) Keys() []string {
	a.mux.RLock()
	defer a.mux.RUnlock()
	keys := make([]string, 0, len(a.perModel))
	for k := range a.perModel {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Summary renders one "model: calls=.. prompt=.. completion=.. total=.." entry per model.
func (a *Aggregator) Summary() string {
	var parts []string
	for _, model := range a.Keys() {
		stat := a.Stat(model)
		parts = append(parts, fmt.Sprintf("%s: calls=%d prompt=%d completion=%d total=%d", model, stat.Calls, stat.PromptTokens, stat.CompletionTokens, stat.TotalTokens))
	}
	return strings.Join(parts, "; ")
}
