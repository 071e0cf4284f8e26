package generation

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rin1809/fwexec/genai/credential"
	"github.com/rin1809/fwexec/genai/llm"
)

// ModelFactory creates a backend bound to one API key and model.
type ModelFactory func(apiKey, model string) llm.Model

// Resolved is the per-request generation setup: credential plus options.
// It is computed once and passed by value through the call chain.
type Resolved struct {
	Key     credential.Key
	Options *llm.Options
}

// Service wraps the generation backend with configuration resolution and
// error classification.
type Service struct {
	store    *credential.Store
	factory  ModelFactory
	defaults Defaults
}

// Resolve resolves the API key, model and sampling options for cfg.
func (s *Service) Resolve(cfg *ModelConfig) (*Resolved, error) {
	if cfg == nil {
		cfg = &ModelConfig{}
	}
	key, err := s.store.Resolve(cfg.APIKey)
	if err != nil {
		return nil, newError(KindConfig, err, "configuration error: %v", err)
	}
	options := &llm.Options{
		Model:       s.defaults.Model,
		Temperature: *s.defaults.Temperature,
		TopP:        s.defaults.TopP,
		TopK:        s.defaults.TopK,
	}
	if cfg.ModelName != "" {
		options.Model = cfg.ModelName
	}
	if cfg.Temperature != nil {
		options.Temperature = *cfg.Temperature
	}
	if cfg.TopP != nil {
		options.TopP = *cfg.TopP
	}
	if cfg.TopK != nil {
		options.TopK = *cfg.TopK
	}
	tier := s.defaults.Safety
	if cfg.SafetySetting != "" {
		if !llm.IsSafetyTier(cfg.SafetySetting) {
			log.Printf("unknown safety setting %q, using %s", cfg.SafetySetting, s.defaults.Safety)
		} else {
			tier = cfg.SafetySetting
		}
	}
	options.SafetySettings = llm.SafetySettingsFor(tier)
	return &Resolved{Key: key, Options: options}, nil
}

// Model returns a backend bound to the resolved credential.
func (s *Service) Model(resolved *Resolved) llm.Model {
	return s.factory(resolved.Key.Value, resolved.Options.Model)
}

// Generate runs a single-shot generation. With cleanup set, review style
// preambles and progress lines are removed from the text.
func (s *Service) Generate(ctx context.Context, prompt string, cfg *ModelConfig, cleanup bool) (string, error) {
	resolved, err := s.Resolve(cfg)
	if err != nil {
		return "", err
	}
	options := resolved.Options
	log.Printf("calling model %s: T=%v P=%v K=%v key=%s", options.Model, options.Temperature, options.TopP, options.TopK, resolved.Key.Source)

	resp, err := s.Model(resolved).Generate(ctx, &llm.GenerateRequest{
		Messages: []llm.Message{llm.NewUserMessage(prompt)},
		Options:  options,
	})
	if err != nil {
		classified := Classify(err, options.Model)
		log.Printf("generation with %s failed: %v", options.Model, err)
		return "", classified
	}
	text, err := ResponseText(resp)
	if err != nil {
		return "", err
	}
	if cleanup && text != "" {
		return Cleanup(text), nil
	}
	return text, nil
}

// ResponseText returns the trimmed text of the first choice, or a policy
// error when the prompt or the candidate was blocked.
func ResponseText(resp *llm.GenerateResponse) (string, error) {
	if resp == nil {
		return "", newError(KindUpstream, nil, "generation API returned no response")
	}
	if len(resp.Choices) == 0 {
		if resp.BlockReason != "" {
			log.Printf("prompt blocked: %s ratings: %v", resp.BlockReason, resp.PromptRatings)
			return "", newError(KindPolicy, nil, "response blocked by safety settings (reason: %s); adjust the safety setting or the prompt", resp.BlockReason)
		}
		return "", newError(KindUpstream, nil, "generation API returned no candidates")
	}
	choice := resp.Choices[0]
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" && strings.EqualFold(choice.FinishReason, "SAFETY") {
		return "", newError(KindPolicy, nil, "response blocked by safety settings (finish reason: %s, ratings: %s)", choice.FinishReason, FormatRatings(choice.SafetyRatings))
	}
	return text, nil
}

// FormatRatings renders safety ratings for diagnostics.
func FormatRatings(ratings []llm.SafetyRating) string {
	if len(ratings) == 0 {
		return "none"
	}
	parts := make([]string, 0, len(ratings))
	for _, r := range ratings {
		parts = append(parts, fmt.Sprintf("%s=%s", r.Category, r.Probability))
	}
	return strings.Join(parts, ", ")
}

// New creates a generation service.
func New(store *credential.Store, factory ModelFactory, defaults Defaults) *Service {
	defaults.Init()
	return &Service{store: store, factory: factory, defaults: defaults}
}
