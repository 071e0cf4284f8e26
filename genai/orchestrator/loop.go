// Package orchestrator drives a tool calling conversation with the generation
// backend until the model produces a final answer.
package orchestrator

import (
	"context"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/rin1809/fwexec/genai/codeblock"
	"github.com/rin1809/fwexec/genai/llm"
	"github.com/rin1809/fwexec/genai/tool"
)

// DefaultMaxIterations bounds the number of model turns per orchestration.
const DefaultMaxIterations = 500

// Mode selects how the final text is post-processed.
type Mode string

const (
	// ModeGenerate extracts a code block from the final text.
	ModeGenerate Mode = "generate"
	// ModeChat returns the final text with internal progress lines removed.
	ModeChat Mode = "chat"
)

var internalLineExpr = regexp.MustCompile(`(?im)^\s*\[(thinking|internal|process\w*)\].*$\n?`)

// Input is one orchestration request.
type Input struct {
	// System is an optional system instruction.
	System string
	Prompt string
	// Options are resolved once and reused for every turn.
	Options   *llm.Options
	Mode      Mode
	Extension string
	Hint      string
}

// Output is a successful orchestration result.
type Output struct {
	Text     string
	Thoughts Thoughts
	Turns    int
}

// Loop runs the tool calling state machine.
type Loop struct {
	model         llm.Model
	registry      *tool.Registry
	maxIterations int
	now           func() time.Time
}

// Run drives the conversation. Every failure is a *LoopError carrying the
// thoughts accumulated so far.
func (l *Loop) Run(ctx context.Context, input *Input) (*Output, error) {
	options := input.Options.Clone()
	options.Tools = l.registry.Tools()

	var messages []llm.Message
	if input.System != "" {
		messages = append(messages, llm.NewSystemMessage(input.System))
	}
	messages = append(messages, llm.NewUserMessage(input.Prompt))

	var thoughts Thoughts
	for turn := 1; turn <= l.maxIterations; turn++ {
		log.Printf("orchestrator turn %d/%d: sending to model", turn, l.maxIterations)
		resp, err := l.model.Generate(ctx, &llm.GenerateRequest{Messages: messages, Options: options})
		if err != nil {
			return nil, &LoopError{Reason: ReasonBackendFailed, Thoughts: thoughts, Err: err}
		}
		if resp == nil || len(resp.Choices) == 0 {
			ret := &LoopError{Reason: ReasonEmptyTurn, Thoughts: thoughts}
			if resp != nil && resp.BlockReason != "" {
				ret.Reason, ret.FinishReason, ret.SafetyRatings = ReasonNotStopped, resp.BlockReason, resp.PromptRatings
			}
			return nil, ret
		}
		choice := resp.Choices[0]
		message := choice.Message

		if len(message.ToolCalls) > 0 {
			// one tool call per turn
			call := message.ToolCalls[0]
			messages = append(messages, llm.NewAssistantMessageWithToolCalls(message.Content, call))
			result := l.dispatch(ctx, call, &thoughts)
			messages = append(messages, llm.NewToolResultMessage(call, result.Text))
			continue
		}

		if strings.TrimSpace(message.Content) == "" && choice.FinishReason == "" {
			return nil, &LoopError{Reason: ReasonEmptyTurn, Thoughts: thoughts}
		}
		if !llm.IsStop(choice.FinishReason) || strings.TrimSpace(message.Content) == "" {
			log.Printf("orchestrator: model stopped with %s", choice.FinishReason)
			return nil, &LoopError{Reason: ReasonNotStopped, FinishReason: choice.FinishReason, SafetyRatings: choice.SafetyRatings, Thoughts: thoughts}
		}
		return &Output{Text: l.finalText(input, message.Content), Thoughts: thoughts, Turns: turn}, nil
	}
	log.Printf("orchestrator: iteration cap %d exceeded", l.maxIterations)
	return nil, &LoopError{Reason: ReasonIterationCap, Thoughts: thoughts}
}

func (l *Loop) dispatch(ctx context.Context, call llm.ToolCall, thoughts *Thoughts) *tool.Result {
	log.Printf("orchestrator: model requested tool %s with %v", call.Name, call.Arguments)
	*thoughts = append(*thoughts, &Thought{
		Type:      ThoughtCallRequest,
		ToolName:  call.Name,
		ToolArgs:  call.Arguments,
		Timestamp: l.now(),
	})
	result := l.registry.Execute(ctx, call.Name, call.Arguments)
	*thoughts = append(*thoughts, &Thought{
		Type:       ThoughtCallResult,
		ToolName:   call.Name,
		ResultData: result.Text,
		IsError:    result.IsError,
		Timestamp:  l.now(),
	})
	return result
}

func (l *Loop) finalText(input *Input, text string) string {
	if input.Mode == ModeChat {
		return StripInternal(text)
	}
	return codeblock.Extract(text, input.Extension, input.Hint)
}

// StripInternal removes [thinking], [internal] and [process...] lines.
func StripInternal(text string) string {
	return strings.TrimSpace(internalLineExpr.ReplaceAllString(text, ""))
}

// Option customises a Loop.
type Option func(l *Loop)

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(l *Loop) {
		if n > 0 {
			l.maxIterations = n
		}
	}
}

// WithClock overrides the thought timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Loop) { l.now = now }
}

// New creates a loop bound to one model and tool registry.
func New(model llm.Model, registry *tool.Registry, options ...Option) *Loop {
	ret := &Loop{model: model, registry: registry, maxIterations: DefaultMaxIterations, now: time.Now}
	for _, option := range options {
		option(ret)
	}
	return ret
}
