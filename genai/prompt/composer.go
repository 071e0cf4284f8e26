// Package prompt assembles generation prompts from velty templates and
// per-language instruction fragments.
package prompt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rin1809/fwexec/internal/platform"
)

// Truncation limits applied to injected context.
const (
	DeviceContextLimit     = 15000
	ChatDeviceContextLimit = 6000
	ChatHistoryLimit       = 8000
)

const (
	noOriginalPrompt = "(no prompt or empty prompt)"
	noStdout         = "(no stdout output)"
	noStderr         = "(no stderr output)"
	noHistory        = "(no FortiOS history)"
)

var deviceExtensions = map[string]bool{"txt": true, "conf": true, "cli": true, "log": true, platform.FortiOS: true}

// Language describes how a requested file type is rendered into a prompt.
type Language struct {
	// Ext is the normalised file extension.
	Ext string
	// Key selects the instruction and example fragments.
	Key         string
	Tag         string
	Description string
}

// IsDevice reports whether the language targets the FortiGate CLI.
func (l *Language) IsDevice() bool { return l.Key == platform.FortiOS }

// ResolveLanguage derives extension, fragment key and fence tag for a request.
func ResolveLanguage(fileType, targetOS, userInput string) *Language {
	ret := &Language{}
	switch {
	case strings.Contains(fileType, "."):
		ret.Ext = strings.ToLower(fileType[strings.LastIndex(fileType, ".")+1:])
		ret.Description = fmt.Sprintf("a file named `%s`", fileType)
	case fileType != "":
		ret.Ext = strings.ToLower(fileType)
		ret.Description = fmt.Sprintf("a `.%s` file (%s)", ret.Ext, platform.LanguageName(ret.Ext))
	default:
		ret.Ext = "py"
		ret.Description = "a Python script (`.py`)"
	}
	ret.Key = ret.Ext
	ret.Tag = fenceTag(ret.Ext, "code")

	targetDevice := strings.EqualFold(targetOS, platform.FortiOS)
	switch {
	case targetDevice && deviceExtensions[ret.Ext]:
		ret.Description = fmt.Sprintf("FortiOS CLI commands (usually saved as `.%s` or similar, to run on a FortiGate)", ret.Ext)
	case platform.IsDeviceCLIHint(userInput) && deviceExtensions[ret.Ext]:
		ret.Description = fmt.Sprintf("FortiOS CLI commands (usually saved as `.%s` or similar)", ret.Ext)
	case ret.Ext == platform.FortiOS:
		ret.Description = "FortiOS CLI commands (to run on a FortiGate)"
	default:
		return ret
	}
	ret.Key = platform.FortiOS
	ret.Tag = platform.FortiOS
	return ret
}

// GenerateInput carries a code generation request.
type GenerateInput struct {
	UserInput     string
	BackendOS     string
	TargetOS      string
	FileType      string
	DeviceContext string
}

// ReviewInput carries a code review request.
type ReviewInput struct {
	Code     string
	Language string
}

// DebugInput carries a failed execution to diagnose.
type DebugInput struct {
	OriginalPrompt string
	FailedCode     string
	Stdout         string
	Stderr         string
	Language       string
	DeviceContext  string
}

// ExplainInput carries content to explain. Context is one of the Explain*
// constants; unknown values are treated as ExplainOther.
type ExplainInput struct {
	Content        string
	Context        string
	Language       string
	OriginalPrompt string
	ExecutedCode   string
}

// ChatInput carries one FortiGate chat turn.
type ChatInput struct {
	UserInput     string
	DeviceContext string
	History       string
}

// Composer builds prompts.
type Composer struct {
	source   *Source
	renderer *renderer
}

// Generate builds the code generation prompt.
func (c *Composer) Generate(ctx context.Context, input *GenerateInput) (string, error) {
	lang := ResolveLanguage(input.FileType, input.TargetOS, input.UserInput)
	instructions := c.source.Text(ctx, "data/"+lang.Key+"_instructions.txt")
	examples := c.source.Text(ctx, "data/"+lang.Key+"_exp.txt")

	var guidance string
	if lang.IsDevice() {
		guidance = fmt.Sprintf("6.  For device CLI commands (for example FortiGate, target `%s`):\n%s", input.TargetOS, strings.TrimRight(instructions, "\n"))
	} else {
		guidance = fmt.Sprintf("5.  For a script (%s):\n%s", platform.LanguageName(lang.Key), strings.TrimRight(instructions, "\n"))
	}

	var deviceSection string
	deviceRelated := strings.EqualFold(input.TargetOS, platform.FortiOS) || platform.IsDeviceCLIHint(input.UserInput) || lang.IsDevice()
	if input.DeviceContext != "" && deviceRelated {
		deviceSection = "\n**Current FortiGate context (captured automatically for reference):**\n```text\n" + truncate(input.DeviceContext, DeviceContextLimit) + "\n```\n"
	}
	return c.render(ctx, "generate", map[string]string{
		"BackendOS":            input.BackendOS,
		"TargetOS":             input.TargetOS,
		"FileTypeDescription":  lang.Description,
		"CodeBlockTag":         lang.Tag,
		"ScriptGuidance":       guidance,
		"Examples":             strings.TrimSpace(examples),
		"UserInput":            input.UserInput,
		"DeviceContextSection": deviceSection,
	})
}

// Review builds the code review prompt.
func (c *Composer) Review(ctx context.Context, input *ReviewInput) (string, error) {
	return c.render(ctx, "review", map[string]string{
		"LanguageName": platform.LanguageName(input.Language),
		"CodeBlockTag": fenceTag(input.Language, "code"),
		"Code":         input.Code,
	})
}

// Debug builds the failure diagnosis prompt.
func (c *Composer) Debug(ctx context.Context, input *DebugInput) (string, error) {
	var deviceSection string
	deviceRelated := strings.EqualFold(input.Language, platform.FortiOS) || platform.IsDeviceCLIHint(input.OriginalPrompt)
	if input.DeviceContext != "" && deviceRelated {
		deviceSection = "\n**FortiGate context captured before the failing commands ran:**\n```text\n" + truncate(input.DeviceContext, DeviceContextLimit) + "\n```\n"
	}
	return c.render(ctx, "debug", map[string]string{
		"LanguageName":         platform.LanguageName(input.Language),
		"CodeBlockTag":         fenceTag(input.Language, "code"),
		"OriginalPrompt":       orPlaceholder(input.OriginalPrompt, noOriginalPrompt),
		"FailedCode":           input.FailedCode,
		"Stdout":               orPlaceholder(input.Stdout, noStdout),
		"Stderr":               orPlaceholder(input.Stderr, noStderr),
		"DeviceContextSection": deviceSection,
	})
}

// Chat builds the FortiGate chat system prompt, tool guidance included.
func (c *Composer) Chat(ctx context.Context, input *ChatInput) (string, error) {
	guidance, err := c.ToolGuidance(ctx)
	if err != nil {
		return "", err
	}
	return c.render(ctx, "chat", map[string]string{
		"DeviceContext": truncate(input.DeviceContext, ChatDeviceContextLimit),
		"History":       truncate(orPlaceholder(input.History, noHistory), ChatHistoryLimit),
		"UserInput":     input.UserInput,
		"ToolGuidance":  guidance,
	})
}

// ToolGuidance returns the addendum telling the model to retry failed tool calls.
func (c *Composer) ToolGuidance(ctx context.Context) (string, error) {
	return c.render(ctx, "tool_guidance", nil)
}

// WithTools appends tool usage guidance to an interactive generation prompt.
func (c *Composer) WithTools(ctx context.Context, prompt string) (string, error) {
	if !strings.Contains(prompt, "get_fortigate_data") {
		usage, err := c.render(ctx, "tool_usage", nil)
		if err != nil {
			return "", err
		}
		prompt += "\n\n" + usage
	}
	guidance, err := c.ToolGuidance(ctx)
	if err != nil {
		return "", err
	}
	return prompt + "\n" + guidance, nil
}

func (c *Composer) render(ctx context.Context, name string, vars map[string]string) (string, error) {
	tmpl := c.source.Text(ctx, "template/"+name+".vm")
	if tmpl == "" {
		return "", fmt.Errorf("failed to load %s prompt template", name)
	}
	if vars == nil {
		vars = map[string]string{}
	}
	text, err := c.renderer.expand(tmpl, vars)
	if err != nil {
		return "", fmt.Errorf("failed to expand %s prompt: %w", name, err)
	}
	return strings.TrimSpace(text), nil
}

// New creates a composer over source.
func New(source *Source) *Composer {
	if source == nil {
		source = NewSource(nil, "")
	}
	return &Composer{source: source, renderer: newRenderer()}
}

func fenceTag(language, fallback string) string {
	language = strings.ToLower(language)
	if language == "" || !isAlnum(language) {
		return fallback
	}
	return language
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}

func orPlaceholder(text, placeholder string) string {
	if strings.TrimSpace(text) == "" {
		return placeholder
	}
	return text
}

// truncate cuts text to at most limit runes.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// prettyJSON indents content when it parses as JSON.
func prettyJSON(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || (trimmed[0] != '{' && trimmed[0] != '[') {
		return content, false
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(trimmed), "", "  "); err != nil {
		return content, false
	}
	return buf.String(), true
}
