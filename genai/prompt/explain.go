package prompt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rin1809/fwexec/internal/platform"
)

// Explain contexts.
const (
	ExplainCode               = "code"
	ExplainExecutionResult    = "execution_result"
	ExplainReviewText         = "review_text"
	ExplainDebugResult        = "debug_result"
	ExplainErrorMessage       = "error_message"
	ExplainInstallationResult = "installation_result"
	ExplainOther              = "other"
)

const (
	explainHeader      = "You are an assistant who explains technical topics simply to non-specialists, especially FortiGate and scripting issues."
	explainInstruction = "Explain the content below in Markdown, focusing on what it means and what the user needs to know. Keep it short and clear. Start directly with the explanation, no preamble."
	answerSuffix       = " Answer in Markdown. Start directly."
)

// Explain builds the explanation prompt for the given context kind.
func (c *Composer) Explain(ctx context.Context, input *ExplainInput) (string, error) {
	content, _ := prettyJSON(input.Content)
	languageName := "content"
	if input.Language != "" {
		languageName = platform.LanguageName(input.Language)
	}
	tag := fenceTag(input.Language, "text")

	var additional strings.Builder
	if input.OriginalPrompt != "" {
		fmt.Fprintf(&additional, "\n**1. Original user request (the prompt that led to this content):**\n```text\n%s\n```\n", input.OriginalPrompt)
	}
	if input.ExecutedCode != "" {
		executedTag := "text"
		if input.Language != "" && input.Language != "unknown" {
			executedTag = strings.ToLower(input.Language)
		}
		fmt.Fprintf(&additional, "\n**2. Code or commands that were executed:**\n```%s\n%s\n```\n", executedTag, input.ExecutedCode)
	}

	instruction := explainInstruction
	var description string
	switch input.Context {
	case ExplainCode:
		description = fmt.Sprintf("This is a piece of **%s** code:\n```%s\n%s\n```", languageName, tag, content)
		if input.OriginalPrompt != "" {
			instruction = fmt.Sprintf("Explain what this **%s** code does, its main purpose, and how it relates to the **original user request** above. Summarise the main steps, if any.", languageName) + answerSuffix
		} else {
			instruction = fmt.Sprintf("Explain what this **%s** code does, its main purpose, and summarise the main steps, if any.", languageName) + answerSuffix
		}
	case ExplainExecutionResult:
		fmt.Fprintf(&additional, "\n**3. Output (stdout, stderr, return code) of running the code in (2):**\n```json\n%s\n```\n", content)
		instruction = "Using the **original user request (1)** and the **executed code (2)**, if any, analyse the **output (3)** above. " +
			"Say whether the command appears to have succeeded or failed and why. " +
			"If it failed, point to the likely cause based on `stderr` and `stdout`. " +
			"If it succeeded, explain what `stdout` means. " +
			"Note any warnings. " +
			"Help the user understand what happened after running their request." + answerSuffix
	case ExplainReviewText:
		description = fmt.Sprintf("This is a code review:\n```markdown\n%s\n```", content)
		instruction = "Summarise and explain the main points of this code review in simpler language. If an **original user request (1)** is given, relate the review to how well the code meets it." + answerSuffix
	case ExplainDebugResult:
		debugLanguage := debugLanguageName(content, input.Language)
		fmt.Fprintf(&additional, "\n**3. Result of debugging the %s code in (2):**\n```json\n%s\n```\n", debugLanguage, content)
		instruction = "Using the **original user request (1)** and the **failing code (2)**, explain this **debug result (3)**. " +
			"Cover the identified cause, what any suggested package install means (Python only), " +
			fmt.Sprintf("and the purpose of the corrected %s code, if any. ", debugLanguage) +
			"Help the user understand why the original code failed and how the fix addresses it." + answerSuffix
	case ExplainErrorMessage:
		fmt.Fprintf(&additional, "\n**3. Error message to explain:**\n```text\n%s\n```\n", content)
		instruction = "Explain what this error message means and its common causes (relate it to the **executed code (2)** if given). Suggest how to fix it." + answerSuffix
	case ExplainInstallationResult:
		description = fmt.Sprintf("This is the result of installing a Python package:\n```json\n%s\n```", content)
		instruction = "Analyse this package installation result. Say whether it succeeded or failed and briefly explain the pip output or error." + answerSuffix
	default:
		description = fmt.Sprintf("Content to explain:\n```text\n%s\n```", content)
		if input.OriginalPrompt != "" {
			instruction = "Explain the content above in the context of the **original user request (1)**." + answerSuffix
		}
	}

	return c.render(ctx, "explain", map[string]string{
		"Header":             explainHeader,
		"ContextDescription": description,
		"AdditionalContext":  additional.String(),
		"Instruction":        instruction,
	})
}

func debugLanguageName(content, fallback string) string {
	var parsed struct {
		OriginalLanguage string `json:"original_language"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err == nil && parsed.OriginalLanguage != "" {
		return platform.LanguageName(parsed.OriginalLanguage)
	}
	if fallback != "" {
		return platform.LanguageName(fallback)
	}
	return "code"
}
