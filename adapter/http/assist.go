package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/rin1809/fwexec/genai/codeblock"
	"github.com/rin1809/fwexec/genai/prompt"
	"github.com/rin1809/fwexec/genai/service/generation"
	"github.com/rin1809/fwexec/internal/platform"
	"github.com/rin1809/fwexec/service/device"
)

var (
	debugPreamble   = regexp.MustCompile(`(?im)^(Analysis and suggestions:|Explanation and suggestions:|Analysis:|Explanation:)\s*`)
	explainPreamble = regexp.MustCompile(`(?im)^(Here is an explanation of.*?:\s*|Explanation of.*?:\s*)`)
)

const (
	noOriginalPrompt = "(no original prompt)"
	debugContextNote = "Note: a fresh FortiGate context could not be fetched because connection details (IP/host, username) are missing in settings."
)

type reviewRequest struct {
	Code        string                  `json:"code"`
	FileType    string                  `json:"file_type"`
	ModelConfig *generation.ModelConfig `json:"model_config"`
}

type reviewResponse struct {
	Review string `json:"review"`
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	req := &reviewRequest{}
	if !decode(w, r, req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "no code to review"})
		return
	}
	text, err := s.Composer.Review(r.Context(), &prompt.ReviewInput{Code: req.Code, Language: languageOf(req.FileType)})
	if err == nil {
		text, err = s.Generation.Generate(r.Context(), text, req.ModelConfig, true)
	}
	if err != nil {
		encode(w, statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	encode(w, http.StatusOK, reviewResponse{Review: text})
}

type debugRequest struct {
	Prompt          string                  `json:"prompt"`
	Code            string                  `json:"code"`
	Stdout          string                  `json:"stdout"`
	Stderr          string                  `json:"stderr"`
	FileType        string                  `json:"file_type"`
	ModelConfig     *generation.ModelConfig `json:"model_config"`
	FortigateConfig *device.Config          `json:"fortigate_config_for_context"`
	ContextCommands []string                `json:"fortigate_selected_context_commands"`
}

type debugResponse struct {
	Explanation      string  `json:"explanation"`
	CorrectedCode    *string `json:"corrected_code"`
	SuggestedPackage *string `json:"suggested_package"`
	OriginalLanguage string  `json:"original_language"`
}

func (s *Server) handleDebug(w http.ResponseWriter, r *http.Request) {
	req := &debugRequest{}
	if !decode(w, r, req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "missing failed code to debug"})
		return
	}
	if req.Prompt == "" {
		req.Prompt = noOriginalPrompt
	}
	ctx := r.Context()
	language := languageOf(req.FileType)
	var deviceContext string
	if language == platform.FortiOS || platform.IsDeviceCLIHint(req.Prompt) {
		deviceContext = s.deviceContext(ctx, req.FortigateConfig, req.ContextCommands, debugContextNote)
	}
	text, err := s.Composer.Debug(ctx, &prompt.DebugInput{
		OriginalPrompt: req.Prompt,
		FailedCode:     req.Code,
		Stdout:         req.Stdout,
		Stderr:         req.Stderr,
		Language:       language,
		DeviceContext:  deviceContext,
	})
	if err == nil {
		text, err = s.Generation.Generate(ctx, text, req.ModelConfig, true)
	}
	if err != nil {
		encode(w, statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	encode(w, http.StatusOK, parseDebug(text, language))
}

// parseDebug splits a debug answer into explanation, corrected code and an
// optional pip package suggestion.
func parseDebug(text, language string) *debugResponse {
	ret := &debugResponse{OriginalLanguage: language}
	explanation := text
	if language == "py" {
		if pkg, remaining, ok := codeblock.PipSuggestion(explanation); ok {
			ret.SuggestedPackage = &pkg
			explanation = remaining
		}
	}
	if block, ok := codeblock.LastTagged(explanation, codeblock.DebugTags(language)); ok {
		code := block.Code
		ret.CorrectedCode = &code
		explanation = strings.TrimSpace(explanation[:block.Start])
		if explanation == "" {
			explanation = fmt.Sprintf("(the model only returned corrected %s code.)", platform.LanguageName(language))
		}
	}
	explanation = strings.TrimSpace(debugPreamble.ReplaceAllString(explanation, ""))
	if explanation == "" && ret.CorrectedCode == nil && ret.SuggestedPackage == nil {
		explanation = "(no explanation, corrected code or package suggestion from the model.)"
	}
	ret.Explanation = explanation
	return ret
}

type explainRequest struct {
	Content        json.RawMessage         `json:"content"`
	Context        string                  `json:"context"`
	FileType       string                  `json:"file_type"`
	OriginalPrompt string                  `json:"original_prompt"`
	ExecutedCode   string                  `json:"executed_code"`
	ModelConfig    *generation.ModelConfig `json:"model_config"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	req := &explainRequest{}
	if !decode(w, r, req) {
		return
	}
	content := contentText(req.Content)
	if strings.TrimSpace(content) == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "no content to explain"})
		return
	}
	if req.Context == "" {
		req.Context = "unknown"
	}
	var language string
	if req.Context == prompt.ExplainCode && req.FileType != "" {
		language = extensionOf(req.FileType, "txt")
	}
	text, err := s.Composer.Explain(r.Context(), &prompt.ExplainInput{
		Content:        content,
		Context:        req.Context,
		Language:       language,
		OriginalPrompt: req.OriginalPrompt,
		ExecutedCode:   req.ExecutedCode,
	})
	if err == nil {
		text, err = s.Generation.Generate(r.Context(), text, req.ModelConfig, true)
	}
	if err != nil {
		encode(w, statusOf(err), errorResponse{Error: err.Error()})
		return
	}
	encode(w, http.StatusOK, explainResponse{Explanation: strings.TrimSpace(explainPreamble.ReplaceAllString(text, ""))})
}

// contentText returns a JSON string as is and indents objects and arrays.
func contentText(raw json.RawMessage) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return ""
	}
	var text string
	if err := json.Unmarshal(trimmed, &text); err == nil {
		return text
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, trimmed, "", "  "); err != nil {
		return string(trimmed)
	}
	return buf.String()
}

// languageOf reduces a file type to a lower-case extension, "py" when empty.
func languageOf(fileType string) string { return extensionOf(fileType, "py") }

func extensionOf(fileType, fallback string) string {
	ext := strings.ToLower(strings.TrimSpace(fileType))
	if idx := strings.LastIndex(ext, "."); idx != -1 {
		ext = ext[idx+1:]
	}
	if ext == "" {
		return fallback
	}
	return ext
}
