package http

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/rin1809/fwexec/genai/codeblock"
	"github.com/rin1809/fwexec/genai/orchestrator"
	"github.com/rin1809/fwexec/genai/prompt"
	"github.com/rin1809/fwexec/genai/service/generation"
	"github.com/rin1809/fwexec/genai/tool"
	"github.com/rin1809/fwexec/internal/platform"
	"github.com/rin1809/fwexec/service/device"
)

const (
	missingDeviceForGenerate = "missing FortiGate IP/host or username in settings; the assistant cannot fetch the data needed to build accurate commands"
	missingContextNote       = "Note: FortiGate context could not be fetched automatically because connection details (IP/host, username) are missing in settings."
	unavailableContextNote   = "FortiGate context could not be fetched because the configuration is missing or the connection failed."
)

var dangerousKeywords = []string{"rm ", "del ", "format ", "shutdown ", "reboot ", ":(){:|:&};:", "dd if=/dev/zero", "mkfs", "execute formatlogdisk"}

type generateRequest struct {
	Prompt          string                  `json:"prompt"`
	TargetOS        string                  `json:"target_os"`
	FileType        string                  `json:"file_type"`
	ModelConfig     *generation.ModelConfig `json:"model_config"`
	FortigateConfig *device.Config          `json:"fortigate_config"`
	ContextCommands []string                `json:"fortigate_selected_context_commands"`
}

type generateResponse struct {
	Code             string                `json:"code"`
	GeneratedForType string                `json:"generated_for_type"`
	Thoughts         orchestrator.Thoughts `json:"thoughts"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	req := &generateRequest{}
	if !decode(w, r, req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "please enter a request", Thoughts: orchestrator.Thoughts{}})
		return
	}
	if req.FileType == "" {
		req.FileType = "py"
	}
	backendOS := platform.Current()
	targetOS := resolveTargetOS(req.TargetOS, backendOS)
	ext := platform.NormalizeExtension(req.FileType, "py")

	if targetOS == platform.FortiOS && (ext == platform.FortiOS || strings.Contains(strings.ToLower(req.FileType), platform.FortiOS)) {
		s.generateInteractive(r.Context(), w, req, backendOS)
		return
	}

	var deviceContext string
	if targetOS == platform.FortiOS || platform.IsDeviceCLIHint(req.Prompt) || ext == platform.FortiOS {
		deviceContext = s.deviceContext(r.Context(), req.FortigateConfig, req.ContextCommands, missingContextNote)
	}
	text, err := s.Composer.Generate(r.Context(), &prompt.GenerateInput{
		UserInput:     req.Prompt,
		BackendOS:     backendOS,
		TargetOS:      targetOS,
		FileType:      req.FileType,
		DeviceContext: deviceContext,
	})
	if err != nil {
		encode(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Thoughts: orchestrator.Thoughts{}})
		return
	}
	raw, err := s.Generation.Generate(r.Context(), text, req.ModelConfig, false)
	if err != nil {
		encode(w, statusOf(err), errorResponse{Error: err.Error(), Thoughts: orchestrator.Thoughts{}})
		return
	}

	extractExt := ext
	if targetOS == platform.FortiOS && isDeviceFileExt(ext) {
		extractExt = platform.FortiOS
	}
	match := codeblock.ExtractMatch(raw, extractExt, req.Prompt)
	if strings.TrimSpace(match.Code) == "" || match.Tier == codeblock.TierDirect || match.Tier == codeblock.TierRaw {
		log.Printf("model returned no valid code block: %s", clip(raw, 200))
		encode(w, http.StatusInternalServerError, errorResponse{Error: fmt.Sprintf("the model did not return a valid code block. Response: '%s...'", clip(raw, 50)), Thoughts: orchestrator.Thoughts{}})
		return
	}
	if found := detectDangerous(match.Code); len(found) > 0 {
		log.Printf("warning: generated code contains dangerous keywords: %v", found)
	}
	encode(w, http.StatusOK, generateResponse{Code: match.Code, GeneratedForType: extractExt, Thoughts: orchestrator.Thoughts{}})
}

// generateInteractive lets the model query the device through the tool loop
// before producing FortiOS commands.
func (s *Server) generateInteractive(ctx context.Context, w http.ResponseWriter, req *generateRequest, backendOS string) {
	log.Printf("generate: interactive FortiOS mode")
	if !req.FortigateConfig.IsComplete() {
		encode(w, http.StatusBadRequest, errorResponse{Error: missingDeviceForGenerate, Thoughts: orchestrator.Thoughts{}})
		return
	}
	cfg := s.deviceConfig(req.FortigateConfig)
	snapshot := s.Snapshotter.Snapshot(ctx, cfg, req.ContextCommands)
	text, err := s.Composer.Generate(ctx, &prompt.GenerateInput{
		UserInput:     req.Prompt,
		BackendOS:     backendOS,
		TargetOS:      platform.FortiOS,
		FileType:      req.FileType,
		DeviceContext: snapshot.Text,
	})
	if err == nil {
		text, err = s.Composer.WithTools(ctx, text)
	}
	if err != nil {
		encode(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Thoughts: orchestrator.Thoughts{}})
		return
	}
	output, status, failure := s.orchestrate(ctx, cfg, req.ModelConfig, &orchestrator.Input{
		Prompt:    text,
		Mode:      orchestrator.ModeGenerate,
		Extension: platform.FortiOS,
		Hint:      req.Prompt,
	})
	if failure != nil {
		encode(w, status, failure)
		return
	}
	encode(w, http.StatusOK, generateResponse{Code: output.Text, GeneratedForType: platform.FortiOS, Thoughts: output.Thoughts.OrEmpty()})
}

// orchestrate resolves generation settings once and runs the tool loop. On
// failure it returns the status and an errorResponse carrying the thoughts.
func (s *Server) orchestrate(ctx context.Context, cfg *device.Config, modelConfig *generation.ModelConfig, input *orchestrator.Input) (*orchestrator.Output, int, *errorResponse) {
	resolved, err := s.Generation.Resolve(modelConfig)
	if err != nil {
		return nil, statusOf(err), &errorResponse{Error: err.Error(), Thoughts: orchestrator.Thoughts{}}
	}
	input.Options = resolved.Options
	ctx = tool.WithPolicy(ctx, s.ToolPolicy)
	loop := orchestrator.New(s.Generation.Model(resolved), s.registry(cfg), orchestrator.WithMaxIterations(s.MaxIterations))
	output, err := loop.Run(ctx, input)
	if err == nil {
		return output, http.StatusOK, nil
	}
	status := http.StatusInternalServerError
	var thoughts orchestrator.Thoughts
	var loopErr *orchestrator.LoopError
	if errors.As(err, &loopErr) {
		thoughts = loopErr.Thoughts
		if loopErr.Err != nil {
			classified := generation.Classify(loopErr.Err, resolved.Options.Model)
			status = classified.HTTPStatus()
			err = classified
		}
	}
	log.Printf("orchestration failed: %v", err)
	return nil, status, &errorResponse{Error: err.Error(), Thoughts: thoughts.OrEmpty()}
}

// deviceContext fetches a snapshot, or returns missingNote when cfg lacks a host or user.
func (s *Server) deviceContext(ctx context.Context, cfg *device.Config, commands []string, missingNote string) string {
	if !cfg.IsComplete() {
		log.Printf("device context skipped: missing connection details")
		return missingNote
	}
	return s.Snapshotter.Snapshot(ctx, s.deviceConfig(cfg), commands).Text
}

func resolveTargetOS(requested, backendOS string) string {
	switch strings.ToLower(strings.TrimSpace(requested)) {
	case platform.FortiOS:
		return platform.FortiOS
	case "", "auto":
		return backendOS
	}
	return requested
}

func isDeviceFileExt(ext string) bool {
	switch ext {
	case "txt", "conf", "cli", "log", platform.FortiOS:
		return true
	}
	return false
}

func detectDangerous(code string) []string {
	lower := strings.ToLower(code)
	var ret []string
	for _, keyword := range dangerousKeywords {
		if strings.Contains(lower, keyword) {
			ret = append(ret, keyword)
		}
	}
	return ret
}

func clip(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return string(runes[:n])
}
