package http

import (
	"net/http"
	"strings"

	"github.com/rin1809/fwexec/genai/orchestrator"
	"github.com/rin1809/fwexec/genai/prompt"
	"github.com/rin1809/fwexec/genai/service/generation"
	"github.com/rin1809/fwexec/service/device"
)

type chatRequest struct {
	Prompt          string                  `json:"prompt"`
	FortigateConfig *device.Config          `json:"fortigate_config"`
	ModelConfig     *generation.ModelConfig `json:"model_config"`
	History         string                  `json:"conversation_history_for_chat_context"`
	ContextCommands []string                `json:"fortigate_selected_context_commands"`
}

type chatResponse struct {
	ChatResponse string                `json:"chat_response"`
	Thoughts     orchestrator.Thoughts `json:"thoughts"`
}

// handleChat answers FortiGate questions. A missing device is tolerated: the
// device tool reports the problem to the model instead.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req := &chatRequest{}
	if !decode(w, r, req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "please enter a request", Thoughts: orchestrator.Thoughts{}})
		return
	}
	ctx := r.Context()
	deviceContext := unavailableContextNote
	if req.FortigateConfig.IsComplete() {
		deviceContext = s.deviceContext(ctx, req.FortigateConfig, req.ContextCommands, unavailableContextNote)
	}
	text, err := s.Composer.Chat(ctx, &prompt.ChatInput{UserInput: req.Prompt, DeviceContext: deviceContext, History: req.History})
	if err != nil {
		encode(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), Thoughts: orchestrator.Thoughts{}})
		return
	}
	var cfg *device.Config
	if !req.FortigateConfig.IsEmpty() {
		cfg = s.deviceConfig(req.FortigateConfig)
	}
	output, status, failure := s.orchestrate(ctx, cfg, req.ModelConfig, &orchestrator.Input{Prompt: text, Mode: orchestrator.ModeChat})
	if failure != nil {
		encode(w, status, failure)
		return
	}
	encode(w, http.StatusOK, chatResponse{ChatResponse: output.Text, Thoughts: output.Thoughts.OrEmpty()})
}
