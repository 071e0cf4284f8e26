package http

import (
	"net/http"
	"strings"

	"github.com/rin1809/fwexec/internal/platform"
	"github.com/rin1809/fwexec/service/device"
)

const (
	deviceSent          = "FortiOS CLI commands sent successfully."
	deviceCompleted     = "FortiOS CLI commands completed (possibly with errors)."
	deviceReportedError = "FortiOS CLI commands completed, but the device appears to have reported an error or warning."
)

type executeRequest struct {
	Code            string         `json:"code"`
	FileType        string         `json:"file_type"`
	RunAsAdmin      bool           `json:"run_as_admin"`
	FortigateConfig *device.Config `json:"fortigate_config"`
}

type executeResponse struct {
	Message          string `json:"message,omitempty"`
	Output           string `json:"output"`
	Error            string `json:"error"`
	ReturnCode       int    `json:"return_code"`
	ExecutedFileType string `json:"executed_file_type,omitempty"`
	CodeThatFailed   string `json:"codeThatFailed"`
	Warning          string `json:"warning,omitempty"`
	ErrorType        string `json:"error_type,omitempty"`
	ErrorDetail      string `json:"error_detail,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	req := &executeRequest{}
	if !decode(w, r, req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		encode(w, http.StatusBadRequest, errorResponse{Error: "no code to execute"})
		return
	}
	if req.FileType == "" {
		req.FileType = "py"
	}
	ext := platform.NormalizeExtension(req.FileType, "py")
	if ext == platform.FortiOS {
		s.executeOnDevice(w, r, req, ext)
		return
	}

	result := s.Runner.Run(r.Context(), req.Code, ext, req.RunAsAdmin)
	if result.ErrorType != "" {
		encode(w, result.HTTPStatus(), executeResponse{
			Error:          result.Message,
			Output:         result.Output,
			ErrorType:      result.ErrorType,
			ErrorDetail:    result.ErrorDetail,
			ReturnCode:     result.ReturnCode,
			Warning:        result.Warning,
			CodeThatFailed: req.Code,
		})
		return
	}
	encode(w, http.StatusOK, result)
}

func (s *Server) executeOnDevice(w http.ResponseWriter, r *http.Request, req *executeRequest, ext string) {
	if !req.FortigateConfig.IsComplete() {
		encode(w, http.StatusBadRequest, executeResponse{
			Message:          "missing FortiGate connection details (IP/host, username); check settings",
			Error:            "missing FortiGate configuration",
			ReturnCode:       -1,
			ExecutedFileType: ext,
			CodeThatFailed:   req.Code,
		})
		return
	}
	result := s.Executor.Execute(r.Context(), req.Code, s.deviceConfig(req.FortigateConfig))
	message := deviceCompleted
	if result.ReturnCode == 0 && result.Error == "" {
		message = deviceSent
	}
	lower := strings.ToLower(result.Output)
	if result.Error != "" || strings.Contains(lower, "command fail") || strings.Contains(lower, "error") {
		message = deviceReportedError
	}
	encode(w, http.StatusOK, executeResponse{
		Message:          message,
		Output:           result.Output,
		Error:            result.Error,
		ReturnCode:       result.ReturnCode,
		ExecutedFileType: ext,
		CodeThatFailed:   req.Code,
	})
}
