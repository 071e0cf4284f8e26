// Package http exposes the fwexec assistant over a JSON REST API.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/viant/afs"

	"github.com/rin1809/fwexec/genai/prompt"
	"github.com/rin1809/fwexec/genai/redact"
	"github.com/rin1809/fwexec/genai/service/generation"
	"github.com/rin1809/fwexec/genai/tool"
	"github.com/rin1809/fwexec/genai/tool/service/fortigate"
	"github.com/rin1809/fwexec/service/device"
	"github.com/rin1809/fwexec/service/installer"
	"github.com/rin1809/fwexec/service/runner"
)

// Services are the collaborators used by route handlers.
type Services struct {
	Generation  *generation.Service
	Composer    *prompt.Composer
	Executor    *device.Executor
	Snapshotter *device.Snapshotter
	Runner      *runner.Runner
	Installer   *installer.Installer
	// LogFile is the process log location served by /backend_logs.
	LogFile string
	FS      afs.Service
	// MaxIterations caps tool calling turns; zero uses the orchestrator default.
	MaxIterations int
	// EnforceReadOnly restricts the model's device tool to read-only commands.
	EnforceReadOnly bool
	// DeviceCredentials is a scy secret reference applied when a request
	// carries a device without a password.
	DeviceCredentials string
	// ToolPolicy limits the tools the model may call; nil allows all.
	ToolPolicy *tool.Policy
	// ToolTranscript receives every tool call, usually the device session log.
	ToolTranscript io.Writer
}

// Server binds Services to routes.
type Server struct {
	*Services
}

const requestLogLimit = 500

// routePrefixes mounts every route at the root and under /api.
var routePrefixes = []string{"", "/api"}

// New returns the API handler wrapped with recover and CORS middleware.
func New(services *Services) http.Handler {
	if services.FS == nil {
		services.FS = afs.New()
	}
	s := &Server{Services: services}
	mux := http.NewServeMux()
	for _, prefix := range routePrefixes {
		mux.HandleFunc("POST "+prefix+"/generate", s.handleGenerate)
		mux.HandleFunc("POST "+prefix+"/review", s.handleReview)
		mux.HandleFunc("POST "+prefix+"/execute", s.handleExecute)
		mux.HandleFunc("POST "+prefix+"/debug", s.handleDebug)
		mux.HandleFunc("POST "+prefix+"/explain", s.handleExplain)
		mux.HandleFunc("POST "+prefix+"/fortigate_chat", s.handleChat)
		mux.HandleFunc("POST "+prefix+"/install_package", s.handleInstall)
		mux.HandleFunc("GET "+prefix+"/backend_logs", s.handleBackendLogs)
	}
	return WithCORS(WithRecover(mux))
}

// registry builds the closed tool set for one request bound to cfg.
func (s *Server) registry(cfg *device.Config) *tool.Registry {
	ret := tool.NewRegistry()
	ret.SetDebugLogger(s.ToolTranscript)
	fortigate.New(s.Executor, cfg, s.EnforceReadOnly).Register(ret)
	return ret
}

// deviceConfig applies the server side credential reference.
func (s *Server) deviceConfig(cfg *device.Config) *device.Config {
	if cfg == nil || cfg.Password != "" || cfg.Credentials != "" || s.DeviceCredentials == "" {
		return cfg
	}
	ret := *cfg
	ret.Credentials = s.DeviceCredentials
	return &ret
}

type errorResponse struct {
	Error    string      `json:"error"`
	Thoughts interface{} `json:"thoughts,omitempty"`
}

// encode writes data as JSON with statusCode.
func encode(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// decode reads the JSON request body into target, replying 400 on failure.
// The payload is logged with secrets masked.
func decode(w http.ResponseWriter, r *http.Request, target interface{}) bool {
	data, err := io.ReadAll(r.Body)
	if err == nil {
		log.Printf("%s %s: %s", r.Method, r.URL.Path, clip(string(redact.ScrubJSONBytes(data, nil)), requestLogLimit))
		err = json.Unmarshal(data, target)
	}
	if err != nil {
		encode(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

// statusOf maps a generation failure to a response status.
func statusOf(err error) int {
	var genErr *generation.Error
	if errors.As(err, &genErr) {
		return genErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}
