package http

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	flog "github.com/rin1809/fwexec/internal/log"
)

const (
	defaultLogLines = 50
	maxLogLines     = 500
)

type logsResponse struct {
	Logs  []string `json:"logs"`
	Error string   `json:"error,omitempty"`
}

func (s *Server) handleBackendLogs(w http.ResponseWriter, r *http.Request) {
	lines, err := strconv.Atoi(r.URL.Query().Get("lines"))
	if err != nil || lines <= 0 || lines > maxLogLines {
		lines = defaultLogLines
	}
	logs, err := flog.Tail(r.Context(), s.FS, s.LogFile, lines)
	switch {
	case errors.Is(err, flog.ErrNotFound):
		log.Printf("backend log file not found at %s", s.LogFile)
		encode(w, http.StatusNotFound, logsResponse{Logs: []string{fmt.Sprintf("Log file '%s' not found.", filepath.Base(s.LogFile))}, Error: "Log file not found"})
	case err != nil:
		encode(w, http.StatusInternalServerError, logsResponse{Logs: []string{fmt.Sprintf("Error reading log file: %v", err)}, Error: err.Error()})
	default:
		encode(w, http.StatusOK, logsResponse{Logs: logs})
	}
}
