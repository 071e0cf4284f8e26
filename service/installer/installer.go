// Package installer installs Python packages on the backend host.
package installer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rin1809/fwexec/internal/platform"
)

// DefaultTimeout bounds one pip run.
const DefaultTimeout = 120 * time.Second

// ErrTimeout is returned by a Shell when the command exceeded its budget.
var ErrTimeout = errors.New("command timed out")

var packageSpec = regexp.MustCompile(`^[A-Za-z0-9\-_=.+\[\]\s]+$`)

// ValidPackageSpec reports whether spec is safe to hand to pip.
func ValidPackageSpec(spec string) bool {
	return strings.TrimSpace(spec) != "" && packageSpec.MatchString(spec)
}

// Result is the outcome of one install.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Output      string `json:"output"`
	Error       string `json:"error,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
	status      int
}

// HTTPStatus returns the response status for the result.
func (r *Result) HTTPStatus() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

// Installer runs pip through a Shell.
type Installer struct {
	Python  string
	Timeout time.Duration
	shell   Shell
}

// Install installs spec, a whitespace separated list of pip requirements.
func (i *Installer) Install(ctx context.Context, spec string) *Result {
	if strings.TrimSpace(spec) == "" {
		return &Result{Error: "missing package name", status: http.StatusBadRequest}
	}
	if !ValidPackageSpec(spec) {
		log.Printf("rejected invalid package spec: %q", spec)
		return &Result{Error: fmt.Sprintf("invalid package name: %s", spec), status: http.StatusBadRequest}
	}
	command := i.Command(spec)
	log.Printf("installing package: %s", spec)

	output, status, err := i.shell.Run(ctx, command, i.Timeout)
	if output != "" {
		log.Printf("pip output:\n%s", output)
	}
	switch {
	case errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded):
		return &Result{Error: fmt.Sprintf("timed out installing '%s'", spec), ErrorDetail: "Timeout", status: http.StatusRequestTimeout}
	case err != nil:
		return &Result{Error: fmt.Sprintf("system error while installing: %v", err), ErrorDetail: err.Error(), status: http.StatusInternalServerError}
	case status == 127:
		return &Result{Error: "system error: python or pip not found", Output: output, ErrorDetail: "FileNotFound", status: http.StatusInternalServerError}
	case status != 0:
		detail := strings.TrimSpace(output)
		if detail == "" {
			detail = fmt.Sprintf("pip failed with return code %d", status)
		}
		return &Result{Message: fmt.Sprintf("installing '%s' failed", spec), Output: output, Error: detail, status: http.StatusInternalServerError}
	}
	return &Result{Success: true, Message: fmt.Sprintf("installed '%s'", spec), Output: output}
}

// Command builds the shell command line for spec.
func (i *Installer) Command(spec string) string {
	parts := []string{i.Python, "-m", "pip", "install"}
	for _, token := range strings.Fields(spec) {
		parts = append(parts, "'"+token+"'")
	}
	return strings.Join(parts, " ")
}

// New creates an installer. A nil shell uses LocalShell.
func New(shell Shell, python string) *Installer {
	if shell == nil {
		shell = &LocalShell{Env: map[string]string{"PYTHONIOENCODING": "utf-8"}}
	}
	if python == "" {
		python = "python3"
		if platform.Current() == platform.Windows {
			python = "python"
		}
	}
	return &Installer{Python: python, Timeout: DefaultTimeout, shell: shell}
}
