// Package runner executes generated scripts on the local host.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rin1809/fwexec/internal/platform"
)

// DefaultTimeout bounds one script execution.
const DefaultTimeout = 60 * time.Second

// Error types.
const (
	ErrorTypeTimeout      = "Timeout"
	ErrorTypeFileNotFound = "FileNotFound"
	ErrorTypeException    = "Exception"
)

const (
	messageSuccess   = "Script executed successfully."
	messageCompleted = "Script execution completed (possibly with errors)."
	messageTimeout   = "Script execution exceeded the allowed time."
)

// Result is the outcome of one script run. ReturnCode is the raw process exit
// code, or -1 when ErrorType is set.
type Result struct {
	Message          string `json:"message"`
	Output           string `json:"output"`
	Error            string `json:"error,omitempty"`
	ReturnCode       int    `json:"return_code"`
	ExecutedFileType string `json:"executed_file_type,omitempty"`
	CodeThatFailed   string `json:"codeThatFailed"`
	Warning          string `json:"warning,omitempty"`
	ErrorType        string `json:"error_type,omitempty"`
	ErrorDetail      string `json:"error_detail,omitempty"`
}

// HTTPStatus maps the result to a response status.
func (r *Result) HTTPStatus() int {
	switch r.ErrorType {
	case "":
		return http.StatusOK
	case ErrorTypeTimeout:
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

// Runner writes code to a temporary file and executes it.
type Runner struct {
	Timeout time.Duration
	Python  string
	// TempDir is where scripts are materialised; empty means os.TempDir.
	TempDir  string
	osName   string
	lookPath func(file string) (string, error)
	euid     func() int
}

// Run executes code as a .ext script. With admin set, privilege escalation is
// attempted; when it is not possible the script runs unprivileged and
// Result.Warning explains why.
func (r *Runner) Run(ctx context.Context, code, ext string, admin bool) *Result {
	log.Printf("preparing to execute .%s script (admin: %v)", ext, admin)
	ret := &Result{ExecutedFileType: ext, CodeThatFailed: code}

	path, err := r.materialise(code, ext)
	if err != nil {
		return r.exception(ret, err)
	}
	defer r.remove(path)

	argv, degraded := Command(r.osName, ext, path, r.Python)
	if degraded {
		log.Printf("file type .%s has no runner on %s, trying %s", ext, r.osName, argv[0])
	}
	if admin {
		argv, ret.Warning = r.elevate(argv)
		if ret.Warning != "" {
			log.Printf("%s", ret.Warning)
		}
	}
	binary, err := r.lookPath(argv[0])
	if err != nil {
		ret.ErrorType = ErrorTypeFileNotFound
		ret.Message = fmt.Sprintf("system error: command '%s' not found to run .%s file", argv[0], ext)
		ret.ErrorDetail = fmt.Sprintf("FileNotFoundError: %v", err)
		ret.ReturnCode = -1
		log.Printf("%s", ret.Message)
		return ret
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary, argv[1:]...)
	cmd.Env = append(os.Environ(), "PYTHONIOENCODING=utf-8")
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	log.Printf("running: %s", strings.Join(argv, " "))
	err = cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		ret.ErrorType = ErrorTypeTimeout
		ret.Message = messageTimeout
		ret.ErrorDetail = "Timeout"
		ret.ReturnCode = -1
		log.Printf("script execution timed out after %s", r.Timeout)
		return ret
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return r.exception(ret, err)
	}

	ret.Output = strings.ToValidUTF8(stdout.String(), "�")
	ret.Error = strings.ToValidUTF8(stderr.String(), "�")
	ret.ReturnCode = cmd.ProcessState.ExitCode()
	ret.Message = messageSuccess
	if ret.ReturnCode != 0 {
		ret.Message = messageCompleted
	}
	log.Printf("script finished with return code %d", ret.ReturnCode)
	return ret
}

func (r *Runner) materialise(code, ext string) (string, error) {
	file, err := os.CreateTemp(r.TempDir, "fwexec-*."+ext)
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	path := file.Name()
	if _, err = file.WriteString(code); err != nil {
		_ = file.Close()
		r.remove(path)
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err = file.Close(); err != nil {
		r.remove(path)
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if needsExecBit(r.osName, ext) {
		if info, err := os.Stat(path); err == nil {
			if err = os.Chmod(path, info.Mode()|0111); err != nil {
				log.Printf("failed to chmod +x %s: %v", path, err)
			}
		}
	}
	return path, nil
}

func (r *Runner) elevate(argv []string) ([]string, string) {
	switch r.osName {
	case platform.Windows:
		return argv, "administrator rights were requested but cannot be acquired by the backend; running unprivileged"
	case platform.Linux, platform.MacOS:
		if r.euid() == 0 {
			return argv, ""
		}
		if _, err := r.lookPath("sudo"); err != nil {
			return argv, "root was requested but 'sudo' was not found; running unprivileged"
		}
		return append([]string{"sudo"}, argv...), ""
	}
	return argv, fmt.Sprintf("admin/root is not supported on %s; running unprivileged", r.osName)
}

func (r *Runner) exception(ret *Result, err error) *Result {
	ret.ErrorType = ErrorTypeException
	ret.Message = fmt.Sprintf("system error while executing file: %v", err)
	ret.ErrorDetail = err.Error()
	ret.ReturnCode = -1
	log.Printf("%s", ret.Message)
	return ret
}

func (r *Runner) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove temp file %s: %v", path, err)
	}
}

// Option customises a Runner.
type Option func(r *Runner)

// WithOS overrides the detected host OS tag.
func WithOS(osName string) Option {
	return func(r *Runner) { r.osName = osName }
}

// WithLookPath overrides executable resolution.
func WithLookPath(fn func(file string) (string, error)) Option {
	return func(r *Runner) { r.lookPath = fn }
}

// WithEUID overrides the effective user id lookup.
func WithEUID(fn func() int) Option {
	return func(r *Runner) { r.euid = fn }
}

// New creates a runner for the current host.
func New(options ...Option) *Runner {
	ret := &Runner{
		Timeout:  DefaultTimeout,
		osName:   platform.Current(),
		lookPath: exec.LookPath,
		euid:     os.Geteuid,
	}
	for _, option := range options {
		option(ret)
	}
	if ret.Python == "" {
		ret.Python = DefaultPython(ret.osName)
	}
	return ret
}
