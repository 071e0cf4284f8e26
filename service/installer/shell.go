package installer

import (
	"context"
	"fmt"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// Shell runs one command line and returns its combined output and exit status.
type Shell interface {
	Run(ctx context.Context, command string, timeout time.Duration) (output string, status int, err error)
}

// LocalShell runs commands in a fresh gosh local shell.
type LocalShell struct {
	Env map[string]string
}

// Run implements Shell.
func (s *LocalShell) Run(ctx context.Context, command string, timeout time.Duration) (string, int, error) {
	var options []runner.Option
	if len(s.Env) > 0 {
		options = append(options, runner.WithEnvironment(s.Env))
	}
	service, err := gosh.New(ctx, local.New(options...))
	if err != nil {
		return "", 0, fmt.Errorf("failed to start local shell: %w", err)
	}
	defer func() { _ = service.Close() }()

	started := time.Now()
	output, status, err := service.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	if elapsed := time.Since(started); elapsed > timeout {
		return output, status, fmt.Errorf("%w after %s", ErrTimeout, elapsed)
	}
	return output, status, err
}
