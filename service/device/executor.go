package device

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// NoCommandsMessage is the output of a batch without executable lines.
const NoCommandsMessage = "No valid commands to execute."

// Result is the outcome of one command batch. A zero ReturnCode implies an
// empty Error.
type Result struct {
	Output     string `json:"output"`
	Error      string `json:"error"`
	ReturnCode int    `json:"return_code"`
}

// Session is one open connection to a device.
type Session interface {
	// SendConfigSet applies commands as one configuration transaction and
	// leaves configuration mode.
	SendConfigSet(ctx context.Context, commands []string) (string, error)
	// SendCommand runs one read-only query.
	SendCommand(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens device sessions.
type Dialer interface {
	Dial(ctx context.Context, config *Config, port int) (Session, error)
}

// Executor runs command batches against a device.
type Executor struct {
	dialer Dialer
}

// Execute runs a newline delimited batch using one session for the whole batch.
func (e *Executor) Execute(ctx context.Context, batch string, config *Config) *Result {
	if config == nil {
		return &Result{ReturnCode: ReturnCodePrecondition, Error: "missing FortiGate configuration"}
	}
	if strings.TrimSpace(config.Host) == "" || strings.TrimSpace(config.Username) == "" {
		return &Result{ReturnCode: ReturnCodePrecondition, Error: "missing IP/hostname or username for FortiGate"}
	}
	port, err := config.Port.Number()
	if err != nil {
		return &Result{ReturnCode: ReturnCodePrecondition, Error: err.Error()}
	}
	commands := ParseCommands(batch)
	if len(commands) == 0 {
		return &Result{Output: NoCommandsMessage}
	}

	log.Printf("connecting to FortiGate %s as %s", config.Address(port), config.Username)
	session, err := e.dialer.Dial(ctx, config, port)
	if err != nil {
		return failure(err)
	}
	defer func() {
		if cErr := session.Close(); cErr != nil {
			log.Printf("failed to close FortiGate session: %v", cErr)
		}
	}()

	if ConfigBatch(commands) {
		return e.applyConfig(ctx, session, commands)
	}
	return e.runQueries(ctx, session, commands)
}

func (e *Executor) applyConfig(ctx context.Context, session Session, commands []string) *Result {
	log.Printf("config commands detected, applying %d line(s) as one transaction", len(commands))
	output, err := session.SendConfigSet(ctx, commands)
	if err != nil {
		ret := failure(err)
		ret.Output = output
		return ret
	}
	ret := &Result{Output: output}
	if ConfigFailed(commands, output) {
		ret.Error = output
		ret.ReturnCode = FailureCode(output)
		log.Printf("FortiGate config failed: %s", output)
	}
	return ret
}

func (e *Executor) runQueries(ctx context.Context, session Session, commands []string) *Result {
	ret := &Result{}
	var outputs []string
	var errs strings.Builder
	for _, command := range commands {
		output, err := session.SendCommand(ctx, command)
		if err != nil {
			failed := failure(err)
			failed.Output = strings.Join(outputs, "\n")
			return failed
		}
		outputs = append(outputs, fmt.Sprintf("$ %s\n%s\n", command, output))
		if QueryFailed(output) {
			errs.WriteString(fmt.Sprintf("error running '%s': %s\n", command, output))
			ret.ReturnCode = FailureCode(output)
		}
	}
	ret.Output = strings.Join(outputs, "\n")
	ret.Error = errs.String()
	if ret.ReturnCode != 0 {
		log.Printf("FortiGate query failed: %s", ret.Error)
	}
	return ret
}

// NewExecutor creates an executor.
func NewExecutor(dialer Dialer) *Executor {
	return &Executor{dialer: dialer}
}
