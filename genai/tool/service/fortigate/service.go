// Package fortigate exposes read-only FortiGate queries as a model tool.
package fortigate

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/rin1809/fwexec/genai/llm"
	"github.com/rin1809/fwexec/genai/tool"
	"github.com/rin1809/fwexec/service/device"
)

// Name is the tool name exposed to the model.
const Name = "get_fortigate_data"

const emptyOutput = "(command returned no output)"

// ReadOnlyPrefixes lists the command prefixes the tool accepts.
var ReadOnlyPrefixes = []string{
	"show",
	"get",
	"diagnose",
	"diag",
	"execute log",
	"execute ping",
	"execute traceroute",
	"execute ping-options",
}

// Executor runs a device command batch.
type Executor interface {
	Execute(ctx context.Context, batch string, config *device.Config) *device.Result
}

// Input is the tool argument schema.
type Input struct {
	Command string `json:"command"`
}

// Service runs one read-only command per tool call.
type Service struct {
	executor Executor
	config   *device.Config
	// Enforce rejects commands outside ReadOnlyPrefixes.
	Enforce bool
}

// Definition returns the tool definition.
func Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        Name,
		Description: "Run one read-only FortiOS CLI command (show, get, diagnose, execute log ...) on the connected FortiGate and return its output.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "A single FortiOS CLI query, e.g. 'get system status' or 'show firewall policy'.",
				},
			},
			"required": []string{"command"},
		},
		Required: []string{"command"},
	}
}

// Register adds the tool to registry.
func (s *Service) Register(registry *tool.Registry) {
	registry.Register(Definition(), tool.Typed(s.Query))
}

// Query runs input.Command. Device failures are returned as an
// [EXECUTION ERROR] marker so the model can correct itself.
func (s *Service) Query(ctx context.Context, input *Input) (string, error) {
	command := strings.TrimSpace(input.Command)
	if command == "" {
		return "", fmt.Errorf("missing 'command' argument for %s", Name)
	}
	if s.config.IsEmpty() {
		return "", fmt.Errorf("[EXECUTION ERROR]: FortiGate connection is not configured; cannot run '%s'", command)
	}
	if s.Enforce && !IsReadOnly(command) {
		log.Printf("refused non read-only tool command: %s", command)
		return "", fmt.Errorf("[EXECUTION ERROR]: command '%s' refused. Details: only read-only commands (%s) are allowed through %s. Output: ",
			command, strings.Join(ReadOnlyPrefixes, ", "), Name)
	}
	log.Printf("tool %s running: %s", Name, command)
	result := s.executor.Execute(ctx, command, s.config)
	if result.Error != "" || result.ReturnCode != device.ReturnCodeOK {
		return "", fmt.Errorf("[EXECUTION ERROR]: command '%s' failed. Details: %s. Output: %s", command, strings.TrimSpace(result.Error), result.Output)
	}
	if strings.TrimSpace(result.Output) == "" {
		return emptyOutput, nil
	}
	return result.Output, nil
}

// IsReadOnly reports whether every line of command starts with an allowed prefix.
func IsReadOnly(command string) bool {
	lines := device.ParseCommands(command)
	if len(lines) == 0 {
		return false
	}
	for _, line := range lines {
		if !hasReadOnlyPrefix(strings.ToLower(line)) {
			return false
		}
	}
	return true
}

func hasReadOnlyPrefix(line string) bool {
	for _, prefix := range ReadOnlyPrefixes {
		if line == prefix || strings.HasPrefix(line, prefix+" ") {
			return true
		}
	}
	return false
}

// New creates the tool bound to one device configuration.
func New(executor Executor, config *device.Config, enforce bool) *Service {
	return &Service{executor: executor, config: config, Enforce: enforce}
}
