package device

import (
	"regexp"
	"strconv"
	"strings"
)

var configVerbs = []string{"config ", "edit ", "set ", "unset ", "append ", "delete "}

// configFailureMarkers are matched case-insensitively against the output of a
// configuration transaction.
var configFailureMarkers = []string{"command fail", "error", "invalid"}

// queryFailureMarkers are matched case-insensitively against each query output.
var queryFailureMarkers = []string{"command fail", "command_cli_error", "unknown action", "invalid input"}

var returnCodeExpr = regexp.MustCompile(`Return code (-?\d+)`)

// ParseCommands splits a batch into trimmed, non-empty, non-comment lines.
func ParseCommands(batch string) []string {
	var result []string
	for _, line := range strings.Split(batch, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		result = append(result, line)
	}
	return result
}

// ConfigBatch reports whether any command mutates device configuration.
func ConfigBatch(commands []string) bool {
	for _, command := range commands {
		if IsConfigCommand(command) {
			return true
		}
	}
	return false
}

// IsConfigCommand reports whether command starts with a configuration verb.
func IsConfigCommand(command string) bool {
	command = strings.TrimSpace(command)
	for _, verb := range configVerbs {
		if strings.HasPrefix(command, verb) {
			return true
		}
	}
	return false
}

// ConfigFailed reports whether a configuration transaction output signals a
// failure. Output that merely echoes a single command is not a failure.
func ConfigFailed(commands []string, output string) bool {
	if !containsMarker(output, configFailureMarkers) {
		return false
	}
	return !(len(commands) == 1 && strings.TrimSpace(commands[0]) == strings.TrimSpace(output))
}

// QueryFailed reports whether a single query output signals a failure.
func QueryFailed(output string) bool {
	return containsMarker(output, queryFailureMarkers)
}

// FailureCode returns the embedded non-zero "Return code N" value, 1 otherwise.
func FailureCode(output string) int {
	if match := returnCodeExpr.FindStringSubmatch(output); len(match) == 2 {
		if code, err := strconv.Atoi(match[1]); err == nil && code != 0 {
			return code
		}
	}
	return 1
}

func containsMarker(output string, markers []string) bool {
	lower := strings.ToLower(output)
	for _, marker := range markers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// closeConfigBlocks appends the "end" lines needed to leave every open
// config block.
func closeConfigBlocks(commands []string) []string {
	depth := 0
	for _, command := range commands {
		switch {
		case strings.HasPrefix(command, "config "):
			depth++
		case command == "end":
			if depth > 0 {
				depth--
			}
		}
	}
	result := append([]string(nil), commands...)
	for ; depth > 0; depth-- {
		result = append(result, "end")
	}
	return result
}
