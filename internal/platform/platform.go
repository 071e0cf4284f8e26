// Package platform maps runtime and file-type identifiers to the canonical
// names used in prompts and execution.
package platform

import (
	"runtime"
	"strings"
)

const (
	Windows = "windows"
	MacOS   = "macos"
	Linux   = "linux"
	FortiOS = "fortios"
)

// OSName maps a GOOS style identifier to a canonical OS tag.
func OSName(goos string) string {
	switch strings.ToLower(goos) {
	case "windows":
		return Windows
	case "darwin":
		return MacOS
	}
	return Linux
}

// Current returns the canonical OS tag of the running process.
func Current() string { return OSName(runtime.GOOS) }

var languageNames = map[string]string{
	"py":      "Python",
	"sh":      "Shell Script (Bash)",
	"bat":     "Batch Script",
	"ps1":     "PowerShell",
	"js":      "JavaScript",
	"ts":      "TypeScript",
	"html":    "HTML",
	"css":     "CSS",
	"json":    "JSON",
	"yaml":    "YAML",
	"sql":     "SQL",
	"fortios": "FortiOS CLI",
	"conf":    "Config File (FortiOS)",
}

// LanguageName returns a human readable label for a file extension.
func LanguageName(ext string) string {
	if ext == "" {
		return "code"
	}
	ext = strings.ToLower(ext)
	if name, ok := languageNames[ext]; ok {
		return name
	}
	return "file ." + ext
}

// NormalizeExtension reduces a file type ("script.SH", "PY") to a lower-case
// extension. Values that are neither alphanumeric nor "fortios" yield fallback.
func NormalizeExtension(fileType, fallback string) string {
	ext := strings.ToLower(strings.TrimSpace(fileType))
	if idx := strings.LastIndex(ext, "."); idx != -1 {
		ext = ext[idx+1:]
	}
	if ext == "" || !(isAlnum(ext) || ext == FortiOS) {
		return fallback
	}
	return ext
}

// IsDeviceCLIHint reports whether free text refers to a FortiGate device.
func IsDeviceCLIHint(text string) bool {
	lower := strings.ToLower(text)
	return strings.Contains(lower, "fortigate") || strings.Contains(lower, FortiOS)
}

func isAlnum(s string) bool {
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
