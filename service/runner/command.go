package runner

import (
	"github.com/rin1809/fwexec/internal/platform"
)

// Command returns the argv used to run path for ext on osName. degraded is
// set when no entry matched and the generic host runner is used.
func Command(osName, ext, path, python string) (argv []string, degraded bool) {
	switch ext {
	case "py":
		return []string{python, path}, false
	case "bat":
		if osName == platform.Windows {
			return []string{"cmd", "/c", path}, false
		}
	case "ps1":
		if osName == platform.Windows {
			return []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", path}, false
		}
	case "sh":
		if osName == platform.Linux || osName == platform.MacOS {
			return []string{"bash", path}, false
		}
	}
	if osName == platform.Windows {
		return []string{"cmd", "/c", path}, true
	}
	return []string{"bash", path}, true
}

// needsExecBit reports whether the temp file gets an execute bit.
func needsExecBit(osName, ext string) bool {
	return (osName == platform.Linux || osName == platform.MacOS) && (ext == "sh" || ext == "py")
}

// DefaultPython returns the interpreter name for osName.
func DefaultPython(osName string) string {
	if osName == platform.Windows {
		return "python"
	}
	return "python3"
}
