package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/rin1809/fwexec/internal/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand(t *testing.T) {
	testCases := []struct {
		description    string
		osName         string
		ext            string
		expected       []string
		expectDegraded bool
	}{
		{description: "python", osName: platform.Linux, ext: "py", expected: []string{"python3", "/tmp/x"}},
		{description: "bash", osName: platform.MacOS, ext: "sh", expected: []string{"bash", "/tmp/x"}},
		{description: "batch", osName: platform.Windows, ext: "bat", expected: []string{"cmd", "/c", "/tmp/x"}},
		{description: "powershell", osName: platform.Windows, ext: "ps1", expected: []string{"powershell", "-NoProfile", "-ExecutionPolicy", "Bypass", "-File", "/tmp/x"}},
		{description: "shell on windows", osName: platform.Windows, ext: "sh", expected: []string{"cmd", "/c", "/tmp/x"}, expectDegraded: true},
		{description: "batch on linux", osName: platform.Linux, ext: "bat", expected: []string{"bash", "/tmp/x"}, expectDegraded: true},
		{description: "unknown", osName: platform.Linux, ext: "rb", expected: []string{"bash", "/tmp/x"}, expectDegraded: true},
	}
	for _, tc := range testCases {
		actual, degraded := Command(tc.osName, tc.ext, "/tmp/x", "python3")
		assert.Equal(t, tc.expected, actual, tc.description)
		assert.Equal(t, tc.expectDegraded, degraded, tc.description)
	}
}

func requireBash(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix only")
	}
	if _, err := exec.LookPath("bash"); err != nil {
		t.Skip("bash not available")
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_Run(t *testing.T) {
	requireBash(t)
	dir := t.TempDir()
	runner := New()
	runner.TempDir = dir

	actual := runner.Run(context.Background(), "echo hello\necho oops >&2\nexit 3\n", "sh", false)
	assert.Equal(t, "hello\n", actual.Output)
	assert.Equal(t, "oops\n", actual.Error)
	assert.Equal(t, 3, actual.ReturnCode)
	assert.Equal(t, messageCompleted, actual.Message)
	assert.Equal(t, "sh", actual.ExecutedFileType)
	assert.Equal(t, 200, actual.HTTPStatus())
	assertEmptyDir(t, dir)

	actual = runner.Run(context.Background(), "printf 'ok'", "sh", false)
	assert.Equal(t, 0, actual.ReturnCode)
	assert.Equal(t, "ok", actual.Output)
	assert.Equal(t, messageSuccess, actual.Message)
}

func TestRunner_Timeout(t *testing.T) {
	requireBash(t)
	dir := t.TempDir()
	runner := New()
	runner.TempDir = dir
	runner.Timeout = 300 * time.Millisecond

	started := time.Now()
	actual := runner.Run(context.Background(), "sleep 5\n", "sh", false)
	assert.Less(t, time.Since(started), 4*time.Second)
	assert.Equal(t, ErrorTypeTimeout, actual.ErrorType)
	assert.Equal(t, -1, actual.ReturnCode)
	assert.Equal(t, 408, actual.HTTPStatus())
	assertEmptyDir(t, dir)
}

func TestRunner_NotFoundAndAdmin(t *testing.T) {
	testCases := []struct {
		description   string
		osName        string
		admin         bool
		euid          int
		expectWarning bool
	}{
		{description: "runner missing", osName: platform.Linux},
		{description: "sudo missing", osName: platform.Linux, admin: true, euid: 1000, expectWarning: true},
		{description: "already root", osName: platform.Linux, admin: true, euid: 0},
		{description: "windows admin", osName: platform.Windows, admin: true, euid: 1000, expectWarning: true},
	}

	for _, tc := range testCases {
		dir := t.TempDir()
		var looked []string
		runner := New(WithOS(tc.osName), WithEUID(func() int { return tc.euid }), WithLookPath(func(file string) (string, error) {
			looked = append(looked, file)
			return "", errors.New("executable file not found in $PATH")
		}))
		runner.TempDir = dir

		actual := runner.Run(context.Background(), "echo hi", "sh", tc.admin)
		assert.Equal(t, ErrorTypeFileNotFound, actual.ErrorType, tc.description)
		assert.Equal(t, -1, actual.ReturnCode, tc.description)
		assert.Equal(t, 500, actual.HTTPStatus(), tc.description)
		assert.Equal(t, tc.expectWarning, actual.Warning != "", tc.description)
		assert.Equal(t, "echo hi", actual.CodeThatFailed, tc.description)
		assert.NotContains(t, looked, "", tc.description)
		assertEmptyDir(t, dir)
	}
}
