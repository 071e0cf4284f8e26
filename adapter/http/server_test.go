package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rin1809/fwexec/genai/credential"
	"github.com/rin1809/fwexec/genai/llm"
	"github.com/rin1809/fwexec/genai/prompt"
	"github.com/rin1809/fwexec/genai/service/generation"
	"github.com/rin1809/fwexec/genai/tool"
	"github.com/rin1809/fwexec/service/device"
	"github.com/rin1809/fwexec/service/installer"
	"github.com/rin1809/fwexec/service/runner"
)

type scriptedModel struct {
	mux       sync.Mutex
	responses []*llm.GenerateResponse
	repeat    *llm.GenerateResponse
	requests  []*llm.GenerateRequest
}

func (m *scriptedModel) Generate(ctx context.Context, request *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.requests = append(m.requests, request)
	if len(m.responses) > 0 {
		resp := m.responses[0]
		m.responses = m.responses[1:]
		return resp, nil
	}
	return m.repeat, nil
}

func finalText(text string) *llm.GenerateResponse {
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, Content: text}, FinishReason: llm.FinishReasonStop}}}
}

func toolCall(command string) *llm.GenerateResponse {
	call := llm.ToolCall{ID: "call-1", Name: "get_fortigate_data", Arguments: map[string]interface{}{"command": command}}
	return &llm.GenerateResponse{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}}}}}
}

type stubSession struct {
	mux      sync.Mutex
	commands []string
}

func (s *stubSession) SendConfigSet(ctx context.Context, commands []string) (string, error) {
	return "config applied", nil
}

func (s *stubSession) SendCommand(ctx context.Context, command string) (string, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.commands = append(s.commands, command)
	return "output of " + command, nil
}

func (s *stubSession) Close() error { return nil }

type stubDialer struct {
	session *stubSession
}

func (d *stubDialer) Dial(ctx context.Context, config *device.Config, port int) (device.Session, error) {
	return d.session, nil
}

type stubShell struct{}

func (s *stubShell) Run(ctx context.Context, command string, timeout time.Duration) (string, int, error) {
	return "Successfully installed", 0, nil
}

type fixture struct {
	handler  http.Handler
	services *Services
	model    *scriptedModel
	session  *stubSession
	logFile  string
}

func newFixture(t *testing.T, defaultKey string) *fixture {
	model := &scriptedModel{}
	session := &stubSession{}
	executor := device.NewExecutor(&stubDialer{session: session})
	dir := t.TempDir()
	services := &Services{
		Generation:      generation.New(credential.New(defaultKey), func(apiKey, name string) llm.Model { return model }, generation.Defaults{}),
		Composer:        prompt.New(nil),
		Executor:        executor,
		Snapshotter:     device.NewSnapshotter(executor, filepath.Join(dir, "snapshots")),
		Runner:          runner.New(),
		Installer:       installer.New(&stubShell{}, "python3"),
		LogFile:         filepath.Join(dir, "fwexec.log"),
		MaxIterations:   5,
		EnforceReadOnly: true,
	}
	return &fixture{handler: New(services), services: services, model: model, session: session, logFile: services.LogFile}
}

func (f *fixture) call(t *testing.T, method, path string, body interface{}) (int, map[string]interface{}) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, reader))
	ret := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret), rec.Body.String())
	return rec.Code, ret
}

var deviceSettings = map[string]interface{}{"ipHost": "10.0.0.1", "username": "admin", "password": "secret", "portSsh": "22"}

func TestServer_Generate(t *testing.T) {
	testCases := []struct {
		description  string
		path         string
		defaultKey   string
		body         map[string]interface{}
		responses    []*llm.GenerateResponse
		expectStatus int
		expect       map[string]interface{}
		expectError  bool
		expectTools  int
	}{
		{
			description:  "python script",
			path:         "/generate",
			defaultKey:   "key",
			body:         map[string]interface{}{"prompt": "write a hello world script", "file_type": "py"},
			responses:    []*llm.GenerateResponse{finalText("```python\nprint(\"hello\")\n```")},
			expectStatus: http.StatusOK,
			expect:       map[string]interface{}{"code": `print("hello")`, "generated_for_type": "py", "thoughts": []interface{}{}},
		},
		{
			description:  "api prefix",
			path:         "/api/generate",
			defaultKey:   "key",
			body:         map[string]interface{}{"prompt": "list files", "file_type": "script.sh", "target_os": "linux"},
			responses:    []*llm.GenerateResponse{finalText("```bash\nls -la\n```")},
			expectStatus: http.StatusOK,
			expect:       map[string]interface{}{"code": "ls -la", "generated_for_type": "sh"},
		},
		{
			description:  "missing prompt",
			path:         "/generate",
			defaultKey:   "key",
			body:         map[string]interface{}{"file_type": "py"},
			expectStatus: http.StatusBadRequest,
			expectError:  true,
		},
		{
			description:  "explanation instead of code",
			path:         "/generate",
			defaultKey:   "key",
			body:         map[string]interface{}{"prompt": "hello", "file_type": "py"},
			responses:    []*llm.GenerateResponse{finalText("Sure, here's some information about greetings and how you might use them.")},
			expectStatus: http.StatusInternalServerError,
			expectError:  true,
		},
		{
			description:  "missing api key",
			path:         "/generate",
			body:         map[string]interface{}{"prompt": "hello", "file_type": "py"},
			expectStatus: http.StatusBadRequest,
			expectError:  true,
		},
		{
			description:  "interactive fortios without device",
			path:         "/generate",
			defaultKey:   "key",
			body:         map[string]interface{}{"prompt": "block telnet", "file_type": "fortios", "target_os": "fortios"},
			expectStatus: http.StatusBadRequest,
			expectError:  true,
		},
		{
			description: "interactive fortios with tool call",
			path:        "/generate",
			defaultKey:  "key",
			body: map[string]interface{}{
				"prompt": "block telnet", "file_type": "fortios", "target_os": "fortios",
				"fortigate_config":                    deviceSettings,
				"fortigate_selected_context_commands": []string{"get system status"},
			},
			responses: []*llm.GenerateResponse{
				toolCall("show firewall policy"),
				finalText("```fortios\nconfig firewall policy\nend\n```"),
			},
			expectStatus: http.StatusOK,
			expect:       map[string]interface{}{"code": "config firewall policy\nend", "generated_for_type": "fortios"},
			expectTools:  2,
		},
	}

	for _, tc := range testCases {
		f := newFixture(t, tc.defaultKey)
		f.model.responses = tc.responses
		status, actual := f.call(t, http.MethodPost, tc.path, tc.body)
		assert.Equal(t, tc.expectStatus, status, tc.description)
		for k, v := range tc.expect {
			assert.EqualValues(t, v, actual[k], tc.description+" "+k)
		}
		if tc.expectError {
			assert.NotEmpty(t, actual["error"], tc.description)
		}
		if tc.expectTools > 0 {
			thoughts, ok := actual["thoughts"].([]interface{})
			require.True(t, ok, tc.description)
			assert.Len(t, thoughts, tc.expectTools, tc.description)
			assert.Equal(t, []string{"get system status", "show firewall policy"}, f.session.commands, tc.description)
		}
	}
}

func TestServer_GenerateIterationCap(t *testing.T) {
	f := newFixture(t, "key")
	f.model.repeat = toolCall("get system status")
	status, actual := f.call(t, http.MethodPost, "/generate", map[string]interface{}{
		"prompt": "show me", "file_type": "fortios", "target_os": "fortios", "fortigate_config": deviceSettings,
	})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Contains(t, actual["error"], "maximum number of tool calls")
	assert.Len(t, actual["thoughts"], 10)
}

func TestServer_Chat(t *testing.T) {
	f := newFixture(t, "key")
	f.model.responses = []*llm.GenerateResponse{
		toolCall("config system global"),
		finalText("[thinking] checking\nThere are 3 policies."),
	}
	status, actual := f.call(t, http.MethodPost, "/fortigate_chat", map[string]interface{}{
		"prompt": "how many policies?", "fortigate_config": deviceSettings,
		"conversation_history_for_chat_context": "earlier question",
	})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "There are 3 policies.", actual["chat_response"])
	thoughts := actual["thoughts"].([]interface{})
	require.Len(t, thoughts, 2)
	result := thoughts[1].(map[string]interface{})
	assert.Equal(t, true, result["is_error"])
	assert.Contains(t, result["result_data"], "refused")

	f = newFixture(t, "key")
	status, actual = f.call(t, http.MethodPost, "/fortigate_chat", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []interface{}{}, actual["thoughts"])
}

func TestServer_Execute(t *testing.T) {
	f := newFixture(t, "key")

	status, actual := f.call(t, http.MethodPost, "/execute", map[string]interface{}{"code": "show system status", "file_type": "fortios"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.EqualValues(t, -1, actual["return_code"])
	assert.Equal(t, "show system status", actual["codeThatFailed"])

	status, actual = f.call(t, http.MethodPost, "/execute", map[string]interface{}{
		"code": "show system status\nget system performance status", "file_type": "fortios", "fortigate_config": deviceSettings,
	})
	assert.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 0, actual["return_code"])
	assert.Equal(t, deviceSent, actual["message"])
	assert.Contains(t, actual["output"], "$ show system status")
	assert.Contains(t, actual["output"], "$ get system performance status")

	status, actual = f.call(t, http.MethodPost, "/execute", map[string]interface{}{"file_type": "py"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.NotEmpty(t, actual["error"])
}

func TestServer_ReviewDebugExplain(t *testing.T) {
	f := newFixture(t, "key")
	f.model.responses = []*llm.GenerateResponse{finalText("Here is the review:\nLooks fine.")}
	status, actual := f.call(t, http.MethodPost, "/review", map[string]interface{}{"code": "print(1)", "file_type": "py"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Looks fine.", actual["review"])

	f.model.responses = []*llm.GenerateResponse{finalText("The requests module is missing.\n```bash\npip install requests\n```\n```python\nimport requests\n```")}
	status, actual = f.call(t, http.MethodPost, "/debug", map[string]interface{}{"code": "import requests", "stderr": "ModuleNotFoundError", "file_type": "py"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "The requests module is missing.", actual["explanation"])
	assert.Equal(t, "import requests", actual["corrected_code"])
	assert.Equal(t, "requests", actual["suggested_package"])
	assert.Equal(t, "py", actual["original_language"])

	f.model.responses = []*llm.GenerateResponse{finalText("Only prose, no code.")}
	status, actual = f.call(t, http.MethodPost, "/debug", map[string]interface{}{"code": "ls", "file_type": "sh"})
	assert.Equal(t, http.StatusOK, status)
	assert.Nil(t, actual["corrected_code"])
	assert.Nil(t, actual["suggested_package"])

	f.model.responses = []*llm.GenerateResponse{finalText("Here is an explanation of the result: it worked.")}
	status, actual = f.call(t, http.MethodPost, "/explain", map[string]interface{}{"content": map[string]interface{}{"output": "ok"}, "context": "execution_result"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "it worked.", actual["explanation"])
	lastPrompt := f.model.requests[len(f.model.requests)-1].Messages[0].Content
	assert.Contains(t, lastPrompt, "\"output\": \"ok\"")

	status, _ = f.call(t, http.MethodPost, "/explain", map[string]interface{}{"context": "code"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_InstallPackage(t *testing.T) {
	f := newFixture(t, "key")
	status, actual := f.call(t, http.MethodPost, "/install_package", map[string]interface{}{"package_name": "requests==2.31.0"})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, actual["success"])

	status, actual = f.call(t, http.MethodPost, "/api/install_package", map[string]interface{}{"package_name": "requests; reboot"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, false, actual["success"])
}

func TestServer_BackendLogs(t *testing.T) {
	f := newFixture(t, "key")
	status, actual := f.call(t, http.MethodGet, "/backend_logs", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, []interface{}{"Log file 'fwexec.log' not found."}, actual["logs"])

	require.NoError(t, os.WriteFile(f.logFile, []byte("a\nb\nc\n"), 0o644))
	testCases := []struct {
		description string
		query       string
		expected    []interface{}
	}{
		{description: "two lines", query: "?lines=2", expected: []interface{}{"b", "c"}},
		{description: "out of range falls back", query: "?lines=9000", expected: []interface{}{"a", "b", "c"}},
		{description: "invalid falls back", query: "?lines=abc", expected: []interface{}{"a", "b", "c"}},
	}
	for _, tc := range testCases {
		status, actual = f.call(t, http.MethodGet, "/api/backend_logs"+tc.query, nil)
		assert.Equal(t, http.StatusOK, status, tc.description)
		assert.Equal(t, tc.expected, actual["logs"], tc.description)
	}
}

func TestServer_ChatToolPolicyAndTranscript(t *testing.T) {
	f := newFixture(t, "key")
	var transcript bytes.Buffer
	f.services.ToolPolicy = tool.NewPolicy(nil, []string{"get_fortigate_data"})
	f.services.ToolTranscript = &transcript
	f.model.responses = []*llm.GenerateResponse{
		toolCall("get system status"),
		finalText("The device could not be queried."),
	}
	status, actual := f.call(t, http.MethodPost, "/fortigate_chat", map[string]interface{}{"prompt": "status?"})
	assert.Equal(t, http.StatusOK, status)
	thoughts := actual["thoughts"].([]interface{})
	require.Len(t, thoughts, 2)
	result := thoughts[1].(map[string]interface{})
	assert.Equal(t, true, result["is_error"])
	assert.Equal(t, "tool 'get_fortigate_data' is not allowed", result["result_data"])
	assert.Empty(t, f.session.commands)
	assert.Contains(t, transcript.String(), "[tool] get_fortigate_data denied by policy")
}
