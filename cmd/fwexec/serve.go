package fwexec

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/gops/agent"

	fwhttp "github.com/rin1809/fwexec/adapter/http"
	"github.com/rin1809/fwexec/genai/credential"
	"github.com/rin1809/fwexec/genai/llm"
	"github.com/rin1809/fwexec/genai/llm/provider/vertexai/gemini"
	"github.com/rin1809/fwexec/genai/prompt"
	"github.com/rin1809/fwexec/genai/service/generation"
	"github.com/rin1809/fwexec/genai/tool"
	"github.com/rin1809/fwexec/genai/usage"
	"github.com/rin1809/fwexec/internal/config"
	flog "github.com/rin1809/fwexec/internal/log"
	"github.com/rin1809/fwexec/service/device"
	"github.com/rin1809/fwexec/service/installer"
	"github.com/rin1809/fwexec/service/runner"
)

const shutdownTimeout = 5 * time.Second

// ServeCmd starts the HTTP server.
// Usage: fwexec serve --addr :5001
type ServeCmd struct {
	Addr        string `short:"a" long:"addr" description:"listen address, overrides config"`
	Config      string `short:"f" long:"config" description:"config YAML path or URL"`
	Diagnostics bool   `long:"diagnostics" description:"start a gops diagnostics agent"`
}

func (s *ServeCmd) Execute(_ []string) error {
	ctx := context.Background()
	cfg, err := config.Load(ctx, s.Config)
	if err != nil {
		return err
	}
	if s.Addr != "" {
		cfg.Addr = s.Addr
	}
	logs, err := flog.Setup(&cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	if s.Diagnostics {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Printf("failed to start diagnostics agent: %v", err)
		}
		defer agent.Close()
	}

	tokens := &usage.Aggregator{}
	services := newServices(cfg, logs, tokens)
	defer func() {
		if summary := tokens.Summary(); summary != "" {
			log.Printf("token usage: %s", summary)
		}
	}()
	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: fwhttp.New(services),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("fwexec HTTP server listening on %s", cfg.Addr)
		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("received %s, initiating graceful shutdown", sig)
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newServices wires the collaborators used by route handlers.
func newServices(cfg *config.Config, logs *flog.Logs, tokens *usage.Aggregator) *fwhttp.Services {
	if cfg.Model.APIKey == "" {
		log.Printf("warning: %s is not set; requests must carry model_config.api_key", config.EnvAPIKey)
	}
	store := credential.New(cfg.Model.APIKey)
	generationService := generation.New(store, modelFactory(cfg.Model.BaseURL, tokens), generation.Defaults{
		Model:       cfg.Model.Name,
		Temperature: cfg.Model.Temperature,
		TopP:        cfg.Model.TopP,
		TopK:        cfg.Model.TopK,
		Safety:      cfg.Model.Safety,
	})

	executor := device.NewExecutor(newDialer(cfg, logs))
	scriptRunner := runner.New()
	scriptRunner.Timeout = config.Seconds(cfg.Runner.TimeoutSec)
	if cfg.Runner.Python != "" {
		scriptRunner.Python = cfg.Runner.Python
	}
	scriptRunner.TempDir = cfg.Runner.TempDir
	pip := installer.New(nil, cfg.Installer.Python)
	pip.Timeout = config.Seconds(cfg.Installer.TimeoutSec)

	return &fwhttp.Services{
		Generation:        generationService,
		Composer:          prompt.New(prompt.NewSource(nil, cfg.Prompt.DataDir)),
		Executor:          executor,
		Snapshotter:       device.NewSnapshotter(executor, cfg.Device.SnapshotDir),
		Runner:            scriptRunner,
		Installer:         pip,
		LogFile:           cfg.Log.File,
		MaxIterations:     cfg.Orchestrator.MaxIterations,
		EnforceReadOnly:   *cfg.Device.EnforceReadOnly,
		DeviceCredentials: cfg.Device.Credentials,
		ToolPolicy:        tool.NewPolicy(cfg.Tools.Allow, cfg.Tools.Block),
		ToolTranscript:    transcript(logs),
	}
}

// transcript is the device session log, nil without logs.
func transcript(logs *flog.Logs) io.Writer {
	if logs == nil {
		return nil
	}
	return logs.Session()
}

func newDialer(cfg *config.Config, logs *flog.Logs) *device.SSHDialer {
	ret := device.NewSSHDialer(transcript(logs))
	ret.ConnTimeout = config.Seconds(cfg.Device.ConnTimeoutSec)
	ret.CommandTimeout = config.Seconds(cfg.Device.CommandTimeoutSec)
	return ret
}

// modelFactory binds Gemini clients to per-request keys and records token usage.
func modelFactory(baseURL string, tokens *usage.Aggregator) generation.ModelFactory {
	listener := func(model string, u *llm.Usage) {
		log.Printf("model %s usage: prompt=%d completion=%d total=%d", model, u.PromptTokens, u.CompletionTokens, u.TotalTokens)
		tokens.OnUsage(model, u)
	}
	return func(apiKey, model string) llm.Model {
		options := []gemini.ClientOption{gemini.WithUsageListener(listener)}
		if baseURL != "" {
			options = append(options, gemini.WithBaseURL(baseURL))
		}
		return gemini.NewClient(apiKey, model, options...)
	}
}

func describe(cfg *device.Config) string {
	port, _ := cfg.Port.Number()
	return fmt.Sprintf("%s@%s", cfg.Username, cfg.Address(port))
}
