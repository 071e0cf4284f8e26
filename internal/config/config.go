// Package config loads fwexec settings from YAML, .env and the environment.
package config

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/viant/afs"
	"gopkg.in/yaml.v3"

	flog "github.com/rin1809/fwexec/internal/log"
)

// Environment variables.
const (
	EnvAPIKey = "GOOGLE_API_KEY"
	EnvAddr   = "FWEXEC_ADDR"
)

// DefaultAddr is the HTTP listen address.
const DefaultAddr = ":5001"

type (
	// Config is the server configuration.
	Config struct {
		Addr         string       `yaml:"addr,omitempty"`
		Log          flog.Config  `yaml:"log,omitempty"`
		Model        Model        `yaml:"model,omitempty"`
		Orchestrator Orchestrator `yaml:"orchestrator,omitempty"`
		Runner       Runner       `yaml:"runner,omitempty"`
		Installer    Installer    `yaml:"installer,omitempty"`
		Device       Device       `yaml:"device,omitempty"`
		Tools        Tools        `yaml:"tools,omitempty"`
		Prompt       Prompt       `yaml:"prompt,omitempty"`
	}

	// Model holds generation defaults. APIKey is normally taken from the environment.
	Model struct {
		APIKey string `yaml:"apiKey,omitempty"`
		Name   string `yaml:"name,omitempty"`
		// Temperature is a pointer so that an explicit 0 is kept.
		Temperature *float64 `yaml:"temperature,omitempty"`
		TopP        float64  `yaml:"topP,omitempty"`
		TopK        int      `yaml:"topK,omitempty"`
		Safety      string   `yaml:"safety,omitempty"`
		BaseURL     string   `yaml:"baseURL,omitempty"`
	}

	Orchestrator struct {
		MaxIterations int `yaml:"maxIterations,omitempty"`
	}

	Runner struct {
		TimeoutSec int    `yaml:"timeoutSec,omitempty"`
		Python     string `yaml:"python,omitempty"`
		TempDir    string `yaml:"tempDir,omitempty"`
	}

	Installer struct {
		TimeoutSec int    `yaml:"timeoutSec,omitempty"`
		Python     string `yaml:"python,omitempty"`
	}

	// Device configures FortiGate access.
	Device struct {
		ConnTimeoutSec    int    `yaml:"connTimeoutSec,omitempty"`
		CommandTimeoutSec int    `yaml:"commandTimeoutSec,omitempty"`
		SnapshotDir       string `yaml:"snapshotDir,omitempty"`
		// Credentials is a scy secret reference used when a request carries no password.
		Credentials string `yaml:"credentials,omitempty"`
		// EnforceReadOnly restricts the model's device tool to read-only commands.
		EnforceReadOnly *bool `yaml:"enforceReadOnly,omitempty"`
	}

	// Tools limits the tools the model may call; block wins over allow.
	Tools struct {
		Allow []string `yaml:"allow,omitempty"`
		Block []string `yaml:"block,omitempty"`
	}

	Prompt struct {
		DataDir string `yaml:"dataDir,omitempty"`
	}
)

// Init fills defaults.
func (c *Config) Init() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	c.Log.Init()
	if c.Model.Name == "" {
		c.Model.Name = "gemini-1.5-flash"
	}
	if c.Model.Temperature == nil {
		temperature := 0.7
		c.Model.Temperature = &temperature
	}
	if c.Model.TopP == 0 {
		c.Model.TopP = 0.95
	}
	if c.Model.TopK == 0 {
		c.Model.TopK = 40
	}
	if c.Model.Safety == "" {
		c.Model.Safety = "BLOCK_MEDIUM_AND_ABOVE"
	}
	if c.Orchestrator.MaxIterations == 0 {
		c.Orchestrator.MaxIterations = 500
	}
	if c.Runner.TimeoutSec == 0 {
		c.Runner.TimeoutSec = 60
	}
	if c.Installer.TimeoutSec == 0 {
		c.Installer.TimeoutSec = 120
	}
	if c.Device.ConnTimeoutSec == 0 {
		c.Device.ConnTimeoutSec = 30
	}
	if c.Device.CommandTimeoutSec == 0 {
		c.Device.CommandTimeoutSec = 60
	}
	if c.Device.SnapshotDir == "" {
		c.Device.SnapshotDir = "logs"
	}
	if c.Device.EnforceReadOnly == nil {
		enforce := true
		c.Device.EnforceReadOnly = &enforce
	}
}

// Seconds converts a seconds setting to a duration.
func Seconds(v int) time.Duration { return time.Duration(v) * time.Second }

// Load reads the optional .env file and the YAML config at location (any afs
// URL, empty for defaults), then applies environment overrides.
func Load(ctx context.Context, location string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}
	ret := &Config{}
	if location != "" {
		data, err := afs.New().DownloadWithURL(ctx, location)
		if err != nil {
			return nil, fmt.Errorf("failed to load config %s: %w", location, err)
		}
		if err = yaml.Unmarshal(data, ret); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", location, err)
		}
	}
	ret.applyEnv()
	ret.Init()
	return ret, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Model.APIKey = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Addr = v
	}
}

func loadDotEnv(name string) error {
	if _, err := os.Stat(name); err != nil {
		return nil
	}
	if err := godotenv.Load(name); err != nil {
		return fmt.Errorf("failed to load %s: %w", name, err)
	}
	log.Printf("loaded environment from %s", name)
	return nil
}
