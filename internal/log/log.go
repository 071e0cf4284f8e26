// Package log configures the rotating process and device session logs.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ErrNotFound is returned by Tail when the log file does not exist.
var ErrNotFound = errors.New("log file not found")

// Config describes the rotating log files.
type Config struct {
	File        string `yaml:"file,omitempty" json:"file,omitempty"`
	SessionFile string `yaml:"sessionFile,omitempty" json:"sessionFile,omitempty"`
	MaxSizeMB   int    `yaml:"maxSizeMB,omitempty" json:"maxSizeMB,omitempty"`
	MaxBackups  int    `yaml:"maxBackups,omitempty" json:"maxBackups,omitempty"`
	// Quiet disables the stderr copy of the process log.
	Quiet bool `yaml:"quiet,omitempty" json:"quiet,omitempty"`
}

// Init fills defaults.
func (c *Config) Init() {
	if c.File == "" {
		c.File = filepath.Join("logs", "fwexec.log")
	}
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join("logs", "device_session.log")
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 1
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 10
	}
}

// Logs holds the open log writers.
type Logs struct {
	process *lumberjack.Logger
	session *lumberjack.Logger
}

// Session returns the device session transcript writer.
func (l *Logs) Session() io.Writer { return l.session }

// Close closes both files.
func (l *Logs) Close() error {
	return errors.Join(l.process.Close(), l.session.Close())
}

// Setup routes the standard logger to the rotating process log and opens the
// device session transcript.
func Setup(cfg *Config) (*Logs, error) {
	cfg.Init()
	for _, name := range []string{cfg.File, cfg.SessionFile} {
		if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log dir for %s: %w", name, err)
		}
	}
	ret := &Logs{process: rotating(cfg.File, cfg), session: rotating(cfg.SessionFile, cfg)}
	var out io.Writer = ret.process
	if !cfg.Quiet {
		out = io.MultiWriter(os.Stderr, ret.process)
	}
	log.SetOutput(out)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return ret, nil
}

func rotating(name string, cfg *Config) *lumberjack.Logger {
	return &lumberjack.Logger{Filename: name, MaxSize: cfg.MaxSizeMB, MaxBackups: cfg.MaxBackups}
}

// Tail returns up to n trailing lines of the file at location.
func Tail(ctx context.Context, fs afs.Service, location string, n int) ([]string, error) {
	if fs == nil {
		fs = afs.New()
	}
	ok, err := fs.Exists(ctx, location)
	if err != nil || !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, location)
	}
	data, err := fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", location, err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []string{}, nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines, nil
}
