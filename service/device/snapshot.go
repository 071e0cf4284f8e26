package device

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// DefaultContextCommands are the read-only queries used when a snapshot
// request names none.
var DefaultContextCommands = []string{
	"get system status",
	"get system performance status",
	"show system interface",
	"show firewall policy",
	"show firewall address",
	"show firewall vip",
	"show firewall ippool",
	"show firewall service custom",
	"show firewall service group",
	"get router info routing-table all",
	"execute log display event 20",
	"get system dns",
	"get system dhcp server",
	"diagnose debug report",
	"diagnose sys session list",
}

// Status describes how much context a snapshot holds.
type Status string

const (
	// StatusFetched means every command ran cleanly.
	StatusFetched Status = "fetched"
	// StatusPartial means output was captured but some commands failed.
	StatusPartial Status = "partial"
	// StatusFailed means the device could not be queried at all.
	StatusFailed Status = "failed"
	// StatusImpossible means no usable device configuration was supplied.
	StatusImpossible Status = "impossible"
)

const (
	noContextMessage     = "No context information could be fetched from the FortiGate."
	missingConfigMessage = "Error: missing FortiGate configuration for context fetch."
	snapshotTimeLayout   = "20060102_150405"
	snapshotFilePrefix   = "fortigate_context_"
	contextErrorSection  = "ERROR FETCHING FORTIGATE CONTEXT:\n"
)

// Snapshot is a captured device context. Text is never empty.
type Snapshot struct {
	Status   Status
	Text     string
	Location string
}

// Snapshotter captures and persists device context.
type Snapshotter struct {
	executor *Executor
	fs       afs.Service
	dir      string
	now      func() time.Time
}

// Snapshot runs commands (DefaultContextCommands when empty), persists a
// timestamped file under the snapshot directory and returns the text.
func (s *Snapshotter) Snapshot(ctx context.Context, config *Config, commands []string) *Snapshot {
	if config.IsEmpty() {
		log.Printf("context snapshot skipped: missing FortiGate configuration")
		return &Snapshot{Status: StatusImpossible, Text: missingConfigMessage}
	}
	if len(commands) == 0 {
		commands = DefaultContextCommands
	}
	batch := strings.Join(commands, "\n")
	log.Printf("fetching FortiGate context with %d command(s)", len(commands))

	result := s.executor.Execute(ctx, batch, config)
	if result.ReturnCode == ReturnCodePrecondition {
		return &Snapshot{Status: StatusImpossible, Text: "Error: " + result.Error}
	}

	ret := &Snapshot{Status: StatusFetched}
	var content strings.Builder
	if result.Error != "" {
		content.WriteString(contextErrorSection + result.Error + "\n\n")
		log.Printf("failed to fetch FortiGate context: %s", result.Error)
		ret.Status = StatusPartial
		if strings.TrimSpace(result.Output) == "" {
			ret.Status = StatusFailed
		}
	}
	content.WriteString(result.Output)
	ret.Text = content.String()
	if strings.TrimSpace(ret.Text) == "" {
		ret.Text = noContextMessage
		ret.Status = StatusFailed
		log.Printf("FortiGate context fetch produced no output")
	}
	ret.Location = s.persist(ctx, config, batch, ret.Text)
	return ret
}

func (s *Snapshotter) persist(ctx context.Context, config *Config, batch, text string) string {
	if ok, _ := s.fs.Exists(ctx, s.dir); !ok {
		if err := s.fs.Create(ctx, s.dir, file.DefaultDirOsMode, true); err != nil {
			log.Printf("failed to create snapshot directory %s: %v", s.dir, err)
			return ""
		}
	}
	timestamp := s.now().Format(snapshotTimeLayout)
	location := url.Join(s.dir, snapshotName(timestamp))
	var payload strings.Builder
	payload.WriteString(fmt.Sprintf("--- FortiGate Context Snapshot at %s ---\n", timestamp))
	payload.WriteString(fmt.Sprintf("Target: %s\n", config.Host))
	payload.WriteString("--- Commands Executed ---\n")
	payload.WriteString(batch + "\n")
	payload.WriteString("--- Output ---\n")
	payload.WriteString(text)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, strings.NewReader(payload.String())); err != nil {
		log.Printf("failed to write FortiGate context %s: %v", location, err)
		return ""
	}
	log.Printf("saved FortiGate context to %s", location)
	return location
}

// snapshotName keeps the sortable timestamp and adds a random suffix so
// snapshots taken within the same second never share a file.
func snapshotName(timestamp string) string {
	return snapshotFilePrefix + timestamp + "_" + uuid.NewString()[:8] + ".txt"
}

// SnapshotOption customises a Snapshotter.
type SnapshotOption func(s *Snapshotter)

// WithClock overrides the snapshot timestamp source.
func WithClock(now func() time.Time) SnapshotOption {
	return func(s *Snapshotter) { s.now = now }
}

// WithFS overrides the storage service.
func WithFS(fs afs.Service) SnapshotOption {
	return func(s *Snapshotter) { s.fs = fs }
}

// NewSnapshotter creates a snapshotter writing under dir (any afs URL).
func NewSnapshotter(executor *Executor, dir string, options ...SnapshotOption) *Snapshotter {
	if dir == "" {
		dir = "logs"
	}
	if url.Scheme(dir, "") == "" {
		if abs, err := filepath.Abs(dir); err == nil {
			dir = abs
		}
	}
	ret := &Snapshotter{executor: executor, fs: afs.New(), dir: dir, now: time.Now}
	for _, option := range options {
		option(ret)
	}
	return ret
}
