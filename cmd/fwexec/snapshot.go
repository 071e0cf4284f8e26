package fwexec

import (
	"context"
	"fmt"
	"log"

	"github.com/rin1809/fwexec/internal/config"
	flog "github.com/rin1809/fwexec/internal/log"
	"github.com/rin1809/fwexec/service/device"
)

// SnapshotCmd fetches the FortiGate context once and persists it.
// Usage: fwexec snapshot -H 10.0.0.1 -u admin -c "get system status"
type SnapshotCmd struct {
	Host     string   `short:"H" long:"host" description:"FortiGate IP or hostname" required:"true"`
	Username string   `short:"u" long:"user" description:"SSH username" required:"true"`
	Port     string   `short:"P" long:"port" description:"SSH port" default:"22"`
	Password string   `short:"p" long:"password" description:"SSH password"`
	Secret   string   `short:"s" long:"secret" description:"scy secret reference holding the SSH credentials"`
	Commands []string `short:"c" long:"command" description:"context command, repeatable; defaults to the built-in set"`
	Config   string   `short:"f" long:"config" description:"config YAML path or URL"`
}

func (s *SnapshotCmd) Execute(_ []string) error {
	ctx := context.Background()
	cfg, err := config.Load(ctx, s.Config)
	if err != nil {
		return err
	}
	logs, err := flog.Setup(&cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	target := s.device()
	if target.Credentials == "" && target.Password == "" {
		target.Credentials = cfg.Device.Credentials
	}
	executor := device.NewExecutor(newDialer(cfg, logs))
	snapshot := device.NewSnapshotter(executor, cfg.Device.SnapshotDir).Snapshot(ctx, target, s.Commands)
	log.Printf("snapshot of %s: %s", describe(target), snapshot.Status)
	if snapshot.Location != "" {
		fmt.Println(snapshot.Location)
	}
	if snapshot.Status == device.StatusFailed || snapshot.Status == device.StatusImpossible {
		return fmt.Errorf("snapshot %s: %s", snapshot.Status, snapshot.Text)
	}
	return nil
}

func (s *SnapshotCmd) device() *device.Config {
	return &device.Config{
		Host:        s.Host,
		Username:    s.Username,
		Password:    s.Password,
		Port:        device.Port(s.Port),
		Credentials: s.Secret,
	}
}
