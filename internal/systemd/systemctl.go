package systemd

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

var execCommand = exec.CommandContext

// Systemctl drives units by running systemctl.
type Systemctl struct {
	Log io.Writer
}

func (s *Systemctl) IsActive(ctx context.Context, unit string) (bool, error) {
	err := execCommand(ctx, "systemctl", "is-active", "--quiet", unitName(unit)).Run()
	if err == nil {
		return true, nil
	}
	if _, ok := err.(*exec.ExitError); ok {
		return false, nil
	}
	return false, err
}

func (s *Systemctl) Enable(ctx context.Context, unit string) error {
	return s.run(ctx, "enable", unitName(unit))
}

func (s *Systemctl) Start(ctx context.Context, unit string) error {
	return s.run(ctx, "start", unitName(unit))
}

func (s *Systemctl) Restart(ctx context.Context, unit string) error {
	return s.run(ctx, "restart", unitName(unit))
}

func (s *Systemctl) ReloadOrRestart(ctx context.Context, unit string) error {
	return s.run(ctx, "reload-or-restart", unitName(unit))
}

func (s *Systemctl) DaemonReload(ctx context.Context) error {
	return s.run(ctx, "daemon-reload")
}

func (s *Systemctl) Close() {}

func (s *Systemctl) run(ctx context.Context, args ...string) error {
	log := s.Log
	if log == nil {
		log = io.Discard
	}
	fmt.Fprintf(log, "[aibox] $ systemctl %s\n", strings.Join(args, " "))
	cmd := execCommand(ctx, "systemctl", args...)
	cmd.Stdout = log
	cmd.Stderr = log
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("systemctl %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
