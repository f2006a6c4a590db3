// Package systemd manages units through the system bus, falling back to the
// systemctl binary when the bus is unreachable (containers, chroots).
package systemd

import (
	"context"
	"io"
	"log/slog"
	"strings"
)

// Manager is the subset of systemd aibox drives.
type Manager interface {
	IsActive(ctx context.Context, unit string) (bool, error)
	Enable(ctx context.Context, unit string) error
	Start(ctx context.Context, unit string) error
	Restart(ctx context.Context, unit string) error
	ReloadOrRestart(ctx context.Context, unit string) error
	DaemonReload(ctx context.Context) error
	Close()
}

// Connect returns a D-Bus backed manager, or a systemctl one when the bus
// cannot be reached. Command output of the fallback goes to log.
func Connect(ctx context.Context, log io.Writer) Manager {
	m, err := DialBus(ctx)
	if err == nil {
		return m
	}
	slog.Warn("system bus unavailable, using systemctl", "err", err)
	return &Systemctl{Log: log}
}

// unitName appends ".service" to bare names.
func unitName(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return name + ".service"
}
