package host

import (
	"context"
	"log/slog"
)

func (l *Local) ServiceActive(ctx context.Context, name string) bool {
	active, err := l.systemd.IsActive(ctx, name)
	if err != nil {
		slog.Debug("service state query failed", "unit", name, "err", err)
		return false
	}
	return active
}

func (l *Local) EnableService(ctx context.Context, name string) error {
	return l.systemd.Enable(ctx, name)
}

func (l *Local) StartService(ctx context.Context, name string) error {
	return l.systemd.Start(ctx, name)
}

func (l *Local) RestartService(ctx context.Context, name string) error {
	return l.systemd.Restart(ctx, name)
}

func (l *Local) ReloadService(ctx context.Context, name string) error {
	return l.systemd.ReloadOrRestart(ctx, name)
}

func (l *Local) DaemonReload(ctx context.Context) error {
	return l.systemd.DaemonReload(ctx)
}
