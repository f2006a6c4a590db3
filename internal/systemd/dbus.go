package systemd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sddbus "github.com/coreos/go-systemd/v22/dbus"
	godbus "github.com/godbus/dbus/v5"
)

const noSuchUnit = "org.freedesktop.systemd1.NoSuchUnit"

// Bus drives units over the systemd D-Bus API.
type Bus struct {
	conn *sddbus.Conn
}

// DialBus connects to the system bus.
func DialBus(ctx context.Context) (*Bus, error) {
	conn, err := sddbus.NewSystemConnectionContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("dbus.NewSystemConnection: %w", err)
	}
	return &Bus{conn: conn}, nil
}

func (b *Bus) IsActive(ctx context.Context, unit string) (bool, error) {
	prop, err := b.conn.GetUnitPropertyContext(ctx, unitName(unit), "ActiveState")
	if err != nil {
		return false, fmt.Errorf("dbus.GetUnitProperty %s: %w", unit, err)
	}
	state, ok := prop.Value.Value().(string)
	if !ok {
		return false, fmt.Errorf("invalid ActiveState value: %v", prop.Value)
	}
	return state == "active", nil
}

func (b *Bus) Enable(ctx context.Context, unit string) error {
	name := unitName(unit)
	slog.Debug("systemd enable", "unit", name)
	if _, _, err := b.conn.EnableUnitFilesContext(ctx, []string{name}, false, true); err != nil {
		return fmt.Errorf("dbus.EnableUnitFiles %s: %w", name, err)
	}
	// Enabling changes unit symlinks, which systemd only sees after a reload.
	return b.DaemonReload(ctx)
}

func (b *Bus) Start(ctx context.Context, unit string) error {
	return b.job(ctx, "start", unitName(unit), b.conn.StartUnitContext)
}

// Restart clears a failed state first so units that hit their start limit
// can come back.
func (b *Bus) Restart(ctx context.Context, unit string) error {
	name := unitName(unit)
	if err := b.resetFailed(ctx, name); err != nil {
		return err
	}
	return b.job(ctx, "restart", name, b.conn.RestartUnitContext)
}

func (b *Bus) ReloadOrRestart(ctx context.Context, unit string) error {
	return b.job(ctx, "reload-or-restart", unitName(unit), b.conn.ReloadOrRestartUnitContext)
}

func (b *Bus) DaemonReload(ctx context.Context) error {
	slog.Debug("systemd daemon-reload")
	if err := b.conn.ReloadContext(ctx); err != nil {
		return fmt.Errorf("dbus.Reload: %w", err)
	}
	return nil
}

func (b *Bus) Close() {
	b.conn.Close()
}

// no-op if the unit is not loaded
func (b *Bus) resetFailed(ctx context.Context, name string) error {
	err := b.conn.ResetFailedUnitContext(ctx, name)
	var dbusErr godbus.Error
	switch {
	case err == nil:
		return nil
	case errors.As(err, &dbusErr) && dbusErr.Name == noSuchUnit:
		return nil
	default:
		return fmt.Errorf("dbus.ResetFailedUnit %s: %w", name, err)
	}
}

type jobFunc func(ctx context.Context, name, mode string, ch chan<- string) (int, error)

// job queues a unit job and waits for systemd to report its result.
func (b *Bus) job(ctx context.Context, verb, name string, fn jobFunc) error {
	slog.Debug("systemd "+verb, "unit", name)
	ch := make(chan string, 1)
	if _, err := fn(ctx, name, "replace", ch); err != nil {
		return fmt.Errorf("dbus %s %s: %w", verb, name, err)
	}
	select {
	case result := <-ch:
		if result != "done" {
			return fmt.Errorf("%s %s: job %s", verb, name, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
