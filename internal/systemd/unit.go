package systemd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// UnitDir is where generated units are written.
const UnitDir = "/etc/systemd/system"

// UnitHost is what InstallUnit needs from the host.
type UnitHost interface {
	WriteFile(path string, data []byte, mode os.FileMode) error
	DaemonReload(ctx context.Context) error
	EnableService(ctx context.Context, name string) error
	RestartService(ctx context.Context, name string) error
}

// InstallUnit writes a unit file, reloads systemd, enables the unit and
// restarts it so a changed unit takes effect. It returns the unit's path.
func InstallUnit(ctx context.Context, h UnitHost, name string, content []byte) (string, error) {
	path := filepath.Join(UnitDir, unitName(name))
	if err := h.WriteFile(path, content, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	if err := h.DaemonReload(ctx); err != nil {
		return path, err
	}
	if err := h.EnableService(ctx, name); err != nil {
		return path, err
	}
	if err := h.RestartService(ctx, name); err != nil {
		return path, err
	}
	return path, nil
}
