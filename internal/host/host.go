// Package host is the narrow view of the machine the provisioning steps
// query and mutate. Local talks to the real system; hosttest.Fake backs tests.
package host

import (
	"context"
	"net"
	"os"

	"github.com/flo-mic/aibox/internal/firewall"
)

// Host is everything a provisioning step may touch.
type Host interface {
	Packages
	Commands
	Services
	Files
	firewall.Backend
	Facts
}

// Packages queries and mutates the package database.
type Packages interface {
	// PackageInstalled reports whether the package is present. Query
	// failures count as "not installed".
	PackageInstalled(ctx context.Context, name string) bool
	InstallPackages(ctx context.Context, names ...string) error
	UpgradeSystem(ctx context.Context) error
	// RemoveStaleLock deletes the package manager lock file when no package
	// manager process holds it. It reports whether a file was removed.
	RemoveStaleLock(ctx context.Context) (bool, error)
}

// Commands runs programs.
type Commands interface {
	// LookPath finds an executable on PATH or in one of extraDirs.
	LookPath(name string, extraDirs ...string) (string, bool)
	Run(ctx context.Context, name string, args ...string) error
	// RunInstaller fetches a shell installer from url and pipes it to sh,
	// as asUser when set.
	RunInstaller(ctx context.Context, url, asUser string) error
}

// Services controls systemd units. ServiceActive treats errors as inactive.
type Services interface {
	ServiceActive(ctx context.Context, name string) bool
	EnableService(ctx context.Context, name string) error
	StartService(ctx context.Context, name string) error
	RestartService(ctx context.Context, name string) error
	ReloadService(ctx context.Context, name string) error
	DaemonReload(ctx context.Context) error
}

// Files reads and writes configuration files.
type Files interface {
	ReadFile(path string) ([]byte, error)
	// WriteFile replaces path atomically, creating parent directories.
	WriteFile(path string, data []byte, mode os.FileMode) error
	AppendFile(path string, data []byte) error
	Chown(path string, uid, gid int) error
}

// Facts describes the machine.
type Facts interface {
	// PCIDevices returns lspci output, or "" when it is unavailable.
	PCIDevices(ctx context.Context) (string, error)
	// DefaultIPv4 returns the source address of the default route.
	DefaultIPv4() (net.IP, error)
	Hostname() (string, error)
	Kernel() string
	LookupUser(name string) (*User, error)
}

// User is a local account.
type User struct {
	Name string
	Home string
	UID  int
	GID  int
}
