// Package hosttest provides an in-memory host.Host for tests.
package hosttest

import (
	"context"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/firewall"
	"github.com/flo-mic/aibox/internal/host"
)

// Service is the state of one fake unit.
type Service struct {
	Enabled  bool
	Active   bool
	Restarts int
}

// File is one fake file.
type File struct {
	Data []byte
	Mode os.FileMode
	UID  int
	GID  int
}

// FirewallState is the fake ufw table.
type FirewallState struct {
	Rules    []firewall.Rule
	Defaults map[string]string // direction -> policy
	Enabled  bool
	Resets   int
}

// Installer simulates the effect of a remote install script.
type Installer func(f *Fake, asUser string)

// Fake records every mutation and keeps enough state for check-then-skip
// logic to behave as on a real machine.
type Fake struct {
	Installed map[string]bool
	Commands  map[string]string // name -> absolute path
	PathDirs  []string          // directories treated as $PATH
	Units     map[string]*Service
	FileSet   map[string]*File
	Users     map[string]*host.User
	Firewall  FirewallState

	PCI           string
	IP            net.IP
	Name          string
	KernelVersion string
	LockPresent   bool
	LockHeld      bool

	Installers map[string]Installer
	// Errors injects failures keyed by operation, e.g. "install nginx" or
	// "run nginx -t -c /etc/nginx/nginx.conf".
	Errors map[string]error
	// Broken services never become active.
	Broken map[string]bool

	Calls    []string
	Installs [][]string
}

var _ host.Host = (*Fake)(nil)

// New returns a fake Arch box with no GPU, one user (alice), and installers
// for the default uv and Ollama URLs.
func New() *Fake {
	cfg := config.Default()
	f := &Fake{
		Installed: map[string]bool{"pacman": true, "systemd": true},
		Commands:  map[string]string{"sh": "/usr/bin/sh", "curl": "/usr/bin/curl"},
		PathDirs:  []string{"/usr/local/bin", "/usr/bin"},
		Units:     map[string]*Service{},
		FileSet: map[string]*File{
			"/etc/hosts": {Data: []byte("127.0.0.1 localhost\n::1 localhost\n"), Mode: 0644},
		},
		Users: map[string]*host.User{
			"alice": {Name: "alice", Home: "/home/alice", UID: 1000, GID: 1000},
		},
		Firewall:      FirewallState{Defaults: map[string]string{}},
		PCI:           "00:02.0 VGA compatible controller: Red Hat, Inc. Virtio GPU (rev 01)",
		IP:            net.IPv4(192, 168, 1, 50).To4(),
		Name:          "aibox",
		KernelVersion: "Linux 6.10.2-arch1-1",
		Errors:        map[string]error{},
		Broken:        map[string]bool{},
	}
	f.Installers = map[string]Installer{
		cfg.UV.InstallURL: func(f *Fake, asUser string) {
			home := "/root"
			if u, ok := f.Users[asUser]; ok {
				home = u.Home
			}
			f.Commands["uv"] = home + "/.local/bin/uv"
			f.Commands["uvx"] = home + "/.local/bin/uvx"
		},
		cfg.Ollama.InstallURL: func(f *Fake, asUser string) {
			f.Commands["ollama"] = "/usr/local/bin/ollama"
			f.unit("ollama").Enabled = true
		},
	}
	return f
}

func (f *Fake) record(op string) error {
	f.Calls = append(f.Calls, op)
	return f.Errors[op]
}

func (f *Fake) unit(name string) *Service {
	name = strings.TrimSuffix(name, ".service")
	s, ok := f.Units[name]
	if !ok {
		s = &Service{}
		f.Units[name] = s
	}
	return s
}

// Active reports whether the unit is running.
func (f *Fake) Active(name string) bool {
	s, ok := f.Units[strings.TrimSuffix(name, ".service")]
	return ok && s.Active
}

// Content returns the file's data, or "" when it does not exist.
func (f *Fake) Content(path string) string {
	if file, ok := f.FileSet[path]; ok {
		return string(file.Data)
	}
	return ""
}

// Called reports whether op was recorded.
func (f *Fake) Called(op string) bool {
	for _, c := range f.Calls {
		if c == op {
			return true
		}
	}
	return false
}

// ResetCalls clears the call and install logs, keeping state.
func (f *Fake) ResetCalls() {
	f.Calls = nil
	f.Installs = nil
}

// --- Packages ---

func (f *Fake) PackageInstalled(ctx context.Context, name string) bool {
	return f.Installed[name]
}

func (f *Fake) InstallPackages(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	f.Installs = append(f.Installs, append([]string(nil), names...))
	if err := f.record("install " + strings.Join(names, " ")); err != nil {
		return err
	}
	for _, n := range names {
		if err := f.Errors["install "+n]; err != nil {
			return err
		}
	}
	for _, n := range names {
		f.Installed[n] = true
		f.Commands[n] = "/usr/bin/" + n
	}
	return nil
}

func (f *Fake) UpgradeSystem(ctx context.Context) error {
	return f.record("upgrade")
}

func (f *Fake) RemoveStaleLock(ctx context.Context) (bool, error) {
	if !f.LockPresent || f.LockHeld {
		return false, nil
	}
	if err := f.record("remove-lock"); err != nil {
		return false, err
	}
	f.LockPresent = false
	return true, nil
}

// --- Commands ---

func (f *Fake) LookPath(name string, extraDirs ...string) (string, bool) {
	p, ok := f.Commands[name]
	if !ok {
		return "", false
	}
	dir := filepath.Dir(p)
	for _, d := range append(append([]string(nil), f.PathDirs...), extraDirs...) {
		if d == dir {
			return p, true
		}
	}
	return "", false
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	return f.record(strings.TrimSpace("run " + name + " " + strings.Join(args, " ")))
}

func (f *Fake) RunInstaller(ctx context.Context, url, asUser string) error {
	if err := f.record("installer " + url); err != nil {
		return err
	}
	if effect, ok := f.Installers[url]; ok {
		effect(f, asUser)
	}
	return nil
}

// --- Services ---

func (f *Fake) ServiceActive(ctx context.Context, name string) bool {
	return f.Active(name)
}

func (f *Fake) EnableService(ctx context.Context, name string) error {
	if err := f.record("enable " + name); err != nil {
		return err
	}
	f.unit(name).Enabled = true
	return nil
}

func (f *Fake) StartService(ctx context.Context, name string) error {
	if err := f.record("start " + name); err != nil {
		return err
	}
	f.unit(name).Active = !f.Broken[name]
	return nil
}

func (f *Fake) RestartService(ctx context.Context, name string) error {
	if err := f.record("restart " + name); err != nil {
		return err
	}
	s := f.unit(name)
	s.Active = !f.Broken[name]
	s.Restarts++
	return nil
}

func (f *Fake) ReloadService(ctx context.Context, name string) error {
	if err := f.record("reload " + name); err != nil {
		return err
	}
	f.unit(name).Active = !f.Broken[name]
	return nil
}

func (f *Fake) DaemonReload(ctx context.Context) error {
	return f.record("daemon-reload")
}

// --- Files ---

func (f *Fake) ReadFile(path string) ([]byte, error) {
	file, ok := f.FileSet[path]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: path, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), file.Data...), nil
}

func (f *Fake) WriteFile(path string, data []byte, mode os.FileMode) error {
	if err := f.record("write " + path); err != nil {
		return err
	}
	f.FileSet[path] = &File{Data: append([]byte(nil), data...), Mode: mode}
	return nil
}

func (f *Fake) AppendFile(path string, data []byte) error {
	if err := f.record("append " + path); err != nil {
		return err
	}
	file, ok := f.FileSet[path]
	if !ok {
		file = &File{Mode: 0644}
		f.FileSet[path] = file
	}
	file.Data = append(file.Data, data...)
	return nil
}

func (f *Fake) Chown(path string, uid, gid int) error {
	if err := f.record("chown " + path); err != nil {
		return err
	}
	if file, ok := f.FileSet[path]; ok {
		file.UID, file.GID = uid, gid
	}
	return nil
}

// --- Firewall ---

func (f *Fake) ResetFirewall(ctx context.Context) error {
	if err := f.record("ufw reset"); err != nil {
		return err
	}
	f.Firewall = FirewallState{Defaults: map[string]string{}, Resets: f.Firewall.Resets + 1}
	return nil
}

func (f *Fake) SetDefaultPolicy(ctx context.Context, direction, policy string) error {
	if err := f.record("ufw default " + policy + " " + direction); err != nil {
		return err
	}
	f.Firewall.Defaults[direction] = policy
	return nil
}

func (f *Fake) AllowPort(ctx context.Context, r firewall.Rule) error {
	if err := f.record("ufw allow " + r.String()); err != nil {
		return err
	}
	f.Firewall.Rules = append(f.Firewall.Rules, r)
	return nil
}

func (f *Fake) EnableFirewall(ctx context.Context) error {
	if err := f.record("ufw enable"); err != nil {
		return err
	}
	f.Firewall.Enabled = true
	return nil
}

// --- Facts ---

func (f *Fake) PCIDevices(ctx context.Context) (string, error) {
	return f.PCI, f.Errors["lspci"]
}

func (f *Fake) DefaultIPv4() (net.IP, error) {
	if err := f.Errors["default-route"]; err != nil {
		return nil, err
	}
	return f.IP, nil
}

func (f *Fake) Hostname() (string, error) {
	return f.Name, nil
}

func (f *Fake) Kernel() string {
	return f.KernelVersion
}

func (f *Fake) LookupUser(name string) (*host.User, error) {
	u, ok := f.Users[name]
	if !ok {
		return nil, &unknownUserError{name}
	}
	c := *u
	return &c, nil
}

type unknownUserError struct{ name string }

func (e *unknownUserError) Error() string { return "user: unknown user " + e.name }
