package host

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/firewall"
	"github.com/flo-mic/aibox/internal/systemd"
)

// patchExec replaces execCommand with a re-exec of the test binary. exitFor
// decides the exit code from the full command line.
func patchExec(t *testing.T, exitFor func(line string) int) *[]string {
	t.Helper()
	var calls []string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		line := commandLine(name, args)
		calls = append(calls, line)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "AIBOX_HELPER_PROCESS=1", fmt.Sprintf("AIBOX_HELPER_EXIT=%d", exitFor(line)))
		return cmd
	}
	t.Cleanup(func() { execCommand = orig })
	return &calls
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("AIBOX_HELPER_PROCESS") != "1" {
		return
	}
	code := 0
	fmt.Sscanf(os.Getenv("AIBOX_HELPER_EXIT"), "%d", &code)
	os.Exit(code)
}

func newLocal(log *bytes.Buffer) *Local {
	return NewLocal(config.Default().PackageManager, &systemd.Systemctl{}, log)
}

func TestPackageInstalled(t *testing.T) {
	calls := patchExec(t, func(line string) int {
		if line == "pacman -Q curl" {
			return 0
		}
		return 1
	})
	l := newLocal(&bytes.Buffer{})

	assert.True(t, l.PackageInstalled(context.Background(), "curl"))
	assert.False(t, l.PackageInstalled(context.Background(), "nginx"))
	assert.Equal(t, []string{"pacman -Q curl", "pacman -Q nginx"}, *calls)
}

func TestInstallPackages_UsesConfiguredCommand(t *testing.T) {
	calls := patchExec(t, func(string) int { return 0 })
	var log bytes.Buffer
	l := newLocal(&log)

	require.NoError(t, l.InstallPackages(context.Background(), "curl", "openssh"))
	require.NoError(t, l.InstallPackages(context.Background()))
	require.NoError(t, l.UpgradeSystem(context.Background()))

	assert.Equal(t, []string{
		"pacman -S --noconfirm --needed curl openssh",
		"pacman -Syu --noconfirm",
	}, *calls)
	assert.Contains(t, log.String(), "[aibox] $ pacman -S --noconfirm --needed curl openssh")
}

func TestInstallPackages_QuotedCommand(t *testing.T) {
	calls := patchExec(t, func(string) int { return 0 })
	pm := config.Default().PackageManager
	pm.Install = `sudo -E "pacman" -S --noconfirm`
	l := NewLocal(pm, &systemd.Systemctl{}, nil)

	require.NoError(t, l.InstallPackages(context.Background(), "glances"))
	assert.Equal(t, []string{"sudo -E pacman -S --noconfirm glances"}, *calls)
}

func TestRun_ErrorNamesCommand(t *testing.T) {
	patchExec(t, func(string) int { return 1 })
	err := newLocal(&bytes.Buffer{}).Run(context.Background(), "nginx", "-t")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nginx -t")
}

func TestRemoveStaleLock(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "db.lck")
	pm := config.Default().PackageManager
	pm.LockFile = lock

	t.Run("no lock", func(t *testing.T) {
		patchExec(t, func(string) int { return 1 })
		removed, err := NewLocal(pm, nil, nil).RemoveStaleLock(context.Background())
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("stale lock removed", func(t *testing.T) {
		require.NoError(t, os.WriteFile(lock, nil, 0644))
		calls := patchExec(t, func(string) int { return 1 })
		removed, err := NewLocal(pm, nil, nil).RemoveStaleLock(context.Background())
		require.NoError(t, err)
		assert.True(t, removed)
		assert.NoFileExists(t, lock)
		assert.Equal(t, []string{"pgrep -x pacman"}, *calls)
	})

	t.Run("held lock kept", func(t *testing.T) {
		require.NoError(t, os.WriteFile(lock, nil, 0644))
		patchExec(t, func(string) int { return 0 })
		removed, err := NewLocal(pm, nil, nil).RemoveStaleLock(context.Background())
		assert.Error(t, err)
		assert.False(t, removed)
		assert.FileExists(t, lock)
	})
}

func TestRunInstaller(t *testing.T) {
	calls := patchExec(t, func(string) int { return 0 })
	l := newLocal(&bytes.Buffer{})

	require.NoError(t, l.RunInstaller(context.Background(), "https://astral.sh/uv/install.sh", "alice"))
	require.NoError(t, l.RunInstaller(context.Background(), "https://ollama.com/install.sh", ""))

	assert.Equal(t, []string{
		"sudo -u alice -H sh -c curl -fsSL 'https://astral.sh/uv/install.sh' | sh",
		"sh -c curl -fsSL 'https://ollama.com/install.sh' | sh",
	}, *calls)
}

func TestUFW(t *testing.T) {
	calls := patchExec(t, func(string) int { return 0 })
	l := newLocal(&bytes.Buffer{})
	ctx := context.Background()

	require.NoError(t, firewall.Apply(ctx, l, []firewall.Rule{
		{Port: 22, Proto: "tcp", Comment: "ssh"},
		{Port: 443, Proto: "tcp"},
	}))

	assert.Equal(t, []string{
		"ufw --force reset",
		"ufw default deny incoming",
		"ufw default allow outgoing",
		"ufw allow 22/tcp comment ssh",
		"ufw allow 443/tcp",
		"ufw --force enable",
	}, *calls)
}

func TestWriteFile_AtomicWithMode(t *testing.T) {
	var log bytes.Buffer
	l := newLocal(&log)
	path := filepath.Join(t.TempDir(), "ssl", "aibox.key")

	require.NoError(t, l.WriteFile(path, []byte("first"), 0600))
	require.NoError(t, l.WriteFile(path, []byte("second"), 0600))

	data, err := l.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
	assert.Contains(t, log.String(), "Wrote "+path+" (mode 0600)")
}

func TestAppendFile(t *testing.T) {
	l := newLocal(&bytes.Buffer{})
	path := filepath.Join(t.TempDir(), "hosts")
	require.NoError(t, os.WriteFile(path, []byte("127.0.0.1 localhost\n"), 0644))

	require.NoError(t, l.AppendFile(path, []byte("127.0.0.1 chat.ai.lan\n")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1 localhost\n127.0.0.1 chat.ai.lan\n", string(data))
}

func TestLookPath_ExtraDirs(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "aibox-test-uv")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "not-exec"), nil, 0644))

	l := newLocal(&bytes.Buffer{})

	p, ok := l.LookPath("aibox-test-uv", dir)
	assert.True(t, ok)
	assert.Equal(t, bin, p)

	_, ok = l.LookPath("not-exec", dir)
	assert.False(t, ok)

	_, ok = l.LookPath("aibox-test-uv")
	assert.False(t, ok)
}

func TestInvokingUserName(t *testing.T) {
	t.Setenv("SUDO_USER", "bob")

	name, err := InvokingUserName("alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", name)

	name, err = InvokingUserName("")
	require.NoError(t, err)
	assert.Equal(t, "bob", name)
}

func TestShellQuote(t *testing.T) {
	assert.Equal(t, `'plain'`, shellQuote("plain"))
	assert.Equal(t, `'it'\''s'`, shellQuote("it's"))
	assert.False(t, strings.Contains(shellQuote("a b"), `"`))
}
