package systemd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSystemctl swaps execCommand for a re-exec of the test binary that
// exits with the code chosen by exitFor.
func fakeSystemctl(t *testing.T, exitFor func(args []string) int) *[]string {
	t.Helper()
	var calls []string
	orig := execCommand
	execCommand = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		calls = append(calls, name+" "+strings.Join(args, " "))
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "AIBOX_HELPER_PROCESS=1", fmt.Sprintf("AIBOX_HELPER_EXIT=%d", exitFor(args)))
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

func TestSystemctl_IsActive(t *testing.T) {
	fakeSystemctl(t, func(args []string) int {
		if args[len(args)-1] == "ollama.service" {
			return 0
		}
		return 3
	})
	s := &Systemctl{}

	active, err := s.IsActive(context.Background(), "ollama")
	require.NoError(t, err)
	assert.True(t, active)

	active, err = s.IsActive(context.Background(), "nginx")
	require.NoError(t, err)
	assert.False(t, active)
}

func TestSystemctl_Commands(t *testing.T) {
	calls := fakeSystemctl(t, func([]string) int { return 0 })
	s := &Systemctl{}
	ctx := context.Background()

	require.NoError(t, s.DaemonReload(ctx))
	require.NoError(t, s.Enable(ctx, "openwebui"))
	require.NoError(t, s.Restart(ctx, "openwebui"))
	require.NoError(t, s.ReloadOrRestart(ctx, "caddy"))
	require.NoError(t, s.Start(ctx, "sshd.service"))

	assert.Equal(t, []string{
		"systemctl daemon-reload",
		"systemctl enable openwebui.service",
		"systemctl restart openwebui.service",
		"systemctl reload-or-restart caddy.service",
		"systemctl start sshd.service",
	}, *calls)
}

func TestSystemctl_ErrorIncludesArgs(t *testing.T) {
	fakeSystemctl(t, func([]string) int { return 1 })
	err := (&Systemctl{}).Start(context.Background(), "nginx")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "systemctl start nginx.service")
}

type unitHost struct {
	calls []string
	files map[string][]byte
	fail  string
}

func (u *unitHost) step(call string) error {
	u.calls = append(u.calls, call)
	if call == u.fail {
		return errors.New("failed")
	}
	return nil
}

func (u *unitHost) WriteFile(path string, data []byte, mode os.FileMode) error {
	if u.files == nil {
		u.files = map[string][]byte{}
	}
	u.files[path] = data
	return u.step(fmt.Sprintf("write %s %o", path, mode))
}
func (u *unitHost) DaemonReload(ctx context.Context) error { return u.step("daemon-reload") }
func (u *unitHost) EnableService(ctx context.Context, name string) error {
	return u.step("enable " + name)
}
func (u *unitHost) RestartService(ctx context.Context, name string) error {
	return u.step("restart " + name)
}

func TestInstallUnit(t *testing.T) {
	h := &unitHost{}
	path, err := InstallUnit(context.Background(), h, "openwebui", []byte("[Unit]\n"))
	require.NoError(t, err)

	assert.Equal(t, "/etc/systemd/system/openwebui.service", path)
	assert.Equal(t, []string{
		"write /etc/systemd/system/openwebui.service 644",
		"daemon-reload",
		"enable openwebui",
		"restart openwebui",
	}, h.calls)
	assert.Equal(t, "[Unit]\n", string(h.files[path]))
}

func TestInstallUnit_StopsAfterFailedReload(t *testing.T) {
	h := &unitHost{fail: "daemon-reload"}
	_, err := InstallUnit(context.Background(), h, "glances-web", []byte("x"))
	require.Error(t, err)
	assert.NotContains(t, h.calls, "enable glances-web")
}

func TestUnitName(t *testing.T) {
	assert.Equal(t, "nginx.service", unitName("nginx"))
	assert.Equal(t, "sshd.service", unitName("sshd.service"))
	assert.Equal(t, "aibox.timer", unitName("aibox.timer"))
}
