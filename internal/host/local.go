package host

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/google/shlex"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/systemd"
)

// execCommand is swapped in tests.
var execCommand = exec.CommandContext

// Local is the Host of the machine aibox runs on.
type Local struct {
	pm      config.PackageManagerConfig
	systemd systemd.Manager
	log     io.Writer
}

var _ Host = (*Local)(nil)

// NewLocal returns a Local host. Command lines and their output are written
// to log.
func NewLocal(pm config.PackageManagerConfig, sd systemd.Manager, log io.Writer) *Local {
	if log == nil {
		log = io.Discard
	}
	return &Local{pm: pm, systemd: sd, log: log}
}

func (l *Local) Run(ctx context.Context, name string, args ...string) error {
	fmt.Fprintf(l.log, "[aibox] $ %s\n", commandLine(name, args))
	cmd := execCommand(ctx, name, args...)
	cmd.Stdout = l.log
	cmd.Stderr = l.log
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", commandLine(name, args), err)
	}
	return nil
}

// runLine splits a configured command line and appends extra arguments.
func (l *Local) runLine(ctx context.Context, line string, extra ...string) error {
	fields, err := splitLine(line)
	if err != nil {
		return err
	}
	return l.Run(ctx, fields[0], append(fields[1:], extra...)...)
}

// probe runs a command for its exit status only.
func (l *Local) probe(ctx context.Context, name string, args ...string) bool {
	return execCommand(ctx, name, args...).Run() == nil
}

func (l *Local) output(ctx context.Context, name string, args ...string) (string, error) {
	var stderr bytes.Buffer
	cmd := execCommand(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("%s: %w: %s", commandLine(name, args), err, strings.TrimSpace(stderr.String()))
	}
	return string(out), nil
}

func (l *Local) LookPath(name string, extraDirs ...string) (string, bool) {
	if p, err := exec.LookPath(name); err == nil {
		return p, true
	}
	for _, dir := range extraDirs {
		p := filepath.Join(dir, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() && info.Mode()&0111 != 0 {
			return p, true
		}
	}
	return "", false
}

// RunInstaller runs `curl -fsSL <url> | sh`.
func (l *Local) RunInstaller(ctx context.Context, url, asUser string) error {
	script := "curl -fsSL " + shellQuote(url) + " | sh"
	if asUser != "" {
		return l.Run(ctx, "sudo", "-u", asUser, "-H", "sh", "-c", script)
	}
	return l.Run(ctx, "sh", "-c", script)
}

func splitLine(line string) ([]string, error) {
	fields, err := shlex.Split(line)
	if err != nil {
		return nil, fmt.Errorf("parsing command %q: %w", line, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty command")
	}
	return fields, nil
}

func commandLine(name string, args []string) string {
	if len(args) == 0 {
		return name
	}
	return name + " " + strings.Join(args, " ")
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
