package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sys/unix"
	"golang.org/x/term"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/host"
	"github.com/flo-mic/aibox/internal/notify"
	"github.com/flo-mic/aibox/internal/provision"
	"github.com/flo-mic/aibox/internal/systemd"
)

// ErrNotRoot is returned when apply runs without root privileges.
var ErrNotRoot = errors.New("aibox apply must run as root (try sudo)")

// Swapped in tests.
var (
	geteuid     = unix.Geteuid
	stdinIsTTY  = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	confirmRun  = confirmPrompt
	newHostFunc = newLocalHost
)

func newApplyCmd(v *viper.Viper, stdout, stderr io.Writer) *cobra.Command {
	c := &cobra.Command{
		Use:   "apply",
		Short: "Run the provisioning pipeline (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), v, stdout, stderr)
		},
	}
	addApplyFlags(c.Flags())
	return c
}

func runApply(ctx context.Context, v *viper.Viper, stdout, stderr io.Writer) error {
	if geteuid() != 0 {
		return ErrNotRoot
	}
	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	if !v.GetBool("yes") && stdinIsTTY() {
		ok, err := confirmRun(cfg)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "Aborted.")
			return nil
		}
	}

	logFile, err := openLog(cfg.LogDir)
	if err != nil {
		return err
	}
	defer logFile.Close()

	sinks := []io.Writer{logFile}
	if v.GetBool("debug") {
		sinks = append(sinks, stderr)
	}
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(sinks...), nil))
	slog.SetDefault(logger)

	// Command lines and their output go to the terminal and the log file.
	cmdLog := io.MultiWriter(stdout, logFile)
	h, closeHost := newHostFunc(ctx, cfg, cmdLog)
	defer closeHost()

	n := notify.New(stdout, logger)
	once := func(ctx context.Context) error {
		env, err := provision.NewEnv(ctx, h, cfg, n)
		if err != nil {
			return err
		}
		return provision.Execute(ctx, env)
	}
	return runScheduled(ctx, v.GetString("schedule"), n, once)
}

func newLocalHost(ctx context.Context, cfg *config.Config, log io.Writer) (host.Host, func()) {
	sd := systemd.Connect(ctx, log)
	return host.NewLocal(cfg.PackageManager, sd, log), sd.Close
}

func openLog(dir string) (*os.File, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "aibox.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

func confirmPrompt(cfg *config.Config) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(fmt.Sprintf("Provision this machine with the %s variant?", cfg.Variant)).
			Description("Upgrades all packages, installs Ollama and Open WebUI, and resets the firewall.").
			Value(&ok),
	)).Run()
	return ok, err
}

// runScheduled runs f once. With a cron spec it keeps running f on that
// schedule until ctx is cancelled, never overlapping two runs. Failures of
// scheduled runs are reported and the schedule continues.
func runScheduled(ctx context.Context, spec string, n *notify.Notifier, f func(context.Context) error) error {
	if spec == "" {
		return f(ctx)
	}
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return fmt.Errorf("invalid --schedule=%q: %w", spec, err)
	}

	if err := f(ctx); err != nil {
		return err
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	c.Schedule(sched, cron.FuncJob(func() {
		start := time.Now()
		if err := f(ctx); err != nil {
			n.Errorf("scheduled run failed: %v", err)
		}
		end := time.Now()
		next := sched.Next(end)
		n.Infof("scheduled run finished in %v, next run at %s", end.Sub(start).Round(time.Second), next.Format(time.RFC3339))
	}))
	n.Infof("using --schedule=%q, next run at %s", spec, sched.Next(time.Now()).Format(time.RFC3339))
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
