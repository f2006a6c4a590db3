package provision

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/gpu"
	"github.com/flo-mic/aibox/internal/host"
	"github.com/flo-mic/aibox/internal/notify"
	"github.com/flo-mic/aibox/internal/ollama"
	"github.com/flo-mic/aibox/internal/report"
)

// Prober checks that the model runner answers.
type Prober interface {
	Version(ctx context.Context) (string, error)
}

// Env is the ambient input shared by all steps.
type Env struct {
	Host     host.Host
	Config   *config.Config
	User     host.User
	ServerIP net.IP
	Hostname string
	Notify   *notify.Notifier
	Report   *report.Run
	Prober   Prober
	Sleep    func(ctx context.Context, d time.Duration) error
	Now      func() time.Time

	gpu *gpu.Vendor
}

// NewEnv gathers the host facts the pipeline needs. Failures here are fatal.
func NewEnv(ctx context.Context, h host.Host, cfg *config.Config, n *notify.Notifier) (*Env, error) {
	name, err := host.InvokingUserName(cfg.User)
	if err != nil {
		return nil, err
	}
	u, err := h.LookupUser(name)
	if err != nil {
		return nil, fmt.Errorf("looking up user %s: %w", name, err)
	}

	ip, err := h.DefaultIPv4()
	if err != nil {
		return nil, fmt.Errorf("detecting server IP: %w", err)
	}

	hostname := cfg.Hostname
	if hostname == "" {
		if hostname, err = h.Hostname(); err != nil {
			return nil, fmt.Errorf("reading hostname: %w", err)
		}
	}

	env := &Env{
		Host:     h,
		Config:   cfg,
		User:     *u,
		ServerIP: ip,
		Hostname: hostname,
		Notify:   n,
		Prober:   ollama.NewClient("127.0.0.1", cfg.Ollama.Port),
		Sleep:    sleep,
		Now:      time.Now,
	}
	env.Report = report.New(string(cfg.Variant), env.Now())
	env.Report.Hostname = hostname
	env.Report.ServerIP = ip.String()
	return env, nil
}

// files wraps the host so every written file lands in the run report.
func (e *Env) files() *recordingHost {
	return &recordingHost{Host: e.Host, run: e.Report}
}

type recordingHost struct {
	host.Host
	run *report.Run
}

func (r *recordingHost) WriteFile(path string, data []byte, mode os.FileMode) error {
	if err := r.Host.WriteFile(path, data, mode); err != nil {
		return err
	}
	r.run.AddArtifact(path, data, mode)
	return nil
}

// GPU classifies the host's GPU once per run.
func (e *Env) GPU(ctx context.Context) (gpu.Vendor, error) {
	if e.gpu != nil {
		return *e.gpu, nil
	}
	text, err := e.Host.PCIDevices(ctx)
	if err != nil {
		return gpu.Unknown, fmt.Errorf("enumerating PCI devices: %w", err)
	}
	v := gpu.Classify(text)
	e.gpu = &v
	return v, nil
}
