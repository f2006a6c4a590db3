package provision

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/firewall"
	"github.com/flo-mic/aibox/internal/gpu"
	"github.com/flo-mic/aibox/internal/systemd"
	"github.com/flo-mic/aibox/internal/templates"
	"github.com/flo-mic/aibox/internal/tlscert"
)

// Step names are stable identifiers used in logs and the run report.
const (
	StepSystemUpgrade = "system-upgrade"
	StepGPUDrivers    = "gpu-drivers"
	StepBaseTools     = "base-tools"
	StepUV            = "uv"
	StepOllama        = "ollama"
	StepWebServer     = "web-server"
	StepReverseProxy  = "reverse-proxy"
	StepLocalHosts    = "local-hosts"
	StepFirewall      = "firewall"
	StepGlances       = "glances"
	StepOpenWebUI     = "open-webui"
	StepSummary       = "summary"
)

const (
	NginxConfPath = "/etc/nginx/nginx.conf"
	CaddyfilePath = "/etc/caddy/Caddyfile"
)

var baseTools = []string{"curl", "openssh"}

var glancesPackages = []string{"glances", "python-bottle"}

// Pipeline returns the provisioning steps in execution order.
func Pipeline() []Step {
	return []Step{
		{
			Name:  StepSystemUpgrade,
			Apply: applySystemUpgrade,
			Fatal: true,
		},
		{
			Name:  StepGPUDrivers,
			Check: checkGPUDrivers,
			Apply: applyGPUDrivers,
		},
		{
			Name:   StepBaseTools,
			Check:  checkBaseTools,
			Apply:  applyBaseTools,
			Verify: verifyActive("sshd"),
		},
		{
			Name:  StepUV,
			Check: checkUV,
			Apply: applyUV,
			Fatal: true,
		},
		{
			Name:   StepOllama,
			Check:  checkOllama,
			Apply:  applyOllama,
			Verify: verifyOllama,
		},
		{
			Name:  StepWebServer,
			Check: checkWebServer,
			Apply: applyWebServer,
			Fatal: true,
		},
		{
			Name:   StepReverseProxy,
			Apply:  applyReverseProxy,
			Verify: verifyWebServer,
			Fatal:  true,
		},
		{
			Name:    StepLocalHosts,
			Check:   checkLocalHosts,
			Apply:   applyLocalHosts,
			Enabled: func(env *Env) bool { return env.Config.Variant == config.VariantLocalDomain },
		},
		{
			Name:  StepFirewall,
			Apply: applyFirewall,
		},
		{
			Name:    StepGlances,
			Apply:   applyGlances,
			Verify:  verifyActive("glances-web"),
			Enabled: func(env *Env) bool { return env.Config.Glances.Enabled },
		},
		{
			Name:   StepOpenWebUI,
			Apply:  applyOpenWebUI,
			Verify: verifyActive("openwebui"),
		},
		{
			Name:  StepSummary,
			Apply: applySummary,
		},
	}
}

// --- system-upgrade ---

func applySystemUpgrade(ctx context.Context, env *Env) error {
	removed, err := env.Host.RemoveStaleLock(ctx)
	if err != nil {
		return err
	}
	if removed {
		env.Notify.Warnf("removed stale package manager lock %s", env.Config.PackageManager.LockFile)
	}
	return env.Host.UpgradeSystem(ctx)
}

// --- gpu-drivers ---

func checkGPUDrivers(ctx context.Context, env *Env) (bool, error) {
	v, err := env.GPU(ctx)
	if err != nil {
		return false, err
	}
	return allInstalled(ctx, env, gpu.Drivers(v)), nil
}

func applyGPUDrivers(ctx context.Context, env *Env) error {
	v, err := env.GPU(ctx)
	if err != nil {
		return err
	}
	drivers := gpu.Drivers(v)
	if len(drivers) == 0 {
		env.Notify.Infof("no supported GPU detected (%s), running CPU-only", v)
		return nil
	}
	env.Notify.Infof("detected %s GPU, installing %s", v, strings.Join(drivers, " "))
	return env.Host.InstallPackages(ctx, missing(ctx, env, drivers)...)
}

// --- base-tools ---

func checkBaseTools(ctx context.Context, env *Env) (bool, error) {
	return allInstalled(ctx, env, baseTools) && env.Host.ServiceActive(ctx, "sshd"), nil
}

func applyBaseTools(ctx context.Context, env *Env) error {
	if err := env.Host.InstallPackages(ctx, missing(ctx, env, baseTools)...); err != nil {
		return err
	}
	return enableAndStart(ctx, env, "sshd")
}

// --- uv ---

func uvDirs(env *Env) []string {
	return []string{filepath.Join(env.User.Home, ".local", "bin")}
}

func checkUV(ctx context.Context, env *Env) (bool, error) {
	_, ok := env.Host.LookPath("uv", uvDirs(env)...)
	return ok, nil
}

func applyUV(ctx context.Context, env *Env) error {
	if err := env.Host.RunInstaller(ctx, env.Config.UV.InstallURL, env.User.Name); err != nil {
		return fmt.Errorf("running uv installer: %w", err)
	}
	p, ok := env.Host.LookPath("uv", uvDirs(env)...)
	if !ok {
		return fmt.Errorf("uv not found on PATH or in %s after installation", uvDirs(env)[0])
	}
	env.Notify.Infof("uv installed at %s", p)
	return nil
}

// --- ollama ---

func checkOllama(ctx context.Context, env *Env) (bool, error) {
	_, ok := env.Host.LookPath("ollama")
	return ok && env.Host.ServiceActive(ctx, "ollama"), nil
}

func applyOllama(ctx context.Context, env *Env) error {
	if _, ok := env.Host.LookPath("ollama"); !ok {
		if err := env.Host.RunInstaller(ctx, env.Config.Ollama.InstallURL, ""); err != nil {
			return fmt.Errorf("running ollama installer: %w", err)
		}
		if _, ok := env.Host.LookPath("ollama"); !ok {
			return fmt.Errorf("ollama not found on PATH after installation")
		}
	}
	return enableAndStart(ctx, env, "ollama")
}

func verifyOllama(ctx context.Context, env *Env) error {
	if err := env.Sleep(ctx, env.Config.Ollama.ReadyDelay); err != nil {
		return err
	}
	var errs []error
	if !env.Host.ServiceActive(ctx, "ollama") {
		errs = append(errs, fmt.Errorf("ollama service is not active"))
	}
	v, err := env.Prober.Version(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("ollama API not responding: %w", err))
	} else {
		env.Notify.Infof("ollama %s answering on 127.0.0.1:%d", v, env.Config.Ollama.Port)
	}
	return errors.Join(errs...)
}

// --- web-server ---

func checkWebServer(ctx context.Context, env *Env) (bool, error) {
	return env.Host.PackageInstalled(ctx, env.Config.Variant.WebServer()), nil
}

func applyWebServer(ctx context.Context, env *Env) error {
	ws := env.Config.Variant.WebServer()
	if err := env.Host.InstallPackages(ctx, ws); err != nil {
		return fmt.Errorf("installing %s: %w", ws, err)
	}
	if !env.Host.PackageInstalled(ctx, ws) {
		return fmt.Errorf("%s is not installed after installation", ws)
	}
	return nil
}

// --- reverse-proxy ---

func applyReverseProxy(ctx context.Context, env *Env) error {
	var err error
	if env.Config.Variant == config.VariantNginx {
		err = writeNginx(ctx, env)
	} else {
		err = writeCaddy(ctx, env)
	}
	if err != nil {
		return err
	}

	ws := env.Config.Variant.WebServer()
	if err := env.Host.EnableService(ctx, ws); err != nil {
		return err
	}
	if env.Host.ServiceActive(ctx, ws) {
		return env.Host.ReloadService(ctx, ws)
	}
	return env.Host.StartService(ctx, ws)
}

func writeNginx(ctx context.Context, env *Env) error {
	pair, err := certPair(env)
	if err != nil {
		return err
	}
	keyPath, certPath, err := tlscert.WritePair(env.files(), env.Config.TLS.Dir, pair)
	if err != nil {
		return err
	}

	d := templateData(env)
	d.TLSKey, d.TLSCert = keyPath, certPath
	if err := render(env, templates.NginxConf, d, NginxConfPath); err != nil {
		return err
	}
	if err := env.Host.Run(ctx, "nginx", "-t", "-c", NginxConfPath); err != nil {
		return fmt.Errorf("nginx configuration is invalid: %w", err)
	}
	return nil
}

func writeCaddy(ctx context.Context, env *Env) error {
	if err := render(env, caddyTemplate(env.Config), templateData(env), CaddyfilePath); err != nil {
		return err
	}
	if err := env.Host.Run(ctx, "caddy", "validate", "--config", CaddyfilePath, "--adapter", "caddyfile"); err != nil {
		return fmt.Errorf("caddy configuration is invalid: %w", err)
	}
	return nil
}

func certPair(env *Env) (*tlscert.Pair, error) {
	cfg := env.Config
	names := append([]string{env.ServerIP.String(), "localhost", "127.0.0.1", env.Hostname}, cfg.TLS.ExtraNames...)
	return tlscert.Generate(tlscert.Options{
		Names:        names,
		KeyBits:      cfg.TLS.KeyBits,
		ValidityDays: cfg.TLS.ValidityDays,
		Now:          env.Now(),
	})
}

func caddyTemplate(cfg *config.Config) string {
	if cfg.Variant == config.VariantLocalDomain {
		return templates.CaddyfileLocal
	}
	return templates.Caddyfile
}

func verifyWebServer(ctx context.Context, env *Env) error {
	return verifyActive(env.Config.Variant.WebServer())(ctx, env)
}

// --- local-hosts ---

func localHostNames(cfg *config.Config) []string {
	d := cfg.LocalDomain.Domain
	names := []string{"chat." + d, "ollama." + d}
	if cfg.Glances.Enabled {
		names = append(names, "glances."+d)
	}
	return names
}

// missingHostLines returns the rendered hosts lines not yet in the file.
func missingHostLines(env *Env) ([]string, error) {
	d := templateData(env)
	want, err := templates.Render(templates.Hosts, d)
	if err != nil {
		return nil, err
	}
	have, err := env.Host.ReadFile(env.Config.LocalDomain.HostsFile)
	if err != nil {
		return nil, err
	}

	present := map[string]bool{}
	for _, line := range strings.Split(string(have), "\n") {
		present[strings.Join(strings.Fields(line), " ")] = true
	}
	var out []string
	for _, line := range strings.Split(strings.TrimSpace(string(want)), "\n") {
		if !present[strings.Join(strings.Fields(line), " ")] {
			out = append(out, line)
		}
	}
	return out, nil
}

func checkLocalHosts(ctx context.Context, env *Env) (bool, error) {
	lines, err := missingHostLines(env)
	return len(lines) == 0, err
}

func applyLocalHosts(ctx context.Context, env *Env) error {
	lines, err := missingHostLines(env)
	if err != nil {
		return err
	}
	if len(lines) == 0 {
		return nil
	}
	path := env.Config.LocalDomain.HostsFile
	have, _ := env.Host.ReadFile(path)

	var buf bytes.Buffer
	if len(have) > 0 && have[len(have)-1] != '\n' {
		buf.WriteByte('\n')
	}
	for _, l := range lines {
		buf.WriteString(l + "\n")
	}
	return env.Host.AppendFile(path, buf.Bytes())
}

// --- firewall ---

func applyFirewall(ctx context.Context, env *Env) error {
	if err := env.Host.InstallPackages(ctx, missing(ctx, env, []string{"ufw"})...); err != nil {
		return err
	}
	rules := firewall.Allowlist(env.Config)
	if err := firewall.Apply(ctx, env.Host, rules); err != nil {
		return err
	}
	env.Notify.Infof("firewall allows %v", firewall.Ports(rules))
	return nil
}

// --- glances ---

func glancesConfigPath(env *Env) string {
	return filepath.Join(env.User.Home, ".config", "glances", "glances.conf")
}

func applyGlances(ctx context.Context, env *Env) error {
	if err := env.Host.InstallPackages(ctx, missing(ctx, env, glancesPackages)...); err != nil {
		return err
	}

	path := glancesConfigPath(env)
	d := templateData(env)
	if err := render(env, templates.GlancesConf, d, path); err != nil {
		return err
	}
	for _, p := range []string{filepath.Dir(filepath.Dir(path)), filepath.Dir(path), path} {
		if err := env.Host.Chown(p, env.User.UID, env.User.GID); err != nil {
			return fmt.Errorf("chown %s: %w", p, err)
		}
	}

	unit, err := templates.Render(templates.GlancesWebService, d)
	if err != nil {
		return err
	}
	_, err = systemd.InstallUnit(ctx, env.files(), "glances-web", unit)
	return err
}

// --- open-webui ---

func applyOpenWebUI(ctx context.Context, env *Env) error {
	uvx, ok := env.Host.LookPath("uvx", uvDirs(env)...)
	if !ok {
		return fmt.Errorf("uvx not found; is uv installed?")
	}
	d := templateData(env)
	d.UVX = uvx

	unit, err := templates.Render(templates.OpenWebUIService, d)
	if err != nil {
		return err
	}
	_, err = systemd.InstallUnit(ctx, env.files(), "openwebui", unit)
	return err
}

// --- summary ---

func applySummary(ctx context.Context, env *Env) error {
	env.Notify.Plain(Summary(env))
	return nil
}

// --- helpers ---

func templateData(env *Env) templates.Data {
	cfg := env.Config
	on, off := templates.GlancesPlugins(cfg.Glances.Plugins)
	return templates.Data{
		ServerIP:               env.ServerIP.String(),
		Hostname:               env.Hostname,
		SiteNames:              templates.SiteNames(env.ServerIP.String(), env.Hostname),
		Domain:                 cfg.LocalDomain.Domain,
		User:                   env.User.Name,
		Home:                   env.User.Home,
		WebUIPort:              cfg.WebUI.Port,
		WebUIPublicPort:        cfg.WebUI.PublicPort,
		Python:                 cfg.WebUI.Python,
		WebUIPackage:           cfg.WebUI.Package,
		OllamaPort:             cfg.Ollama.Port,
		OllamaPublicPort:       cfg.Ollama.PublicPort,
		GlancesEnabled:         cfg.Glances.Enabled,
		GlancesPort:            cfg.Glances.Port,
		GlancesPublicPort:      cfg.Glances.PublicPort,
		GlancesConfig:          glancesConfigPath(env),
		GlancesEnabledPlugins:  on,
		GlancesDisabledPlugins: off,
		HostNames:              localHostNames(cfg),
	}
}

func render(env *Env, name string, d templates.Data, path string) error {
	data, err := templates.Render(name, d)
	if err != nil {
		return err
	}
	return env.files().WriteFile(path, data, 0644)
}

func allInstalled(ctx context.Context, env *Env, pkgs []string) bool {
	return len(missing(ctx, env, pkgs)) == 0
}

func missing(ctx context.Context, env *Env, pkgs []string) []string {
	var out []string
	for _, p := range pkgs {
		if !env.Host.PackageInstalled(ctx, p) {
			out = append(out, p)
		}
	}
	return out
}

func enableAndStart(ctx context.Context, env *Env, unit string) error {
	if err := env.Host.EnableService(ctx, unit); err != nil {
		return err
	}
	return env.Host.StartService(ctx, unit)
}

func verifyActive(unit string) func(context.Context, *Env) error {
	return func(ctx context.Context, env *Env) error {
		if !env.Host.ServiceActive(ctx, unit) {
			return fmt.Errorf("%s service is not active", unit)
		}
		return nil
	}
}
