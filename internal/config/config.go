package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where aibox looks for its config when --config is not given.
const DefaultPath = "/etc/aibox/config.yaml"

// ErrInvalidVariant is returned when the variant is not one of the known proxy layouts.
var ErrInvalidVariant = errors.New("invalid variant")

// Variant selects the reverse-proxy layout.
type Variant string

const (
	VariantNginx       Variant = "nginx"        // nginx + self-signed certificate
	VariantCaddy       Variant = "caddy"        // caddy with tls internal
	VariantLocalDomain Variant = "local-domain" // caddy on *.<domain> hostnames mapped in /etc/hosts
)

// Variants lists the supported variants in display order.
var Variants = []Variant{VariantNginx, VariantCaddy, VariantLocalDomain}

// WebServer returns the package and unit name of the proxy for this variant.
func (v Variant) WebServer() string {
	if v == VariantNginx {
		return "nginx"
	}
	return "caddy"
}

func (v Variant) valid() bool {
	for _, known := range Variants {
		if v == known {
			return true
		}
	}
	return false
}

// Config is loaded from /etc/aibox/config.yaml.
type Config struct {
	Variant  Variant `yaml:"variant"`
	User     string  `yaml:"user"`     // account that runs Open WebUI; defaults to SUDO_USER
	Hostname string  `yaml:"hostname"` // overrides the detected hostname in certificates and URLs

	StateDir string `yaml:"state_dir"`
	LogDir   string `yaml:"log_dir"`

	PackageManager PackageManagerConfig `yaml:"package_manager"`
	TLS            TLSConfig            `yaml:"tls"`
	UV             UVConfig             `yaml:"uv"`
	Ollama         OllamaConfig         `yaml:"ollama"`
	WebUI          WebUIConfig          `yaml:"webui"`
	Glances        GlancesConfig        `yaml:"glances"`
	LocalDomain    LocalDomainConfig    `yaml:"local_domain"`
	Firewall       FirewallConfig       `yaml:"firewall"`
}

// PackageManagerConfig holds the command lines used to query and mutate packages.
// Package names are appended to Install and Query.
type PackageManagerConfig struct {
	Install  string `yaml:"install"`
	Query    string `yaml:"query"`
	Upgrade  string `yaml:"upgrade"`
	LockFile string `yaml:"lock_file"`
}

// TLSConfig describes the self-signed pair generated for the nginx variant.
type TLSConfig struct {
	Dir          string   `yaml:"dir"`
	KeyBits      int      `yaml:"key_bits"`
	ValidityDays int      `yaml:"validity_days"`
	ExtraNames   []string `yaml:"extra_names,omitempty"` // additional SAN entries (IPs or DNS names)
}

// UVConfig points at the uv installer.
type UVConfig struct {
	InstallURL string `yaml:"install_url"`
}

// OllamaConfig describes the model runner.
type OllamaConfig struct {
	InstallURL string        `yaml:"install_url"`
	Port       int           `yaml:"port"`        // loopback API port
	PublicPort int           `yaml:"public_port"` // TLS port on the proxy
	ReadyDelay time.Duration `yaml:"ready_delay"`
}

// WebUIConfig describes the chat interface service.
type WebUIConfig struct {
	Port       int    `yaml:"port"`
	PublicPort int    `yaml:"public_port"`
	Python     string `yaml:"python"`
	Package    string `yaml:"package"`
}

// GlancesConfig describes the optional metrics dashboard.
type GlancesConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Port       int      `yaml:"port"`
	PublicPort int      `yaml:"public_port"`
	Plugins    []string `yaml:"plugins"`
}

// LocalDomainConfig is only used by the local-domain variant.
type LocalDomainConfig struct {
	Domain    string `yaml:"domain"`
	HostsFile string `yaml:"hosts_file"`
}

// FirewallConfig lists ports opened in addition to the variant's allowlist.
type FirewallConfig struct {
	SSHPort    int   `yaml:"ssh_port"`
	ExtraPorts []int `yaml:"extra_ports,omitempty"`
}

// Default returns a config with every field set to its default.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Glances.Enabled = true
	return cfg
}

// Load reads and validates the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}

	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks the fields that have no safe default.
func (c *Config) Validate() error {
	if !c.Variant.valid() {
		return fmt.Errorf("%w %q (want one of %v)", ErrInvalidVariant, c.Variant, Variants)
	}
	if c.TLS.KeyBits != 2048 && c.TLS.KeyBits != 4096 {
		return fmt.Errorf("tls.key_bits must be 2048 or 4096, got %d", c.TLS.KeyBits)
	}
	if c.TLS.ValidityDays <= 0 {
		return fmt.Errorf("tls.validity_days must be positive")
	}
	if c.Variant == VariantLocalDomain && c.LocalDomain.Domain == "" {
		return fmt.Errorf("local_domain.domain is required for variant %s", c.Variant)
	}

	ports := map[string]int{
		"ollama.port":        c.Ollama.Port,
		"ollama.public_port": c.Ollama.PublicPort,
		"webui.port":         c.WebUI.Port,
		"webui.public_port":  c.WebUI.PublicPort,
		"firewall.ssh_port":  c.Firewall.SSHPort,
	}
	if c.Glances.Enabled {
		ports["glances.port"] = c.Glances.Port
		ports["glances.public_port"] = c.Glances.PublicPort
	}
	seen := make(map[int]string, len(ports))
	for name, p := range ports {
		if p < 1 || p > 65535 {
			return fmt.Errorf("%s: port %d out of range", name, p)
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("%s and %s both use port %d", other, name, p)
		}
		seen[p] = name
	}
	for _, p := range c.Firewall.ExtraPorts {
		if p < 1 || p > 65535 {
			return fmt.Errorf("firewall.extra_ports: port %d out of range", p)
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Variant == "" {
		cfg.Variant = VariantNginx
	}
	if cfg.StateDir == "" {
		cfg.StateDir = "/var/lib/aibox"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "/var/log/aibox"
	}

	pm := &cfg.PackageManager
	if pm.Install == "" {
		pm.Install = "pacman -S --noconfirm --needed"
	}
	if pm.Query == "" {
		pm.Query = "pacman -Q"
	}
	if pm.Upgrade == "" {
		pm.Upgrade = "pacman -Syu --noconfirm"
	}
	if pm.LockFile == "" {
		pm.LockFile = "/var/lib/pacman/db.lck"
	}

	if cfg.TLS.Dir == "" {
		cfg.TLS.Dir = "/etc/nginx/ssl"
	}
	if cfg.TLS.KeyBits == 0 {
		cfg.TLS.KeyBits = 2048
	}
	if cfg.TLS.ValidityDays == 0 {
		cfg.TLS.ValidityDays = 3650
	}

	if cfg.UV.InstallURL == "" {
		cfg.UV.InstallURL = "https://astral.sh/uv/install.sh"
	}

	if cfg.Ollama.InstallURL == "" {
		cfg.Ollama.InstallURL = "https://ollama.com/install.sh"
	}
	if cfg.Ollama.Port == 0 {
		cfg.Ollama.Port = 11434
	}
	if cfg.Ollama.PublicPort == 0 {
		cfg.Ollama.PublicPort = 11435
	}
	if cfg.Ollama.ReadyDelay == 0 {
		cfg.Ollama.ReadyDelay = 5 * time.Second
	}

	if cfg.WebUI.Port == 0 {
		cfg.WebUI.Port = 8080
	}
	if cfg.WebUI.PublicPort == 0 {
		cfg.WebUI.PublicPort = 8443
	}
	if cfg.WebUI.Python == "" {
		cfg.WebUI.Python = "3.11"
	}
	if cfg.WebUI.Package == "" {
		cfg.WebUI.Package = "open-webui@latest"
	}

	if cfg.Glances.Port == 0 {
		cfg.Glances.Port = 61208
	}
	if cfg.Glances.PublicPort == 0 {
		cfg.Glances.PublicPort = 61209
	}
	if len(cfg.Glances.Plugins) == 0 {
		cfg.Glances.Plugins = []string{"cpu", "mem", "fs", "gpu", "sensors"}
	}

	if cfg.LocalDomain.HostsFile == "" {
		cfg.LocalDomain.HostsFile = "/etc/hosts"
	}

	if cfg.Firewall.SSHPort == 0 {
		cfg.Firewall.SSHPort = 22
	}
}
