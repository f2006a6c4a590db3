package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flo-mic/aibox/internal/config"
)

// initAnswers is what the wizard collects.
type initAnswers struct {
	Variant    config.Variant
	User       string
	Domain     string
	Glances    bool
	ExtraPorts string // comma-separated
}

// Swapped in tests.
var askInit = runInitWizard

func newInitCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	c := &cobra.Command{
		Use:   "init",
		Short: "Write a config file interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := v.GetString("config")
			if path == "" {
				path = config.DefaultPath
			}
			if _, err := os.Stat(path); err == nil && !v.GetBool("force") {
				fmt.Fprintf(stdout, "%s already exists. Run with --force to overwrite.\n", path)
				return nil
			}

			fmt.Fprintln(stdout, "Welcome to aibox init. Let's choose how this machine should be set up.")
			fmt.Fprintln(stdout)

			a, err := askInit()
			if err != nil {
				return err
			}
			cfg, err := buildConfig(a)
			if err != nil {
				return err
			}

			if p, ok := variantPresets[cfg.Variant]; ok {
				guide := strings.ReplaceAll(p.guide, "<domain>", cfg.LocalDomain.Domain)
				guide = strings.ReplaceAll(guide, "<ip>", "<server-ip>")
				fmt.Fprintln(stdout, "  ── After apply ────────────────────────────────────────────────")
				fmt.Fprintln(stdout, guide)
				fmt.Fprintln(stdout, "  ───────────────────────────────────────────────────────────────")
				fmt.Fprintln(stdout)
			}

			if err := config.Save(path, cfg); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			fmt.Fprintf(stdout, "Created %s. Run 'sudo aibox' to provision.\n", path)
			return nil
		},
	}
	c.Flags().BoolP("force", "f", false, "overwrite an existing config file")
	return c
}

func runInitWizard() (initAnswers, error) {
	a := initAnswers{Variant: config.VariantNginx, Glances: true, User: os.Getenv("SUDO_USER")}

	options := make([]huh.Option[config.Variant], 0, len(config.Variants))
	for _, v := range config.Variants {
		options = append(options, huh.NewOption(variantPresets[v].label, v))
	}

	if err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[config.Variant]().
			Title("Reverse proxy").
			Description("How Open WebUI, Ollama and Glances are reached over TLS.").
			Options(options...).
			Value(&a.Variant),
		huh.NewInput().
			Title("User account for Open WebUI").
			Description("Open WebUI runs as this user with uv from ~/.local/bin.").
			Value(&a.User).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return fmt.Errorf("user cannot be empty")
				}
				return nil
			}),
		huh.NewConfirm().
			Title("Install the Glances monitoring dashboard?").
			Value(&a.Glances),
		huh.NewInput().
			Title("Extra ports to open").
			Description("Comma-separated TCP ports, e.g. 3000,9090. Leave empty for none.").
			Value(&a.ExtraPorts).
			Validate(func(s string) error {
				_, err := parsePorts(s)
				return err
			}),
	)).Run(); err != nil {
		return a, err
	}

	if a.Variant == config.VariantLocalDomain {
		if err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Local domain").
				Description("Services are served as chat.<domain>, ollama.<domain> and glances.<domain>.").
				Placeholder("ai.lan").
				Value(&a.Domain).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" || strings.ContainsAny(s, " /:") {
						return fmt.Errorf("enter a bare domain such as ai.lan")
					}
					return nil
				}),
		)).Run(); err != nil {
			return a, err
		}
	}
	return a, nil
}

// buildConfig turns wizard answers into a validated config.
func buildConfig(a initAnswers) (*config.Config, error) {
	cfg := config.Default()
	cfg.Variant = a.Variant
	cfg.User = strings.TrimSpace(a.User)
	cfg.Glances.Enabled = a.Glances
	if a.Variant == config.VariantLocalDomain {
		cfg.LocalDomain.Domain = strings.TrimSpace(a.Domain)
	}
	ports, err := parsePorts(a.ExtraPorts)
	if err != nil {
		return nil, err
	}
	cfg.Firewall.ExtraPorts = ports
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parsePorts(s string) ([]int, error) {
	var out []int
	for _, f := range strings.Split(s, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		p, err := strconv.Atoi(f)
		if err != nil || p < 1 || p > 65535 {
			return nil, fmt.Errorf("invalid port %q", f)
		}
		out = append(out, p)
	}
	return out, nil
}
