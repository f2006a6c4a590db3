// Package cmd wires the aibox command tree.
package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/flo-mic/aibox/internal/config"
)

// Version is set at build time with -ldflags "-X github.com/flo-mic/aibox/internal/cmd.Version=...".
var Version = "dev"

// NewRootCmd builds the command tree. Running it without a subcommand is
// the same as "aibox apply". Every flag can also be set as AIBOX_<FLAG>,
// e.g. AIBOX_VARIANT=caddy or AIBOX_SCHEDULE="@daily".
func NewRootCmd(stdout, stderr io.Writer) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("aibox")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "aibox",
		Short: "Provision a local AI workstation on Arch Linux",
		Long: `aibox turns a fresh Arch Linux install into a local AI box: Ollama,
Open WebUI, a TLS reverse proxy, a firewall, and an optional Glances
dashboard. Every step checks the host first, so re-running is safe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(cmd.Context(), v, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringP("config", "c", config.DefaultPath, "config file")
	pf.String("variant", "", "proxy variant: nginx, caddy or local-domain (overrides the config file)")
	pf.String("user", "", "account that runs Open WebUI (default: the sudo user)")
	addApplyFlags(root.Flags())

	root.AddCommand(
		newApplyCmd(v, stdout, stderr),
		newPlanCmd(v, stdout),
		newRenderCmd(v, stdout),
		newInitCmd(v, stdout),
		newVersionCmd(stdout),
	)
	return root
}

func addApplyFlags(fs *pflag.FlagSet) {
	fs.BoolP("yes", "y", false, "do not ask for confirmation")
	fs.String("schedule", "", "keep running and re-apply on this cron schedule, e.g. \"@daily\"")
	fs.Bool("debug", false, "also write the structured log to stderr")
}

// loadConfig reads the config file and applies flag and environment overrides.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	if path == "" {
		path = config.DefaultPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if s := v.GetString("variant"); s != "" {
		cfg.Variant = config.Variant(s)
	}
	if s := v.GetString("user"); s != "" {
		cfg.User = s
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
