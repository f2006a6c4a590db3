package cmd

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/flo-mic/aibox/internal/notify"
	"github.com/flo-mic/aibox/internal/provision"
)

func newPlanCmd(v *viper.Viper, stdout io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show which steps would run, without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			h, closeHost := newHostFunc(ctx, cfg, io.Discard)
			defer closeHost()

			env, err := provision.NewEnv(ctx, h, cfg, notify.Discard())
			if err != nil {
				return err
			}
			plan, err := (&provision.Runner{Steps: provision.Pipeline()}).Plan(ctx, env)
			if err != nil {
				return err
			}
			slog.Debug("plan evaluated", "steps", len(plan))
			fmt.Fprintf(stdout, "Variant %s on %s (%s)\n\n", cfg.Variant, env.Hostname, env.ServerIP)
			fmt.Fprintln(stdout, renderPlan(plan))
			return nil
		},
	}
}

var (
	planHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	planCell   = lipgloss.NewStyle().Padding(0, 1)
)

func renderPlan(plan []provision.PlanEntry) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STEP", "ACTION", "FATAL", "REASON").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return planHeader
			}
			return planCell
		})
	for _, e := range plan {
		fatal := ""
		if e.Fatal {
			fatal = "yes"
		}
		t.Row(e.Step, string(e.Action), fatal, e.Reason)
	}
	return t.Render()
}
