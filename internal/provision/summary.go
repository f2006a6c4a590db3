package provision

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/flo-mic/aibox/internal/config"
	"github.com/flo-mic/aibox/internal/firewall"
	"github.com/flo-mic/aibox/internal/report"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	keyStyle   = lipgloss.NewStyle().Bold(true).Width(13)
	noteStyle  = lipgloss.NewStyle().Faint(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// URL is one access point printed in the summary.
type URL struct {
	Label string
	URL   string
}

// AccessURLs lists where the services can be reached from outside.
func AccessURLs(cfg *config.Config, ip string) []URL {
	if cfg.Variant == config.VariantLocalDomain {
		d := cfg.LocalDomain.Domain
		urls := []URL{
			{"Open WebUI", "https://chat." + d},
			{"Ollama API", "https://ollama." + d},
		}
		if cfg.Glances.Enabled {
			urls = append(urls, URL{"Glances", "https://glances." + d})
		}
		return urls
	}

	urls := []URL{
		{"Open WebUI", "https://" + ip},
		{"Open WebUI", fmt.Sprintf("https://%s:%d", ip, cfg.WebUI.PublicPort)},
		{"Ollama API", fmt.Sprintf("https://%s:%d", ip, cfg.Ollama.PublicPort)},
	}
	if cfg.Glances.Enabled {
		urls = append(urls, URL{"Glances", fmt.Sprintf("https://%s:%d", ip, cfg.Glances.PublicPort)})
	}
	return urls
}

// Summary renders the end-of-run box.
func Summary(env *Env) string {
	cfg := env.Config
	ip := env.ServerIP.String()

	var ports []string
	for _, p := range firewall.Ports(firewall.Allowlist(cfg)) {
		ports = append(ports, strconv.Itoa(p))
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("aibox provisioning complete") + "\n\n")
	row := func(k, v string) {
		b.WriteString(keyStyle.Render(k) + v + "\n")
	}
	row("Server IP", ip)
	row("Hostname", env.Hostname)
	row("Variant", string(cfg.Variant))
	row("Kernel", env.Host.Kernel())
	if env.gpu != nil {
		row("GPU", env.gpu.String())
	}
	row("Open ports", strings.Join(ports, ", "))
	b.WriteString("\n")
	for _, u := range AccessURLs(cfg, ip) {
		row(u.Label, u.URL)
	}

	if cfg.Variant == config.VariantLocalDomain {
		b.WriteString("\n" + noteStyle.Render(fmt.Sprintf(
			"Map %s to %s in your clients' hosts file or local DNS.",
			strings.Join(localHostNames(cfg), ", "), ip)))
	} else {
		b.WriteString("\n" + noteStyle.Render("Certificates are self-signed; expect a browser warning on first visit."))
	}

	if env.Report != nil {
		counts := map[report.Outcome]int{}
		for _, s := range env.Report.Steps {
			counts[s.Outcome]++
		}
		b.WriteString("\n" + noteStyle.Render(fmt.Sprintf("Steps: %d applied, %d skipped, %d warned, %d failed. Run %s.",
			counts[report.Applied], counts[report.Skipped], counts[report.Warned], counts[report.Failed], env.Report.ID)))
	}

	return boxStyle.Render(b.String())
}
