// Package firewall computes the inbound allowlist for a variant and applies it
// through a ufw-style backend.
package firewall

import (
	"context"
	"fmt"
	"strconv"

	"github.com/flo-mic/aibox/internal/config"
)

// Rule allows inbound traffic on one port.
type Rule struct {
	Port    int
	Proto   string // "tcp" or "udp"
	Comment string
}

func (r Rule) String() string {
	return strconv.Itoa(r.Port) + "/" + r.Proto
}

// Backend is the host firewall.
type Backend interface {
	ResetFirewall(ctx context.Context) error
	SetDefaultPolicy(ctx context.Context, direction, policy string) error
	AllowPort(ctx context.Context, r Rule) error
	EnableFirewall(ctx context.Context) error
}

// Allowlist returns the ordered, de-duplicated inbound rules for cfg.
func Allowlist(cfg *config.Config) []Rule {
	rules := []Rule{
		{Port: cfg.Firewall.SSHPort, Proto: "tcp", Comment: "ssh"},
		{Port: 80, Proto: "tcp", Comment: "http"},
		{Port: 443, Proto: "tcp", Comment: "https"},
	}
	if cfg.Variant != config.VariantLocalDomain {
		rules = append(rules,
			Rule{Port: cfg.WebUI.PublicPort, Proto: "tcp", Comment: "open-webui"},
			Rule{Port: cfg.Ollama.PublicPort, Proto: "tcp", Comment: "ollama"},
		)
		if cfg.Glances.Enabled {
			rules = append(rules, Rule{Port: cfg.Glances.PublicPort, Proto: "tcp", Comment: "glances"})
		}
	}
	for _, p := range cfg.Firewall.ExtraPorts {
		rules = append(rules, Rule{Port: p, Proto: "tcp", Comment: "extra"})
	}

	seen := make(map[string]bool, len(rules))
	out := rules[:0]
	for _, r := range rules {
		if seen[r.String()] {
			continue
		}
		seen[r.String()] = true
		out = append(out, r)
	}
	return out
}

// Apply resets the firewall, denies inbound and allows outbound by default,
// allows each rule, then enables it. The reset makes the result independent
// of whatever rules existed before.
func Apply(ctx context.Context, b Backend, rules []Rule) error {
	if err := b.ResetFirewall(ctx); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if err := b.SetDefaultPolicy(ctx, "incoming", "deny"); err != nil {
		return fmt.Errorf("default incoming: %w", err)
	}
	if err := b.SetDefaultPolicy(ctx, "outgoing", "allow"); err != nil {
		return fmt.Errorf("default outgoing: %w", err)
	}
	for _, r := range rules {
		if err := b.AllowPort(ctx, r); err != nil {
			return fmt.Errorf("allow %s: %w", r, err)
		}
	}
	if err := b.EnableFirewall(ctx); err != nil {
		return fmt.Errorf("enable: %w", err)
	}
	return nil
}

// Ports returns the port numbers of rules, for display.
func Ports(rules []Rule) []int {
	out := make([]int, len(rules))
	for i, r := range rules {
		out[i] = r.Port
	}
	return out
}
