package host

import (
	"context"
	"strconv"

	"github.com/flo-mic/aibox/internal/firewall"
)

// ufw backs firewall.Backend.

func (l *Local) ResetFirewall(ctx context.Context) error {
	return l.Run(ctx, "ufw", "--force", "reset")
}

func (l *Local) SetDefaultPolicy(ctx context.Context, direction, policy string) error {
	return l.Run(ctx, "ufw", "default", policy, direction)
}

func (l *Local) AllowPort(ctx context.Context, r firewall.Rule) error {
	target := strconv.Itoa(r.Port)
	if r.Proto != "" {
		target += "/" + r.Proto
	}
	args := []string{"allow", target}
	if r.Comment != "" {
		args = append(args, "comment", r.Comment)
	}
	return l.Run(ctx, "ufw", args...)
}

func (l *Local) EnableFirewall(ctx context.Context) error {
	return l.Run(ctx, "ufw", "--force", "enable")
}
