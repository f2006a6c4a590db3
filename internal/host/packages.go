package host

import (
	"context"
	"fmt"
	"os"
)

func (l *Local) PackageInstalled(ctx context.Context, name string) bool {
	fields, err := splitLine(l.pm.Query)
	if err != nil {
		return false
	}
	return l.probe(ctx, fields[0], append(fields[1:], name)...)
}

func (l *Local) InstallPackages(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}
	return l.runLine(ctx, l.pm.Install, names...)
}

func (l *Local) UpgradeSystem(ctx context.Context) error {
	return l.runLine(ctx, l.pm.Upgrade)
}

func (l *Local) RemoveStaleLock(ctx context.Context) (bool, error) {
	if l.pm.LockFile == "" {
		return false, nil
	}
	if _, err := os.Stat(l.pm.LockFile); os.IsNotExist(err) {
		return false, nil
	}
	fields, err := splitLine(l.pm.Install)
	if err != nil {
		return false, err
	}
	// pgrep exits 0 when a process matches.
	if l.probe(ctx, "pgrep", "-x", fields[0]) {
		return false, fmt.Errorf("%s is locked by a running %s process", l.pm.LockFile, fields[0])
	}
	fmt.Fprintf(l.log, "[aibox] Removing stale lock %s\n", l.pm.LockFile)
	if err := os.Remove(l.pm.LockFile); err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("removing %s: %w", l.pm.LockFile, err)
	}
	return true, nil
}
