package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"

	"github.com/vishvananda/netlink"
	"golang.org/x/sys/unix"
)

// ErrNoDefaultRoute is returned when the host has no IPv4 default route.
var ErrNoDefaultRoute = errors.New("no IPv4 default route")

func (l *Local) PCIDevices(ctx context.Context) (string, error) {
	if _, err := exec.LookPath("lspci"); err != nil {
		return "", nil
	}
	return l.output(ctx, "lspci")
}

func (l *Local) DefaultIPv4() (net.IP, error) {
	routes, err := netlink.RouteList(nil, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}

	var best *netlink.Route
	for i := range routes {
		r := &routes[i]
		if !isDefault(r) {
			continue
		}
		if best == nil || r.Priority < best.Priority {
			best = r
		}
	}
	if best == nil {
		return nil, ErrNoDefaultRoute
	}
	if best.Src != nil && best.Src.To4() != nil {
		return best.Src.To4(), nil
	}

	// Routes learned without a preferred source: use the link's first address.
	link, err := netlink.LinkByIndex(best.LinkIndex)
	if err != nil {
		return nil, fmt.Errorf("default route link %d: %w", best.LinkIndex, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("addresses of %s: %w", link.Attrs().Name, err)
	}
	for _, a := range addrs {
		if a.IPNet != nil && a.IP.To4() != nil {
			return a.IP.To4(), nil
		}
	}
	return nil, fmt.Errorf("%s has no IPv4 address", link.Attrs().Name)
}

// isDefault matches both representations netlink has used for 0.0.0.0/0.
func isDefault(r *netlink.Route) bool {
	if r.Dst == nil {
		return true
	}
	ones, _ := r.Dst.Mask.Size()
	return ones == 0 && r.Dst.IP.IsUnspecified()
}

func (l *Local) Hostname() (string, error) {
	return os.Hostname()
}

func (l *Local) Kernel() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return "unknown"
	}
	return unix.ByteSliceToString(uts.Sysname[:]) + " " + unix.ByteSliceToString(uts.Release[:])
}
