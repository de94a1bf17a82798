//go:build linux

package ifstat

import (
	"fmt"
	"net"

	"github.com/vishvananda/netlink"
)

// EgressInterface resolves the interface that routes traffic toward
// target. Called once at startup; the result tags latency records for
// the process lifetime.
func EgressInterface(target string) (string, error) {
	ip := net.ParseIP(target)
	if ip == nil {
		ips, err := net.LookupIP(target)
		if err != nil || len(ips) == 0 {
			return "", fmt.Errorf("resolve target %q: %w", target, err)
		}
		ip = ips[0]
	}
	routes, err := netlink.RouteGet(ip)
	if err != nil {
		return "", fmt.Errorf("route lookup for %s: %w", ip, err)
	}
	if len(routes) == 0 {
		return "", fmt.Errorf("no route to %s", ip)
	}
	link, err := netlink.LinkByIndex(routes[0].LinkIndex)
	if err != nil {
		return "", fmt.Errorf("link lookup: %w", err)
	}
	return link.Attrs().Name, nil
}
