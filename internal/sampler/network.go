// Primary address selection — picks the host's first non-loopback IPv4.
// Uses gopsutil for cross-platform interface enumeration.
package sampler

import (
	"context"
	"net"
	"strings"

	psnet "github.com/shirou/gopsutil/v3/net"
	"go.uber.org/zap"
)

// primaryIPv4 returns the first non-loopback IPv4 address in OS enumeration
// order, or nil if none is found. Enumeration failures are logged and
// reported as "no address" rather than failing the sample.
func (s *Sampler) primaryIPv4(ctx context.Context) *string {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		s.logger.Debug("Interface enumeration failed", zap.Error(err))
		return nil
	}
	return firstIPv4(ifaces)
}

// firstIPv4 scans interfaces in order and returns the first usable IPv4.
func firstIPv4(ifaces []psnet.InterfaceStat) *string {
	for _, iface := range ifaces {
		if isLoopback(iface) {
			continue
		}
		for _, addr := range iface.Addrs {
			ip := parseIPv4(addr.Addr)
			if ip == nil || ip.IsLoopback() {
				continue
			}
			v := ip.String()
			return &v
		}
	}
	return nil
}

// isLoopback reports whether the interface carries the loopback flag.
func isLoopback(iface psnet.InterfaceStat) bool {
	for _, flag := range iface.Flags {
		if strings.EqualFold(flag, "loopback") {
			return true
		}
	}
	return false
}

// parseIPv4 parses an interface address, which gopsutil reports in either
// plain or CIDR notation. Returns nil for anything that is not IPv4.
func parseIPv4(addr string) net.IP {
	ipStr := addr
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		ipStr = addr[:i]
	}
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return nil
	}
	return ip.To4()
}
