package utils

import (
	"net"
	"strings"
)

// cgnat is 100.64.0.0/10, used by carrier NAT and by WARP and Tailscale
// style overlay networks. Hosts inside it rarely manage direct media paths.
var cgnat = func() *net.IPNet {
	_, block, _ := net.ParseCIDR("100.64.0.0/10")
	return block
}()

// vpnIfacePrefixes match virtual adapters that usually mean a VPN is
// routing traffic.
var vpnIfacePrefixes = []string{"tun", "tap", "wg", "ppp", "warp", "utun", "tailscale"}

// ShouldForceRelay reports whether the host is likely behind a VPN or
// carrier NAT, in which case media should go through TURN from the start
// instead of waiting for direct ICE to fail.
func ShouldForceRelay() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if looksLikeVPN(iface.Name) {
			return true
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			if cgnat.Contains(addrIP(addr)) {
				return true
			}
		}
	}
	return false
}

func looksLikeVPN(name string) bool {
	name = strings.ToLower(name)
	for _, prefix := range vpnIfacePrefixes {
		if strings.Contains(name, prefix) {
			return true
		}
	}
	return false
}

func addrIP(addr net.Addr) net.IP {
	switch v := addr.(type) {
	case *net.IPNet:
		return v.IP
	case *net.IPAddr:
		return v.IP
	}
	return nil
}
