package middleware

import (
	"fmt"
	"net"
)

// TrustedProxyList holds the CIDR ranges of the deployment's proxy tier.
// Forwarding headers such as X-Forwarded-For are believed only when the
// direct peer falls inside one of these ranges; an empty list trusts no
// one.
type TrustedProxyList struct {
	nets []*net.IPNet
}

// NewTrustedProxyList parses the given CIDRs. Blank entries are skipped so
// a comma-split config value with trailing separators loads cleanly.
func NewTrustedProxyList(cidrs []string) (*TrustedProxyList, error) {
	list := &TrustedProxyList{}
	for _, cidr := range cidrs {
		if cidr == "" {
			continue
		}
		_, ipNet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy cidr %q: %w", cidr, err)
		}
		list.nets = append(list.nets, ipNet)
	}
	return list, nil
}

// IsTrustedProxy reports whether the peer address sits inside the proxy
// tier. Unparseable addresses are never trusted.
func (t *TrustedProxyList) IsTrustedProxy(remoteAddr string) bool {
	ip := peerIP(remoteAddr)
	if ip == nil {
		return false
	}
	for _, ipNet := range t.nets {
		if ipNet.Contains(ip) {
			return true
		}
	}
	return false
}

// peerIP extracts the IP from a remote address, with or without a port.
func peerIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}
