package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
)

type proxyMatcher struct {
	addrs map[netip.Addr]struct{}
	nets  []netip.Prefix
}

func newProxyMatcher(entries []string, logger *slog.Logger) *proxyMatcher {
	if len(entries) == 0 {
		return nil
	}

	addrs := make(map[netip.Addr]struct{})
	var nets []netip.Prefix

	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "/") {
			prefix, err := netip.ParsePrefix(entry)
			if err != nil {
				if logger != nil {
					logger.Warn("invalid trusted proxy CIDR", "entry", entry, "error", err)
				}
				continue
			}
			nets = append(nets, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(entry)
		if err != nil {
			if logger != nil {
				logger.Warn("invalid trusted proxy IP", "entry", entry)
			}
			continue
		}
		addrs[addr.Unmap()] = struct{}{}
	}

	if len(addrs) == 0 && len(nets) == 0 {
		return nil
	}

	return &proxyMatcher{addrs: addrs, nets: nets}
}

func (m *proxyMatcher) IsTrusted(addr netip.Addr) bool {
	if m == nil || !addr.IsValid() {
		return false
	}
	addr = addr.Unmap()
	if _, ok := m.addrs[addr]; ok {
		return true
	}
	for _, prefix := range m.nets {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// clientAddrFromRequest resolves the client address of an HTTP request.
// Requests arriving from a trusted proxy must carry the real client
// address in X-Real-IP or X-Forwarded-For; a trusted peer that sends
// neither is an error rather than a localhost client.
func clientAddrFromRequest(r *http.Request, trusted *proxyMatcher) (netip.Addr, error) {
	peer, err := parseForwardedAddr(r.RemoteAddr)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("server: bad remote address %q: %w", r.RemoteAddr, err)
	}
	if !trusted.IsTrusted(peer) {
		return peer, nil
	}

	if real := strings.TrimSpace(r.Header.Get("X-Real-IP")); real != "" {
		addr, err := parseForwardedAddr(real)
		if err != nil {
			return netip.Addr{}, fmt.Errorf("server: bad X-Real-IP %q: %w", real, err)
		}
		return addr, nil
	}

	forwarded := parseXForwardedFor(r.Header.Get("X-Forwarded-For"))
	if len(forwarded) == 0 {
		return netip.Addr{}, ErrNoForwardedAddr
	}

	// Walk right to left past other trusted proxies to the real client.
	for i := len(forwarded) - 1; i >= 0; i-- {
		if !trusted.IsTrusted(forwarded[i]) {
			return forwarded[i], nil
		}
	}
	return forwarded[0], nil
}

func parseXForwardedFor(header string) []netip.Addr {
	if header == "" {
		return nil
	}

	var out []netip.Addr
	for _, part := range strings.Split(header, ",") {
		addr, err := parseForwardedAddr(part)
		if err == nil {
			out = append(out, addr)
		}
	}
	return out
}

func parseForwardedAddr(value string) (netip.Addr, error) {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "\"")
	if addrPort, err := netip.ParseAddrPort(value); err == nil {
		return addrPort.Addr().Unmap(), nil
	}
	value = strings.Trim(value, "[]")
	if zone := strings.Index(value, "%"); zone != -1 {
		value = value[:zone]
	}
	addr, err := netip.ParseAddr(value)
	if err != nil {
		return netip.Addr{}, err
	}
	return addr.Unmap(), nil
}
