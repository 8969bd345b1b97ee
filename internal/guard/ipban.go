package guard

import (
	"fmt"
	"net"
	"net/netip"
	"strings"
	"sync"
)

// IPBanList matches client addresses against banned IPs and CIDR ranges.
// It is safe for concurrent use.
type IPBanList struct {
	mu       sync.RWMutex
	prefixes []netip.Prefix
}

// NewIPBanList parses entries such as "203.0.113.7" or "10.0.0.0/8".
func NewIPBanList(entries []string) (*IPBanList, error) {
	l := &IPBanList{}
	for _, e := range entries {
		if err := l.Add(e); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add bans one more address or range.
func (l *IPBanList) Add(entry string) error {
	entry = strings.TrimSpace(entry)
	if entry == "" {
		return nil
	}
	var p netip.Prefix
	if strings.Contains(entry, "/") {
		pp, err := netip.ParsePrefix(entry)
		if err != nil {
			return fmt.Errorf("banned ip %q: %w", entry, err)
		}
		p = pp.Masked()
	} else {
		a, err := netip.ParseAddr(entry)
		if err != nil {
			return fmt.Errorf("banned ip %q: %w", entry, err)
		}
		a = a.Unmap()
		p = netip.PrefixFrom(a, a.BitLen())
	}
	l.mu.Lock()
	l.prefixes = append(l.prefixes, p)
	l.mu.Unlock()
	return nil
}

// Len returns the number of entries.
func (l *IPBanList) Len() int {
	if l == nil {
		return 0
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.prefixes)
}

// Banned reports whether addr, an IP with or without a port, is banned.
// Unparseable addresses are not banned.
func (l *IPBanList) Banned(addr string) bool {
	if l == nil {
		return false
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	a, err := netip.ParseAddr(strings.TrimSpace(addr))
	if err != nil {
		return false
	}
	a = a.Unmap()
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, p := range l.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}
