package types

import (
	"net/netip"
	"regexp"
	"strconv"
	"strings"

	"github.com/miekg/dns"
)

const (
	suffixV4 = ".in-addr.arpa"
	suffixV6 = ".ip6.arpa"
)

var macPattern = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)

// IsMAC reports whether the value is a colon or dash separated MAC address.
func IsMAC(s string) bool {
	return macPattern.MatchString(s)
}

// IsDomainName reports whether the value is acceptable as a DNS name.
func IsDomainName(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.HasSuffix(s, ".") {
		return false
	}
	_, ok := dns.IsDomainName(s)
	return ok
}

// ReverseAddr parses a reverse pointer name into the address it denotes.
// IPv4 names carry four decimal labels under .in-addr.arpa, IPv6 names
// thirty-two nibbles under .ip6.arpa. Returns false on any other shape.
func ReverseAddr(name string) (netip.Addr, bool) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	if strings.HasSuffix(name, suffixV4) {
		return reverseIPv4(strings.TrimSuffix(name, suffixV4))
	}
	if strings.HasSuffix(name, suffixV6) {
		return reverseIPv6(strings.TrimSuffix(name, suffixV6))
	}
	return netip.Addr{}, false
}

func reverseIPv4(labels string) (netip.Addr, bool) {
	parts := strings.Split(labels, ".")
	if len(parts) != 4 {
		return netip.Addr{}, false
	}
	var b [4]byte
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 || n > 255 {
			return netip.Addr{}, false
		}
		// Labels are least significant first.
		b[3-i] = byte(n)
	}
	return netip.AddrFrom4(b), true
}

func reverseIPv6(labels string) (netip.Addr, bool) {
	parts := strings.Split(labels, ".")
	if len(parts) != 32 {
		return netip.Addr{}, false
	}
	var b [16]byte
	for i, part := range parts {
		if len(part) != 1 {
			return netip.Addr{}, false
		}
		n, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return netip.Addr{}, false
		}
		// Nibbles are least significant first, two per byte.
		idx := 15 - i/2
		if i%2 == 0 {
			b[idx] |= byte(n)
		} else {
			b[idx] |= byte(n) << 4
		}
	}
	return netip.AddrFrom16(b), true
}

// ReversePointer returns the PTR name of an address, without trailing dot.
func ReversePointer(a netip.Addr) string {
	arpa, err := dns.ReverseAddr(a.Unmap().String())
	if err != nil {
		return ""
	}
	return strings.TrimSuffix(arpa, ".")
}
