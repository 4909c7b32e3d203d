// Package types provides the CIDR/INET primitives shared by the entity
// store and the invariant engine. Addresses and networks are persisted as
// hex encoded byte strings so containment and ordering can be expressed
// with plain lexicographic comparisons on stores that lack native CIDR
// operators.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"net/netip"
	"strings"
)

// Family returns the IP family of an address: 4 or 6.
func Family(a netip.Addr) int {
	if a.Is4() || a.Is4In6() {
		return 4
	}
	return 6
}

// ParseAddr parses an IPv4 or IPv6 address in canonical form.
func ParseAddr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, err
	}
	return a.Unmap(), nil
}

// ParseNetwork parses a CIDR block. The host bits are masked off so the
// stored representation is always the network address.
func ParseNetwork(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(strings.TrimSpace(s))
	if err != nil {
		return netip.Prefix{}, err
	}
	return p.Masked(), nil
}

// AddrKey returns the hex encoded byte form of an address. IPv4 keys are
// 8 hex characters, IPv6 keys 32, so keys only compare within one family.
func AddrKey(a netip.Addr) string {
	b := a.Unmap().AsSlice()
	return hex.EncodeToString(b)
}

// Broadcast returns the highest address of a prefix. For IPv6 this is the
// last address of the block.
func Broadcast(p netip.Prefix) netip.Addr {
	b := p.Masked().Addr().AsSlice()
	bits := p.Bits()
	for i := bits / 8; i < len(b); i++ {
		mask := byte(0xff)
		if i == bits/8 && bits%8 != 0 {
			mask = 0xff >> (bits % 8)
		}
		b[i] |= mask
	}
	a, _ := netip.AddrFromSlice(b)
	return a
}

// NetworkKey returns the sortable key of the first address of a prefix.
func NetworkKey(p netip.Prefix) string {
	return AddrKey(p.Masked().Addr())
}

// BroadcastKey returns the sortable key of the last address of a prefix.
func BroadcastKey(p netip.Prefix) string {
	return AddrKey(Broadcast(p))
}

// InetSortable encodes a prefix as family_be16 || network_bytes ||
// prefixlen_be16, hex encoded. Sorting these keys orders networks by
// family, then numerically, then most general first.
func InetSortable(p netip.Prefix) string {
	return inetKey(p, p.Masked().Addr())
}

// InetBroadcast is InetSortable with the network address replaced by the
// broadcast address.
func InetBroadcast(p netip.Prefix) string {
	return inetKey(p, Broadcast(p))
}

func inetKey(p netip.Prefix, a netip.Addr) string {
	var fam [2]byte
	binary.BigEndian.PutUint16(fam[:], uint16(Family(p.Addr())))
	var plen [2]byte
	binary.BigEndian.PutUint16(plen[:], uint16(p.Bits()))
	return hex.EncodeToString(fam[:]) + AddrKey(a) + hex.EncodeToString(plen[:])
}

// ContainsPrefix reports whether outer strictly or equally contains inner.
// Prefixes of different families never contain each other.
func ContainsPrefix(outer, inner netip.Prefix) bool {
	if Family(outer.Addr()) != Family(inner.Addr()) {
		return false
	}
	return outer.Bits() <= inner.Bits() && outer.Contains(inner.Masked().Addr())
}

// FormatWebsearch converts a free text query into a case-insensitive LIKE
// pattern: every run of non-word characters becomes a wildcard.
func FormatWebsearch(query string) string {
	var b strings.Builder
	b.WriteByte('%')
	word := false
	for _, r := range strings.ToLower(query) {
		alnum := r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if alnum {
			b.WriteRune(r)
			word = true
		} else if word {
			b.WriteByte('%')
			word = false
		}
	}
	if word {
		b.WriteByte('%')
	}
	if b.Len() == 1 {
		return "%"
	}
	return b.String()
}

// MustParseNetwork is a test helper.
func MustParseNetwork(s string) netip.Prefix {
	p, err := ParseNetwork(s)
	if err != nil {
		panic(fmt.Sprintf("invalid network %q: %v", s, err))
	}
	return p
}
