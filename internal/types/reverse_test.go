package types

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReversePointer(t *testing.T) {
	assert.Equal(t, "1.1.168.192.in-addr.arpa",
		ReversePointer(netip.MustParseAddr("192.168.1.1")))
	assert.Equal(t,
		"1.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.0.8.b.d.0.1.0.0.2.ip6.arpa",
		ReversePointer(netip.MustParseAddr("2001:db8::1")))
}

func TestReverseAddr_RoundTrip(t *testing.T) {
	for _, s := range []string{"10.255.0.1", "192.168.1.1", "2001:db8::1", "fe80::42"} {
		addr := netip.MustParseAddr(s)
		back, ok := ReverseAddr(ReversePointer(addr))
		assert.True(t, ok, s)
		assert.Equal(t, addr, back, s)
	}
}

func TestReverseAddr_Invalid(t *testing.T) {
	for _, s := range []string{
		"example.com",
		"1.168.192.in-addr.arpa",
		"256.1.168.192.in-addr.arpa",
		"x.1.168.192.in-addr.arpa",
		"1.2.3.ip6.arpa",
	} {
		_, ok := ReverseAddr(s)
		assert.False(t, ok, s)
	}
}

func TestReverseAddr_TrailingDot(t *testing.T) {
	addr, ok := ReverseAddr("1.1.168.192.in-addr.arpa.")
	assert.True(t, ok)
	assert.Equal(t, "192.168.1.1", addr.String())
}

func TestIsMAC(t *testing.T) {
	assert.True(t, IsMAC("00:11:22:33:44:55"))
	assert.True(t, IsMAC("AA-BB-CC-DD-EE-FF"))
	assert.False(t, IsMAC("00:11:22:33:44"))
	assert.False(t, IsMAC("00:11:22:33:44:GG"))
	assert.False(t, IsMAC(""))
}

func TestIsDomainName(t *testing.T) {
	assert.True(t, IsDomainName("example.com"))
	assert.True(t, IsDomainName("_dmarc.example.com"))
	assert.False(t, IsDomainName(""))
	assert.False(t, IsDomainName(".example.com"))
	assert.False(t, IsDomainName("example.com."))
}
