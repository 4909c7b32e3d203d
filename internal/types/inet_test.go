package types

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddrKey(t *testing.T) {
	a, err := ParseAddr("192.168.1.1")
	require.NoError(t, err)
	assert.Equal(t, "c0a80101", AddrKey(a))

	a, err = ParseAddr("2001:db8::1")
	require.NoError(t, err)
	assert.Equal(t, "20010db8000000000000000000000001", AddrKey(a))
}

func TestAddrKey_Ordering(t *testing.T) {
	// Lexicographic order on keys must match numeric order on addresses.
	low := AddrKey(netip.MustParseAddr("10.0.0.9"))
	high := AddrKey(netip.MustParseAddr("10.0.0.10"))
	assert.Less(t, low, high)
}

func TestParseNetwork_MasksHostBits(t *testing.T) {
	p, err := ParseNetwork("192.168.1.55/24")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.0/24", p.String())
}

func TestBroadcast(t *testing.T) {
	p := MustParseNetwork("192.168.1.0/24")
	assert.Equal(t, "192.168.1.255", Broadcast(p).String())

	p = MustParseNetwork("10.0.0.0/30")
	assert.Equal(t, "10.0.0.3", Broadcast(p).String())

	p = MustParseNetwork("2001:db8::/64")
	assert.Equal(t, "2001:db8::ffff:ffff:ffff:ffff", Broadcast(p).String())
}

func TestNetworkBroadcastKeys(t *testing.T) {
	p := MustParseNetwork("192.168.1.0/24")
	assert.Equal(t, "c0a80100", NetworkKey(p))
	assert.Equal(t, "c0a801ff", BroadcastKey(p))

	// An address inside the block sorts between the two keys.
	inside := AddrKey(netip.MustParseAddr("192.168.1.128"))
	assert.Less(t, NetworkKey(p), inside)
	assert.Less(t, inside, BroadcastKey(p))

	// An address outside does not.
	outside := AddrKey(netip.MustParseAddr("192.168.2.1"))
	assert.Greater(t, outside, BroadcastKey(p))
}

func TestInetSortable(t *testing.T) {
	// All IPv4 keys sort before all IPv6 keys.
	v4 := InetSortable(MustParseNetwork("255.255.255.0/24"))
	v6 := InetSortable(MustParseNetwork("::/0"))
	assert.Less(t, v4, v6)

	// A supernet sorts before its subnets.
	outer := InetSortable(MustParseNetwork("192.168.0.0/16"))
	inner := InetSortable(MustParseNetwork("192.168.0.0/24"))
	assert.Less(t, outer, inner)
}

func TestContainsPrefix(t *testing.T) {
	outer := MustParseNetwork("192.168.0.0/16")
	inner := MustParseNetwork("192.168.1.128/30")
	assert.True(t, ContainsPrefix(outer, inner))
	assert.False(t, ContainsPrefix(inner, outer))
	assert.True(t, ContainsPrefix(outer, outer))

	// Different families never contain each other.
	v6 := MustParseNetwork("::/0")
	assert.False(t, ContainsPrefix(v6, outer))
}

func TestFamily(t *testing.T) {
	assert.Equal(t, 4, Family(netip.MustParseAddr("10.0.0.1")))
	assert.Equal(t, 4, Family(netip.MustParseAddr("::ffff:10.0.0.1")))
	assert.Equal(t, 6, Family(netip.MustParseAddr("2001:db8::1")))
}

func TestFormatWebsearch(t *testing.T) {
	assert.Equal(t, "%192%168%web%", FormatWebsearch("192.168 web"))
	assert.Equal(t, "%foo%", FormatWebsearch("FOO"))
	assert.Equal(t, "%", FormatWebsearch("   "))
	assert.Equal(t, "%", FormatWebsearch(""))
}
