package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMinStatus(t *testing.T) {
	assert.Equal(t, StatusEnabled, MinStatus())
	assert.Equal(t, StatusEnabled, MinStatus(StatusEnabled, StatusEnabled))
	assert.Equal(t, StatusDisabled, MinStatus(StatusEnabled, StatusDisabled))
	assert.Equal(t, StatusDeleted, MinStatus(StatusDisabled, StatusDeleted, StatusEnabled))
}

func TestSubnetValidate(t *testing.T) {
	s := &Subnet{
		Name:   "office",
		VrfID:  1,
		Ranges: []SubnetRange{{Range: "192.168.1.55/24"}},
	}
	s.Status = StatusEnabled
	require.NoError(t, s.Validate())

	// Host bits are masked off and the derived columns filled.
	assert.Equal(t, "192.168.1.0/24", s.Ranges[0].Range)
	assert.Equal(t, 4, s.Ranges[0].Version)
	assert.Equal(t, "c0a80100", s.Ranges[0].StartIP)
	assert.Equal(t, "c0a801ff", s.Ranges[0].EndIP)
	assert.Equal(t, 1, s.Ranges[0].VrfID)
	assert.Equal(t, "192.168.1.0/24", s.RangeString)
}

func TestSubnetValidate_NoRange(t *testing.T) {
	s := &Subnet{Name: "empty", VrfID: 1}
	s.Status = StatusEnabled
	err := s.Validate()
	require.Error(t, err)
	verr := &ValidationError{}
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ranges", verr.Field)
}

func TestSubnetValidate_BadRange(t *testing.T) {
	s := &Subnet{
		Name:   "broken",
		VrfID:  1,
		Ranges: []SubnetRange{{Range: "not-a-network"}},
	}
	s.Status = StatusEnabled
	assert.Error(t, s.Validate())
}

func TestSubnetValidate_DuplicateRange(t *testing.T) {
	s := &Subnet{
		Name:  "dup",
		VrfID: 1,
		Ranges: []SubnetRange{
			{Range: "10.0.0.0/24"},
			{Range: "10.0.0.1/24"},
		},
	}
	s.Status = StatusEnabled
	assert.Error(t, s.Validate())
}

func TestSubnetValidate_RirStatus(t *testing.T) {
	bad := "SOMETHING"
	s := &Subnet{
		Name:      "rir",
		VrfID:     1,
		RirStatus: &bad,
		Ranges:    []SubnetRange{{Range: "10.0.0.0/24"}},
	}
	s.Status = StatusEnabled
	assert.Error(t, s.Validate())

	good := RirStatusAssigned
	s.RirStatus = &good
	assert.NoError(t, s.Validate())
}

func TestSubnetSortRanges(t *testing.T) {
	s := &Subnet{
		Name:  "mixed",
		VrfID: 1,
		Ranges: []SubnetRange{
			{Range: "192.168.2.0/24"},
			{Range: "2001:db8::/64"},
			{Range: "192.168.1.0/24"},
		},
	}
	s.Status = StatusEnabled
	require.NoError(t, s.Validate())

	// IPv6 first, then IPv4 by numeric address.
	assert.Equal(t, []string{"2001:db8::/64", "192.168.1.0/24", "192.168.2.0/24"}, s.RangeList())
}

func TestSubnetRangeDhcpPool(t *testing.T) {
	start, end := "10.0.0.10", "10.0.0.200"
	r := &SubnetRange{Range: "10.0.0.0/24", Dhcp: true, DhcpStartIP: &start, DhcpEndIP: &end}
	require.NoError(t, r.Normalize())

	// Pool boundaries outside the range are rejected.
	outside := "10.0.1.5"
	r = &SubnetRange{Range: "10.0.0.0/24", Dhcp: true, DhcpStartIP: &start, DhcpEndIP: &outside}
	assert.Error(t, r.Normalize())

	// Network and broadcast addresses are not assignable.
	network := "10.0.0.0"
	r = &SubnetRange{Range: "10.0.0.0/24", Dhcp: true, DhcpStartIP: &network, DhcpEndIP: &end}
	assert.Error(t, r.Normalize())
	broadcast := "10.0.0.255"
	r = &SubnetRange{Range: "10.0.0.0/24", Dhcp: true, DhcpStartIP: &start, DhcpEndIP: &broadcast}
	assert.Error(t, r.Normalize())

	// Missing pool boundaries.
	r = &SubnetRange{Range: "10.0.0.0/24", Dhcp: true}
	assert.Error(t, r.Normalize())

	// Inverted pool.
	r = &SubnetRange{Range: "10.0.0.0/24", Dhcp: true, DhcpStartIP: &end, DhcpEndIP: &start}
	assert.Error(t, r.Normalize())
}

func TestSubnetAuditAttributes(t *testing.T) {
	start, end := "10.0.0.10", "10.0.0.100"
	s := &Subnet{
		Name:  "office",
		VrfID: 1,
		Ranges: []SubnetRange{
			{Range: "10.0.0.0/24", Dhcp: true, DhcpStartIP: &start, DhcpEndIP: &end},
		},
		Zones: []DnsZone{{Name: "example.com"}, {Name: "corp.example.com"}},
	}
	s.Status = StatusEnabled
	require.NoError(t, s.Validate())

	attrs := s.AuditAttributes()
	assert.Equal(t, "10.0.0.0/24 (dhcp 10.0.0.10 - 10.0.0.100)", attrs["ranges"])
	assert.Equal(t, "corp.example.com example.com", attrs["dnszones"])
}
