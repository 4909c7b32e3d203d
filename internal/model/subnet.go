package model

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"

	"github.com/ikus060/udb/internal/types"
)

// RIR allocation states for a subnet.
const (
	RirStatusAssigned       = "ASSIGNED"
	RirStatusAllocatedByLir = "ALLOCATED-BY-LIR"
)

// SubnetRange is a CIDR block belonging to a parent subnet. The version,
// start and end columns are derived from the range so containment can be
// answered with lexicographic comparisons; callers never set them.
type SubnetRange struct {
	ID       int    `gorm:"primaryKey;autoIncrement" json:"id"`
	SubnetID int    `gorm:"not null;index" json:"subnet_id"`
	VrfID    int    `gorm:"not null;index:subnetrange_vrf_range_ix" json:"vrf_id"`
	Range    string `gorm:"type:varchar(64);not null;index:subnetrange_vrf_range_ix" json:"range"`
	Version  int    `gorm:"not null;index" json:"version"`
	StartIP  string `gorm:"column:start_ip;type:varchar(32);not null;index" json:"-"`
	EndIP    string `gorm:"column:end_ip;type:varchar(32);not null;index" json:"-"`
	SortKey  string `gorm:"type:varchar(40);not null;index" json:"-"`

	// Optional DHCP pool inside the range.
	Dhcp        bool    `gorm:"not null;default:false" json:"dhcp"`
	DhcpStartIP *string `gorm:"type:varchar(64)" json:"dhcp_start_ip"`
	DhcpEndIP   *string `gorm:"type:varchar(64)" json:"dhcp_end_ip"`
}

// TableName specifies the table name for SubnetRange.
func (SubnetRange) TableName() string { return "subnetrange" }

// Prefix parses the stored range.
func (r *SubnetRange) Prefix() (netip.Prefix, error) {
	return types.ParseNetwork(r.Range)
}

// Normalize parses the range, rewrites it in canonical form and fills the
// derived columns. Reports the error on the parent's `ranges` field, like
// the rest of the subnet validation.
func (r *SubnetRange) Normalize() error {
	prefix, err := types.ParseNetwork(r.Range)
	if err != nil {
		return NewValidationError("ranges", "`%s` does not appear to be a valid IPv6 or IPv4 network", r.Range)
	}
	r.Range = prefix.String()
	r.Version = types.Family(prefix.Addr())
	r.StartIP = types.NetworkKey(prefix)
	r.EndIP = types.BroadcastKey(prefix)
	r.SortKey = types.InetSortable(prefix)
	return r.validateDhcp(prefix)
}

func (r *SubnetRange) validateDhcp(prefix netip.Prefix) error {
	if !r.Dhcp {
		return nil
	}
	if r.DhcpStartIP == nil || r.DhcpEndIP == nil {
		return NewValidationError("dhcp_start_ip", "DHCP start and end addresses are required when DHCP is enabled")
	}
	start, err := types.ParseAddr(*r.DhcpStartIP)
	if err != nil {
		return NewValidationError("dhcp_start_ip", "must be a valid IPv4 or IPv6 address")
	}
	end, err := types.ParseAddr(*r.DhcpEndIP)
	if err != nil {
		return NewValidationError("dhcp_end_ip", "must be a valid IPv4 or IPv6 address")
	}
	startKey, endKey := types.AddrKey(start), types.AddrKey(end)
	if types.Family(start) != r.Version || startKey <= r.StartIP {
		return NewValidationError("dhcp_start_ip", "must be defined within the subnet range")
	}
	// The IPv4 broadcast address is not assignable; the last IPv6 address is.
	if types.Family(end) != r.Version || (r.Version == 4 && endKey >= r.EndIP) || (r.Version == 6 && endKey > r.EndIP) {
		return NewValidationError("dhcp_end_ip", "must be defined within the subnet range")
	}
	if startKey >= endKey {
		return NewValidationError("dhcp_start_ip", "DHCP start address must be lower than the end address")
	}
	*r.DhcpStartIP = start.String()
	*r.DhcpEndIP = end.String()
	return nil
}

func (r *SubnetRange) String() string { return r.Range }

// Subnet is a named network owned by exactly one VRF. It carries one or
// more subnet ranges and a set of DNS zones allowed to contain records
// whose IP falls inside the subnet.
type Subnet struct {
	Base
	Lifecycle
	Name        string        `gorm:"type:varchar(255);not null" json:"name"`
	VrfID       int           `gorm:"not null;index:subnet_vrf_ix" json:"vrf_id"`
	VrfEStatus  Status        `gorm:"column:vrf_estatus;type:varchar(16);not null;default:'enabled'" json:"-"`
	L3VNI       *int          `json:"l3vni"`
	L2VNI       *int          `json:"l2vni"`
	Vlan        *int          `json:"vlan"`
	RirStatus   *string       `gorm:"type:varchar(32)" json:"rir_status"`
	Ranges      []SubnetRange `gorm:"foreignKey:SubnetID" json:"ranges"`
	Zones       []DnsZone     `gorm:"many2many:dnszone_subnet;" json:"-"`
	RangeString string        `gorm:"column:subnet_string;type:text;not null" json:"-"`
	SearchIndex string        `gorm:"column:search_string;type:text;not null" json:"-"`

	// Depth is filled by the tree query, never persisted.
	Depth int `gorm:"-" json:"depth,omitempty"`
}

// TableName specifies the table name for Subnet.
func (Subnet) TableName() string { return "subnet" }

// ModelName implements Entity.
func (Subnet) ModelName() string { return "subnet" }

// Summary implements Auditable.
func (s *Subnet) Summary() string { return s.Name }

// SearchString implements Auditable.
func (s *Subnet) SearchString() string {
	return s.Name + " " + s.Notes + " " + s.RangeString
}

// AuditAttributes implements Auditable. Range and zone edits surface on
// the subnet itself, so a change to either shows up as a single diff on
// the `ranges` or `dnszones` field.
func (s *Subnet) AuditAttributes() map[string]interface{} {
	ranges := make([]string, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		label := r.Range
		if r.Dhcp && r.DhcpStartIP != nil && r.DhcpEndIP != nil {
			label = fmt.Sprintf("%s (dhcp %s - %s)", r.Range, *r.DhcpStartIP, *r.DhcpEndIP)
		}
		ranges = append(ranges, label)
	}
	zones := make([]string, 0, len(s.Zones))
	for _, z := range s.Zones {
		zones = append(zones, z.Name)
	}
	sort.Strings(zones)
	return map[string]interface{}{
		"name":       s.Name,
		"vrf_id":     s.VrfID,
		"l3vni":      intOrNil(s.L3VNI),
		"l2vni":      intOrNil(s.L2VNI),
		"vlan":       intOrNil(s.Vlan),
		"rir_status": strOrNil(s.RirStatus),
		"ranges":     strings.Join(ranges, " "),
		"dnszones":   strings.Join(zones, " "),
		"notes":      s.Notes,
		"status":     string(s.Status),
	}
}

// RangeList returns the ranges in canonical order: IPv6 first, then by
// numeric network address.
func (s *Subnet) RangeList() []string {
	out := make([]string, 0, len(s.Ranges))
	for _, r := range s.Ranges {
		out = append(out, r.Range)
	}
	return out
}

// PrimaryRange is the first range in canonical order, used for tree
// ordering. Nil when the subnet has no range.
func (s *Subnet) PrimaryRange() *SubnetRange {
	if len(s.Ranges) == 0 {
		return nil
	}
	return &s.Ranges[0]
}

// Validate implements the pre-commit validation hook: at least one range,
// each range well formed with its DHCP pool inside the CIDR, and no
// duplicate range within the subnet itself.
func (s *Subnet) Validate() error {
	if !s.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	if len(s.Ranges) == 0 {
		return NewValidationError("ranges", "at least one IPv6 or IPv4 network is required")
	}
	if s.RirStatus != nil {
		if *s.RirStatus != RirStatusAssigned && *s.RirStatus != RirStatusAllocatedByLir {
			return NewValidationError("rir_status", "`%s` is not a valid RIR status", *s.RirStatus)
		}
	}
	seen := map[string]bool{}
	for i := range s.Ranges {
		s.Ranges[i].VrfID = s.VrfID
		if err := s.Ranges[i].Normalize(); err != nil {
			return err
		}
		if seen[s.Ranges[i].Range] {
			return NewValidationError("ranges", "duplicate range `%s`", s.Ranges[i].Range)
		}
		seen[s.Ranges[i].Range] = true
	}
	s.SortRanges()
	s.RangeString = strings.Join(s.RangeList(), " ")
	return nil
}

// SortRanges orders the ranges IPv6 first, then by numeric address.
func (s *Subnet) SortRanges() {
	sort.SliceStable(s.Ranges, func(i, j int) bool {
		if s.Ranges[i].Version != s.Ranges[j].Version {
			return s.Ranges[i].Version > s.Ranges[j].Version
		}
		return s.Ranges[i].SortKey < s.Ranges[j].SortKey
	})
}

func (s *Subnet) String() string {
	return fmt.Sprintf("%s (%s)", strings.Join(s.RangeList(), ", "), s.Name)
}

func intOrNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func strOrNil(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
