package model

import (
	"regexp"
	"sort"
	"strings"
)

// zoneNamePattern follows RFC 1035 labels: lowercase letters, digits and
// hyphens, dot separated, not starting or ending with a hyphen.
var zoneNamePattern = regexp.MustCompile(`^([a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?\.)*[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// Default reverse zones created with the database.
var DefaultZoneNames = []string{"in-addr.arpa", "ip6.arpa"}

// DnsZone is a DNS zone name with the list of subnets authorized to
// contain its records.
type DnsZone struct {
	Base
	Lifecycle
	Name        string   `gorm:"type:varchar(255);not null" json:"name"`
	Subnets     []Subnet `gorm:"many2many:dnszone_subnet;" json:"-"`
	SearchIndex string   `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for DnsZone.
func (DnsZone) TableName() string { return "dnszone" }

// ModelName implements Entity.
func (DnsZone) ModelName() string { return "dnszone" }

// Summary implements Auditable.
func (z *DnsZone) Summary() string { return z.Name }

// SearchString implements Auditable.
func (z *DnsZone) SearchString() string { return z.Name + " " + z.Notes }

// AuditAttributes implements Auditable. The allowed subnet set diffs as a
// single `subnets` field.
func (z *DnsZone) AuditAttributes() map[string]interface{} {
	subnets := make([]string, 0, len(z.Subnets))
	for i := range z.Subnets {
		subnets = append(subnets, z.Subnets[i].Name)
	}
	sort.Strings(subnets)
	return map[string]interface{}{
		"name":    z.Name,
		"subnets": strings.Join(subnets, " "),
		"notes":   z.Notes,
		"status":  string(z.Status),
	}
}

// Validate implements the pre-commit validation hook.
func (z *DnsZone) Validate() error {
	z.Name = strings.ToLower(strings.TrimSpace(z.Name))
	if !zoneNamePattern.MatchString(z.Name) {
		return NewValidationError("name", "expected a valid FQDN")
	}
	if !z.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	return nil
}

// MatchesHostname reports whether the hostname belongs to this zone: the
// zone name is the hostname or one of its parent domains.
func (z *DnsZone) MatchesHostname(hostname string) bool {
	return ZoneMatches(z.Name, hostname)
}

// ZoneMatches reports whether zone is a domain suffix of hostname.
func ZoneMatches(zone, hostname string) bool {
	return hostname == zone || strings.HasSuffix(hostname, "."+zone)
}
