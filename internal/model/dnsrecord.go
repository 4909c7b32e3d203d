package model

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/ikus060/udb/internal/types"
)

// DnsRecordTypes lists the supported resource record types.
var DnsRecordTypes = []string{
	"CNAME", "A", "AAAA", "TXT", "SRV", "PTR", "CDNSKEY", "CDS", "DNSKEY",
	"DS", "CAA", "SSHFP", "TLSA", "MX", "NS", "DHCID", "SOA",
}

// DefaultTTL is applied when a record is created without a TTL.
const DefaultTTL = 3600

// domainValueTypes are record types whose value must be a domain name.
var domainValueTypes = map[string]bool{"CNAME": true, "NS": true, "PTR": true}

// ipValueTypes are record types carrying an IP address.
var ipValueTypes = map[string]bool{"A": true, "AAAA": true, "PTR": true}

// DnsRecord is a single resource record. The zone and subnet range links,
// the parsed IP and the effective statuses of the ancestors are all derived
// by the invariant engine on write; caller supplied values are discarded.
type DnsRecord struct {
	Base
	Lifecycle
	Name  string `gorm:"type:varchar(255);not null" json:"name"`
	Type  string `gorm:"type:varchar(16);not null" json:"type"`
	TTL   int    `gorm:"not null;default:3600" json:"ttl"`
	Value string `gorm:"type:text;not null" json:"value"`
	VrfID *int   `gorm:"index" json:"vrf_id"`

	// Derived: parsed IP for A/AAAA/PTR. GeneratedIP is the sortable key
	// used by containment predicates and foreign keys.
	IPValue     *string `gorm:"column:ip_value;type:varchar(64)" json:"ip_value"`
	GeneratedIP *string `gorm:"column:generated_ip;type:varchar(32);index" json:"-"`

	// Derived: longest-suffix matching zone and smallest containing range.
	DnsZoneID      *int    `gorm:"column:dnszone_id;index" json:"dnszone_id"`
	DnsZoneEStatus *Status `gorm:"column:dnszone_estatus;type:varchar(16)" json:"-"`
	SubnetRangeID  *int    `gorm:"column:subnetrange_id;index" json:"subnetrange_id"`
	SubnetEStatus  *Status `gorm:"column:subnet_estatus;type:varchar(16)" json:"-"`
	SubnetRange    *string `gorm:"column:subnet_range;type:varchar(64)" json:"subnet_range"`

	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for DnsRecord.
func (DnsRecord) TableName() string { return "dnsrecord" }

// ModelName implements Entity.
func (DnsRecord) ModelName() string { return "dnsrecord" }

// Summary implements Auditable.
func (r *DnsRecord) Summary() string {
	return fmt.Sprintf("%s = %s (%s)", r.Name, r.Value, r.Type)
}

// SearchString implements Auditable.
func (r *DnsRecord) SearchString() string {
	return r.Name + " " + r.Type + " " + r.Value
}

// AuditAttributes implements Auditable.
func (r *DnsRecord) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"name":   r.Name,
		"type":   r.Type,
		"ttl":    r.TTL,
		"value":  r.Value,
		"vrf":    intOrNil(r.VrfID),
		"notes":  r.Notes,
		"status": string(r.Status),
	}
}

// HostnameValue is the hostname of the record. For PTR records the
// hostname is the value; for everything else it is the name.
func (r *DnsRecord) HostnameValue() string {
	if r.Type == "PTR" {
		return r.Value
	}
	return r.Name
}

// HasIPValue reports whether this record type carries an IP address.
func (r *DnsRecord) HasIPValue() bool { return ipValueTypes[r.Type] }

// ComputeIPValue parses the address carried by an A, AAAA or PTR record.
// For PTR the address is reconstructed from the reverse pointer name.
func (r *DnsRecord) ComputeIPValue() (netip.Addr, bool) {
	switch r.Type {
	case "A":
		a, err := types.ParseAddr(r.Value)
		if err == nil && types.Family(a) == 4 {
			return a, true
		}
	case "AAAA":
		a, err := types.ParseAddr(r.Value)
		if err == nil && types.Family(a) == 6 {
			return a, true
		}
	case "PTR":
		return types.ReverseAddr(r.Name)
	}
	return netip.Addr{}, false
}

// Validate implements the pre-commit validation hook.
func (r *DnsRecord) Validate() error {
	r.Name = strings.ToLower(strings.TrimSpace(r.Name))
	if r.TTL == 0 {
		r.TTL = DefaultTTL
	}
	if !r.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	if !validDnsRecordType(r.Type) {
		return NewValidationError("type", "`%s` is not a valid DNS record type", r.Type)
	}
	if r.Value == "" {
		return NewValidationError("value", "value must not be empty")
	}
	if !types.IsDomainName(r.Name) {
		return NewValidationError("name", "expected a valid domain name")
	}
	if domainValueTypes[r.Type] {
		r.Value = strings.ToLower(strings.TrimSpace(r.Value))
		if !types.IsDomainName(r.Value) {
			return NewValidationError("value", "value must be a valid domain name")
		}
	}
	switch r.Type {
	case "A":
		if _, ok := r.ComputeIPValue(); !ok {
			return NewValidationError("value", "value must be a valid IPv4 address")
		}
	case "AAAA":
		if _, ok := r.ComputeIPValue(); !ok {
			return NewValidationError("value", "value must be a valid IPv6 address")
		}
	case "PTR":
		if _, ok := r.ComputeIPValue(); !ok {
			return NewValidationError("name",
				"PTR records must end with `.in-addr.arpa` or `.ip6.arpa` and define a valid IPv4 or IPv6 address")
		}
	}
	return nil
}

// ReverseRecord builds the counterpart of this record: the PTR for an
// A/AAAA record, or the forward record for a PTR. Nil for other types.
func (r *DnsRecord) ReverseRecord() *DnsRecord {
	addr, ok := r.ComputeIPValue()
	if !ok {
		return nil
	}
	switch r.Type {
	case "A", "AAAA":
		return &DnsRecord{
			Name:  types.ReversePointer(addr),
			Type:  "PTR",
			TTL:   r.TTL,
			Value: r.Name,
			VrfID: r.VrfID,
		}
	case "PTR":
		newType := "A"
		if strings.HasSuffix(r.Name, ".ip6.arpa") {
			newType = "AAAA"
		}
		return &DnsRecord{
			Name:  r.Value,
			Type:  newType,
			TTL:   r.TTL,
			Value: addr.String(),
			VrfID: r.VrfID,
		}
	}
	return nil
}

func validDnsRecordType(t string) bool {
	for _, v := range DnsRecordTypes {
		if v == t {
			return true
		}
	}
	return false
}
