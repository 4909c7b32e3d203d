package model

import (
	"fmt"
	"strings"

	"github.com/ikus060/udb/internal/types"
)

// DhcpRecord reserves a fixed IP address for a MAC address. The subnet
// range link and its effective status are derived on write; a reservation
// whose IP falls outside every DHCP enabled range is flagged by the soft
// rules rather than rejected.
type DhcpRecord struct {
	Base
	Lifecycle
	IP    string `gorm:"type:varchar(64);not null" json:"ip"`
	IPKey string `gorm:"column:ip_key;type:varchar(32);not null;index" json:"-"`
	Mac   string `gorm:"type:varchar(17);not null" json:"mac"`
	VrfID *int   `gorm:"index" json:"vrf_id"`

	// Derived: smallest DHCP enabled range containing the IP.
	SubnetRangeID *int    `gorm:"column:subnetrange_id;index" json:"subnetrange_id"`
	SubnetEStatus *Status `gorm:"column:subnet_estatus;type:varchar(16)" json:"-"`
	SubnetRange   *string `gorm:"column:subnet_range;type:varchar(64)" json:"subnet_range"`

	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for DhcpRecord.
func (DhcpRecord) TableName() string { return "dhcprecord" }

// ModelName implements Entity.
func (DhcpRecord) ModelName() string { return "dhcprecord" }

// Summary implements Auditable.
func (r *DhcpRecord) Summary() string {
	return fmt.Sprintf("%s (%s)", r.IP, r.Mac)
}

// SearchString implements Auditable.
func (r *DhcpRecord) SearchString() string {
	return r.IP + " " + r.Mac + " " + r.Notes
}

// AuditAttributes implements Auditable.
func (r *DhcpRecord) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"ip":     r.IP,
		"mac":    r.Mac,
		"vrf":    intOrNil(r.VrfID),
		"notes":  r.Notes,
		"status": string(r.Status),
	}
}

// Validate implements the pre-commit validation hook.
func (r *DhcpRecord) Validate() error {
	if !r.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	addr, err := types.ParseAddr(strings.TrimSpace(r.IP))
	if err != nil {
		return NewValidationError("ip", "`%s` does not appear to be a valid IPv6 or IPv4 address", r.IP)
	}
	r.IP = addr.String()
	r.IPKey = types.AddrKey(addr)
	r.Mac = strings.ToLower(strings.TrimSpace(r.Mac))
	if !types.IsMAC(r.Mac) {
		return NewValidationError("mac", "`%s` does not appear to be a valid MAC address", r.Mac)
	}
	return nil
}
