package model

import (
	"github.com/ikus060/udb/internal/types"
)

// Ip is the registry entry for an address referenced by at least one DNS
// or DHCP record in a given VRF. Rows are created on demand by the
// invariant engine and never deleted; the related records tell whether the
// address is still in use.
type Ip struct {
	Base
	IP          string `gorm:"type:varchar(64);not null;uniqueIndex:ip_vrf_unique_ix" json:"ip"`
	IPKey       string `gorm:"column:ip_key;type:varchar(32);not null;index" json:"-"`
	VrfID       int    `gorm:"not null;uniqueIndex:ip_vrf_unique_ix" json:"vrf_id"`
	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for Ip.
func (Ip) TableName() string { return "ip" }

// ModelName implements Entity.
func (Ip) ModelName() string { return "ip" }

// Summary implements Auditable.
func (i *Ip) Summary() string { return i.IP }

// SearchString implements Auditable.
func (i *Ip) SearchString() string { return i.IP + " " + i.Notes }

// AuditAttributes implements Auditable.
func (i *Ip) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"ip":    i.IP,
		"vrf":   i.VrfID,
		"notes": i.Notes,
	}
}

// Validate implements the pre-commit validation hook.
func (i *Ip) Validate() error {
	addr, err := types.ParseAddr(i.IP)
	if err != nil {
		return NewValidationError("ip", "`%s` does not appear to be a valid IPv6 or IPv4 address", i.IP)
	}
	i.IP = addr.String()
	i.IPKey = types.AddrKey(addr)
	return nil
}
