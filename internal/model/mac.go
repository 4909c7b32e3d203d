package model

import (
	"strings"

	"github.com/ikus060/udb/internal/types"
)

// Mac is the registry entry for a hardware address referenced by at least
// one DHCP record. Like Ip rows, Mac rows are created on demand by the
// invariant engine and never deleted.
type Mac struct {
	Base
	Mac         string `gorm:"type:varchar(17);not null;uniqueIndex:mac_unique_ix" json:"mac"`
	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for Mac.
func (Mac) TableName() string { return "mac" }

// ModelName implements Entity.
func (Mac) ModelName() string { return "mac" }

// Summary implements Auditable.
func (m *Mac) Summary() string { return m.Mac }

// SearchString implements Auditable.
func (m *Mac) SearchString() string { return m.Mac + " " + m.Notes }

// AuditAttributes implements Auditable.
func (m *Mac) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"mac":   m.Mac,
		"notes": m.Notes,
	}
}

// Validate implements the pre-commit validation hook.
func (m *Mac) Validate() error {
	m.Mac = strings.ToLower(strings.TrimSpace(m.Mac))
	if !types.IsMAC(m.Mac) {
		return NewValidationError("mac", "`%s` does not appear to be a valid MAC address", m.Mac)
	}
	return nil
}
