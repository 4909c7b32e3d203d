package model

import "strings"

// Vrf is a routing domain. Subnets belong to exactly one VRF, which allows
// overlapping address space between VRFs.
type Vrf struct {
	Base
	Lifecycle
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for Vrf.
func (Vrf) TableName() string { return "vrf" }

// ModelName implements Entity.
func (Vrf) ModelName() string { return "vrf" }

// Summary implements Auditable.
func (v *Vrf) Summary() string { return v.Name }

// SearchString implements Auditable.
func (v *Vrf) SearchString() string { return v.Name + " " + v.Notes }

// AuditAttributes implements Auditable.
func (v *Vrf) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"name":   v.Name,
		"notes":  v.Notes,
		"status": string(v.Status),
	}
}

// Validate implements the pre-commit validation hook.
func (v *Vrf) Validate() error {
	v.Name = strings.TrimSpace(v.Name)
	if v.Name == "" {
		return NewValidationError("name", "VRF name cannot be empty")
	}
	if !v.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	return nil
}
