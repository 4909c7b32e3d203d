// Package model defines the persistent entities of the universal database:
// VRFs, subnets and their ranges, DNS zones and records, DHCP reservations,
// the IP and MAC registries, users, followers, audit messages, deployment
// environments and linter rules.
package model

import (
	"time"
)

// Status is the lifecycle state carried by most entities. Soft delete keeps
// the row for audit; partial uniqueness excludes deleted rows.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
	StatusDeleted  Status = "deleted"
)

var statusRank = map[Status]int{
	StatusDeleted:  0,
	StatusDisabled: 1,
	StatusEnabled:  2,
}

// Valid reports whether the value is one of the three lifecycle states.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// MinStatus returns the most restrictive of the given statuses. The empty
// list yields enabled.
func MinStatus(statuses ...Status) Status {
	out := StatusEnabled
	for _, s := range statuses {
		if statusRank[s] < statusRank[out] {
			out = s
		}
	}
	return out
}

// Base contains the fields shared by all entities.
type Base struct {
	ID         int       `gorm:"primaryKey;autoIncrement" json:"id"`
	Notes      string    `gorm:"type:text;not null" json:"notes"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	ModifiedAt time.Time `gorm:"autoUpdateTime" json:"modified_at"`
	OwnerID    *int      `gorm:"index" json:"owner_id"`
}

// GetID implements Entity.
func (b *Base) GetID() int { return b.ID }

// SetID implements Entity.
func (b *Base) SetID(id int) { b.ID = id }

// Lifecycle adds soft delete plus the computed effective status. The
// effective status is the minimum of the entity's own status and the
// effective status of every ancestor it depends on; it is derived by the
// invariant engine, never by the caller.
type Lifecycle struct {
	Status  Status `gorm:"type:varchar(16);not null;default:'enabled'" json:"status"`
	EStatus Status `gorm:"column:estatus;type:varchar(16);not null;default:'enabled';index" json:"estatus"`
}

// GetStatus implements Statusable.
func (l *Lifecycle) GetStatus() Status { return l.Status }

// SetStatus implements Statusable.
func (l *Lifecycle) SetStatus(s Status) { l.Status = s }

// GetEStatus implements Statusable.
func (l *Lifecycle) GetEStatus() Status { return l.EStatus }

// Entity is the minimal surface the store requires of a persisted type.
type Entity interface {
	ModelName() string
	GetID() int
	SetID(int)
}

// Statusable is implemented by entities with a lifecycle.
type Statusable interface {
	GetStatus() Status
	SetStatus(Status)
	GetEStatus() Status
}

// Auditable entities produce change log messages. AuditAttributes must be
// deterministic: the change log diffs the maps of the before and after
// images field by field.
type Auditable interface {
	Entity
	Summary() string
	AuditAttributes() map[string]interface{}
	SearchString() string
}
