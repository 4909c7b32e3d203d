package model

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Deployment states.
const (
	DeploymentStateStarting = "starting"
	DeploymentStateRunning  = "running"
	DeploymentStateSuccess  = "success"
	DeploymentStateFailure  = "failure"
)

// Deployment is one run of an environment script against an immutable
// snapshot of the data taken at scheduling time. StartID and EndID bound
// the change log entries covered by the run.
type Deployment struct {
	ID            int            `gorm:"primaryKey;autoIncrement" json:"id"`
	EnvironmentID int            `gorm:"not null;index" json:"environment_id"`
	Environment   *Environment   `gorm:"foreignKey:EnvironmentID" json:"-"`
	OwnerID       *int           `gorm:"index" json:"owner_id"`
	State         string         `gorm:"type:varchar(16);not null;default:'starting'" json:"state"`
	Token         string         `gorm:"type:varchar(40);not null" json:"-"`
	StartID       int            `gorm:"not null" json:"start_id"`
	EndID         int            `gorm:"not null" json:"end_id"`
	Data          datatypes.JSON `gorm:"type:json" json:"-"`
	Output        string         `gorm:"type:text;not null;default:''" json:"output"`
	CreatedAt     time.Time      `gorm:"autoCreateTime" json:"created_at"`
	ModifiedAt    time.Time      `gorm:"autoUpdateTime" json:"modified_at"`
}

// TableName specifies the table name for Deployment.
func (Deployment) TableName() string { return "deployment" }

// ModelName implements Entity.
func (Deployment) ModelName() string { return "deployment" }

// GetID implements Entity.
func (d *Deployment) GetID() int { return d.ID }

// SetID implements Entity.
func (d *Deployment) SetID(id int) { d.ID = id }

// Summary describes the run for listings.
func (d *Deployment) Summary() string {
	return fmt.Sprintf("deployment #%d (%s)", d.ID, d.State)
}

// Finished reports whether the run reached a terminal state.
func (d *Deployment) Finished() bool {
	return d.State == DeploymentStateSuccess || d.State == DeploymentStateFailure
}

// NewToken generates the 40 character secret authenticating callbacks
// from the deployment script.
func NewToken() (string, error) {
	buf := make([]byte, 20)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
