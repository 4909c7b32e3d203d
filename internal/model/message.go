package model

import (
	"encoding/json"
	"sort"
	"time"

	"gorm.io/datatypes"
)

// Message kinds.
const (
	MessageTypeNew     = "new"     // entity created
	MessageTypeDirty   = "dirty"   // entity modified
	MessageTypeComment = "comment" // free form user comment
	MessageTypeParent  = "parent"  // derived parent link or status changed
)

// Message is one entry of the immutable change log. Changes maps a field
// name to its [old, new] pair; for comments the map is empty and Body
// carries the text.
type Message struct {
	ID        int            `gorm:"primaryKey;autoIncrement" json:"id"`
	ModelName string         `gorm:"type:varchar(32);not null;index:message_model_ix" json:"model_name"`
	ModelID   int            `gorm:"not null;index:message_model_ix" json:"model_id"`
	Type      string         `gorm:"type:varchar(16);not null" json:"type"`
	Body      string         `gorm:"type:text;not null;default:''" json:"body"`
	Changes   datatypes.JSON `gorm:"type:json" json:"changes"`
	AuthorID  *int           `gorm:"index" json:"author_id"`
	Sent      bool           `gorm:"not null;default:false;index" json:"-"`
	Date      time.Time      `gorm:"autoCreateTime;index" json:"date"`

	// Denormalized for display, filled at insert time.
	Summary string `gorm:"type:text;not null;default:''" json:"summary"`
}

// TableName specifies the table name for Message.
func (Message) TableName() string { return "message" }

// ChangeMap decodes the stored field changes.
func (m *Message) ChangeMap() (map[string][2]interface{}, error) {
	out := map[string][2]interface{}{}
	if len(m.Changes) == 0 {
		return out, nil
	}
	raw := map[string][]interface{}{}
	if err := json.Unmarshal(m.Changes, &raw); err != nil {
		return nil, err
	}
	for field, pair := range raw {
		var c [2]interface{}
		if len(pair) > 0 {
			c[0] = pair[0]
		}
		if len(pair) > 1 {
			c[1] = pair[1]
		}
		out[field] = c
	}
	return out, nil
}

// ChangedFields lists the field names in the change map, sorted.
func (m *Message) ChangedFields() []string {
	changes, err := m.ChangeMap()
	if err != nil {
		return nil
	}
	fields := make([]string, 0, len(changes))
	for f := range changes {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}

// EncodeChanges serializes a change map into the stored JSON form.
func EncodeChanges(changes map[string][2]interface{}) (datatypes.JSON, error) {
	raw := make(map[string][]interface{}, len(changes))
	for field, pair := range changes {
		raw[field] = []interface{}{pair[0], pair[1]}
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
