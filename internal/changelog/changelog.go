// Package changelog records the immutable audit trail. Every successful
// write produces one message describing the entity's field changes; free
// form comments and derived parent changes use the same table.
package changelog

import (
	"fmt"
	"reflect"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// Diff compares two audit attribute maps and returns the changed fields
// with their [old, new] pairs. Fields present on only one side diff
// against nil.
func Diff(before, after map[string]interface{}) map[string][2]interface{} {
	changes := map[string][2]interface{}{}
	for field, newValue := range after {
		oldValue, ok := before[field]
		if !ok {
			changes[field] = [2]interface{}{nil, newValue}
			continue
		}
		if !equal(oldValue, newValue) {
			changes[field] = [2]interface{}{oldValue, newValue}
		}
	}
	for field, oldValue := range before {
		if _, ok := after[field]; !ok {
			changes[field] = [2]interface{}{oldValue, nil}
		}
	}
	return changes
}

func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if reflect.DeepEqual(a, b) {
		return true
	}
	// JSON round trips turn ints into float64; compare the rendered form.
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// RecordNew writes the creation message for an entity.
func RecordNew(tx *gorm.DB, entity model.Auditable, authorID *int) error {
	changes := map[string][2]interface{}{}
	for field, value := range entity.AuditAttributes() {
		changes[field] = [2]interface{}{nil, value}
	}
	return record(tx, entity.ModelName(), entity.GetID(), model.MessageTypeNew, "", entity.Summary(), changes, authorID)
}

// RecordDirty writes the modification message for an entity. No message
// is written when nothing changed.
func RecordDirty(tx *gorm.DB, entity model.Auditable, before map[string]interface{}, authorID *int) error {
	changes := Diff(before, entity.AuditAttributes())
	if len(changes) == 0 {
		return nil
	}
	return record(tx, entity.ModelName(), entity.GetID(), model.MessageTypeDirty, "", entity.Summary(), changes, authorID)
}

// RecordChanges writes a modification message with an explicit change map,
// possibly against another entity than the one edited. Subnet range edits
// use this to surface on the parent subnet.
func RecordChanges(tx *gorm.DB, modelName string, modelID int, summary string, changes map[string][2]interface{}, authorID *int) error {
	if len(changes) == 0 {
		return nil
	}
	return record(tx, modelName, modelID, model.MessageTypeDirty, "", summary, changes, authorID)
}

// RecordParent writes a derived change message: a parent link or an
// effective status recomputed by the engine rather than edited directly.
func RecordParent(tx *gorm.DB, modelName string, modelID int, summary string, changes map[string][2]interface{}) error {
	if len(changes) == 0 {
		return nil
	}
	return record(tx, modelName, modelID, model.MessageTypeParent, "", summary, changes, nil)
}

// RecordComment writes a free form comment on an entity.
func RecordComment(tx *gorm.DB, entity model.Auditable, body string, authorID *int) error {
	return record(tx, entity.ModelName(), entity.GetID(), model.MessageTypeComment, body, entity.Summary(), nil, authorID)
}

func record(tx *gorm.DB, modelName string, modelID int, msgType, body, summary string, changes map[string][2]interface{}, authorID *int) error {
	encoded, err := model.EncodeChanges(changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}
	msg := &model.Message{
		ModelName: modelName,
		ModelID:   modelID,
		Type:      msgType,
		Body:      body,
		Changes:   encoded,
		AuthorID:  authorID,
		Summary:   summary,
	}
	return tx.Create(msg).Error
}

// History returns the messages of one entity, newest first.
func History(tx *gorm.DB, modelName string, modelID int) ([]model.Message, error) {
	var messages []model.Message
	err := tx.Where("model_name = ? AND model_id = ?", modelName, modelID).
		Order("id DESC").Find(&messages).Error
	return messages, err
}
