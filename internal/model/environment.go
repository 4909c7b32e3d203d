package model

import "strings"

// Environment is a deployment target: a name, the shell script to run and
// the model names whose changes it deploys. ModelNames is stored as a
// comma separated list.
type Environment struct {
	Base
	Lifecycle
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Script      string `gorm:"type:text;not null;default:''" json:"script"`
	ModelNames  string `gorm:"column:model_name;type:varchar(255);not null;default:''" json:"model_name"`
	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for Environment.
func (Environment) TableName() string { return "environment" }

// ModelName implements Entity.
func (Environment) ModelName() string { return "environment" }

// Summary implements Auditable.
func (e *Environment) Summary() string { return e.Name }

// SearchString implements Auditable.
func (e *Environment) SearchString() string { return e.Name + " " + e.Notes }

// AuditAttributes implements Auditable.
func (e *Environment) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"name":       e.Name,
		"script":     e.Script,
		"model_name": e.ModelNames,
		"notes":      e.Notes,
		"status":     string(e.Status),
	}
}

// ModelNameList splits the tracked model names.
func (e *Environment) ModelNameList() []string {
	if e.ModelNames == "" {
		return nil
	}
	parts := strings.Split(e.ModelNames, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Tracks reports whether the environment deploys changes of the model.
func (e *Environment) Tracks(modelName string) bool {
	for _, m := range e.ModelNameList() {
		if m == modelName {
			return true
		}
	}
	return false
}

// Validate implements the pre-commit validation hook.
func (e *Environment) Validate() error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return NewValidationError("name", "environment name cannot be empty")
	}
	if !e.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	return nil
}
