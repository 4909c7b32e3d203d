package model

import "strings"

// Rule severities. Enforced rules reject offending writes; soft rules only
// flag rows in the linter report.
const (
	RuleSeverityEnforced = "enforced"
	RuleSeveritySoft     = "soft"
)

// Rule is a data quality check expressed as a SQL statement returning the
// id and a description of every offending row of the target model.
type Rule struct {
	Base
	Lifecycle
	Name        string `gorm:"type:varchar(255);not null;uniqueIndex:rule_name_unique_ix" json:"name"`
	TargetModel string `gorm:"column:model_name;type:varchar(32);not null;index" json:"model_name"`
	Description string `gorm:"type:text;not null;default:''" json:"description"`
	Statement   string `gorm:"type:text;not null" json:"statement"`
	Severity    string `gorm:"type:varchar(16);not null;default:'soft'" json:"severity"`
	Builtin     bool   `gorm:"not null;default:false" json:"builtin"`
	SearchIndex string `gorm:"column:search_string;type:text;not null" json:"-"`
}

// TableName specifies the table name for Rule.
func (Rule) TableName() string { return "rule" }

// ModelName implements Entity.
func (Rule) ModelName() string { return "rule" }

// Summary implements Auditable.
func (r *Rule) Summary() string { return r.Name }

// SearchString implements Auditable.
func (r *Rule) SearchString() string {
	return r.Name + " " + r.Description + " " + r.Notes
}

// AuditAttributes implements Auditable.
func (r *Rule) AuditAttributes() map[string]interface{} {
	return map[string]interface{}{
		"name":        r.Name,
		"model_name":  r.TargetModel,
		"description": r.Description,
		"statement":   r.Statement,
		"severity":    r.Severity,
		"notes":       r.Notes,
		"status":      string(r.Status),
	}
}

// Enforced reports whether offending writes must be rejected.
func (r *Rule) Enforced() bool { return r.Severity == RuleSeverityEnforced }

// Validate implements the pre-commit validation hook. The statement is
// additionally dry-run against the database by the rule engine.
func (r *Rule) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	if r.Name == "" {
		return NewValidationError("name", "rule name cannot be empty")
	}
	if r.TargetModel == "" {
		return NewValidationError("model_name", "a target model is required")
	}
	stmt := strings.TrimSpace(r.Statement)
	if stmt == "" {
		return NewValidationError("statement", "a SQL statement is required")
	}
	if !strings.HasPrefix(strings.ToUpper(stmt), "SELECT") {
		return NewValidationError("statement", "statement must be a SELECT query")
	}
	r.Statement = stmt
	if r.Severity != RuleSeverityEnforced && r.Severity != RuleSeveritySoft {
		return NewValidationError("severity", "`%s` is not a valid severity", r.Severity)
	}
	if !r.Status.Valid() {
		return NewValidationError("status", "invalid status")
	}
	return nil
}
