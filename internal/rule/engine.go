// Package rule runs the data quality checks. A rule is a SQL statement
// returning the id and a summary of every offending row of its target
// model; enforced rules reject the write, soft rules only show up in the
// linter report.
package rule

import (
	"fmt"
	"strings"

	"github.com/ikus060/udb/internal/model"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Violation is one offending row reported by a rule.
type Violation struct {
	RuleName    string `json:"rule_name"`
	ModelName   string `json:"model_name"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	ID          int    `json:"id"`
	Summary     string `json:"summary"`
}

// Error is returned when an enforced rule rejects a write.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 0 {
		return "rule violation"
	}
	names := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		names = append(names, v.RuleName)
	}
	return fmt.Sprintf("rule violation: %s", strings.Join(names, ", "))
}

// Engine evaluates rules against the database.
type Engine struct {
	db     *gorm.DB
	logger *logrus.Entry
}

// NewEngine creates a rule engine bound to the database.
func NewEngine(db *gorm.DB, logger *logrus.Entry) *Engine {
	return &Engine{db: db, logger: logger.WithField("component", "rule-engine")}
}

// wrap decorates the rule statement so every rule yields the same result
// shape regardless of how the statement names its columns.
func wrap(r *model.Rule) string {
	return fmt.Sprintf("SELECT %s AS rule_name, t.id AS id, t.summary AS summary FROM (%s) AS t",
		quote(r.Name), r.Statement)
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

type ruleRow struct {
	RuleName string
	ID       int
	Summary  string
}

// Verify dry runs the rule statement and checks it yields the expected
// columns. Called before accepting a user defined rule.
func (e *Engine) Verify(tx *gorm.DB, r *model.Rule) error {
	stmt := wrap(r) + " WHERE 1 = 0"
	var rows []ruleRow
	if err := tx.Raw(stmt).Scan(&rows).Error; err != nil {
		return model.NewValidationError("statement",
			"statement must be a valid SELECT returning `id` and `summary` columns: %s", err)
	}
	return nil
}

// Check evaluates a single rule on demand, regardless of its status, and
// surfaces statement errors instead of skipping them.
func (e *Engine) Check(tx *gorm.DB, r *model.Rule) ([]Violation, error) {
	var rows []ruleRow
	if err := tx.Raw(wrap(r)).Scan(&rows).Error; err != nil {
		return nil, model.NewValidationError("statement",
			"statement failed to evaluate: %s", err)
	}
	out := make([]Violation, 0, len(rows))
	for _, row := range rows {
		out = append(out, Violation{
			RuleName:    row.RuleName,
			ModelName:   r.TargetModel,
			Severity:    r.Severity,
			Description: r.Description,
			ID:          row.ID,
			Summary:     row.Summary,
		})
	}
	return out, nil
}

// Lint evaluates the enabled rules and returns every violation. When
// modelName is not empty only rules targeting that model run; when id is
// not zero only violations for that row are returned.
func (e *Engine) Lint(tx *gorm.DB, modelName string, id int) ([]Violation, error) {
	rules, err := e.activeRules(tx, modelName, "")
	if err != nil {
		return nil, err
	}
	return e.run(tx, rules, id)
}

// CheckEnforced evaluates the enforced rules of one model against a
// single row. A non-empty result means the write must be rejected.
func (e *Engine) CheckEnforced(tx *gorm.DB, modelName string, id int) ([]Violation, error) {
	rules, err := e.activeRules(tx, modelName, model.RuleSeverityEnforced)
	if err != nil {
		return nil, err
	}
	return e.run(tx, rules, id)
}

func (e *Engine) activeRules(tx *gorm.DB, modelName, severity string) ([]model.Rule, error) {
	q := tx.Where("estatus = ?", model.StatusEnabled)
	if modelName != "" {
		q = q.Where("model_name = ?", modelName)
	}
	if severity != "" {
		q = q.Where("severity = ?", severity)
	}
	var rules []model.Rule
	if err := q.Order("name").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (e *Engine) run(tx *gorm.DB, rules []model.Rule, id int) ([]Violation, error) {
	var out []Violation
	for i := range rules {
		r := &rules[i]
		stmt := wrap(r)
		var rows []ruleRow
		var err error
		if id != 0 {
			err = tx.Raw(stmt+" WHERE t.id = ?", id).Scan(&rows).Error
		} else {
			err = tx.Raw(stmt).Scan(&rows).Error
		}
		if err != nil {
			// A broken user defined rule must not block unrelated writes.
			e.logger.WithField("rule", r.Name).Warnf("rule evaluation failed: %v", err)
			if r.Enforced() {
				return nil, fmt.Errorf("enforced rule %s failed to evaluate: %w", r.Name, err)
			}
			continue
		}
		for _, row := range rows {
			out = append(out, Violation{
				RuleName:    row.RuleName,
				ModelName:   r.TargetModel,
				Severity:    r.Severity,
				Description: r.Description,
				ID:          row.ID,
				Summary:     row.Summary,
			})
		}
	}
	return out, nil
}
