package rule

import (
	"io"
	"testing"

	"github.com/ikus060/udb/internal/model"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func setupEngine(t *testing.T) (*gorm.DB, *Engine) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Rule{}, &model.Vrf{}))
	return db, NewEngine(db, testLogger())
}

func addRule(t *testing.T, db *gorm.DB, name, statement, severity string) *model.Rule {
	t.Helper()
	r := &model.Rule{
		Name:        name,
		TargetModel: "vrf",
		Statement:   statement,
		Severity:    severity,
	}
	r.Status = model.StatusEnabled
	r.EStatus = model.StatusEnabled
	require.NoError(t, db.Create(r).Error)
	return r
}

func addVrf(t *testing.T, db *gorm.DB, name string) *model.Vrf {
	t.Helper()
	vrf := &model.Vrf{Name: name}
	vrf.Status = model.StatusEnabled
	vrf.EStatus = model.StatusEnabled
	require.NoError(t, db.Create(vrf).Error)
	return vrf
}

func TestVerify(t *testing.T) {
	db, engine := setupEngine(t)
	ok := &model.Rule{Name: "named", Statement: "SELECT id, name AS summary FROM vrf"}
	require.NoError(t, engine.Verify(db, ok))

	broken := &model.Rule{Name: "broken", Statement: "SELECT id FROM no_such_table"}
	err := engine.Verify(db, broken)
	require.Error(t, err)
	verr := &model.ValidationError{}
	assert.ErrorAs(t, err, &verr)
}

func TestLint(t *testing.T) {
	db, engine := setupEngine(t)
	addRule(t, db, "vrf_bad_name_rule",
		"SELECT id, name AS summary FROM vrf WHERE name LIKE 'bad%'", model.RuleSeveritySoft)
	addVrf(t, db, "good-vrf")
	offender := addVrf(t, db, "bad-vrf")

	violations, err := engine.Lint(db, "", 0)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "vrf_bad_name_rule", violations[0].RuleName)
	assert.Equal(t, "vrf", violations[0].ModelName)
	assert.Equal(t, model.RuleSeveritySoft, violations[0].Severity)
	assert.Equal(t, offender.ID, violations[0].ID)
	assert.Equal(t, "bad-vrf", violations[0].Summary)
}

func TestLint_FilterByRow(t *testing.T) {
	db, engine := setupEngine(t)
	addRule(t, db, "vrf_bad_name_rule",
		"SELECT id, name AS summary FROM vrf WHERE name LIKE 'bad%'", model.RuleSeveritySoft)
	first := addVrf(t, db, "bad-one")
	addVrf(t, db, "bad-two")

	violations, err := engine.Lint(db, "vrf", first.ID)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, first.ID, violations[0].ID)
}

func TestLint_DisabledRuleSkipped(t *testing.T) {
	db, engine := setupEngine(t)
	r := addRule(t, db, "vrf_bad_name_rule",
		"SELECT id, name AS summary FROM vrf WHERE name LIKE 'bad%'", model.RuleSeveritySoft)
	addVrf(t, db, "bad-vrf")

	require.NoError(t, db.Model(r).Updates(map[string]interface{}{
		"status": model.StatusDisabled, "estatus": model.StatusDisabled,
	}).Error)

	violations, err := engine.Lint(db, "", 0)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestLint_BrokenSoftRuleSkipped(t *testing.T) {
	db, engine := setupEngine(t)
	addRule(t, db, "vrf_broken_rule",
		"SELECT id, name AS summary FROM no_such_table", model.RuleSeveritySoft)
	addRule(t, db, "vrf_bad_name_rule",
		"SELECT id, name AS summary FROM vrf WHERE name LIKE 'bad%'", model.RuleSeveritySoft)
	addVrf(t, db, "bad-vrf")

	violations, err := engine.Lint(db, "", 0)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "vrf_bad_name_rule", violations[0].RuleName)
}

func TestCheckEnforced(t *testing.T) {
	db, engine := setupEngine(t)
	addRule(t, db, "vrf_soft_rule",
		"SELECT id, name AS summary FROM vrf", model.RuleSeveritySoft)
	addRule(t, db, "vrf_enforced_rule",
		"SELECT id, name AS summary FROM vrf WHERE name LIKE 'bad%'", model.RuleSeverityEnforced)
	offender := addVrf(t, db, "bad-vrf")

	violations, err := engine.CheckEnforced(db, "vrf", offender.ID)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, "vrf_enforced_rule", violations[0].RuleName)

	clean := addVrf(t, db, "good-vrf")
	violations, err = engine.CheckEnforced(db, "vrf", clean.ID)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheck_RunsDisabledRule(t *testing.T) {
	db, engine := setupEngine(t)
	r := addRule(t, db, "vrf_bad_name_rule",
		"SELECT id, name AS summary FROM vrf WHERE name LIKE 'bad%'", model.RuleSeveritySoft)
	require.NoError(t, db.Model(r).Updates(map[string]interface{}{
		"status": model.StatusDisabled, "estatus": model.StatusDisabled,
	}).Error)
	addVrf(t, db, "bad-vrf")

	violations, err := engine.Check(db, r)
	require.NoError(t, err)
	assert.Len(t, violations, 1)
}

func TestCheck_BrokenStatement(t *testing.T) {
	db, engine := setupEngine(t)
	r := &model.Rule{Name: "broken", TargetModel: "vrf",
		Statement: "SELECT id FROM no_such_table", Severity: model.RuleSeveritySoft}
	_, err := engine.Check(db, r)
	require.Error(t, err)
	verr := &model.ValidationError{}
	assert.ErrorAs(t, err, &verr)
}

func TestCheckEnforced_BrokenRuleErrors(t *testing.T) {
	db, engine := setupEngine(t)
	addRule(t, db, "vrf_broken_rule",
		"SELECT id, name AS summary FROM no_such_table", model.RuleSeverityEnforced)
	vrf := addVrf(t, db, "any")

	_, err := engine.CheckEnforced(db, "vrf", vrf.ID)
	assert.Error(t, err)
}

func TestSeed(t *testing.T) {
	db, _ := setupEngine(t)
	require.NoError(t, Seed(db))

	var count int64
	require.NoError(t, db.Model(&model.Rule{}).Where("builtin = ?", true).Count(&count).Error)
	assert.EqualValues(t, len(Builtins()), count)

	var enforced int64
	require.NoError(t, db.Model(&model.Rule{}).
		Where("builtin = ? AND severity = ?", true, model.RuleSeverityEnforced).
		Count(&enforced).Error)
	assert.EqualValues(t, 3, enforced)

	// Seeding twice never duplicates.
	require.NoError(t, Seed(db))
	require.NoError(t, db.Model(&model.Rule{}).Where("builtin = ?", true).Count(&count).Error)
	assert.EqualValues(t, len(Builtins()), count)
}
