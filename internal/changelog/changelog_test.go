package changelog

import (
	"testing"

	"github.com/ikus060/udb/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDiff(t *testing.T) {
	before := map[string]interface{}{
		"name":   "old-name",
		"notes":  "same",
		"status": "enabled",
	}
	after := map[string]interface{}{
		"name":   "new-name",
		"notes":  "same",
		"status": "disabled",
	}
	changes := Diff(before, after)
	require.Len(t, changes, 2)
	assert.Equal(t, [2]interface{}{"old-name", "new-name"}, changes["name"])
	assert.Equal(t, [2]interface{}{"enabled", "disabled"}, changes["status"])
}

func TestDiff_AddedAndRemovedFields(t *testing.T) {
	changes := Diff(
		map[string]interface{}{"gone": "x"},
		map[string]interface{}{"added": "y"},
	)
	require.Len(t, changes, 2)
	assert.Equal(t, [2]interface{}{"x", nil}, changes["gone"])
	assert.Equal(t, [2]interface{}{nil, "y"}, changes["added"])
}

func TestDiff_NumericTypesCompareEqual(t *testing.T) {
	// JSON round trips turn ints into float64; that must not show as a
	// change.
	changes := Diff(
		map[string]interface{}{"ttl": float64(3600)},
		map[string]interface{}{"ttl": 3600},
	)
	assert.Empty(t, changes)
}

func TestDiff_NilHandling(t *testing.T) {
	changes := Diff(
		map[string]interface{}{"vrf": nil},
		map[string]interface{}{"vrf": 1},
	)
	require.Len(t, changes, 1)
	assert.Equal(t, [2]interface{}{nil, 1}, changes["vrf"])

	changes = Diff(
		map[string]interface{}{"vrf": nil},
		map[string]interface{}{"vrf": nil},
	)
	assert.Empty(t, changes)
}

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&model.Message{}, &model.Vrf{}))
	return db
}

func TestRecordNewAndHistory(t *testing.T) {
	db := setupDB(t)
	vrf := &model.Vrf{Name: "default"}
	vrf.ID = 7
	vrf.Status = model.StatusEnabled

	require.NoError(t, RecordNew(db, vrf, nil))

	messages, err := History(db, "vrf", 7)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.MessageTypeNew, messages[0].Type)
	assert.Equal(t, "default", messages[0].Summary)

	changes, err := messages[0].ChangeMap()
	require.NoError(t, err)
	pair, ok := changes["name"]
	require.True(t, ok)
	assert.Nil(t, pair[0])
	assert.Equal(t, "default", pair[1])
}

func TestRecordDirty_NoChangeNoMessage(t *testing.T) {
	db := setupDB(t)
	vrf := &model.Vrf{Name: "default"}
	vrf.ID = 7
	vrf.Status = model.StatusEnabled

	require.NoError(t, RecordDirty(db, vrf, vrf.AuditAttributes(), nil))

	messages, err := History(db, "vrf", 7)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestRecordComment(t *testing.T) {
	db := setupDB(t)
	vrf := &model.Vrf{Name: "default"}
	vrf.ID = 7
	author := 3

	require.NoError(t, RecordComment(db, vrf, "checked with the network team", &author))

	messages, err := History(db, "vrf", 7)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, model.MessageTypeComment, messages[0].Type)
	assert.Equal(t, "checked with the network team", messages[0].Body)
	require.NotNil(t, messages[0].AuthorID)
	assert.Equal(t, 3, *messages[0].AuthorID)
}

func TestHistory_NewestFirst(t *testing.T) {
	db := setupDB(t)
	vrf := &model.Vrf{Name: "default"}
	vrf.ID = 7

	require.NoError(t, RecordComment(db, vrf, "first", nil))
	require.NoError(t, RecordComment(db, vrf, "second", nil))

	messages, err := History(db, "vrf", 7)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "second", messages[0].Body)
	assert.Equal(t, "first", messages[1].Body)
}
