package deploy

import (
	"encoding/json"
	"testing"

	"github.com/ikus060/udb/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.Vrf{}, &model.Subnet{}, &model.SubnetRange{}, &model.DnsZone{},
		&model.DnsRecord{}, &model.DhcpRecord{}, &model.Message{},
		&model.Environment{}, &model.Deployment{},
	))
	return db
}

func addEnvironment(t *testing.T, db *gorm.DB, name, models string) *model.Environment {
	t.Helper()
	env := &model.Environment{Name: name, Script: "echo deploy", ModelNames: models}
	env.Status = model.StatusEnabled
	env.EStatus = model.StatusEnabled
	require.NoError(t, db.Create(env).Error)
	return env
}

func addMessage(t *testing.T, db *gorm.DB, modelName string) *model.Message {
	t.Helper()
	msg := &model.Message{ModelName: modelName, ModelID: 1, Type: model.MessageTypeNew}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestMaskToken(t *testing.T) {
	out := maskToken("fetching with token abc123 done", "abc123")
	assert.Equal(t, "fetching with token ******** done", out)
	assert.Equal(t, "untouched", maskToken("untouched", ""))
}

func TestNewToken(t *testing.T) {
	a, err := model.NewToken()
	require.NoError(t, err)
	b, err := model.NewToken()
	require.NoError(t, err)
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, b)
}

func TestBuildEnv(t *testing.T) {
	env := &model.Environment{Name: "dns-prod", ModelNames: "dnsrecord"}
	deployment := &model.Deployment{EnvironmentID: 1, Token: "s3cret", Environment: env}
	deployment.ID = 42
	owner := &model.User{Username: "alice"}
	owner.ID = 7

	vars := buildEnv(deployment, owner, "https://udb.example.com")
	assert.Equal(t, []string{
		"UDB_USERID=7",
		"UDB_USERNAME=alice",
		"UDB_DEPLOYMENT_ID=42",
		"UDB_DEPLOYMENT_TOKEN=s3cret",
		"UDB_DEPLOYMENT_AUTH=alice:s3cret",
		"UDB_DEPLOYMENT_MODEL_NAME=dnsrecord",
		"UDB_DEPLOYMENT_DATA_URL=https://udb.example.com/api/v1/deployments/42/data",
	}, vars)
}

func TestNormalizeScript(t *testing.T) {
	assert.Equal(t, "echo a\necho b\n", normalizeScript("echo a\r\necho b\r\n"))
	assert.Equal(t, "echo a\n", normalizeScript("echo a\n"))
}

func TestSchedule(t *testing.T) {
	db := setupDB(t)
	env := addEnvironment(t, db, "dns-prod", "dnsrecord")
	addMessage(t, db, "dnsrecord")
	last := addMessage(t, db, "dnsrecord")

	svc := NewService(db)
	deployment, err := svc.Schedule(env.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, model.DeploymentStateStarting, deployment.State)
	assert.Len(t, deployment.Token, 40)
	assert.Equal(t, 0, deployment.StartID)
	assert.Equal(t, last.ID, deployment.EndID)
	assert.NotEmpty(t, deployment.Data)
}

func TestSchedule_WindowFollowsLastSuccess(t *testing.T) {
	db := setupDB(t)
	env := addEnvironment(t, db, "dns-prod", "dnsrecord")
	first := addMessage(t, db, "dnsrecord")

	prev := &model.Deployment{
		EnvironmentID: env.ID,
		State:         model.DeploymentStateSuccess,
		Token:         "x",
		StartID:       0,
		EndID:         first.ID,
	}
	require.NoError(t, db.Create(prev).Error)
	second := addMessage(t, db, "dnsrecord")

	svc := NewService(db)
	deployment, err := svc.Schedule(env.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, deployment.StartID)
	assert.Equal(t, second.ID, deployment.EndID)
}

func TestSchedule_DisabledEnvironment(t *testing.T) {
	db := setupDB(t)
	env := &model.Environment{Name: "off", ModelNames: "dnsrecord"}
	env.Status = model.StatusDisabled
	env.EStatus = model.StatusDisabled
	require.NoError(t, db.Create(env).Error)

	svc := NewService(db)
	_, err := svc.Schedule(env.ID, nil)
	require.Error(t, err)
	verr := &model.ValidationError{}
	assert.ErrorAs(t, err, &verr)
}

func TestSchedule_UnknownEnvironment(t *testing.T) {
	db := setupDB(t)
	svc := NewService(db)
	_, err := svc.Schedule(999, nil)
	assert.Error(t, err)
}

func TestSnapshot_OnlyEnabledRows(t *testing.T) {
	db := setupDB(t)
	env := addEnvironment(t, db, "dns-prod", "dnsrecord")

	live := &model.DnsRecord{Name: "www.example.com", Type: "A", TTL: 3600, Value: "192.168.1.10"}
	live.Status = model.StatusEnabled
	live.EStatus = model.StatusEnabled
	require.NoError(t, db.Create(live).Error)

	dead := &model.DnsRecord{Name: "old.example.com", Type: "A", TTL: 3600, Value: "192.168.1.11"}
	dead.Status = model.StatusEnabled
	dead.EStatus = model.StatusDisabled
	require.NoError(t, db.Create(dead).Error)

	zone := &model.DnsZone{Name: "example.com"}
	zone.Status = model.StatusEnabled
	zone.EStatus = model.StatusEnabled
	require.NoError(t, db.Create(zone).Error)

	data, err := Snapshot(db, env)
	require.NoError(t, err)

	var decoded struct {
		Records []model.DnsRecord `json:"dnsrecord"`
		Zones   []model.DnsZone   `json:"dnszone"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded.Records, 1)
	assert.Equal(t, "www.example.com", decoded.Records[0].Name)
	require.Len(t, decoded.Zones, 1)
	assert.Equal(t, "example.com", decoded.Zones[0].Name)
}

func TestSnapshot_UnknownModel(t *testing.T) {
	db := setupDB(t)
	env := addEnvironment(t, db, "weird", "website")
	_, err := Snapshot(db, env)
	assert.Error(t, err)
}
