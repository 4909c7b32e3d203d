package notification

import (
	"fmt"
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

type sentMail struct {
	to      string
	subject string
	body    string
}

// fakeMailer records deliveries and optionally fails them, either all of
// them or per address.
type fakeMailer struct {
	sent   []sentMail
	fail   bool
	failTo map[string]bool
}

func (m *fakeMailer) Send(to, subject, body string) error {
	if m.fail || m.failTo[to] {
		return fmt.Errorf("relay unavailable")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: body})
	return nil
}

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
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
	require.NoError(t, db.AutoMigrate(&model.Message{}, &model.User{}, &model.Follower{}))
	return db
}

func newDispatcher(db *gorm.DB, mailer Mailer, catchall string) *Dispatcher {
	return NewDispatcher(&Config{
		DB:          db,
		Mailer:      mailer,
		Logger:      testLogger(),
		IntervalSec: 60,
		Catchall:    catchall,
		BaseURL:     "https://udb.example.com",
	})
}

func addUser(t *testing.T, db *gorm.DB, username, email string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Role: model.RoleUser, Status: model.StatusEnabled}
	if email != "" {
		u.Email = &email
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

func follow(t *testing.T, db *gorm.DB, userID int, modelName string, modelID int) {
	t.Helper()
	require.NoError(t, db.Create(&model.Follower{
		ModelName: modelName, ModelID: modelID, UserID: userID,
	}).Error)
}

func addMessage(t *testing.T, db *gorm.DB, modelName string, modelID int, authorID *int) *model.Message {
	t.Helper()
	changes, err := model.EncodeChanges(map[string][2]interface{}{
		"name": {"old", "new"},
	})
	require.NoError(t, err)
	msg := &model.Message{
		ModelName: modelName,
		ModelID:   modelID,
		Type:      model.MessageTypeDirty,
		Changes:   changes,
		AuthorID:  authorID,
		Summary:   "office-lan",
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestDispatchPending(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	watcher := addUser(t, db, "alice", "alice@example.com")
	follow(t, db, watcher.ID, "subnet", 7)
	msg := addMessage(t, db, "subnet", 7, nil)

	d.DispatchPending()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Equal(t, "[udb] office-lan", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "name: old -> new")
	assert.Contains(t, mailer.sent[0].body, "https://udb.example.com/api/v1/subnet/7")

	var sent model.Message
	require.NoError(t, db.First(&sent, msg.ID).Error)
	assert.True(t, sent.Sent)
}

func TestDispatchPending_AuthorNotNotified(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	author := addUser(t, db, "alice", "alice@example.com")
	follow(t, db, author.ID, "subnet", 7)
	msg := addMessage(t, db, "subnet", 7, &author.ID)

	d.DispatchPending()

	assert.Empty(t, mailer.sent)
	// Nobody to notify still consumes the message.
	var sent model.Message
	require.NoError(t, db.First(&sent, msg.ID).Error)
	assert.True(t, sent.Sent)
}

func TestDispatchPending_ModelWideFollower(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	watcher := addUser(t, db, "alice", "alice@example.com")
	follow(t, db, watcher.ID, "subnet", 0)
	addMessage(t, db, "subnet", 7, nil)
	addMessage(t, db, "subnet", 8, nil)

	d.DispatchPending()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Equal(t, "[udb] 2 changes", mailer.sent[0].subject)
}

func TestDispatchPending_Catchall(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "audit@example.com")

	addMessage(t, db, "subnet", 7, nil)

	d.DispatchPending()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "audit@example.com", mailer.sent[0].to)
}

func TestDispatchPending_DisabledFollowerSkipped(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	watcher := addUser(t, db, "alice", "alice@example.com")
	watcher.Status = model.StatusDisabled
	require.NoError(t, db.Save(watcher).Error)
	follow(t, db, watcher.ID, "subnet", 7)
	addMessage(t, db, "subnet", 7, nil)

	d.DispatchPending()

	assert.Empty(t, mailer.sent)
}

func TestDispatchPending_FailureLeavesBatchUnsent(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{fail: true}
	d := newDispatcher(db, mailer, "audit@example.com")

	msg := addMessage(t, db, "subnet", 7, nil)

	d.DispatchPending()

	var pending model.Message
	require.NoError(t, db.First(&pending, msg.ID).Error)
	assert.False(t, pending.Sent)

	// The next pass retries the same batch.
	mailer.fail = false
	d.DispatchPending()
	require.Len(t, mailer.sent, 1)
	require.NoError(t, db.First(&pending, msg.ID).Error)
	assert.True(t, pending.Sent)
}

func addChangeMessage(t *testing.T, db *gorm.DB, modelName string, modelID int,
	authorID *int, changeSet map[string][2]interface{}) *model.Message {
	t.Helper()
	changes, err := model.EncodeChanges(changeSet)
	require.NoError(t, err)
	msg := &model.Message{
		ModelName: modelName,
		ModelID:   modelID,
		Type:      model.MessageTypeDirty,
		Changes:   changes,
		AuthorID:  authorID,
		Summary:   "account",
	}
	require.NoError(t, db.Create(msg).Error)
	return msg
}

func TestDispatchPending_PartialFailureRetriesOnlyFailed(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{failTo: map[string]bool{"bob@example.com": true}}
	d := newDispatcher(db, mailer, "")

	alice := addUser(t, db, "alice", "alice@example.com")
	bob := addUser(t, db, "bob", "bob@example.com")
	follow(t, db, alice.ID, "subnet", 7)
	follow(t, db, bob.ID, "subnet", 8)
	msgA := addMessage(t, db, "subnet", 7, nil)
	msgB := addMessage(t, db, "subnet", 8, nil)

	d.DispatchPending()

	// Alice's message is consumed; Bob's stays pending for the retry.
	var fresh model.Message
	require.NoError(t, db.First(&fresh, msgA.ID).Error)
	assert.True(t, fresh.Sent)
	// Reset between lookups: gorm reuses the primary key left in the
	// destination struct as an extra query condition.
	fresh = model.Message{}
	require.NoError(t, db.First(&fresh, msgB.ID).Error)
	assert.False(t, fresh.Sent)

	mailer.failTo = nil
	d.DispatchPending()

	// Alice never gets a duplicate digest.
	require.Len(t, mailer.sent, 2)
	assert.Equal(t, "alice@example.com", mailer.sent[0].to)
	assert.Equal(t, "bob@example.com", mailer.sent[1].to)
	require.NoError(t, db.First(&fresh, msgB.ID).Error)
	assert.True(t, fresh.Sent)
}

func TestDispatchPending_UserSecurityChangeNotifiesTarget(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	// Bob follows nothing and even made the change himself: a password
	// change on his account still lands in his mailbox.
	bob := addUser(t, db, "bob", "bob@example.com")
	addChangeMessage(t, db, "user", bob.ID, &bob.ID,
		map[string][2]interface{}{"password": {"1a2b3c4d", "5e6f7a8b"}})

	d.DispatchPending()

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "bob@example.com", mailer.sent[0].to)
}

func TestDispatchPending_UserEmailChangeNotifiesPriorAddress(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	bob := addUser(t, db, "bob", "new@example.com")
	addChangeMessage(t, db, "user", bob.ID, nil,
		map[string][2]interface{}{"email": {"old@example.com", "new@example.com"}})

	d.DispatchPending()

	require.Len(t, mailer.sent, 2)
	tos := []string{mailer.sent[0].to, mailer.sent[1].to}
	assert.ElementsMatch(t, []string{"old@example.com", "new@example.com"}, tos)
}

func TestDispatchPending_UserCosmeticChangeNotEscalated(t *testing.T) {
	db := setupDB(t)
	mailer := &fakeMailer{}
	d := newDispatcher(db, mailer, "")

	bob := addUser(t, db, "bob", "bob@example.com")
	addChangeMessage(t, db, "user", bob.ID, nil,
		map[string][2]interface{}{"fullname": {"Bob", "Robert"}})

	d.DispatchPending()

	assert.Empty(t, mailer.sent)
}

func TestRecipients_Deduplicated(t *testing.T) {
	db := setupDB(t)
	d := newDispatcher(db, &fakeMailer{}, "")

	watcher := addUser(t, db, "alice", "alice@example.com")
	follow(t, db, watcher.ID, "subnet", 7)
	follow(t, db, watcher.ID, "subnet", 0)

	msg := addMessage(t, db, "subnet", 7, nil)
	assert.Equal(t, []string{"alice@example.com"}, d.recipients(msg))
}
