// Package notification turns unsent change log messages into emails for
// the followers of the touched entities.
package notification

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ikus060/udb/internal/model"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	dispatchLockKey = "udb:notification:lock"
	dispatchLockTTL = 2 * time.Minute
	batchSize       = 500
)

// Dispatcher groups unsent messages by recipient and mails them. A kick
// channel triggers an immediate pass after each commit; the ticker covers
// messages written by other processes.
type Dispatcher struct {
	ctx      context.Context
	cancel   context.CancelFunc
	db       *gorm.DB
	mailer   Mailer
	redis    *redis.Client
	logger   *logrus.Entry
	interval time.Duration
	catchall string
	baseURL  string
	kick     chan struct{}
	localMu  sync.Mutex
}

// Config holds the configuration for the dispatcher
type Config struct {
	DB          *gorm.DB
	Mailer      Mailer
	Redis       *redis.Client
	Logger      *logrus.Entry
	IntervalSec int
	Catchall    string
	BaseURL     string
}

// NewDispatcher creates a dispatcher. Redis is optional; without it the
// dispatch lock falls back to a process local mutex.
func NewDispatcher(cfg *Config) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		ctx:      ctx,
		cancel:   cancel,
		db:       cfg.DB,
		mailer:   cfg.Mailer,
		redis:    cfg.Redis,
		logger:   cfg.Logger.WithField("component", "notification-dispatcher"),
		interval: time.Duration(cfg.IntervalSec) * time.Second,
		catchall: cfg.Catchall,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		kick:     make(chan struct{}, 1),
	}
}

// Kick schedules an immediate dispatch pass. Safe to call from any
// goroutine; coalesces when a pass is already pending.
func (d *Dispatcher) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Start begins the dispatch loop.
func (d *Dispatcher) Start() {
	d.logger.Info("Starting notification dispatcher...")
	ticker := time.NewTicker(d.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.DispatchPending()
			case <-d.kick:
				d.DispatchPending()
			case <-d.ctx.Done():
				d.logger.Info("Stopping notification dispatcher...")
				return
			}
		}
	}()
}

// Stop gracefully stops the dispatcher
func (d *Dispatcher) Stop() {
	d.cancel()
}

// DispatchPending delivers every unsent message. Only one process runs a
// pass at a time.
func (d *Dispatcher) DispatchPending() {
	unlock, ok := d.lock()
	if !ok {
		return
	}
	defer unlock()

	var messages []model.Message
	err := d.db.Where("sent = ?", false).Order("id").Limit(batchSize).Find(&messages).Error
	if err != nil {
		d.logger.Errorf("Failed to fetch pending messages: %v", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	perRecipient := map[string][]model.Message{}
	for _, msg := range messages {
		seen := map[string]bool{}
		for _, email := range append(d.recipients(&msg), d.securityRecipients(&msg)...) {
			if seen[email] {
				continue
			}
			seen[email] = true
			perRecipient[email] = append(perRecipient[email], msg)
		}
	}

	failedMsg := map[int]bool{}
	for email, batch := range perRecipient {
		subject, body := d.compose(batch)
		if err := d.mailer.Send(email, subject, body); err != nil {
			d.logger.Errorf("Failed to send notification to %s: %v", email, err)
			for _, msg := range batch {
				failedMsg[msg.ID] = true
			}
		}
	}

	// Only the messages whose every mail went out are marked sent; the
	// rest stay pending so the next pass retries them without sending a
	// duplicate digest to the addresses that already got theirs.
	ids := make([]int, 0, len(messages))
	for _, msg := range messages {
		if !failedMsg[msg.ID] {
			ids = append(ids, msg.ID)
		}
	}
	if len(ids) == 0 {
		return
	}
	if err := d.db.Model(&model.Message{}).Where("id IN ?", ids).Update("sent", true).Error; err != nil {
		d.logger.Errorf("Failed to mark messages as sent: %v", err)
	}
}

// recipients returns the email addresses subscribed to the message's
// entity: followers of the row, followers of the whole model, and the
// catchall address. The author never gets notified of their own change.
func (d *Dispatcher) recipients(msg *model.Message) []string {
	var users []model.User
	err := d.db.Table("user").
		Select("DISTINCT user.*").
		Joins("JOIN follower ON follower.user_id = user.id").
		Where("follower.model_name = ?", msg.ModelName).
		Where("follower.model_id = ? OR follower.model_id = 0", msg.ModelID).
		Where("user.status = ?", model.StatusEnabled).
		Where("user.email IS NOT NULL AND user.email != ''").
		Find(&users).Error
	if err != nil {
		d.logger.Errorf("Failed to resolve followers of %s/%d: %v", msg.ModelName, msg.ModelID, err)
		return nil
	}
	seen := map[string]bool{}
	var out []string
	for _, u := range users {
		if msg.AuthorID != nil && u.ID == *msg.AuthorID {
			continue
		}
		if u.Email == nil || seen[*u.Email] {
			continue
		}
		seen[*u.Email] = true
		out = append(out, *u.Email)
	}
	if d.catchall != "" && !seen[d.catchall] {
		out = append(out, d.catchall)
	}
	sort.Strings(out)
	return out
}

var securityFields = []string{"status", "password", "email", "role"}

// securityRecipients returns the addresses warned directly when an
// account's security attributes change. The account owner is always
// told, even about their own change, and a changed email also notifies
// the previous address so a hijacked account cannot silently move.
func (d *Dispatcher) securityRecipients(msg *model.Message) []string {
	if msg.ModelName != "user" {
		return nil
	}
	changes, err := msg.ChangeMap()
	if err != nil || len(changes) == 0 {
		return nil
	}
	touched := false
	for _, field := range securityFields {
		if _, ok := changes[field]; ok {
			touched = true
			break
		}
	}
	if !touched {
		return nil
	}
	var out []string
	var target model.User
	if err := d.db.First(&target, msg.ModelID).Error; err == nil {
		if target.Email != nil && *target.Email != "" {
			out = append(out, *target.Email)
		}
	} else {
		d.logger.Errorf("Failed to resolve user %d for security notification: %v", msg.ModelID, err)
	}
	if pair, ok := changes["email"]; ok {
		if prev, ok := pair[0].(string); ok && prev != "" {
			out = append(out, prev)
		}
	}
	return out
}

// compose renders one digest mail for a batch of messages.
func (d *Dispatcher) compose(batch []model.Message) (string, string) {
	subject := fmt.Sprintf("[udb] %s", batch[0].Summary)
	if len(batch) > 1 {
		subject = fmt.Sprintf("[udb] %d changes", len(batch))
	}
	var body strings.Builder
	for _, msg := range batch {
		fmt.Fprintf(&body, "%s %s (%s)\n", msg.Date.Format("2006-01-02 15:04"), msg.Summary, msg.Type)
		if msg.Type == model.MessageTypeComment {
			fmt.Fprintf(&body, "    %s\n", msg.Body)
		} else {
			changes, err := msg.ChangeMap()
			if err == nil {
				for _, field := range msg.ChangedFields() {
					pair := changes[field]
					fmt.Fprintf(&body, "    %s: %v -> %v\n", field, pair[0], pair[1])
				}
			}
		}
		if d.baseURL != "" {
			fmt.Fprintf(&body, "    %s/api/v1/%s/%d\n", d.baseURL, msg.ModelName, msg.ModelID)
		}
		body.WriteString("\n")
	}
	return subject, body.String()
}

// lock takes the cross process dispatch lock, falling back to a local
// mutex when Redis is not configured.
func (d *Dispatcher) lock() (func(), bool) {
	if d.redis == nil {
		d.localMu.Lock()
		return d.localMu.Unlock, true
	}
	ok, err := d.redis.SetNX(d.ctx, dispatchLockKey, 1, dispatchLockTTL).Result()
	if err != nil {
		d.logger.Warnf("Redis lock failed, falling back to local mutex: %v", err)
		d.localMu.Lock()
		return d.localMu.Unlock, true
	}
	if !ok {
		return nil, false
	}
	return func() { d.redis.Del(d.ctx, dispatchLockKey) }, true
}
