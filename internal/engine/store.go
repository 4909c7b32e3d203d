// Package engine implements the write path of the database. Every create,
// update, soft delete and comment goes through a single unit of work that
// validates the entity, recomputes its derived links and effective status,
// rechecks the structural constraints and enforced rules, and records the
// change log messages before committing.
package engine

import (
	"errors"

	"github.com/ikus060/udb/internal/changelog"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/rule"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notifier is kicked after a successful commit so pending change log
// messages get dispatched without waiting for the next timer tick.
type Notifier interface {
	Kick()
}

// Store is the write surface of the database.
type Store struct {
	db       *gorm.DB
	rules    *rule.Engine
	logger   *logrus.Entry
	notifier Notifier
}

// NewStore creates a store bound to the database and rule engine.
func NewStore(db *gorm.DB, rules *rule.Engine, logger *logrus.Entry) *Store {
	return &Store{
		db:     db,
		rules:  rules,
		logger: logger.WithField("component", "engine"),
	}
}

// SetNotifier registers the post-commit notification hook.
func (s *Store) SetNotifier(n Notifier) { s.notifier = n }

// DB exposes the underlying handle for read only queries.
func (s *Store) DB() *gorm.DB { return s.db }

type validator interface {
	Validate() error
}

type searchIndexed interface {
	RefreshSearchIndex()
}

// uow caches the registry rows touched by one unit of work so a record
// and its reverse counterpart saved together reuse the same Ip and Mac
// rows instead of racing on the unique index.
type uow struct {
	ips  map[string]int
	macs map[string]int
}

func newUow() *uow {
	return &uow{ips: map[string]int{}, macs: map[string]int{}}
}

// Save creates or updates an entity through the full unit of work. The
// entity is created when its ID is zero. A constraint violation gets one
// retry against a fresh snapshot: the conflicting row may have been
// removed by a transaction that committed while ours was running.
func (s *Store) Save(entity model.Auditable, authorID *int) error {
	err := s.trySave(entity, authorID)
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		err = s.trySave(entity, authorID)
	}
	if err == nil {
		s.kick()
	}
	return err
}

// trySave runs one unit of work. gorm assigns the ID during a create even
// when the transaction rolls back, so it is restored on failure to keep
// the entity retryable.
func (s *Store) trySave(entity model.Auditable, authorID *int) error {
	id := entity.GetID()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.save(tx, newUow(), entity, authorID)
	})
	if err != nil {
		entity.SetID(id)
	}
	return err
}

// Delete soft deletes an entity: the row is kept with status deleted and
// excluded from uniqueness and rule checks.
func (s *Store) Delete(entity model.Auditable, authorID *int) error {
	st, ok := entity.(model.Statusable)
	if !ok {
		return model.NewValidationError("status", "%s cannot be deleted", entity.ModelName())
	}
	st.SetStatus(model.StatusDeleted)
	return s.Save(entity, authorID)
}

// Comment appends a free form comment to the entity's change log.
func (s *Store) Comment(entity model.Auditable, body string, authorID *int) error {
	if body == "" {
		return model.NewValidationError("body", "comment cannot be empty")
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return changelog.RecordComment(tx, entity, body, authorID)
	})
	if err == nil {
		s.kick()
	}
	return err
}

// SaveAll saves several entities in one transaction, sharing the registry
// cache. Used to create a record together with its reverse counterpart.
// Like Save, a constraint violation gets one retry.
func (s *Store) SaveAll(entities []model.Auditable, authorID *int) error {
	err := s.trySaveAll(entities, authorID)
	var cv *ConstraintViolation
	if errors.As(err, &cv) {
		err = s.trySaveAll(entities, authorID)
	}
	if err == nil {
		s.kick()
	}
	return err
}

func (s *Store) trySaveAll(entities []model.Auditable, authorID *int) error {
	ids := make([]int, len(entities))
	for i, entity := range entities {
		ids[i] = entity.GetID()
	}
	err := s.db.Transaction(func(tx *gorm.DB) error {
		u := newUow()
		for _, entity := range entities {
			if err := s.save(tx, u, entity, authorID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		for i, entity := range entities {
			entity.SetID(ids[i])
		}
	}
	return err
}

func (s *Store) save(tx *gorm.DB, u *uow, entity model.Auditable, authorID *int) error {
	isNew := entity.GetID() == 0

	var before map[string]interface{}
	if !isNew {
		prev, err := fetchBefore(tx, entity)
		if err != nil {
			return err
		}
		before = prev.AuditAttributes()
	}

	if v, ok := entity.(validator); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}

	if err := s.reconcile(tx, u, entity, true); err != nil {
		return err
	}

	if si, ok := entity.(searchIndexed); ok {
		si.RefreshSearchIndex()
	}

	if err := s.persist(tx, entity); err != nil {
		return err
	}

	if err := s.cascade(tx, entity); err != nil {
		return err
	}

	if err := s.checkConstraints(tx, entity); err != nil {
		return err
	}

	violations, err := s.rules.CheckEnforced(tx, entity.ModelName(), entity.GetID())
	if err != nil {
		return err
	}
	if len(violations) > 0 {
		return &rule.Error{Violations: violations}
	}

	if isNew {
		return changelog.RecordNew(tx, entity, authorID)
	}
	return changelog.RecordDirty(tx, entity, before, authorID)
}

// persist writes the entity row. Associations are handled explicitly by
// the reconciliation step, never by gorm's auto save.
func (s *Store) persist(tx *gorm.DB, entity model.Auditable) error {
	switch e := entity.(type) {
	case *model.Subnet:
		if err := tx.Omit(clause.Associations).Save(e).Error; err != nil {
			return err
		}
		if err := s.persistRanges(tx, e); err != nil {
			return err
		}
		return tx.Model(e).Association("Zones").Replace(zonePointers(e.Zones))
	case *model.DnsZone:
		if err := tx.Omit(clause.Associations).Save(e).Error; err != nil {
			return err
		}
		return tx.Model(e).Association("Subnets").Replace(subnetPointers(e.Subnets))
	default:
		return tx.Omit(clause.Associations).Save(entity).Error
	}
}

// persistRanges replaces the subnet's ranges, matching existing rows by
// their CIDR so unchanged ranges keep their id and the records linked to
// them.
func (s *Store) persistRanges(tx *gorm.DB, subnet *model.Subnet) error {
	var existing []model.SubnetRange
	if err := tx.Where("subnet_id = ?", subnet.ID).Find(&existing).Error; err != nil {
		return err
	}
	byRange := make(map[string]*model.SubnetRange, len(existing))
	for i := range existing {
		byRange[existing[i].Range] = &existing[i]
	}
	kept := map[int]bool{}
	for i := range subnet.Ranges {
		r := &subnet.Ranges[i]
		r.SubnetID = subnet.ID
		if prev, ok := byRange[r.Range]; ok {
			r.ID = prev.ID
		} else {
			// A stale id from a rolled back attempt must not turn the
			// insert into an update.
			r.ID = 0
		}
		if err := tx.Save(r).Error; err != nil {
			return err
		}
		kept[r.ID] = true
	}
	for i := range existing {
		if !kept[existing[i].ID] {
			if err := tx.Delete(&existing[i]).Error; err != nil {
				return err
			}
		}
	}
	return nil
}

func zonePointers(zones []model.DnsZone) []*model.DnsZone {
	out := make([]*model.DnsZone, len(zones))
	for i := range zones {
		out[i] = &zones[i]
	}
	return out
}

func subnetPointers(subnets []model.Subnet) []*model.Subnet {
	out := make([]*model.Subnet, len(subnets))
	for i := range subnets {
		out[i] = &subnets[i]
	}
	return out
}

// fetchBefore loads a pristine copy of the entity for the change log diff.
func fetchBefore(tx *gorm.DB, entity model.Auditable) (model.Auditable, error) {
	switch entity.(type) {
	case *model.Vrf:
		out := &model.Vrf{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.Subnet:
		out := &model.Subnet{}
		err := tx.Preload("Ranges").Preload("Zones").First(out, entity.GetID()).Error
		out.SortRanges()
		return out, err
	case *model.DnsZone:
		out := &model.DnsZone{}
		return out, tx.Preload("Subnets").First(out, entity.GetID()).Error
	case *model.DnsRecord:
		out := &model.DnsRecord{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.DhcpRecord:
		out := &model.DhcpRecord{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.Ip:
		out := &model.Ip{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.Mac:
		out := &model.Mac{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.User:
		out := &model.User{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.Environment:
		out := &model.Environment{}
		return out, tx.First(out, entity.GetID()).Error
	case *model.Rule:
		out := &model.Rule{}
		return out, tx.First(out, entity.GetID()).Error
	default:
		return nil, model.NewValidationError("id", "unknown model %s", entity.ModelName())
	}
}

func (s *Store) kick() {
	if s.notifier != nil {
		s.notifier.Kick()
	}
}
