package engine

import (
	"fmt"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// ConstraintViolation is returned when a structural check fails. Unlike
// rule violations these never depend on user defined configuration.
// Deleted rows are excluded from the uniqueness checks, so a name can be
// reused after its previous owner is soft deleted.
type ConstraintViolation struct {
	Constraint string
	Field      string
	Message    string
}

func (e *ConstraintViolation) Error() string {
	return fmt.Sprintf("%s: %s", e.Constraint, e.Message)
}

func (s *Store) checkConstraints(tx *gorm.DB, entity model.Auditable) error {
	switch e := entity.(type) {
	case *model.Vrf:
		return uniqueCheck("vrf_name_unique", "name",
			"a VRF named `%s` already exists", e.Name,
			tx.Model(&model.Vrf{}).Where("name = ? AND status != ? AND id != ?", e.Name, model.StatusDeleted, e.ID))
	case *model.DnsZone:
		return uniqueCheck("dnszone_name_unique", "name",
			"a DNS zone named `%s` already exists", e.Name,
			tx.Model(&model.DnsZone{}).Where("name = ? AND status != ? AND id != ?", e.Name, model.StatusDeleted, e.ID))
	case *model.Subnet:
		return s.checkSubnetRanges(tx, e)
	case *model.DnsRecord:
		q := tx.Model(&model.DnsRecord{}).
			Where("name = ? AND type = ? AND value = ? AND status != ? AND id != ?",
				e.Name, e.Type, e.Value, model.StatusDeleted, e.ID)
		q = withVrf(q, e.VrfID)
		if err := uniqueCheck("dnsrecord_unique", "value",
			"an identical DNS record already exists", "", q); err != nil {
			return err
		}
		if e.Type == "SOA" {
			return uniqueCheck("dnsrecord_soa_unique", "name",
				"a SOA record already exists for `%s`", e.Name,
				tx.Model(&model.DnsRecord{}).
					Where("type = ? AND name = ? AND status != ? AND id != ?",
						"SOA", e.Name, model.StatusDeleted, e.ID))
		}
		return nil
	case *model.DhcpRecord:
		// One active reservation per hardware address, regardless of VRF.
		return uniqueCheck("dhcprecord_mac_unique", "mac",
			"the MAC address `%s` already has an active reservation", e.Mac,
			tx.Model(&model.DhcpRecord{}).
				Where("mac = ? AND estatus != ? AND id != ?", e.Mac, model.StatusDeleted, e.ID))
	case *model.Environment:
		return uniqueCheck("environment_name_unique", "name",
			"an environment named `%s` already exists", e.Name,
			tx.Model(&model.Environment{}).Where("name = ? AND status != ? AND id != ?", e.Name, model.StatusDeleted, e.ID))
	case *model.Rule:
		return uniqueCheck("rule_name_unique", "name",
			"a rule named `%s` already exists", e.Name,
			tx.Model(&model.Rule{}).Where("name = ? AND status != ? AND id != ?", e.Name, model.StatusDeleted, e.ID))
	case *model.User:
		if err := uniqueCheck("user_username_unique", "username",
			"the username `%s` is already taken", e.Username,
			tx.Model(&model.User{}).Where("username = ? AND id != ?", e.Username, e.ID)); err != nil {
			return err
		}
		if e.Email != nil && *e.Email != "" {
			return uniqueCheck("user_email_unique", "email",
				"the email `%s` is already used by another account", *e.Email,
				tx.Model(&model.User{}).Where("email = ? AND id != ?", *e.Email, e.ID))
		}
		return nil
	}
	return nil
}

// checkSubnetRanges rejects a range already claimed by another live
// subnet of the same VRF.
func (s *Store) checkSubnetRanges(tx *gorm.DB, subnet *model.Subnet) error {
	for i := range subnet.Ranges {
		r := &subnet.Ranges[i]
		var count int64
		err := tx.Table("subnetrange").
			Joins("JOIN subnet ON subnet.id = subnetrange.subnet_id").
			Where("subnetrange.vrf_id = ? AND subnetrange.`range` = ?", r.VrfID, r.Range).
			Where("subnet.status != ? AND subnet.id != ?", model.StatusDeleted, subnet.ID).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count > 0 {
			return &ConstraintViolation{
				Constraint: "subnetrange_unique",
				Field:      "ranges",
				Message:    fmt.Sprintf("the range `%s` is already defined by another subnet in the same VRF", r.Range),
			}
		}
	}
	return nil
}

func uniqueCheck(constraint, field, format, arg string, q *gorm.DB) error {
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		msg := format
		if arg != "" {
			msg = fmt.Sprintf(format, arg)
		}
		return &ConstraintViolation{Constraint: constraint, Field: field, Message: msg}
	}
	return nil
}

func withVrf(q *gorm.DB, vrfID *int) *gorm.DB {
	if vrfID == nil {
		return q.Where("vrf_id IS NULL")
	}
	return q.Where("vrf_id = ?", *vrfID)
}
