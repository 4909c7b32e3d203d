package engine

import (
	"fmt"

	"github.com/ikus060/udb/internal/changelog"
	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// cascade pushes the entity's effective status down to its dependents and
// relinks the records whose derived zone or range may have changed. Every
// derived change is recorded as a parent message on the affected row.
func (s *Store) cascade(tx *gorm.DB, entity model.Auditable) error {
	switch e := entity.(type) {
	case *model.Vrf:
		if err := s.cascadeVrf(tx, e); err != nil {
			return err
		}
		return s.rescanRecords(tx)
	case *model.Subnet, *model.DnsZone:
		return s.rescanRecords(tx)
	}
	return nil
}

// cascadeVrf refreshes the denormalized VRF status on every subnet of the
// VRF.
func (s *Store) cascadeVrf(tx *gorm.DB, vrf *model.Vrf) error {
	var subnets []model.Subnet
	if err := tx.Where("vrf_id = ?", vrf.ID).Find(&subnets).Error; err != nil {
		return err
	}
	for i := range subnets {
		subnet := &subnets[i]
		newEStatus := model.MinStatus(subnet.Status, vrf.EStatus)
		if subnet.VrfEStatus == vrf.EStatus && subnet.EStatus == newEStatus {
			continue
		}
		changes := map[string][2]interface{}{}
		if subnet.EStatus != newEStatus {
			changes["estatus"] = [2]interface{}{string(subnet.EStatus), string(newEStatus)}
		}
		updates := map[string]interface{}{
			"vrf_estatus": vrf.EStatus,
			"estatus":     newEStatus,
		}
		if err := tx.Model(subnet).Updates(updates).Error; err != nil {
			return err
		}
		if err := changelog.RecordParent(tx, subnet.ModelName(), subnet.ID, subnet.Summary(), changes); err != nil {
			return err
		}
		subnet.VrfEStatus = vrf.EStatus
		subnet.EStatus = newEStatus
	}
	return nil
}

// rescanRecords re-reconciles every DNS and DHCP record that is not
// itself deleted. A changed subnet, zone or VRF can relink records far
// away from the edited row, so the scan recomputes the derived columns
// of all of them and records a parent message for each one that moved.
// Records shadowed by a deleted ancestor stay in the scan so restoring
// the ancestor brings them back.
func (s *Store) rescanRecords(tx *gorm.DB) error {
	u := newUow()

	var dnsRecords []model.DnsRecord
	if err := tx.Where("status != ?", model.StatusDeleted).Find(&dnsRecords).Error; err != nil {
		return err
	}
	for i := range dnsRecords {
		if err := s.rescanDnsRecord(tx, u, &dnsRecords[i]); err != nil {
			return err
		}
	}

	var dhcpRecords []model.DhcpRecord
	if err := tx.Where("status != ?", model.StatusDeleted).Find(&dhcpRecords).Error; err != nil {
		return err
	}
	for i := range dhcpRecords {
		if err := s.rescanDhcpRecord(tx, u, &dhcpRecords[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) rescanDnsRecord(tx *gorm.DB, u *uow, r *model.DnsRecord) error {
	before := derivedDnsState(r)
	if err := s.reconcileDnsRecord(tx, u, r, false); err != nil {
		return err
	}
	// The edit must not strand a live record: losing the zone or range
	// entirely aborts the whole unit of work.
	if r.Status != model.StatusDeleted {
		if r.DnsZoneID == nil {
			return &ConstraintViolation{
				Constraint: "dnszone_required",
				Field:      "name",
				Message:    fmt.Sprintf("record `%s` would no longer match any DNS zone", r.Summary()),
			}
		}
		if r.HasIPValue() && r.SubnetRangeID == nil {
			return &ConstraintViolation{
				Constraint: "subnetrange_required",
				Field:      "value",
				Message:    fmt.Sprintf("record `%s` would no longer match any subnet range", r.Summary()),
			}
		}
	}
	after := derivedDnsState(r)
	changes := changelog.Diff(before, after)
	if len(changes) == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"dnszone_id":      r.DnsZoneID,
		"dnszone_estatus": r.DnsZoneEStatus,
		"subnetrange_id":  r.SubnetRangeID,
		"subnet_estatus":  r.SubnetEStatus,
		"subnet_range":    r.SubnetRange,
		"estatus":         r.EStatus,
		"vrf_id":          r.VrfID,
	}
	if err := tx.Model(r).Updates(updates).Error; err != nil {
		return err
	}
	return changelog.RecordParent(tx, r.ModelName(), r.ID, r.Summary(), visibleChanges(changes))
}

func (s *Store) rescanDhcpRecord(tx *gorm.DB, u *uow, r *model.DhcpRecord) error {
	before := derivedDhcpState(r)
	if err := s.reconcileDhcpRecord(tx, u, r, false); err != nil {
		return err
	}
	after := derivedDhcpState(r)
	changes := changelog.Diff(before, after)
	if len(changes) == 0 {
		return nil
	}
	updates := map[string]interface{}{
		"subnetrange_id": r.SubnetRangeID,
		"subnet_estatus": r.SubnetEStatus,
		"subnet_range":   r.SubnetRange,
		"estatus":        r.EStatus,
		"vrf_id":         r.VrfID,
	}
	if err := tx.Model(r).Updates(updates).Error; err != nil {
		return err
	}
	return changelog.RecordParent(tx, r.ModelName(), r.ID, r.Summary(), visibleChanges(changes))
}

func derivedDnsState(r *model.DnsRecord) map[string]interface{} {
	return map[string]interface{}{
		"dnszone":         intPtrValue(r.DnsZoneID),
		"dnszone_estatus": statusPtrValue(r.DnsZoneEStatus),
		"subnetrange":     intPtrValue(r.SubnetRangeID),
		"subnet_range":    strPtrValue(r.SubnetRange),
		"subnet_estatus":  statusPtrValue(r.SubnetEStatus),
		"estatus":         string(r.EStatus),
		"vrf":             intPtrValue(r.VrfID),
	}
}

func derivedDhcpState(r *model.DhcpRecord) map[string]interface{} {
	return map[string]interface{}{
		"subnetrange":    intPtrValue(r.SubnetRangeID),
		"subnet_range":   strPtrValue(r.SubnetRange),
		"subnet_estatus": statusPtrValue(r.SubnetEStatus),
		"estatus":        string(r.EStatus),
		"vrf":            intPtrValue(r.VrfID),
	}
}

// visibleChanges drops the internal link ids from the recorded change so
// the audit trail shows the human readable fields only.
func visibleChanges(changes map[string][2]interface{}) map[string][2]interface{} {
	out := map[string][2]interface{}{}
	for field, pair := range changes {
		if field == "dnszone" || field == "subnet_range" || field == "estatus" || field == "vrf" {
			out[field] = pair
		}
	}
	return out
}

func intPtrValue(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func strPtrValue(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func statusPtrValue(v *model.Status) interface{} {
	if v == nil {
		return nil
	}
	return string(*v)
}
