package engine

import (
	"errors"
	"strconv"

	"github.com/ikus060/udb/internal/changelog"
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"gorm.io/gorm"
)

// reconcile recomputes the derived fields of the entity. In strict mode a
// record that cannot be linked to a zone or range is rejected and deleted
// ancestors never match. The rescan path uses non-strict mode: links to
// deleted ancestors are kept so their effective status travels down, and
// the rescan itself rejects stranded live records.
func (s *Store) reconcile(tx *gorm.DB, u *uow, entity model.Auditable, strict bool) error {
	switch e := entity.(type) {
	case *model.Vrf:
		e.EStatus = e.Status
	case *model.DnsZone:
		e.EStatus = e.Status
	case *model.Environment:
		e.EStatus = e.Status
	case *model.Rule:
		e.EStatus = e.Status
		if !e.Builtin {
			if err := s.rules.Verify(tx, e); err != nil {
				return err
			}
		}
	case *model.Subnet:
		return s.reconcileSubnet(tx, e)
	case *model.DnsRecord:
		return s.reconcileDnsRecord(tx, u, e, strict)
	case *model.DhcpRecord:
		return s.reconcileDhcpRecord(tx, u, e, strict)
	}
	return nil
}

// reconcileSubnet checks the owning VRF and denormalizes its effective
// status.
func (s *Store) reconcileSubnet(tx *gorm.DB, subnet *model.Subnet) error {
	var vrf model.Vrf
	if err := tx.First(&vrf, subnet.VrfID).Error; err != nil {
		return model.NewValidationError("vrf_id", "VRF %d does not exist", subnet.VrfID)
	}
	subnet.VrfEStatus = vrf.EStatus
	subnet.EStatus = model.MinStatus(subnet.Status, vrf.EStatus)
	return nil
}

// reconcileDnsRecord resolves the longest matching zone for the record
// hostname, then the smallest subnet range containing its IP among the
// subnets authorized for that zone. The record adopts the VRF of the
// matched range when the caller left it unset.
func (s *Store) reconcileDnsRecord(tx *gorm.DB, u *uow, r *model.DnsRecord, strict bool) error {
	r.IPValue = nil
	r.GeneratedIP = nil
	r.DnsZoneID = nil
	r.DnsZoneEStatus = nil
	r.SubnetRangeID = nil
	r.SubnetEStatus = nil
	r.SubnetRange = nil

	strict = strict && r.Status != model.StatusDeleted
	includeDeleted := !strict

	hostname := r.HostnameValue()
	field := "name"
	if r.Type == "PTR" {
		field = "value"
		hostname = r.Name
	}

	zone, err := matchZone(tx, hostname, includeDeleted)
	if err != nil {
		return err
	}
	if zone == nil {
		if strict {
			return model.NewValidationError(field, "hostname `%s` does not match any DNS zone", hostname)
		}
	} else {
		r.DnsZoneID = &zone.ID
		r.DnsZoneEStatus = &zone.EStatus
	}

	zoneEStatus := model.StatusEnabled
	subnetEStatus := model.StatusEnabled
	if zone != nil {
		zoneEStatus = zone.EStatus
	}

	if r.HasIPValue() {
		addr, ok := r.ComputeIPValue()
		if !ok {
			return model.NewValidationError("value", "record does not carry a valid IP address")
		}
		ip := addr.String()
		key := types.AddrKey(addr)
		r.IPValue = &ip
		r.GeneratedIP = &key

		if zone != nil {
			match, err := matchRange(tx, zone.ID, types.Family(addr), key, r.VrfID, includeDeleted)
			if err != nil {
				return err
			}
			if match == nil {
				if strict {
					return model.NewValidationError("value",
						"IP address `%s` is not allowed in zone `%s`", ip, zone.Name)
				}
			} else {
				r.SubnetRangeID = &match.rng.ID
				r.SubnetRange = &match.rng.Range
				r.SubnetEStatus = &match.subnetEStatus
				subnetEStatus = match.subnetEStatus
				if r.VrfID == nil {
					r.VrfID = &match.rng.VrfID
				}
			}
		}

		if r.VrfID != nil && r.Status != model.StatusDeleted {
			if err := s.ensureIP(tx, u, ip, key, *r.VrfID); err != nil {
				return err
			}
		}
	}

	r.EStatus = model.MinStatus(r.Status, zoneEStatus, subnetEStatus)
	return nil
}

// reconcileDhcpRecord resolves the smallest subnet range containing the
// reserved IP. A reservation outside every range is kept and flagged by
// the soft rules instead of rejected.
func (s *Store) reconcileDhcpRecord(tx *gorm.DB, u *uow, r *model.DhcpRecord, strict bool) error {
	r.SubnetRangeID = nil
	r.SubnetEStatus = nil
	r.SubnetRange = nil

	strict = strict && r.Status != model.StatusDeleted
	includeDeleted := !strict

	addr, err := types.ParseAddr(r.IP)
	if err != nil {
		return model.NewValidationError("ip", "`%s` does not appear to be a valid IPv6 or IPv4 address", r.IP)
	}
	key := types.AddrKey(addr)

	match, err := matchRange(tx, 0, types.Family(addr), key, r.VrfID, includeDeleted)
	if err != nil {
		return err
	}
	subnetEStatus := model.StatusEnabled
	if match != nil {
		r.SubnetRangeID = &match.rng.ID
		r.SubnetRange = &match.rng.Range
		r.SubnetEStatus = &match.subnetEStatus
		subnetEStatus = match.subnetEStatus
		if r.VrfID == nil {
			r.VrfID = &match.rng.VrfID
		}
	}
	if r.VrfID == nil {
		if strict {
			return model.NewValidationError("vrf_id",
				"IP address `%s` does not match any subnet, a VRF must be provided", r.IP)
		}
		r.EStatus = model.MinStatus(r.Status, subnetEStatus)
		return nil
	}

	// A reservation outside every range still follows its VRF, so deleting
	// the VRF takes the orphan down with it.
	vrfEStatus := model.StatusEnabled
	if match == nil {
		var vrf model.Vrf
		if err := tx.First(&vrf, *r.VrfID).Error; err != nil {
			return model.NewValidationError("vrf_id", "VRF %d does not exist", *r.VrfID)
		}
		vrfEStatus = vrf.EStatus
	}

	if r.Status != model.StatusDeleted {
		if err := s.ensureIP(tx, u, r.IP, key, *r.VrfID); err != nil {
			return err
		}
		if err := s.ensureMac(tx, u, r.Mac); err != nil {
			return err
		}
	}

	r.EStatus = model.MinStatus(r.Status, subnetEStatus, vrfEStatus)
	return nil
}

// matchZone finds the longest zone whose name is a suffix of the
// hostname. The label-wise match happens in Go so it works identically
// on every backend. With includeDeleted the search also covers deleted
// zones, preferring a live zone over a deleted one of the same length.
func matchZone(tx *gorm.DB, hostname string, includeDeleted bool) (*model.DnsZone, error) {
	q := tx.Model(&model.DnsZone{})
	if !includeDeleted {
		q = q.Where("estatus != ?", model.StatusDeleted)
	}
	var zones []model.DnsZone
	if err := q.Find(&zones).Error; err != nil {
		return nil, err
	}
	var best *model.DnsZone
	for i := range zones {
		if !zones[i].MatchesHostname(hostname) {
			continue
		}
		switch {
		case best == nil,
			len(zones[i].Name) > len(best.Name),
			len(zones[i].Name) == len(best.Name) &&
				best.EStatus == model.StatusDeleted && zones[i].EStatus != model.StatusDeleted:
			best = &zones[i]
		}
	}
	return best, nil
}

type rangeMatch struct {
	rng           model.SubnetRange
	subnetEStatus model.Status
}

// matchRange finds the smallest subnet range containing the address.
// When zoneID is not zero only subnets authorized for the zone qualify;
// when vrfID is not nil the search is restricted to that VRF. Most
// specific first: highest start, lowest end. With includeDeleted the
// subnets of deleted parents also qualify, live subnets winning ties.
func matchRange(tx *gorm.DB, zoneID, family int, key string, vrfID *int, includeDeleted bool) (*rangeMatch, error) {
	type row struct {
		model.SubnetRange
		SubnetEStatus model.Status
	}
	q := tx.Table("subnetrange").
		Select("subnetrange.*, subnet.estatus AS subnet_e_status").
		Joins("JOIN subnet ON subnet.id = subnetrange.subnet_id").
		Where("subnetrange.version = ?", family).
		Where("subnetrange.start_ip <= ? AND subnetrange.end_ip >= ?", key, key)
	if !includeDeleted {
		q = q.Where("subnet.estatus != ?", model.StatusDeleted)
	}
	if zoneID != 0 {
		q = q.Joins("JOIN dnszone_subnet ON dnszone_subnet.subnet_id = subnet.id").
			Where("dnszone_subnet.dns_zone_id = ?", zoneID)
	}
	if vrfID != nil {
		q = q.Where("subnetrange.vrf_id = ?", *vrfID)
	}
	order := "subnetrange.start_ip DESC, subnetrange.end_ip ASC"
	if includeDeleted {
		order = "CASE WHEN subnet.estatus = 'deleted' THEN 1 ELSE 0 END, " + order
	}
	var rows []row
	err := q.Order(order).Limit(1).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rangeMatch{rng: rows[0].SubnetRange, subnetEStatus: rows[0].SubnetEStatus}, nil
}

// ensureIP registers the address in the IP registry, reusing the row
// cached in the unit of work or already present in the table.
func (s *Store) ensureIP(tx *gorm.DB, u *uow, ip, key string, vrfID int) error {
	cacheKey := ip + "@" + strconv.Itoa(vrfID)
	if _, ok := u.ips[cacheKey]; ok {
		return nil
	}
	var existing model.Ip
	err := tx.Where("ip = ? AND vrf_id = ?", ip, vrfID).First(&existing).Error
	if err == nil {
		u.ips[cacheKey] = existing.ID
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	row := &model.Ip{IP: ip, IPKey: key, VrfID: vrfID}
	row.RefreshSearchIndex()
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	u.ips[cacheKey] = row.ID
	return changelog.RecordNew(tx, row, nil)
}

// ensureMac registers the hardware address in the MAC registry.
func (s *Store) ensureMac(tx *gorm.DB, u *uow, mac string) error {
	if _, ok := u.macs[mac]; ok {
		return nil
	}
	var existing model.Mac
	err := tx.Where("mac = ?", mac).First(&existing).Error
	if err == nil {
		u.macs[mac] = existing.ID
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	row := &model.Mac{Mac: mac}
	row.RefreshSearchIndex()
	if err := tx.Create(row).Error; err != nil {
		return err
	}
	u.macs[mac] = row.ID
	return changelog.RecordNew(tx, row, nil)
}
