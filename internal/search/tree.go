package search

import (
	"sort"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// SubnetTree returns the subnets ordered for the hierarchical network
// view, each with its Depth filled. Ordering groups subnets by VRF, IPv6
// before IPv4, supernets before their subnets. Deleted subnets show up at
// the depth they would occupy but never become parents of what follows.
func SubnetTree(db *gorm.DB) ([]model.Subnet, error) {
	var subnets []model.Subnet
	if err := db.Preload("Ranges").Preload("Zones").Find(&subnets).Error; err != nil {
		return nil, err
	}
	for i := range subnets {
		subnets[i].SortRanges()
	}

	sort.SliceStable(subnets, func(i, j int) bool {
		a, b := subnets[i].PrimaryRange(), subnets[j].PrimaryRange()
		if subnets[i].VrfID != subnets[j].VrfID {
			return subnets[i].VrfID < subnets[j].VrfID
		}
		if a == nil || b == nil {
			return a != nil
		}
		if a.Version != b.Version {
			return a.Version > b.Version
		}
		if a.StartIP != b.StartIP {
			return a.StartIP < b.StartIP
		}
		// Same network address: the wider range comes first.
		if a.EndIP != b.EndIP {
			return a.EndIP > b.EndIP
		}
		return subnets[i].ID < subnets[j].ID
	})

	// Depth by walking the ordered list with a stack of open supernets.
	var stack []*model.Subnet
	for i := range subnets {
		s := &subnets[i]
		r := s.PrimaryRange()
		for len(stack) > 0 && !containsSubnet(stack[len(stack)-1], s, r) {
			stack = stack[:len(stack)-1]
		}
		s.Depth = len(stack)
		if s.Status != model.StatusDeleted {
			stack = append(stack, s)
		}
	}
	return subnets, nil
}

func containsSubnet(parent, child *model.Subnet, childRange *model.SubnetRange) bool {
	if parent.VrfID != child.VrfID || childRange == nil {
		return false
	}
	p := parent.PrimaryRange()
	if p == nil || p.Version != childRange.Version {
		return false
	}
	return p.StartIP <= childRange.StartIP && p.EndIP >= childRange.EndIP
}
