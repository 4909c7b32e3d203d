// Package search implements the cross model query surface: the websearch
// endpoint matching the denormalized search string of every table, and
// the subnet tree used by the network view.
package search

import (
	"github.com/ikus060/udb/internal/model"
	"github.com/ikus060/udb/internal/types"

	"gorm.io/gorm"
)

// Result is one websearch hit.
type Result struct {
	ModelName string       `json:"model_name"`
	ModelID   int          `json:"model_id"`
	Summary   string       `json:"summary"`
	Notes     string       `json:"notes"`
	Status    model.Status `json:"status"`
}

// searchTables lists the searchable models with the expression yielding
// their display summary. Only portable SQL here.
var searchTables = []struct {
	table   string
	summary string
	status  string
}{
	{"vrf", "name", "status"},
	{"subnet", "name", "status"},
	{"dnszone", "name", "status"},
	{"dnsrecord", "name", "status"},
	{"dhcprecord", "ip", "status"},
	{"ip", "ip", "'enabled'"},
	{"mac", "mac", "'enabled'"},
	{"environment", "name", "status"},
	{"rule", "name", "status"},
}

// Query matches the search string of every searchable model. The query is
// split on non word characters and turned into a LIKE pattern, so
// `192.168 web` matches rows containing both fragments in order.
func Query(db *gorm.DB, query string, limit int) ([]Result, error) {
	pattern := types.FormatWebsearch(query)
	if pattern == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	var out []Result
	for _, t := range searchTables {
		var rows []Result
		q := db.Table(t.table).
			Select("? AS model_name, id AS model_id, "+t.summary+" AS summary, notes AS notes, "+t.status+" AS status", t.table).
			Where("search_string LIKE ?", pattern)
		if t.status == "status" {
			q = q.Where("status != ?", model.StatusDeleted)
		}
		if err := q.Limit(limit - len(out)).Scan(&rows).Error; err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}
