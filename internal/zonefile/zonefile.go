// Package zonefile renders a DNS zone as a BIND style zone file from the
// enabled records of the database.
package zonefile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// Header identifies generated files so hand edits stand out in review.
const Header = ";; Generated by UDB"

// InZone reports whether the record belongs in the zone file. A PTR
// qualifies through its value: the pointed-to hostname decides which
// forward zone lists the reverse entry.
func InZone(r *model.DnsRecord, zone string) bool {
	name := r.Name
	if r.Type == "PTR" {
		name = r.Value
	}
	return name == zone || strings.HasSuffix(name, "."+zone)
}

// RecordsForZone fetches the enabled records of the zone, sorted for
// rendering.
func RecordsForZone(db *gorm.DB, zone string) ([]model.DnsRecord, error) {
	var records []model.DnsRecord
	err := db.Where("estatus = ?", model.StatusEnabled).
		Where("(name = ? OR name LIKE ?) OR (type = ? AND (value = ? OR value LIKE ?))",
			zone, "%."+zone, "PTR", zone, "%."+zone).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	Sort(records)
	return records, nil
}

// Sort orders records the way a zone file reads: the SOA first, then by
// hierarchical hostname with wildcards last among their siblings, then
// by type and value.
func Sort(records []model.DnsRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := sortKey(&records[i]), sortKey(&records[j])
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}

// sortKey builds the comparison key: SOA rank, the labels of the
// effective hostname reversed so siblings group together, the type and
// the value. A PTR sorts by its value so the reverse entry sits next to
// the forward records of the same host. A wildcard label sorts after
// every concrete label.
func sortKey(r *model.DnsRecord) []string {
	key := make([]string, 0, 8)
	if r.Type == "SOA" {
		key = append(key, "0")
	} else {
		key = append(key, "1")
	}
	name := r.Name
	if r.Type == "PTR" {
		name = r.Value
	}
	labels := strings.Split(name, ".")
	for i := len(labels) - 1; i >= 0; i-- {
		label := labels[i]
		if label == "*" {
			label = "\xff"
		}
		key = append(key, label)
	}
	key = append(key, r.Type, r.Value)
	return key
}

// Render writes the zone file: the header line then one record per line.
func Render(records []model.DnsRecord) string {
	var out strings.Builder
	out.WriteString(Header + "\n")
	for i := range records {
		out.WriteString(renderRecord(&records[i]))
		out.WriteString("\n")
	}
	return out.String()
}

// renderRecord formats one line. Hostname-valued types get the trailing
// dot; a PTR value stays as written because it already names the host.
func renderRecord(r *model.DnsRecord) string {
	value := r.Value
	switch r.Type {
	case "CNAME", "NS", "MX", "SRV":
		if !strings.HasSuffix(value, ".") {
			value += "."
		}
	case "TXT":
		value = fmt.Sprintf("%q", value)
	}
	return fmt.Sprintf("%s. %d IN %s %s", r.Name, r.TTL, r.Type, value)
}
