package rule

import (
	"errors"
	"fmt"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// Builtins returns the rules shipped with the database. Statements stick
// to portable SQL so they run unchanged on MySQL and SQLite: no string
// concatenation operator and booleans compared against 0/1.
func Builtins() []model.Rule {
	rules := []model.Rule{
		{
			Name:        "dnsrecord_cname_unique_rule",
			TargetModel: "dnsrecord",
			Severity:    model.RuleSeverityEnforced,
			Description: "a CNAME record cannot coexist with another record of the same name",
			Statement: `SELECT DISTINCT d.id AS id, d.name AS summary
FROM dnsrecord d
JOIN dnsrecord o ON o.name = d.name AND o.id != d.id
WHERE d.estatus != 'deleted' AND o.estatus != 'deleted'
  AND (d.type = 'CNAME' OR o.type = 'CNAME')`,
		},
		{
			Name:        "dnsrecord_cname_zone_rule",
			TargetModel: "dnsrecord",
			Severity:    model.RuleSeverityEnforced,
			Description: "a CNAME record cannot be defined at a zone apex",
			Statement: `SELECT d.id AS id, d.name AS summary
FROM dnsrecord d
JOIN dnszone z ON z.name = d.name
WHERE d.type = 'CNAME' AND d.estatus != 'deleted' AND z.estatus != 'deleted'`,
		},
		{
			Name:        "dnsrecord_soa_zone_rule",
			TargetModel: "dnsrecord",
			Severity:    model.RuleSeverityEnforced,
			Description: "a SOA record can only be defined on a zone apex",
			Statement: `SELECT d.id AS id, d.name AS summary
FROM dnsrecord d
LEFT JOIN dnszone z ON z.name = d.name AND z.estatus != 'deleted'
WHERE d.type = 'SOA' AND d.estatus != 'deleted' AND z.id IS NULL`,
		},
		{
			Name:        "dhcprecord_unique_ip_rule",
			TargetModel: "dhcprecord",
			Severity:    model.RuleSeveritySoft,
			Description: "multiple active reservations exist for the same IP address",
			Statement: `SELECT DISTINCT d.id AS id, d.ip AS summary
FROM dhcprecord d
JOIN dhcprecord o ON o.ip = d.ip AND o.vrf_id = d.vrf_id AND o.id != d.id
WHERE d.estatus = 'enabled' AND o.estatus = 'enabled'`,
		},
		{
			Name:        "dhcprecord_invalid_subnet_rule",
			TargetModel: "dhcprecord",
			Severity:    model.RuleSeveritySoft,
			Description: "the reservation is not covered by a DHCP enabled subnet range",
			Statement: `SELECT d.id AS id, d.ip AS summary
FROM dhcprecord d
LEFT JOIN subnetrange r ON r.id = d.subnetrange_id
WHERE d.estatus = 'enabled' AND (r.id IS NULL OR r.dhcp = 0)`,
		},
		{
			Name:        "dnsrecord_ptr_forward_rule",
			TargetModel: "dnsrecord",
			Severity:    model.RuleSeveritySoft,
			Description: "the PTR record has no matching forward record",
			Statement: `SELECT d.id AS id, d.name AS summary
FROM dnsrecord d
WHERE d.type = 'PTR' AND d.estatus = 'enabled'
  AND NOT EXISTS (
    SELECT 1 FROM dnsrecord f
    WHERE f.estatus = 'enabled' AND f.type IN ('A', 'AAAA')
      AND f.name = d.value AND f.generated_ip = d.generated_ip)`,
		},
		{
			Name:        "dnsrecord_ptr_zone_rule",
			TargetModel: "dnsrecord",
			Severity:    model.RuleSeveritySoft,
			Description: "the PTR record value does not match any forward zone",
			Statement: `SELECT d.id AS id, d.name AS summary
FROM dnsrecord d
WHERE d.type = 'PTR' AND d.estatus = 'enabled'
  AND NOT EXISTS (
    SELECT 1 FROM dnszone z
    WHERE z.estatus != 'deleted'
      AND (d.value = z.name
        OR (SUBSTR(d.value, LENGTH(d.value) - LENGTH(z.name) + 1) = z.name
          AND SUBSTR(d.value, LENGTH(d.value) - LENGTH(z.name), 1) = '.')))`,
		},
	}
	for i := range rules {
		rules[i].Builtin = true
		rules[i].Status = model.StatusEnabled
		rules[i].EStatus = model.StatusEnabled
		rules[i].SearchIndex = rules[i].SearchString()
	}
	return rules
}

// Seed inserts or refreshes the builtin rules. User defined rules are
// left untouched; builtin statements are overwritten so upgrades pick up
// fixes.
func Seed(db *gorm.DB) error {
	for _, builtin := range Builtins() {
		var existing model.Rule
		err := db.Where("name = ?", builtin.Name).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if err := db.Create(&builtin).Error; err != nil {
				return fmt.Errorf("failed to seed rule %s: %w", builtin.Name, err)
			}
			continue
		}
		if err != nil {
			return err
		}
		updates := map[string]interface{}{
			"statement":     builtin.Statement,
			"description":   builtin.Description,
			"severity":      builtin.Severity,
			"model_name":    builtin.TargetModel,
			"builtin":       true,
			"search_string": builtin.SearchIndex,
		}
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to refresh rule %s: %w", builtin.Name, err)
		}
	}
	return nil
}
