package db

import (
	"fmt"
	"log"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/gorm"
)

// Migrate runs database migrations for all models and seeds the default
// rows: the reverse DNS zones, the builtin linter rules and, on an empty
// user table, the initial admin account.
func Migrate(db *gorm.DB, adminUser, adminPass string) error {
	log.Println("Starting database migration...")

	models := []interface{}{
		&model.User{},
		&model.Vrf{},
		&model.Subnet{},
		&model.SubnetRange{},
		&model.DnsZone{},
		&model.DnsRecord{},
		&model.DhcpRecord{},
		&model.Ip{},
		&model.Mac{},
		&model.Follower{},
		&model.Message{},
		&model.Environment{},
		&model.Deployment{},
		&model.Rule{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := seedDefaultZones(db); err != nil {
		return err
	}
	if err := seedAdmin(db, adminUser, adminPass); err != nil {
		return err
	}

	log.Printf("✓ Database migration completed successfully (%d tables)", len(models))
	return nil
}

// seedDefaultZones creates the reverse DNS zones when missing so PTR
// records resolve to a zone out of the box.
func seedDefaultZones(db *gorm.DB) error {
	for _, name := range model.DefaultZoneNames {
		var count int64
		if err := db.Model(&model.DnsZone{}).Where("name = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		zone := &model.DnsZone{Name: name}
		zone.Status = model.StatusEnabled
		zone.EStatus = model.StatusEnabled
		zone.SearchIndex = zone.SearchString()
		if err := db.Create(zone).Error; err != nil {
			return fmt.Errorf("failed to seed zone %s: %w", name, err)
		}
	}
	return nil
}

// seedAdmin creates the initial admin account when the user table is empty.
func seedAdmin(db *gorm.DB, username, password string) error {
	var count int64
	if err := db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	admin := &model.User{
		Username: username,
		Role:     model.RoleAdmin,
		Status:   model.StatusEnabled,
	}
	if err := admin.SetPassword(password); err != nil {
		return err
	}
	admin.SearchIndex = admin.SearchString()
	if err := db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to seed admin user: %w", err)
	}
	log.Printf("✓ Created default admin account %q", username)
	return nil
}
