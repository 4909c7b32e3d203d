// Package deploy schedules and runs environment deployments. A deployment
// captures an immutable snapshot of the data covered by the environment,
// then executes the environment script against that snapshot so later
// edits never leak into a running rollout.
package deploy

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ikus060/udb/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Service schedules deployments.
type Service struct {
	db *gorm.DB
}

// NewService creates a deployment service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Schedule creates a deployment for the environment: the change log range
// it covers, a fresh token and the data snapshot. The runner picks it up
// on its next pass.
func (s *Service) Schedule(environmentID int, ownerID *int) (*model.Deployment, error) {
	var env model.Environment
	if err := s.db.First(&env, environmentID).Error; err != nil {
		return nil, model.NewValidationError("environment_id", "environment %d does not exist", environmentID)
	}
	if env.EStatus != model.StatusEnabled {
		return nil, model.NewValidationError("environment_id", "environment `%s` is not enabled", env.Name)
	}

	token, err := model.NewToken()
	if err != nil {
		return nil, err
	}

	var deployment *model.Deployment
	err = s.db.Transaction(func(tx *gorm.DB) error {
		startID, endID, err := changeWindow(tx, &env)
		if err != nil {
			return err
		}
		data, err := Snapshot(tx, &env)
		if err != nil {
			return err
		}
		deployment = &model.Deployment{
			EnvironmentID: env.ID,
			OwnerID:       ownerID,
			State:         model.DeploymentStateStarting,
			Token:         token,
			StartID:       startID,
			EndID:         endID,
			Data:          data,
		}
		return tx.Create(deployment).Error
	})
	if err != nil {
		return nil, err
	}
	deployment.Environment = &env
	return deployment, nil
}

// changeWindow bounds the change log covered by a new deployment: from
// the end of the last successful run of this environment to the newest
// message of the tracked models.
func changeWindow(tx *gorm.DB, env *model.Environment) (int, int, error) {
	var last model.Deployment
	startID := 0
	err := tx.Where("environment_id = ? AND state = ?", env.ID, model.DeploymentStateSuccess).
		Order("id DESC").First(&last).Error
	if err == nil {
		startID = last.EndID
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, err
	}

	endID := startID
	models := env.ModelNameList()
	if len(models) > 0 {
		var maxID *int
		err = tx.Model(&model.Message{}).Select("MAX(id)").
			Where("model_name IN ?", models).Scan(&maxID).Error
		if err != nil {
			return 0, 0, err
		}
		if maxID != nil && *maxID > endID {
			endID = *maxID
		}
	}
	return startID, endID, nil
}

// Snapshot dumps the live rows the environment script needs. Only enabled
// rows make it in: disabled and deleted entries must disappear from the
// generated configurations.
func Snapshot(tx *gorm.DB, env *model.Environment) (datatypes.JSON, error) {
	out := map[string]interface{}{}
	for _, name := range env.ModelNameList() {
		switch name {
		case "dnsrecord":
			var records []model.DnsRecord
			if err := tx.Where("estatus = ?", model.StatusEnabled).Order("name, type, value").
				Find(&records).Error; err != nil {
				return nil, err
			}
			var zones []model.DnsZone
			if err := tx.Where("estatus = ?", model.StatusEnabled).Order("name").
				Find(&zones).Error; err != nil {
				return nil, err
			}
			out["dnsrecord"] = records
			out["dnszone"] = zones
		case "dhcprecord":
			var records []model.DhcpRecord
			if err := tx.Where("estatus = ?", model.StatusEnabled).Order("ip_key").
				Find(&records).Error; err != nil {
				return nil, err
			}
			var ranges []model.SubnetRange
			if err := tx.Table("subnetrange").
				Joins("JOIN subnet ON subnet.id = subnetrange.subnet_id").
				Where("subnet.estatus = ? AND subnetrange.dhcp = ?", model.StatusEnabled, true).
				Order("subnetrange.start_ip").
				Find(&ranges).Error; err != nil {
				return nil, err
			}
			out["dhcprecord"] = records
			out["subnetrange"] = ranges

			// Best effort hostname per reservation, taken from the PTR
			// record on the same address.
			type ptrRow struct {
				GeneratedIP string
				Value       string
			}
			var ptrs []ptrRow
			if err := tx.Table("dnsrecord").
				Select("generated_ip, value").
				Where("type = ? AND estatus = ? AND generated_ip IS NOT NULL", "PTR", model.StatusEnabled).
				Order("generated_ip, value").
				Scan(&ptrs).Error; err != nil {
				return nil, err
			}
			hostnames := map[string]string{}
			for _, p := range ptrs {
				if _, ok := hostnames[p.GeneratedIP]; !ok {
					hostnames[p.GeneratedIP] = p.Value
				}
			}
			byIP := map[string]string{}
			for _, rec := range records {
				if name, ok := hostnames[rec.IPKey]; ok {
					byIP[rec.IP] = name
				}
			}
			out["hostname"] = byIP
		case "subnet":
			var subnets []model.Subnet
			if err := tx.Preload("Ranges").Where("estatus = ?", model.StatusEnabled).
				Order("id").Find(&subnets).Error; err != nil {
				return nil, err
			}
			out["subnet"] = subnets
		default:
			return nil, fmt.Errorf("environment tracks unknown model %q", name)
		}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
