package database

import (
	_ "embed"
	"fmt"
	"log/slog"

	"github.com/ahmetk3436/persona-trainer/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:embed seed/scenarios.yaml
var scenarioCatalogue []byte

// LoadScenarioCatalogue parses the embedded scenario catalogue.
func LoadScenarioCatalogue() ([]models.Scenario, error) {
	var doc struct {
		Scenarios []models.Scenario `yaml:"scenarios"`
	}
	if err := yaml.Unmarshal(scenarioCatalogue, &doc); err != nil {
		return nil, fmt.Errorf("parse scenario catalogue: %w", err)
	}
	for i, s := range doc.Scenarios {
		if s.Subject == "" || s.Service == "" {
			return nil, fmt.Errorf("scenario %d: service and subject are required", i)
		}
	}
	return doc.Scenarios, nil
}

// SeedScenarios inserts catalogue scenarios that are not present yet, matched by subject.
func SeedScenarios(db *gorm.DB) error {
	scenarios, err := LoadScenarioCatalogue()
	if err != nil {
		return err
	}
	if len(scenarios) == 0 {
		return nil
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "subject"}},
		DoNothing: true,
	}).Create(&scenarios)
	if res.Error != nil {
		return fmt.Errorf("seed scenarios: %w", res.Error)
	}

	slog.Info("Scenario catalogue seeded", "inserted", res.RowsAffected, "total", len(scenarios))
	return nil
}
