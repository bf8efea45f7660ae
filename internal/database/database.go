package database

import (
	"fmt"
	"log/slog"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Connect(cfg *config.Config) error {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	DB = db
	slog.Info("Database connected", "host", cfg.DBHost, "db", cfg.DBName)
	return nil
}

func Migrate() error {
	return AutoMigrate(DB)
}

// AutoMigrate creates or updates the schema of every model on db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.PasswordReset{},
		&models.Persona{},
		&models.Scenario{},
		&models.Conversation{},
		&models.Message{},
		&models.AuditLog{},
	)
}
