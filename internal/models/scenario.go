package models

import (
	"time"

	"github.com/google/uuid"
)

type Scenario struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" yaml:"-"`
	Service        string    `gorm:"not null" json:"service" yaml:"service"`
	Subject        string    `gorm:"not null;uniqueIndex" json:"subject" yaml:"subject"`
	Notes          string    `gorm:"type:text" json:"notes" yaml:"notes"`
	InitialMessage string    `gorm:"type:text" json:"initial_message" yaml:"initial_message"`
	CreatedAt      time.Time `json:"created_at" yaml:"-"`
}
