package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ConversationActive = "active"
)

type Conversation struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	User       *User      `gorm:"foreignKey:UserID" json:"-"`
	PersonaID  *uuid.UUID `gorm:"type:uuid" json:"persona_id"`
	Persona    *Persona   `gorm:"foreignKey:PersonaID" json:"persona,omitempty"`
	ScenarioID *uuid.UUID `gorm:"type:uuid" json:"scenario_id"`
	Scenario   *Scenario  `gorm:"foreignKey:ScenarioID" json:"scenario,omitempty"`
	Status     string     `gorm:"not null;default:'active'" json:"status"`
	IsDeleted  bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
