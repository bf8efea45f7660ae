package models

import (
	"time"

	"github.com/google/uuid"
)

// DefaultTraitScore is used for any trait score that is not set.
const DefaultTraitScore = 50

// Persona scores are nullable: a NULL score reads as DefaultTraitScore.
type Persona struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null;default:''" json:"name"`
	Role      string    `gorm:"not null;default:'Mentor'" json:"role"`
	Tone      string    `gorm:"not null;default:'Professional'" json:"tone"`
	OScore    *int      `gorm:"default:50" json:"o_score"`
	CScore    *int      `gorm:"default:50" json:"c_score"`
	EScore    *int      `gorm:"default:50" json:"e_score"`
	AScore    *int      `gorm:"default:50" json:"a_score"`
	NScore    *int      `gorm:"default:50" json:"n_score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultPersona mirrors the persona a new conversation starts with.
func DefaultPersona() Persona {
	score := func() *int { v := DefaultTraitScore; return &v }
	return Persona{
		Name:   "AI Trainer",
		Role:   "Mentor",
		Tone:   "Professional",
		OScore: score(),
		CScore: score(),
		EScore: score(),
		AScore: score(),
		NScore: score(),
	}
}

// TraitScore returns a clamped score, or DefaultTraitScore when unset.
func TraitScore(v *int) int {
	if v == nil {
		return DefaultTraitScore
	}
	return ClampScore(*v)
}

// ClampScore bounds a trait score to [0,100].
func ClampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
