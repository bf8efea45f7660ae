package models

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// assignID sets a new primary key unless the caller already chose one.
func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

func (u *User) BeforeCreate(*gorm.DB) error          { assignID(&u.ID); return nil }
func (r *PasswordReset) BeforeCreate(*gorm.DB) error { assignID(&r.ID); return nil }
func (p *Persona) BeforeCreate(*gorm.DB) error       { assignID(&p.ID); return nil }
func (s *Scenario) BeforeCreate(*gorm.DB) error      { assignID(&s.ID); return nil }
func (c *Conversation) BeforeCreate(*gorm.DB) error  { assignID(&c.ID); return nil }
func (m *Message) BeforeCreate(*gorm.DB) error       { assignID(&m.ID); return nil }
func (a *AuditLog) BeforeCreate(*gorm.DB) error      { assignID(&a.ID); return nil }
