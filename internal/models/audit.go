package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Audited actions.
const (
	AuditRegister           = "register"
	AuditPasswordChange     = "password_change"
	AuditPasswordReset      = "password_reset"
	AuditProfileUpdate      = "profile_update"
	AuditPersonaUpdate      = "persona_update"
	AuditConversationDelete = "conversation_delete"
)

// Kinds of row an audit entry can point at.
const (
	AuditTargetUser         = "user"
	AuditTargetPersona      = "persona"
	AuditTargetConversation = "conversation"
)

// AuditTargetTypes lists the valid AuditLog.TargetType values.
var AuditTargetTypes = []string{AuditTargetUser, AuditTargetPersona, AuditTargetConversation}

// AuditLog records an account or training change made by a user.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_user_created" json:"user_id"`
	Action     string         `gorm:"type:varchar(32);not null;index" json:"action"`
	TargetType string         `gorm:"type:varchar(16);not null;index:idx_audit_target" json:"target_type"`
	TargetID   uuid.UUID      `gorm:"type:uuid;not null;index:idx_audit_target" json:"target_id"`
	IP         string         `gorm:"type:varchar(64)" json:"ip,omitempty"`
	Details    datatypes.JSON `gorm:"type:jsonb" json:"details,omitempty"`
	CreatedAt  time.Time      `gorm:"index:idx_audit_user_created" json:"created_at"`
}
