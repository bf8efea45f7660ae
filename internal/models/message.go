package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	SenderUser    = "user"
	SenderPersona = "persona"
	SenderHint    = "hint"
)

// Message rows are append-only and ordered by CreatedAt.
type Message struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;not null;index:idx_messages_conversation_created" json:"conversation_id"`
	SenderType     string    `gorm:"type:varchar(10);not null;check:sender_type IN ('user','persona','hint')" json:"sender_type"`
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"index:idx_messages_conversation_created" json:"created_at"`
}
