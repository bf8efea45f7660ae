package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrConversationNotFound is returned when a conversation does not exist or was deleted.
var ErrConversationNotFound = errors.New("conversation not found")

// ReplyContext is the snapshot a reply is generated from. Persona and Scenario
// are nil when the conversation does not reference one.
type ReplyContext struct {
	Conversation models.Conversation
	Persona      *models.Persona
	Scenario     *models.Scenario
}

// ReplyStore is the persistence the reply dispatcher depends on.
type ReplyStore interface {
	LoadReplyContext(ctx context.Context, conversationID uuid.UUID) (*ReplyContext, error)
	// InsertReplies stores hint and reply atomically, hint first.
	InsertReplies(ctx context.Context, conversationID uuid.UUID, hint, reply string) ([]models.Message, error)
}

type GormReplyStore struct {
	db *gorm.DB
}

func NewGormReplyStore(db *gorm.DB) *GormReplyStore {
	return &GormReplyStore{db: db}
}

func (s *GormReplyStore) LoadReplyContext(ctx context.Context, conversationID uuid.UUID) (*ReplyContext, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).
		Preload("Persona").
		Preload("Scenario").
		First(&conv, "id = ? AND is_deleted = ?", conversationID, false).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	return &ReplyContext{Conversation: conv, Persona: conv.Persona, Scenario: conv.Scenario}, nil
}

func (s *GormReplyStore) InsertReplies(ctx context.Context, conversationID uuid.UUID, hint, reply string) ([]models.Message, error) {
	now := time.Now().UTC()
	msgs := []models.Message{
		{ConversationID: conversationID, SenderType: models.SenderHint, Content: hint, CreatedAt: now},
		// Postgres keeps microseconds, so the reply sorts strictly after its hint.
		{ConversationID: conversationID, SenderType: models.SenderPersona, Content: reply, CreatedAt: now.Add(time.Microsecond)},
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range msgs {
			if err := tx.Create(&msgs[i]).Error; err != nil {
				return err
			}
		}
		return tx.Model(&models.Conversation{}).Where("id = ?", conversationID).Update("updated_at", now).Error
	})
	if err != nil {
		return nil, fmt.Errorf("insert replies: %w", err)
	}
	return msgs, nil
}
