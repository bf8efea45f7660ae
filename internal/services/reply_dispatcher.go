package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/google/uuid"
)

// MessageRecord is the part of an inserted message row the dispatcher reacts to.
type MessageRecord struct {
	ID             uuid.UUID `json:"id"`
	ConversationID uuid.UUID `json:"conversation_id"`
	SenderType     string    `json:"sender_type"`
	Content        string    `json:"content"`
}

// ReplyFailedMessage is shown to the conversation when no reply could be stored.
const ReplyFailedMessage = "Could not generate a response"

// ReplyFailure is the record of an EventError published on a conversation's
// message channel. It is never stored.
type ReplyFailure struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	MessageID      uuid.UUID `json:"message_id"`
	Message        string    `json:"message"`
}

// ReplyDispatcher reacts to inserted user messages by storing a hint and a
// persona reply for the same conversation.
type ReplyDispatcher struct {
	store     ReplyStore
	responder *PersonaResponder
	feed      Changefeed
	cache     *MessageCache
}

func NewReplyDispatcher(store ReplyStore, responder *PersonaResponder, feed Changefeed, cache *MessageCache) *ReplyDispatcher {
	if responder == nil {
		responder = NewPersonaResponder(nil)
	}
	return &ReplyDispatcher{store: store, responder: responder, feed: feed, cache: cache}
}

// HandleInsert generates and stores the replies for one inserted message. Records
// not sent by a user produce no messages. On error nothing has been written.
func (d *ReplyDispatcher) HandleInsert(ctx context.Context, rec MessageRecord) ([]models.Message, error) {
	if rec.SenderType != models.SenderUser {
		return nil, nil
	}

	rc, err := d.store.LoadReplyContext(ctx, rec.ConversationID)
	if err != nil {
		return nil, err
	}

	out, err := d.responder.Generate(rec.Content, rc.Persona, rc.Scenario)
	if err != nil {
		d.publishFailure(ctx, rec)
		return nil, fmt.Errorf("conversation %s: %w", rec.ConversationID, err)
	}

	msgs, err := d.store.InsertReplies(ctx, rec.ConversationID, out.Hint, out.Reply)
	if err != nil {
		d.publishFailure(ctx, rec)
		return nil, err
	}

	if err := d.cache.Invalidate(ctx, rec.ConversationID); err != nil {
		slog.Warn("Failed to invalidate message cache", "conversation_id", rec.ConversationID, "error", err)
	}
	for _, m := range msgs {
		Emit(ctx, d.feed, MessagesChannel(rec.ConversationID), EventInsert, "messages", m)
	}

	slog.Info("Persona reply stored",
		"conversation_id", rec.ConversationID,
		"topic", out.Topic.String(),
		"user_message_id", rec.ID,
	)
	return msgs, nil
}

func (d *ReplyDispatcher) publishFailure(ctx context.Context, rec MessageRecord) {
	Emit(ctx, d.feed, MessagesChannel(rec.ConversationID), EventError, "messages", ReplyFailure{
		ConversationID: rec.ConversationID,
		MessageID:      rec.ID,
		Message:        ReplyFailedMessage,
	})
}
