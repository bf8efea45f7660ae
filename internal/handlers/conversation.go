package handlers

import (
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ConversationHandler struct {
	db         *gorm.DB
	cfg        *config.Config
	feed       services.Changefeed
	cache      *services.MessageCache
	dispatcher *services.ReplyDispatcher
}

func NewConversationHandler(db *gorm.DB, cfg *config.Config, feed services.Changefeed, cache *services.MessageCache, dispatcher *services.ReplyDispatcher) *ConversationHandler {
	return &ConversationHandler{
		db:         db,
		cfg:        cfg,
		feed:       feed,
		cache:      cache,
		dispatcher: dispatcher,
	}
}

// loadOwnedConversation returns the caller's live conversation named by :id.
func (h *ConversationHandler) loadOwnedConversation(c *fiber.Ctx, preload bool) (*models.Conversation, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid conversation ID")
	}

	query := h.db
	if preload {
		query = query.Preload("Persona").Preload("Scenario")
	}

	var conv models.Conversation
	err = query.First(&conv, "id = ? AND user_id = ? AND is_deleted = ?", id, middleware.UserID(c), false).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Conversation not found")
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// ─── ListConversations ──────────────────────────────────────────────────────

func (h *ConversationHandler) ListConversations(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 50
	}

	userID := middleware.UserID(c)
	owned := func() *gorm.DB {
		return h.db.Model(&models.Conversation{}).Where("user_id = ? AND is_deleted = ?", userID, false)
	}

	var total int64
	owned().Count(&total)

	var convs []models.Conversation
	if err := owned().Preload("Scenario").
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&convs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list conversations",
		})
	}

	type scenarioSummary struct {
		Subject string `json:"subject"`
		Service string `json:"service"`
	}
	type convSummary struct {
		ID        uuid.UUID        `json:"id"`
		Status    string           `json:"status"`
		Scenario  *scenarioSummary `json:"scenario"`
		CreatedAt time.Time        `json:"created_at"`
	}
	summaries := make([]convSummary, len(convs))
	for i, conv := range convs {
		summaries[i] = convSummary{ID: conv.ID, Status: conv.Status, CreatedAt: conv.CreatedAt}
		if conv.Scenario != nil {
			summaries[i].Scenario = &scenarioSummary{Subject: conv.Scenario.Subject, Service: conv.Scenario.Service}
		}
	}

	return c.JSON(fiber.Map{
		"conversations": summaries,
		"total":         total,
		"page":          page,
		"per_page":      perPage,
	})
}

// ─── CreateConversation ─────────────────────────────────────────────────────

func (h *ConversationHandler) CreateConversation(c *fiber.Ctx) error {
	var req struct {
		ScenarioID string        `json:"scenario_id"`
		Persona    *personaInput `json:"persona"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid request body",
			})
		}
	}

	var scenario *models.Scenario
	if req.ScenarioID != "" {
		sid, err := uuid.Parse(req.ScenarioID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid scenario ID",
			})
		}
		var s models.Scenario
		if err := h.db.First(&s, "id = ?", sid).Error; err != nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error":   true,
				"message": "Scenario not found",
			})
		}
		scenario = &s
	} else {
		var s models.Scenario
		if err := h.db.Order("created_at ASC").First(&s).Error; err == nil {
			scenario = &s
		} else {
			slog.Warn("No scenario available, conversation will not get persona replies")
		}
	}

	persona := models.DefaultPersona()
	req.Persona.apply(&persona)

	conv := models.Conversation{
		UserID: middleware.UserID(c),
		Status: models.ConversationActive,
	}
	var opening *models.Message

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&persona).Error; err != nil {
			return err
		}
		conv.PersonaID = &persona.ID
		if scenario != nil {
			conv.ScenarioID = &scenario.ID
		}
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		if scenario != nil && scenario.InitialMessage != "" {
			opening = &models.Message{
				ConversationID: conv.ID,
				SenderType:     models.SenderPersona,
				Content:        scenario.InitialMessage,
			}
			return tx.Create(opening).Error
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to create conversation", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Cannot create new conversation",
		})
	}

	conv.Persona = &persona
	conv.Scenario = scenario
	services.Emit(c.UserContext(), h.feed, services.ConversationsChannel(conv.UserID), services.EventInsert, "conversations", conv)

	resp := fiber.Map{"conversation": conv}
	if opening != nil {
		resp["messages"] = []models.Message{*opening}
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

// ─── GetConversation / DeleteConversation ───────────────────────────────────

func (h *ConversationHandler) GetConversation(c *fiber.Ctx) error {
	conv, err := h.loadOwnedConversation(c, true)
	if err != nil {
		return err
	}
	return c.JSON(conv)
}

// DeleteConversation soft-deletes a conversation; its messages are kept.
func (h *ConversationHandler) DeleteConversation(c *fiber.Ctx) error {
	conv, err := h.loadOwnedConversation(c, false)
	if err != nil {
		return err
	}

	if err := h.db.Model(conv).Update("is_deleted", true).Error; err != nil {
		slog.Error("Failed to delete conversation", "conversation_id", conv.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Cannot delete conversation",
		})
	}
	conv.IsDeleted = true

	ctx := c.UserContext()
	if err := h.cache.Invalidate(ctx, conv.ID); err != nil {
		slog.Warn("Failed to invalidate message cache", "conversation_id", conv.ID, "error", err)
	}
	services.Emit(ctx, h.feed, services.ConversationsChannel(conv.UserID), services.EventUpdate, "conversations", conv)
	recordAudit(c, h.db, auditEvent{
		UserID:     conv.UserID,
		Action:     models.AuditConversationDelete,
		TargetType: models.AuditTargetConversation,
		TargetID:   conv.ID,
	})

	return c.JSON(fiber.Map{"message": "Conversation deleted"})
}

// ─── Messages ───────────────────────────────────────────────────────────────

func (h *ConversationHandler) ListMessages(c *fiber.Ctx) error {
	conv, err := h.loadOwnedConversation(c, false)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	messages, err := h.cache.Load(ctx, conv.ID)
	if err == nil {
		return c.JSON(fiber.Map{"messages": messages})
	}
	if !errors.Is(err, services.ErrCacheMiss) {
		slog.Warn("Message cache read failed", "conversation_id", conv.ID, "error", err)
	}

	// The version must be read before the snapshot so a concurrent write voids the fill.
	version, verErr := h.cache.Version(ctx, conv.ID)

	messages = []models.Message{}
	if err := h.db.Where("conversation_id = ?", conv.ID).Order("created_at ASC").Find(&messages).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to fetch messages",
		})
	}

	if verErr != nil {
		slog.Warn("Message cache version read failed", "conversation_id", conv.ID, "error", verErr)
	} else if err := h.cache.Fill(ctx, conv.ID, version, messages); errors.Is(err, services.ErrStaleSnapshot) {
		slog.Debug("Skipped caching stale messages", "conversation_id", conv.ID)
	} else if err != nil {
		slog.Warn("Failed to cache messages", "conversation_id", conv.ID, "error", err)
	}
	return c.JSON(fiber.Map{"messages": messages})
}

// SendMessage stores a user message and, when inline replies are enabled, the
// persona's hint and reply. A failed reply does not undo the user message.
func (h *ConversationHandler) SendMessage(c *fiber.Ctx) error {
	conv, err := h.loadOwnedConversation(c, false)
	if err != nil {
		return err
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Message content is required",
		})
	}

	msg := models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderUser,
		Content:        req.Content,
		CreatedAt:      time.Now().UTC(),
	}
	if err := h.db.Create(&msg).Error; err != nil {
		slog.Error("Failed to store message", "conversation_id", conv.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Message not sent",
		})
	}

	ctx := c.UserContext()
	if err := h.cache.Invalidate(ctx, conv.ID); err != nil {
		slog.Warn("Failed to invalidate message cache", "conversation_id", conv.ID, "error", err)
	}
	services.Emit(ctx, h.feed, services.MessagesChannel(conv.ID), services.EventInsert, "messages", msg)

	resp := fiber.Map{"message": msg, "replies": []models.Message{}}
	if h.cfg.InlineReplies {
		replies, err := h.dispatcher.HandleInsert(ctx, services.MessageRecord{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderType:     msg.SenderType,
			Content:        msg.Content,
		})
		if err != nil {
			slog.Error("Persona reply failed", "conversation_id", conv.ID, "error", err)
			resp["reply_error"] = services.ReplyFailedMessage
		} else if replies != nil {
			resp["replies"] = replies
		}
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}
