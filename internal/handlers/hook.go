package handlers

import (
	"crypto/subtle"
	"errors"
	"log/slog"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/gofiber/fiber/v2"
)

// HookHandler receives message-insert events from an external database trigger.
type HookHandler struct {
	cfg        *config.Config
	dispatcher *services.ReplyDispatcher
}

func NewHookHandler(cfg *config.Config, dispatcher *services.ReplyDispatcher) *HookHandler {
	return &HookHandler{cfg: cfg, dispatcher: dispatcher}
}

// MessageInserted handles {"record": {...}} payloads. Non-user records are skipped;
// any failure answers with a non-success status and nothing is written.
func (h *HookHandler) MessageInserted(c *fiber.Ctx) error {
	if h.cfg.HookSecret == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Webhook disabled",
		})
	}
	if subtle.ConstantTimeCompare([]byte(c.Get("X-Hook-Secret")), []byte(h.cfg.HookSecret)) != 1 {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid hook secret",
		})
	}

	var req struct {
		Record *services.MessageRecord `json:"record"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	if req.Record == nil {
		return c.JSON(fiber.Map{"message": "Skipped"})
	}

	msgs, err := h.dispatcher.HandleInsert(c.UserContext(), *req.Record)
	switch {
	case errors.Is(err, services.ErrConversationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Conversation not found",
		})
	case errors.Is(err, services.ErrMissingContext):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":   true,
			"message": "Could not generate a response: conversation has no persona or scenario",
		})
	case err != nil:
		slog.Error("Message hook failed", "conversation_id", req.Record.ConversationID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": services.ReplyFailedMessage,
		})
	}

	if msgs == nil {
		return c.JSON(fiber.Map{"message": "Skipped"})
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"messages": msgs,
	})
}
