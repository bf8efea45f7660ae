package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
	"gorm.io/gorm"
)

const streamKeepAlive = 25 * time.Second

type StreamHandler struct {
	db   *gorm.DB
	feed services.Changefeed
}

func NewStreamHandler(db *gorm.DB, feed services.Changefeed) *StreamHandler {
	return &StreamHandler{db: db, feed: feed}
}

// UpgradeCheck is middleware that checks if the request is a websocket upgrade
func (h *StreamHandler) UpgradeCheck() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}
}

// AuthorizeConversation runs before the upgrade and stores the conversation ID
// for the websocket handler.
func (h *StreamHandler) AuthorizeConversation() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid conversation ID")
		}
		var count int64
		h.db.Model(&models.Conversation{}).
			Where("id = ? AND user_id = ? AND is_deleted = ?", id, middleware.UserID(c), false).
			Count(&count)
		if count == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Conversation not found")
		}
		c.Locals("conversation_id", id)
		return c.Next()
	}
}

// Messages streams message INSERT events of one conversation over a websocket.
func (h *StreamHandler) Messages() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		convID, _ := c.Locals("conversation_id").(uuid.UUID)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		events, unsubscribe, err := h.feed.Subscribe(ctx, services.MessagesChannel(convID))
		if err != nil {
			slog.Error("Failed to subscribe to messages", "conversation_id", convID, "error", err)
			c.WriteMessage(websocket.TextMessage, []byte(`{"error":true,"message":"Realtime unavailable"}`))
			return
		}
		defer unsubscribe()

		slog.Info("Message stream opened", "conversation_id", convID)

		// Client → server traffic is ignored; reading detects the close.
		go func() {
			for {
				if _, _, err := c.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		ping := time.NewTicker(streamKeepAlive)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Message stream closed", "conversation_id", convID)
				return
			case <-ping.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := c.WriteJSON(ev); err != nil {
					return
				}
			}
		}
	})
}

// History streams the caller's conversation changes as server-sent events.
func (h *StreamHandler) History(c *fiber.Ctx) error {
	userID := middleware.UserID(c)

	ctx, cancel := context.WithCancel(context.Background())
	events, unsubscribe, err := h.feed.Subscribe(ctx, services.ConversationsChannel(userID))
	if err != nil {
		cancel()
		slog.Error("Failed to subscribe to history", "user_id", userID, "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":   true,
			"message": "Realtime unavailable",
		})
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer cancel()
		defer unsubscribe()

		fmt.Fprint(w, ": connected\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		keepAlive := time.NewTicker(streamKeepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-keepAlive.C:
				fmt.Fprint(w, ": keep-alive\n\n")
			case ev, ok := <-events:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, data)
			}
			// A failed flush means the client went away.
			if err := w.Flush(); err != nil {
				slog.Info("History stream closed", "user_id", userID)
				return
			}
		}
	}))

	return nil
}
