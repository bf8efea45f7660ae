package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditHandler struct {
	db *gorm.DB
}

func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

// ListAuditLogs returns the caller's audit entries, newest first. Optional filters:
// action, target_type and target_id (e.g. one conversation's history).
func (h *AuditHandler) ListAuditLogs(c *fiber.Ctx) error {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	perPage, _ := strconv.Atoi(c.Query("per_page", "50"))
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 200 {
		perPage = 50
	}

	action := c.Query("action")
	targetType := c.Query("target_type")
	if targetType != "" && !slices.Contains(models.AuditTargetTypes, targetType) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Unknown target_type",
		})
	}
	var targetID uuid.UUID
	if raw := c.Query("target_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid target_id",
			})
		}
		targetID = id
	}

	userID := middleware.UserID(c)
	filtered := func() *gorm.DB {
		q := h.db.Model(&models.AuditLog{}).Where("user_id = ?", userID)
		if action != "" {
			q = q.Where("action = ?", action)
		}
		if targetType != "" {
			q = q.Where("target_type = ?", targetType)
		}
		if targetID != uuid.Nil {
			q = q.Where("target_id = ?", targetID)
		}
		return q
	}

	var total int64
	filtered().Count(&total)

	logs := []models.AuditLog{}
	if err := filtered().Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&logs).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list audit logs",
		})
	}

	return c.JSON(fiber.Map{
		"logs":     logs,
		"total":    total,
		"page":     page,
		"per_page": perPage,
	})
}

// auditEvent is one change to record for the user who made it.
type auditEvent struct {
	UserID     uuid.UUID
	Action     string
	TargetType string
	TargetID   uuid.UUID
	Details    map[string]interface{}
}

func writeAuditLog(db *gorm.DB, ip string, ev auditEvent) error {
	entry := models.AuditLog{
		UserID:     ev.UserID,
		Action:     ev.Action,
		TargetType: ev.TargetType,
		TargetID:   ev.TargetID,
		IP:         ip,
	}
	if ev.Details != nil {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("encode audit details: %w", err)
		}
		entry.Details = datatypes.JSON(b)
	}
	return db.Create(&entry).Error
}

// recordAudit writes an audit entry; failures are logged and never fail the request.
func recordAudit(c *fiber.Ctx, db *gorm.DB, ev auditEvent) {
	if err := writeAuditLog(db, c.IP(), ev); err != nil {
		slog.Warn("Failed to write audit log", "action", ev.Action, "user_id", ev.UserID, "error", err)
	}
}
