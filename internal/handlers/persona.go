package handlers

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// personaInput is a partial persona update; nil fields are left unchanged.
type personaInput struct {
	Name   *string `json:"name"`
	Role   *string `json:"role"`
	Tone   *string `json:"tone"`
	OScore *int    `json:"o_score"`
	CScore *int    `json:"c_score"`
	EScore *int    `json:"e_score"`
	AScore *int    `json:"a_score"`
	NScore *int    `json:"n_score"`
}

func (in *personaInput) apply(p *models.Persona) {
	if in == nil {
		return
	}
	setText := func(dst *string, v *string) {
		if v != nil && strings.TrimSpace(*v) != "" {
			*dst = strings.TrimSpace(*v)
		}
	}
	setScore := func(dst **int, v *int) {
		if v != nil {
			s := models.ClampScore(*v)
			*dst = &s
		}
	}
	setText(&p.Name, in.Name)
	setText(&p.Role, in.Role)
	setText(&p.Tone, in.Tone)
	setScore(&p.OScore, in.OScore)
	setScore(&p.CScore, in.CScore)
	setScore(&p.EScore, in.EScore)
	setScore(&p.AScore, in.AScore)
	setScore(&p.NScore, in.NScore)
}

type PersonaHandler struct {
	db *gorm.DB
}

func NewPersonaHandler(db *gorm.DB) *PersonaHandler {
	return &PersonaHandler{db: db}
}

// loadOwnedPersona finds a persona referenced by one of the caller's live conversations.
func (h *PersonaHandler) loadOwnedPersona(c *fiber.Ctx) (*models.Persona, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid persona ID")
	}

	var persona models.Persona
	err = h.db.Where("id = ? AND EXISTS (?)", id,
		h.db.Model(&models.Conversation{}).
			Select("1").
			Where("conversations.persona_id = personas.id AND conversations.user_id = ? AND conversations.is_deleted = ?",
				middleware.UserID(c), false),
	).First(&persona).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fiber.NewError(fiber.StatusNotFound, "Persona not found")
	}
	if err != nil {
		return nil, err
	}
	return &persona, nil
}

func (h *PersonaHandler) GetPersona(c *fiber.Ctx) error {
	persona, err := h.loadOwnedPersona(c)
	if err != nil {
		return err
	}
	return c.JSON(persona)
}

func (h *PersonaHandler) UpdatePersona(c *fiber.Ctx) error {
	persona, err := h.loadOwnedPersona(c)
	if err != nil {
		return err
	}

	var req personaInput
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}
	req.apply(persona)

	if err := h.db.Save(persona).Error; err != nil {
		slog.Error("Failed to update persona", "persona_id", persona.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update persona",
		})
	}

	recordAudit(c, h.db, auditEvent{
		UserID:     middleware.UserID(c),
		Action:     models.AuditPersonaUpdate,
		TargetType: models.AuditTargetPersona,
		TargetID:   persona.ID,
		Details: map[string]interface{}{
			"name":    persona.Name,
			"role":    persona.Role,
			"tone":    persona.Tone,
			"a_score": models.TraitScore(persona.AScore),
		},
	})

	return c.JSON(persona)
}
