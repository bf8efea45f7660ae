package handlers

import (
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ScenarioHandler struct {
	db *gorm.DB
}

func NewScenarioHandler(db *gorm.DB) *ScenarioHandler {
	return &ScenarioHandler{db: db}
}

func (h *ScenarioHandler) ListScenarios(c *fiber.Ctx) error {
	var scenarios []models.Scenario
	if err := h.db.Order("created_at ASC").Find(&scenarios).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to list scenarios",
		})
	}
	return c.JSON(fiber.Map{"scenarios": scenarios})
}
