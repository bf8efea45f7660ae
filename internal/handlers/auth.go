package handlers

import (
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthHandler struct {
	db  *gorm.DB
	cfg *config.Config
}

func NewAuthHandler(db *gorm.DB, cfg *config.Config) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg}
}

// passwordPolicyError answers a failed password policy check with its specific reason.
func passwordPolicyError(c *fiber.Ctx, err error) error {
	var vErr *services.ValidationError
	if errors.As(err, &vErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": vErr.Error(),
			"reason":  vErr.Reason,
		})
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

func normalizeEmail(email string) (string, bool) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", false
	}
	return email, true
}

func (h *AuthHandler) tokenResponse(c *fiber.Ctx, status int, user *models.User) error {
	access, refresh, err := middleware.GenerateTokens(user.ID, user.Email, h.cfg.JWTSecret)
	if err != nil {
		slog.Error("Failed to generate tokens", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to generate tokens",
		})
	}

	return c.Status(status).JSON(fiber.Map{
		"access_token":  access,
		"refresh_token": refresh,
		"user":          userResponse(user),
	})
}

func userResponse(user *models.User) fiber.Map {
	return fiber.Map{
		"id":              user.ID,
		"email":           user.Email,
		"full_name":       user.FullName,
		"avatar_initials": buildInitials(user.FullName, user.Email),
	}
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		FullName        string `json:"full_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	email, ok := normalizeEmail(req.Email)
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "A valid email address is required",
		})
	}

	if err := services.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		return passwordPolicyError(c, err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash password", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create account",
		})
	}

	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		FullName:     strings.TrimSpace(req.FullName),
	}
	if err := h.db.Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error":   true,
				"message": "An account with this email already exists",
			})
		}
		slog.Error("Failed to create user", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to create account",
		})
	}

	recordAudit(c, h.db, auditEvent{
		UserID:     user.ID,
		Action:     models.AuditRegister,
		TargetType: models.AuditTargetUser,
		TargetID:   user.ID,
		Details:    map[string]interface{}{"email": user.Email},
	})
	slog.Info("User registered", "user_id", user.ID)

	return h.tokenResponse(c, fiber.StatusCreated, &user)
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	var user models.User
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := h.db.First(&user, "email = ?", email).Error; err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid credentials",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid credentials",
		})
	}

	return h.tokenResponse(c, fiber.StatusOK, &user)
}

func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	claims, err := middleware.ParseRefreshToken(req.RefreshToken, h.cfg.JWTSecret)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid or expired refresh token",
		})
	}

	userID, err := claims.UserID()
	var user models.User
	if err != nil || h.db.First(&user, "id = ?", userID).Error != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid or expired refresh token",
		})
	}

	return h.tokenResponse(c, fiber.StatusOK, &user)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	var user models.User
	if err := h.db.First(&user, "id = ?", middleware.UserID(c)).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "User not found",
		})
	}
	return c.JSON(userResponse(&user))
}

func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	var req struct {
		FullName string `json:"full_name"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	userID := middleware.UserID(c)
	fullName := strings.TrimSpace(req.FullName)
	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Update("full_name", fullName).Error; err != nil {
		slog.Error("Failed to update profile", "user_id", userID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update profile",
		})
	}

	recordAudit(c, h.db, auditEvent{
		UserID:     userID,
		Action:     models.AuditProfileUpdate,
		TargetType: models.AuditTargetUser,
		TargetID:   userID,
		Details:    map[string]interface{}{"full_name": fullName},
	})
	return h.Me(c)
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	if req.CurrentPassword == "" || req.NewPassword == "" || req.ConfirmPassword == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Please fill in all password fields",
		})
	}

	if err := services.ValidatePassword(req.NewPassword, req.ConfirmPassword); err != nil {
		return passwordPolicyError(c, err)
	}

	userID := middleware.UserID(c)
	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "User not found",
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   true,
			"message": "Current password is incorrect",
		})
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash new password", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update password",
		})
	}

	if err := h.db.Model(&user).Update("password_hash", string(newHash)).Error; err != nil {
		slog.Error("Failed to store new password", "user_id", user.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update password",
		})
	}

	recordAudit(c, h.db, auditEvent{
		UserID:     user.ID,
		Action:     models.AuditPasswordChange,
		TargetType: models.AuditTargetUser,
		TargetID:   user.ID,
	})
	slog.Info("Password changed", "user_id", user.ID)

	return c.JSON(fiber.Map{
		"message": "Password updated successfully",
	})
}

// ForgotPassword answers the same way whether or not the account exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Invalid request body",
		})
	}

	ok := fiber.Map{"message": "If the account exists, a reset link has been sent"}

	var user models.User
	if err := h.db.First(&user, "email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Error; err != nil {
		return c.JSON(ok)
	}

	token, hash, err := services.NewResetToken()
	if err != nil {
		slog.Error("Failed to issue reset token", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to start password reset",
		})
	}

	reset := models.PasswordReset{
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: time.Now().Add(h.cfg.PasswordResetTTL),
	}
	if err := h.db.Create(&reset).Error; err != nil {
		slog.Error("Failed to store reset token", "user_id", user.ID, "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to start password reset",
		})
	}

	// No mailer: the token is only visible in debug logs.
	slog.Info("Password reset issued", "user_id", user.ID, "expires_at", reset.ExpiresAt)
	slog.Debug("Password reset token", "user_id", user.ID, "token", token)

	return c.JSON(ok)
}

func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := c.BodyParser(&req); err != nil || req.Token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Reset token is required",
		})
	}

	if err := services.ValidatePassword(req.Password, req.ConfirmPassword); err != nil {
		return passwordPolicyError(c, err)
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash new password", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update password",
		})
	}

	var userID uuid.UUID
	err = h.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		res := tx.Model(&models.PasswordReset{}).
			Where("token_hash = ? AND used_at IS NULL AND expires_at > ?", services.HashResetToken(req.Token), now).
			Update("used_at", now)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		var reset models.PasswordReset
		if err := tx.First(&reset, "token_hash = ?", services.HashResetToken(req.Token)).Error; err != nil {
			return err
		}
		userID = reset.UserID
		return tx.Model(&models.User{}).Where("id = ?", userID).Update("password_hash", string(newHash)).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":   true,
			"message": "Reset link is invalid or has expired",
		})
	}
	if err != nil {
		slog.Error("Failed to reset password", "error", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to update password",
		})
	}

	recordAudit(c, h.db, auditEvent{
		UserID:     userID,
		Action:     models.AuditPasswordReset,
		TargetType: models.AuditTargetUser,
		TargetID:   userID,
	})
	slog.Info("Password reset completed", "user_id", userID)

	return c.JSON(fiber.Map{
		"message": "Password updated successfully",
	})
}

// buildInitials extracts uppercase initials from a display name, falling back to the email.
// e.g. "Jane Doe" -> "JD", "" + "sam@x.io" -> "S"
func buildInitials(name, email string) string {
	if strings.TrimSpace(name) == "" {
		name = strings.SplitN(email, "@", 2)[0]
	}
	if name == "" {
		return "?"
	}
	initials := ""
	for _, p := range strings.Fields(name) {
		initials += strings.ToUpper(string([]rune(p)[:1]))
	}
	if r := []rune(initials); len(r) > 2 {
		initials = string(r[:2])
	}
	return initials
}
