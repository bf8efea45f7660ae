package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Policy failures are answered before any database access, so the handler runs without one.
func newAuthApp() *fiber.App {
	h := NewAuthHandler(nil, &config.Config{JWTSecret: "test-secret"})
	app := fiber.New()
	app.Post("/register", h.Register)
	app.Post("/reset", h.ResetPassword)
	app.Put("/password", func(c *fiber.Ctx) error {
		c.Locals("user_id", uuid.New())
		return c.Next()
	}, h.ChangePassword)
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestRegister_PasswordPolicy(t *testing.T) {
	app := newAuthApp()

	tests := []struct {
		name     string
		password string
		confirm  string
		reason   services.PasswordViolation
	}{
		{"mismatch", "Abcdef1!", "Abcdef1?", services.ViolationMismatch},
		{"too short", "Ab1!", "Ab1!", services.ViolationTooShort},
		{"no uppercase", "abcdef1!", "abcdef1!", services.ViolationNoUppercase},
		{"no lowercase", "ABCDEF1!", "ABCDEF1!", services.ViolationNoLowercase},
		{"no digit", "Abcdefg!", "Abcdefg!", services.ViolationNoDigit},
		{"no special", "Abcdefg1", "Abcdefg1", services.ViolationNoSpecial},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(map[string]string{
				"email":            "jane@example.com",
				"password":         tt.password,
				"confirm_password": tt.confirm,
			})
			status, out := doJSON(t, app, http.MethodPost, "/register", string(body))
			assert.Equal(t, fiber.StatusBadRequest, status)
			assert.Equal(t, string(tt.reason), out["reason"])
			assert.Equal(t, (&services.ValidationError{Reason: tt.reason}).Error(), out["message"])
		})
	}
}

func TestRegister_RejectsInvalidEmail(t *testing.T) {
	app := newAuthApp()
	status, out := doJSON(t, app, http.MethodPost, "/register",
		`{"email":"not-an-email","password":"Abcdef1!","confirm_password":"Abcdef1!"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "A valid email address is required", out["message"])
}

func TestChangePassword_Validation(t *testing.T) {
	app := newAuthApp()

	status, out := doJSON(t, app, http.MethodPut, "/password",
		`{"current_password":"","new_password":"Abcdef1!","confirm_password":"Abcdef1!"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Please fill in all password fields", out["message"])

	status, out = doJSON(t, app, http.MethodPut, "/password",
		`{"current_password":"Old-pass1","new_password":"Abcdef1!","confirm_password":"Abcdef1?"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "MISMATCH", out["reason"])

	status, out = doJSON(t, app, http.MethodPut, "/password",
		`{"current_password":"Old-pass1","new_password":"abcdefgh","confirm_password":"abcdefgh"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "NO_UPPERCASE", out["reason"])
}

func TestResetPassword_Validation(t *testing.T) {
	app := newAuthApp()

	status, out := doJSON(t, app, http.MethodPost, "/reset", `{"password":"Abcdef1!","confirm_password":"Abcdef1!"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "Reset token is required", out["message"])

	status, out = doJSON(t, app, http.MethodPost, "/reset", `{"token":"abc","password":"Abcdefg1","confirm_password":"Abcdefg1"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, "NO_SPECIAL", out["reason"])
}

func TestNormalizeEmail(t *testing.T) {
	email, ok := normalizeEmail("  Jane@Example.COM ")
	assert.True(t, ok)
	assert.Equal(t, "jane@example.com", email)

	_, ok = normalizeEmail("Jane <jane@example.com>")
	assert.False(t, ok)

	_, ok = normalizeEmail("")
	assert.False(t, ok)
}

func TestBuildInitials(t *testing.T) {
	assert.Equal(t, "JD", buildInitials("Jane Doe", "jane@example.com"))
	assert.Equal(t, "JM", buildInitials("jane mary doe", ""))
	assert.Equal(t, "S", buildInitials("", "sam@x.io"))
	assert.Equal(t, "Ö", buildInitials("özge", ""))
	assert.Equal(t, "?", buildInitials("", ""))
}
