package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/database/dbtest"
	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/ahmetk3436/persona-trainer/internal/models"
	"github.com/ahmetk3436/persona-trainer/internal/services"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "test-jwt-secret"

// testServer is the API wired as in production, backed by a throwaway database.
type testServer struct {
	app   *fiber.App
	db    *gorm.DB
	feed  *services.LocalChangefeed
	cache *services.MessageCache
}

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// newTestServer builds the app; a nil redisClient runs without the message cache.
func newTestServer(t *testing.T, redisClient *redis.Client) *testServer {
	t.Helper()
	db := dbtest.New(t)
	cfg := &config.Config{JWTSecret: testJWTSecret, InlineReplies: true}
	feed := services.NewLocalChangefeed()
	cache := services.NewMessageCache(redisClient, time.Hour)
	dispatcher := services.NewReplyDispatcher(services.NewGormReplyStore(db), nil, feed, cache)

	auth := NewAuthHandler(db, cfg)
	convs := NewConversationHandler(db, cfg, feed, cache, dispatcher)
	personas := NewPersonaHandler(db)
	scenarios := NewScenarioHandler(db)
	audit := NewAuditHandler(db)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": true, "message": err.Error()})
		},
	})
	api := app.Group("/api", middleware.JWTProtected(testJWTSecret))
	api.Get("/auth/me", auth.Me)
	api.Get("/scenarios", scenarios.ListScenarios)
	api.Get("/conversations", convs.ListConversations)
	api.Post("/conversations", convs.CreateConversation)
	api.Get("/conversations/:id", convs.GetConversation)
	api.Delete("/conversations/:id", convs.DeleteConversation)
	api.Get("/conversations/:id/messages", convs.ListMessages)
	api.Post("/conversations/:id/messages", convs.SendMessage)
	api.Get("/personas/:id", personas.GetPersona)
	api.Put("/personas/:id", personas.UpdatePersona)
	api.Get("/audit", audit.ListAuditLogs)

	return &testServer{app: app, db: db, feed: feed, cache: cache}
}

// login creates a user and returns its ID and an access token.
func (s *testServer) login(t *testing.T, email string) (uuid.UUID, string) {
	t.Helper()
	user := models.User{Email: email, PasswordHash: "unused", FullName: "Test User"}
	require.NoError(t, s.db.Create(&user).Error)
	access, _, err := middleware.GenerateTokens(user.ID, user.Email, testJWTSecret)
	require.NoError(t, err)
	return user.ID, access
}

func (s *testServer) seedScenario(t *testing.T, subject, opening string) models.Scenario {
	t.Helper()
	sc := models.Scenario{Service: "Support desk", Subject: subject, InitialMessage: opening}
	require.NoError(t, s.db.Create(&sc).Error)
	return sc
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

// createConversation posts a new conversation and returns its ID and persona ID.
func (s *testServer) createConversation(t *testing.T, token string, body any) (string, string, map[string]any) {
	t.Helper()
	status, out := s.do(t, "POST", "/api/conversations", token, body)
	require.Equal(t, fiber.StatusCreated, status, out)
	conv := out["conversation"].(map[string]any)
	return conv["id"].(string), conv["persona_id"].(string), out
}

func listOf(t *testing.T, out map[string]any, key string) []map[string]any {
	t.Helper()
	raw, ok := out[key].([]any)
	require.True(t, ok, "%s is not a list: %v", key, out)
	items := make([]map[string]any, len(raw))
	for i, r := range raw {
		items[i] = r.(map[string]any)
	}
	return items
}
