package routes

import (
	"github.com/ahmetk3436/persona-trainer/internal/config"
	"github.com/ahmetk3436/persona-trainer/internal/handlers"
	"github.com/ahmetk3436/persona-trainer/internal/middleware"
	"github.com/gofiber/fiber/v2"
)

func Setup(
	app *fiber.App,
	cfg *config.Config,
	authHandler *handlers.AuthHandler,
	conversationHandler *handlers.ConversationHandler,
	personaHandler *handlers.PersonaHandler,
	scenarioHandler *handlers.ScenarioHandler,
	streamHandler *handlers.StreamHandler,
	hookHandler *handlers.HookHandler,
	auditHandler *handlers.AuditHandler,
	systemHandler *handlers.SystemHandler,
) {
	// ─── Public ──────────────────────────────────────────────────────────
	app.Get("/api/health", systemHandler.Health)

	// ─── Auth ────────────────────────────────────────────────────────────
	app.Post("/api/auth/register", authHandler.Register)
	app.Post("/api/auth/login", authHandler.Login)
	app.Post("/api/auth/refresh", authHandler.Refresh)
	app.Post("/api/auth/forgot-password", authHandler.ForgotPassword)
	app.Post("/api/auth/reset-password", authHandler.ResetPassword)

	// ─── Hooks (shared secret) ───────────────────────────────────────────
	app.Post("/api/hooks/message-inserted", hookHandler.MessageInserted)

	// ─── Streams (token may be passed as ?access_token=) ──────────────────
	// Registered ahead of the /api group so its header-only check never runs for them.
	stream := middleware.StreamProtected(cfg.JWTSecret)
	app.Get("/api/conversations/events", stream, streamHandler.History)
	app.Get("/api/conversations/:id/ws", stream, streamHandler.UpgradeCheck(), streamHandler.AuthorizeConversation(), streamHandler.Messages())

	// ─── Protected routes ────────────────────────────────────────────────
	api := app.Group("/api", middleware.JWTProtected(cfg.JWTSecret))

	// Auth (protected)
	api.Get("/auth/me", authHandler.Me)
	api.Put("/auth/profile", authHandler.UpdateProfile)
	api.Put("/auth/password", authHandler.ChangePassword)

	// Scenarios
	api.Get("/scenarios", scenarioHandler.ListScenarios)

	// Conversations
	api.Get("/conversations", conversationHandler.ListConversations)
	api.Post("/conversations", conversationHandler.CreateConversation)
	api.Get("/conversations/:id", conversationHandler.GetConversation)
	api.Delete("/conversations/:id", conversationHandler.DeleteConversation)
	api.Get("/conversations/:id/messages", conversationHandler.ListMessages)
	api.Post("/conversations/:id/messages", conversationHandler.SendMessage)

	// Personas
	api.Get("/personas/:id", personaHandler.GetPersona)
	api.Put("/personas/:id", personaHandler.UpdatePersona)

	// Audit
	api.Get("/audit", auditHandler.ListAuditLogs)
}
