package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func newProtectedApp() *fiber.App {
	app := fiber.New()
	whoami := func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": UserID(c).String(), "email": c.Locals("email")})
	}
	app.Get("/me", JWTProtected(testSecret), whoami)
	app.Get("/events", StreamProtected(testSecret), whoami)
	return app
}

func TestJWTProtected(t *testing.T) {
	userID := uuid.New()
	access, refresh, err := GenerateTokens(userID, "a@example.com", testSecret)
	require.NoError(t, err)
	otherAccess, _, err := GenerateTokens(userID, "a@example.com", "other-secret")
	require.NoError(t, err)

	cases := []struct {
		name   string
		path   string
		header string
		accept string
		query  string
		want   int
	}{
		{name: "valid access token", path: "/me", header: "Bearer " + access, want: fiber.StatusOK},
		{name: "missing header", path: "/me", want: fiber.StatusUnauthorized},
		{name: "no bearer prefix", path: "/me", header: access, want: fiber.StatusUnauthorized},
		{name: "refresh token rejected", path: "/me", header: "Bearer " + refresh, want: fiber.StatusUnauthorized},
		{name: "wrong secret", path: "/me", header: "Bearer " + otherAccess, want: fiber.StatusUnauthorized},
		{name: "query token on plain route", path: "/me", query: "?access_token=" + access, want: fiber.StatusUnauthorized},
		{name: "query token with event-stream accept on plain route", path: "/me", accept: "text/event-stream", query: "?access_token=" + access, want: fiber.StatusUnauthorized},
		{name: "header on stream route", path: "/events", header: "Bearer " + access, want: fiber.StatusOK},
		{name: "query token on stream route", path: "/events", accept: "text/event-stream", query: "?access_token=" + access, want: fiber.StatusOK},
		{name: "query token on stream route without stream accept", path: "/events", query: "?access_token=" + access, want: fiber.StatusUnauthorized},
		{name: "refresh query token on stream route", path: "/events", accept: "text/event-stream", query: "?access_token=" + refresh, want: fiber.StatusUnauthorized},
	}

	app := newProtectedApp()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tc.path+tc.query, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			if tc.accept != "" {
				req.Header.Set("Accept", tc.accept)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestParseRefreshToken(t *testing.T) {
	userID := uuid.New()
	access, refresh, err := GenerateTokens(userID, "a@example.com", testSecret)
	require.NoError(t, err)

	claims, err := ParseRefreshToken(refresh, testSecret)
	require.NoError(t, err)
	id, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, userID, id)
	assert.Equal(t, "a@example.com", claims.Email)

	_, err = ParseRefreshToken(access, testSecret)
	assert.Error(t, err)
}

func TestParseRefreshToken_Expired(t *testing.T) {
	claims := &Claims{
		Type: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = ParseRefreshToken(tok, testSecret)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}
