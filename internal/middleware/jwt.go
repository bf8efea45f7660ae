package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var errWrongTokenType = errors.New("wrong token type")

type Claims struct {
	Email string `json:"email"`
	Type  string `json:"typ"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token as a UUID.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

func GenerateTokens(userID uuid.UUID, email, secret string) (string, string, error) {
	access, err := signToken(userID, email, secret, tokenTypeAccess, AccessTokenTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err := signToken(userID, email, secret, tokenTypeRefresh, RefreshTokenTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func signToken(userID uuid.UUID, email, secret, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func parseToken(tokenStr, secret, typ string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Type != typ {
		return nil, errWrongTokenType
	}
	return claims, nil
}

// ParseRefreshToken validates a refresh token. Access tokens are rejected.
func ParseRefreshToken(tokenStr, secret string) (*Claims, error) {
	return parseToken(tokenStr, secret, tokenTypeRefresh)
}

// JWTProtected checks the bearer access token and stores user_id and email in Locals.
func JWTProtected(secret string) fiber.Handler {
	return authenticate(secret, false)
}

// StreamProtected is JWTProtected for websocket and event-stream routes. Those
// requests may pass the token as ?access_token= since browsers cannot set
// headers on them.
func StreamProtected(secret string) fiber.Handler {
	return authenticate(secret, true)
}

func authenticate(secret string, allowQuery bool) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ""
		if auth := c.Get("Authorization"); auth != "" {
			tokenStr = strings.TrimPrefix(auth, "Bearer ")
			if tokenStr == auth {
				return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
					"error":   true,
					"message": "Invalid authorization format",
				})
			}
		} else if allowQuery && isStreamRequest(c) {
			tokenStr = c.Query("access_token")
		}

		if tokenStr == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Missing authorization header",
			})
		}

		claims, err := parseToken(tokenStr, secret, tokenTypeAccess)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid or expired token",
			})
		}
		userID, err := claims.UserID()
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error":   true,
				"message": "Invalid or expired token",
			})
		}

		c.Locals("user_id", userID)
		c.Locals("email", claims.Email)
		return c.Next()
	}
}

func isStreamRequest(c *fiber.Ctx) bool {
	return websocket.IsWebSocketUpgrade(c) || strings.Contains(c.Get("Accept"), "text/event-stream")
}

// UserID reads the authenticated user set by JWTProtected.
func UserID(c *fiber.Ctx) uuid.UUID {
	id, _ := c.Locals("user_id").(uuid.UUID)
	return id
}
