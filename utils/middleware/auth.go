package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sahilchouksey/syllabus-sync/utils/auth"
	"github.com/sahilchouksey/syllabus-sync/utils/response"
)

// UserEnsurer creates the local owner row for a verified identity when it is missing
type UserEnsurer interface {
	EnsureUser(ctx context.Context, id uint, email string) error
}

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager *auth.JWTManager
	users      UserEnsurer
	logger     *zap.Logger
}

// NewAuthMiddleware creates a new auth middleware. users may be nil.
func NewAuthMiddleware(jwtManager *auth.JWTManager, users UserEnsurer, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{
		jwtManager: jwtManager,
		users:      users,
		logger:     logger,
	}
}

// Required is middleware that requires a valid JWT token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing authorization token")
		}

		claims, err := m.jwtManager.ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return response.Unauthorized(c, "Token has expired")
			}
			return response.Unauthorized(c, "Invalid token")
		}

		if m.users != nil {
			if err := m.users.EnsureUser(c.UserContext(), claims.UserID, claims.Email); err != nil {
				m.logger.Error("failed to ensure user", zap.Uint("user_id", claims.UserID), zap.Error(err))
				return response.InternalServerError(c, "Failed to load user")
			}
		}

		c.Locals("user_id", claims.UserID)
		c.Locals("user_email", claims.Email)
		c.Locals("claims", claims)

		return c.Next()
	}
}

// bearerToken reads the token from the Authorization header, or from the access_token query
// parameter which EventSource clients use because they cannot set headers.
func bearerToken(c *fiber.Ctx) (string, bool) {
	if authHeader := c.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			return "", false
		}
		return parts[1], true
	}
	if token := c.Query("access_token"); token != "" {
		return token, true
	}
	return "", false
}

// GetUserID extracts user ID from context
func GetUserID(c *fiber.Ctx) (uint, bool) {
	userID := c.Locals("user_id")
	if userID == nil {
		return 0, false
	}
	id, ok := userID.(uint)
	return id, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	claims := c.Locals("claims")
	if claims == nil {
		return nil, false
	}
	claimsData, ok := claims.(*auth.Claims)
	return claimsData, ok
}
