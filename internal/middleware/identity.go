package middleware

import (
	"github.com/alohasecurity/aloha-backend/internal/audit"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// CurrentUser reads the session identity that JWTProtected left in Locals.
func CurrentUser(c *fiber.Ctx) (dto.SessionUser, bool) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok || token == nil {
		return dto.SessionUser{}, false
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return dto.SessionUser{}, false
	}

	// numeric claims decode as float64
	id, ok := claims["id"].(float64)
	if !ok || id <= 0 {
		return dto.SessionUser{}, false
	}
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	return dto.SessionUser{ID: uint(id), Username: username, Role: role}, true
}

// Actor is the audit identity of the request: the session user when there
// is one, and always the client address.
func Actor(c *fiber.Ctx) audit.Actor {
	if user, ok := CurrentUser(c); ok {
		return audit.UserActor(user.ID, c.IP())
	}
	return audit.Actor{IP: c.IP()}
}
