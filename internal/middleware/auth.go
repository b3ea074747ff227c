package middleware

import (
	"errors"

	"github.com/alohasecurity/aloha-backend/internal/config"
	"github.com/alohasecurity/aloha-backend/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

// JWTProtected admits requests carrying a staff session token signed with
// HS256 by this server. A verified token that lacks the id claim is still
// rejected, since every protected handler reads the actor from it.
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{JWTAlg: jwtware.HS256, Key: []byte(cfg.JWTSecret)},
		SuccessHandler: func(c *fiber.Ctx) error {
			if _, ok := CurrentUser(c); !ok {
				return unauthorized(c, "Session token is missing user claims.")
			}
			return c.Next()
		},
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
				return unauthorized(c, "No token provided. Access denied.")
			}
			return unauthorized(c, "Invalid or expired token.")
		},
	})
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Error: true, Message: msg})
}
