package middleware

import (
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/apperr"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/config"
	"github.com/GemGreenPokemon/SMP-Mentor-Mentee-Mobile-App/internal/dto"
	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
)

var errInvalidToken = apperr.New(apperr.Unauthenticated, "Unauthorized: invalid or expired token")

// JWTProtected verifies the bearer token and stores it under Locals("user").
func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		Filter:     viaAdminToken,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return dto.Fail(c, errInvalidToken)
		},
	})
}
