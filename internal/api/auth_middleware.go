package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/wayli-app/chatwire/internal/auth"
)

// RequireAuth validates the access credential and stores its claims in the
// request locals. The token is read from the `token` query parameter first,
// because the event stream transport cannot carry custom headers, with the
// Authorization bearer header as fallback for regular API calls.
func RequireAuth(jwtManager *auth.JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Query("token")
		if token == "" {
			header := c.Get(fiber.HeaderAuthorization)
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing access token",
			})
		}

		claims, err := jwtManager.ValidateToken(token)
		if err != nil {
			log.Debug().Err(err).Msg("Rejected stream credential")
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid or expired token",
			})
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}

// claimsFrom returns the validated claims set by RequireAuth.
func claimsFrom(c *fiber.Ctx) (*auth.TokenClaims, error) {
	claims, ok := c.Locals("claims").(*auth.TokenClaims)
	if !ok || claims == nil {
		return nil, fiber.ErrUnauthorized
	}
	return claims, nil
}
