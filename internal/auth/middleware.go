package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"dynfilter/internal/engine"
)

// AuthMiddleware returns a Fiber middleware that validates JWT tokens
// and stores the parsed claims on the request.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get("Authorization")
		if header == "" {
			return engine.UnauthorizedError("Missing auth token")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return engine.UnauthorizedError("Invalid auth header format")
		}

		claims, err := ParseAccessToken(parts[1], secret)
		if err != nil {
			return engine.UnauthorizedError("Invalid or expired token")
		}

		c.Locals("claims", claims)

		return c.Next()
	}
}

// RequireAdmin is a Fiber middleware that checks the caller has the admin role.
func RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := CurrentClaims(c)
		if claims == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		if !claims.IsAdmin() {
			return engine.ForbiddenError("Admin access required")
		}
		return c.Next()
	}
}

// RequireModelAccess is a Fiber middleware for routes carrying a :model
// param. It rejects tokens whose model scope does not cover the requested
// model. Must be registered per-route so the route params are bound.
func RequireModelAccess() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims := CurrentClaims(c)
		if claims == nil {
			return engine.UnauthorizedError("Missing auth token")
		}
		name := c.Params("model")
		if name != "" && !claims.CanAccessModel(name) {
			return engine.ForbiddenError("Token is not scoped to model: " + name)
		}
		return c.Next()
	}
}

// CurrentClaims extracts the parsed claims from a Fiber context.
func CurrentClaims(c *fiber.Ctx) *Claims {
	claims, _ := c.Locals("claims").(*Claims)
	return claims
}
