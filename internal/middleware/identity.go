// Package middleware provides HTTP middleware for the fiber app.
package middleware

import (
	"strconv"

	"quicksurf/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// userIDKey is the request-local key holding the authenticated user id.
const userIDKey = "user_id"

// Identity resolves the caller from the X-User-ID header set by the fronting
// auth gateway. Authentication itself happens upstream; this service only
// needs the resolved identity.
func Identity(c *fiber.Ctx) error {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return utils.Unauthorized(c, "missing user identity")
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return utils.Unauthorized(c, "invalid user identity")
	}
	c.Locals(userIDKey, uint(id))
	return c.Next()
}

// UserID returns the authenticated user id set by Identity.
func UserID(c *fiber.Ctx) (uint, bool) {
	id, ok := c.Locals(userIDKey).(uint)
	return id, ok
}
