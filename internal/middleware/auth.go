package middleware

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// SessionUser is the identity resolved from the session cookie.
type SessionUser struct {
	ID        uint
	Username  string
	SessionID string
	ExpiresAt time.Time
}

// SessionResolver turns a session cookie value into the user it identifies.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (*SessionUser, error)
}

const sessionLocal = "session"

// LoadSession resolves the session cookie, if any, and stores the user in locals
// ("session", "userID", "username"). Invalid or revoked cookies are cleared and the
// request continues anonymously.
func LoadSession(cookieName string, resolver SessionResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies(cookieName)
		if token == "" {
			return c.Next()
		}

		su, err := resolver.Resolve(c.UserContext(), token)
		if err != nil || su == nil {
			c.ClearCookie(cookieName)
			return c.Next()
		}

		c.Locals(sessionLocal, su)
		c.Locals("userID", su.ID)
		c.Locals("username", su.Username)
		return c.Next()
	}
}

// CurrentUser returns the session user for the request, if logged in.
func CurrentUser(c *fiber.Ctx) (*SessionUser, bool) {
	su, ok := c.Locals(sessionLocal).(*SessionUser)
	return su, ok && su != nil
}

// RequireLogin redirects anonymous browsers to loginPath and answers 401 to JSON clients.
func RequireLogin(loginPath string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := CurrentUser(c); ok {
			return c.Next()
		}
		if PrefersJSON(c) {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Login required",
				"code":  "UNAUTHORIZED",
			})
		}
		return c.Redirect(loginPath, fiber.StatusFound)
	}
}

// PrefersJSON reports whether the client ranks application/json above text/html.
func PrefersJSON(c *fiber.Ctx) bool {
	if c.Get(fiber.HeaderAccept) == "" {
		return false
	}
	return c.Accepts(fiber.MIMETextHTML, fiber.MIMEApplicationJSON) == fiber.MIMEApplicationJSON
}
