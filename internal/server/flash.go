package server

import (
	"encoding/base64"
	"encoding/json"
	"time"

	"inkwell/internal/views"

	"github.com/gofiber/fiber/v2"
)

const (
	flashCookie = "inkwell_flash"
	flashLocal  = "pendingFlashes"
	flashTTL    = 5 * time.Minute
	maxFlashes  = 8
)

// Flash categories rendered as alert styles.
const (
	flashSuccess = "success"
	flashInfo    = "info"
	flashWarning = "warning"
	flashDanger  = "danger"
)

// setFlash queues a message for the next rendered page.
func setFlash(c *fiber.Ctx, category, message string) {
	pending, ok := c.Locals(flashLocal).([]views.Flash)
	if !ok {
		pending = readFlashes(c)
	}
	flashes := append(pending, views.Flash{Category: category, Message: message})
	if len(flashes) > maxFlashes {
		flashes = flashes[len(flashes)-maxFlashes:]
	}
	c.Locals(flashLocal, flashes)
	raw, err := json.Marshal(flashes)
	if err != nil {
		return
	}
	c.Cookie(&fiber.Cookie{
		Name:     flashCookie,
		Value:    base64.RawURLEncoding.EncodeToString(raw),
		Path:     "/",
		Expires:  time.Now().Add(flashTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// takeFlashes returns the queued messages and clears the cookie.
func takeFlashes(c *fiber.Ctx) []views.Flash {
	flashes := readFlashes(c)
	if c.Cookies(flashCookie) != "" {
		expireCookie(c, flashCookie)
	}
	return flashes
}

func readFlashes(c *fiber.Ctx) []views.Flash {
	value := c.Cookies(flashCookie)
	if value == "" {
		return nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil
	}
	var flashes []views.Flash
	if err := json.Unmarshal(raw, &flashes); err != nil {
		return nil
	}
	return flashes
}

func expireCookie(c *fiber.Ctx, name string) {
	c.Cookie(&fiber.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
