package server

import (
	"errors"
	"log/slog"

	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/views"

	"github.com/gofiber/fiber/v2"
)

const guestName = "guest"

// page starts the template data for the request: display name, login state and pending flashes.
func (s *Server) page(c *fiber.Ctx, title string) views.Page {
	p := views.Page{Title: title, Name: guestName, Flashes: takeFlashes(c)}
	if su, ok := middleware.CurrentUser(c); ok {
		p.Name = su.Username
		p.LoggedIn = true
	}
	p.LiveFeed = s.flags.Enabled(featureflags.LiveFeed, viewerID(c))
	return p
}

func (s *Server) render(c *fiber.Ctx, status int, name string, p views.Page) error {
	return c.Status(status).Render(name, p, layoutName)
}

// redirectWithFlash is the post/redirect/get outcome of a successful write.
// JSON clients get the message instead of a redirect.
func (s *Server) redirectWithFlash(c *fiber.Ctx, to, category, message string) error {
	if middleware.PrefersJSON(c) {
		return c.JSON(fiber.Map{"message": message, "category": category})
	}
	setFlash(c, category, message)
	return c.Redirect(to, fiber.StatusFound)
}

// fail answers err as the JSON envelope or the error page.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "request error",
			slog.String("path", c.Path()), slog.String("error", err.Error()))
	}
	if middleware.PrefersJSON(c) {
		return models.RespondWithError(c, status, err)
	}

	p := s.page(c, "Error")
	p.Status = status
	p.Message = publicMessage(err)
	return s.render(c, status, "error", p)
}

// formError re-renders a form with the error as a flash, keeping the submitted values.
func (s *Server) formError(c *fiber.Ctx, name, title string, err error, form map[string]string, post *models.Post) error {
	if middleware.PrefersJSON(c) || (!models.IsValidation(err) && !models.HasCode(err, models.CodeUnauthorized)) {
		return s.fail(c, err)
	}
	p := s.page(c, title)
	p.Flashes = append(p.Flashes, views.Flash{Category: flashCategory(err), Message: publicMessage(err)})
	p.Form = form
	p.Post = post
	return s.render(c, models.StatusFor(err), name, p)
}

// errorHandler catches errors returned from handlers and middleware.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		appErr := &models.AppError{Code: codeForStatus(fe.Code), Message: fe.Message}
		if fe.Code == fiber.StatusNotFound {
			appErr = models.NewNotFoundError("Page", c.Path())
		}
		if middleware.PrefersJSON(c) {
			return models.RespondWithError(c, fe.Code, appErr)
		}
		p := s.page(c, "Error")
		p.Status = fe.Code
		p.Message = fe.Message
		return s.render(c, fe.Code, "error", p)
	}

	var appErr *models.AppError
	if !errors.As(err, &appErr) {
		err = models.NewInternalError(err)
	}
	return s.fail(c, err)
}

func publicMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "Internal server error"
}

func flashCategory(err error) string {
	switch {
	case models.HasCode(err, models.CodeUnauthorized):
		return flashDanger
	case models.IsValidation(err):
		return flashWarning
	default:
		return flashDanger
	}
}

func codeForStatus(status int) string {
	switch {
	case status == fiber.StatusNotFound:
		return models.CodeNotFound
	case status == fiber.StatusUnauthorized:
		return models.CodeUnauthorized
	case status == fiber.StatusForbidden:
		return models.CodeForbidden
	case status >= fiber.StatusInternalServerError:
		return models.CodeInternal
	default:
		return models.CodeValidation
	}
}
