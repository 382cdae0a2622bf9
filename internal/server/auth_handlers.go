package server

import (
	"log/slog"
	"time"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
)

type credentials struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginForm handles GET /login
// @Summary Login form
// @Tags auth
// @Produce html
// @Success 200 "HTML page"
// @Router /login [get]
func (s *Server) LoginForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "login", s.page(c, "Log in"))
}

// Login handles POST /login
// @Summary Log in
// @Description Checks the credentials and sets the session cookie
// @Tags auth
// @Accept x-www-form-urlencoded,json
// @Produce json,html
// @Param username formData string true "Username"
// @Param password formData string true "Password"
// @Success 200 {object} object{message=string,category=string}
// @Success 302 "Redirect to /"
// @Failure 401 {object} models.ErrorResponse
// @Router /login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, models.NewValidationError("Invalid request body"))
	}

	res, err := s.authService.Login(c.UserContext(), service.LoginInput{Username: req.Username, Password: req.Password})
	if err != nil {
		return s.formError(c, "login", "Log in", err, map[string]string{"username": req.Username}, nil)
	}

	s.setSessionCookie(c, res.Token, res.Session.ExpiresAt)
	return s.redirectWithFlash(c, homePath, flashSuccess, "Logged in successfully!")
}

// SigninForm handles GET /signin
// @Summary Registration form
// @Tags auth
// @Produce html
// @Success 200 "HTML page"
// @Router /signin [get]
func (s *Server) SigninForm(c *fiber.Ctx) error {
	return s.render(c, fiber.StatusOK, "signin", s.page(c, "Sign up"))
}

// Signin handles POST /signin
// @Summary Create an account
// @Description Registers a new user. Usernames are unique.
// @Tags auth
// @Accept x-www-form-urlencoded,json
// @Produce json,html
// @Param username formData string true "Username (max 20 characters)"
// @Param password formData string true "Password"
// @Success 201 {object} object{message=string,category=string}
// @Success 302 "Redirect to /login"
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /signin [post]
func (s *Server) Signin(c *fiber.Ctx) error {
	var req credentials
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, models.NewValidationError("Invalid request body"))
	}

	if _, err := s.authService.Register(c.UserContext(), service.RegisterInput{Username: req.Username, Password: req.Password}); err != nil {
		return s.formError(c, "signin", "Sign up", err, map[string]string{"username": req.Username}, nil)
	}

	const msg = "Account created! You can now log in."
	if middleware.PrefersJSON(c) {
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"message": msg, "category": flashSuccess})
	}
	return s.redirectWithFlash(c, loginPath, flashSuccess, msg)
}

// Logout handles GET /logout
// @Summary Log out
// @Description Revokes the session and clears the cookie
// @Tags auth
// @Security SessionCookie
// @Produce json,html
// @Success 200 {object} object{message=string,category=string}
// @Success 302 "Redirect to /"
// @Router /logout [get]
func (s *Server) Logout(c *fiber.Ctx) error {
	su, _ := middleware.CurrentUser(c)
	if err := s.authService.Logout(c.UserContext(), su); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "session revoke failed", slog.String("error", err.Error()))
	}
	expireCookie(c, s.config.SessionCookieName)
	return s.redirectWithFlash(c, homePath, flashInfo, "Logged out successfully!")
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, expires time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     s.config.SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   s.config.IsProduction(),
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}
