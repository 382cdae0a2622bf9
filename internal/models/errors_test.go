package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppErrorStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("bad"), http.StatusBadRequest},
		{"conflict", NewConflictError("Username already taken"), http.StatusConflict},
		{"not found", NewNotFoundError("Post", 7), http.StatusNotFound},
		{"unauthorized", NewUnauthorizedError("Invalid username or password"), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("not yours"), http.StatusForbidden},
		{"internal", NewInternalError(errors.New("boom")), http.StatusInternalServerError},
		{"wrapped", fmt.Errorf("ctx: %w", NewNotFoundError("Post", 1)), http.StatusNotFound},
		{"plain", errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestNotFoundMessage(t *testing.T) {
	err := NewNotFoundError("Post", 42)
	assert.Equal(t, "Post with ID 42 not found", err.Error())
	assert.True(t, HasCode(err, CodeNotFound))
	assert.False(t, IsValidation(err))
	assert.True(t, IsValidation(NewConflictError("dup")))
}

func TestRespondWithError(t *testing.T) {
	app := fiber.New()
	app.Get("/internal", func(c *fiber.Ctx) error {
		return RespondWithError(c, http.StatusInternalServerError, NewInternalError(errors.New("db down")))
	})
	app.Get("/validation", func(c *fiber.Ctx) error {
		return RespondWithError(c, http.StatusBadRequest, NewValidationError("Title is required"))
	})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/internal", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	var got ErrorResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Empty(t, got.Details)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/validation", nil))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Title is required", got.Error)
	assert.Equal(t, CodeValidation, got.Code)
}
