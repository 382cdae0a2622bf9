package server

import (
	"errors"
	"log/slog"
	"net/http"

	"inkwell/internal/featureflags"
	"inkwell/internal/middleware"
	"inkwell/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// FeedUpgrade only lets websocket upgrade requests through to FeedHandler.
func (s *Server) FeedUpgrade(c *fiber.Ctx) error {
	if !s.flags.Enabled(featureflags.LiveFeed, viewerID(c)) {
		return fiber.ErrNotFound
	}
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// FeedHandler streams post events to the browser. Guests may watch; the user id
// is recorded when a session is present.
// @Summary Live feed websocket
// @Description Streams post events (post.created, post.updated, post.deleted, post.liked, post.unliked) as JSON frames.
// @Tags feed
// @Produce json
// @Success 101 "Switching Protocols"
// @Failure 404 "Live feed disabled"
// @Failure 426 "Upgrade Required"
// @Router /ws/feed [get]
func (s *Server) FeedHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.feedHub.Register(conn, userID)
		if err != nil {
			middleware.Logger.Warn("feed connection refused", slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// ServeUpload handles GET /static/uploads/*
// @Summary Fetch an uploaded image or thumbnail
// @Tags uploads
// @Produce image/png,image/jpeg,image/gif,image/webp
// @Param key path string true "Blob key, e.g. 1700000000_photo.png or thumbs/1700000000_photo.webp"
// @Success 200 {file} binary
// @Failure 404 {string} string
// @Router /static/uploads/{key} [get]
func (s *Server) ServeUpload(c *fiber.Ctx) error {
	key, err := storage.CleanKey(c.Params("*"))
	if err != nil {
		return fiber.ErrNotFound
	}

	obj, err := s.store.Open(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidKey) {
			return fiber.ErrNotFound
		}
		return err
	}

	if obj.ContentType != "" {
		c.Set(fiber.HeaderContentType, obj.ContentType)
	}
	if !obj.ModTime.IsZero() {
		c.Set(fiber.HeaderLastModified, obj.ModTime.UTC().Format(http.TimeFormat))
	}
	c.Set(fiber.HeaderCacheControl, "public, max-age=86400")
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	return c.SendStream(obj.Body, int(obj.Size))
}
