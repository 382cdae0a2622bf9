package server

import (
	"errors"
	"io"
	"mime/multipart"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

// parseID extracts a route parameter as a positive uint.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		return 0, models.NewNotFoundError("Post", c.Params(param))
	}
	return uint(id), nil
}

// viewerID is the session user's id, zero for guests.
func viewerID(c *fiber.Ctx) uint {
	if su, ok := middleware.CurrentUser(c); ok {
		return su.ID
	}
	return 0
}

// imageFromForm reads the optional "image" file. No file, or a file with an empty
// name, yields nil. Reads are capped one byte past limit so oversize uploads are detected.
func imageFromForm(c *fiber.Ctx, limit int64) (*service.ImageUpload, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		if errors.Is(err, fasthttp.ErrMissingFile) || errors.Is(err, fasthttp.ErrNoMultipartForm) {
			return nil, nil
		}
		return nil, models.NewValidationError("Invalid upload")
	}
	if fh.Filename == "" {
		return nil, nil
	}
	data, err := readUpload(fh, limit)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &service.ImageUpload{Filename: fh.Filename, Data: data, OwnerID: viewerID(c)}, nil
}

func readUpload(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, limit+1))
}

func (s *Server) uploadLimit() int64 {
	mb := s.config.UploadMaxSizeMB
	if mb <= 0 {
		mb = 10
	}
	return int64(mb) * 1024 * 1024
}
