package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"

	"inkwell/internal/middleware"
	"inkwell/internal/models"
	"inkwell/internal/observability"
	"inkwell/internal/storage"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
)

// AllowedExtensions is the image upload allow-list.
var AllowedExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"gif":  {},
}

const (
	maxImageNameLength = 100
	// storeAttempts bounds retries when a generated key is already taken.
	storeAttempts = 4
	// ThumbnailDir is the key prefix for generated thumbnails.
	ThumbnailDir = "thumbs"
)

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// AllowedFile reports whether filename has an extension (text after the last dot,
// case-insensitive) in the allow-list.
func AllowedFile(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[strings.ToLower(filename[i+1:])]
	return ok
}

// SecureFilename reduces a client supplied name to a safe ASCII basename: compatibility
// decomposition, non-ASCII dropped, path separators and whitespace runs become "_",
// anything outside [A-Za-z0-9_.-] removed, leading and trailing "." and "_" trimmed.
// The result may be empty.
func SecureFilename(filename string) string {
	decomposed := norm.NFKD.String(filename)

	var ascii strings.Builder
	for _, r := range decomposed {
		if r < unicode.MaxASCII+1 {
			ascii.WriteRune(r)
		}
	}

	s := strings.ReplaceAll(ascii.String(), "/", " ")
	s = strings.Join(strings.Fields(s), "_")
	s = unsafeFilenameChars.ReplaceAllString(s, "")
	return strings.Trim(s, "._")
}

// ImageUpload is an image file submitted with a post form.
// OwnerID is the uploading user, zero when unknown.
type ImageUpload struct {
	Filename string
	Data     []byte
	OwnerID  uint
}

// Present reports whether the form carried a file. An empty filename means no image was chosen.
func (u *ImageUpload) Present() bool {
	return u != nil && u.Filename != ""
}

// StoredImage is the result of a successful upload.
type StoredImage struct {
	Name      string
	Thumbnail string
}

// UploadService validates and stores post images.
type UploadService struct {
	store      storage.BlobStore
	maxBytes   int64
	now        func() time.Time
	thumbnails func(userID uint) bool
}

func NewUploadService(store storage.BlobStore, maxUploadSizeMB int) *UploadService {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = 10
	}
	return &UploadService{
		store:      store,
		maxBytes:   int64(maxUploadSizeMB) * 1024 * 1024,
		now:        time.Now,
		thumbnails: func(uint) bool { return true },
	}
}

// SetThumbnailGate decides per uploader whether a WebP thumbnail is generated.
// A nil gate turns thumbnails off.
func (s *UploadService) SetThumbnailGate(gate func(userID uint) bool) {
	if gate == nil {
		gate = func(uint) bool { return false }
	}
	s.thumbnails = gate
}

// Store validates the upload and writes it as "<unix seconds>_<secure name>". When that key
// is taken, a random segment is inserted after the timestamp: "<unix seconds>_<8 hex>_<secure name>".
// A thumbnail is generated when the image decodes; failing to make one is not an error.
func (s *UploadService) Store(ctx context.Context, up *ImageUpload) (*StoredImage, error) {
	if !AllowedFile(up.Filename) {
		observability.Uploads.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError("Invalid image file type.")
	}
	if int64(len(up.Data)) > s.maxBytes {
		observability.Uploads.WithLabelValues("rejected").Inc()
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxBytes/(1024*1024)))
	}

	name, err := s.create(ctx, up)
	if err != nil {
		observability.Uploads.WithLabelValues("failed").Inc()
		return nil, models.NewInternalError(err)
	}
	observability.Uploads.WithLabelValues("stored").Inc()

	stored := &StoredImage{Name: name}
	if !s.thumbnails(up.OwnerID) {
		return stored, nil
	}
	thumb, err := MakeThumbnail(up.Data)
	if err != nil {
		middleware.Logger.DebugContext(ctx, "no thumbnail for upload",
			slog.String("name", name), slog.String("error", err.Error()))
		return stored, nil
	}
	thumbKey := ThumbnailKey(name)
	if err := s.store.Put(ctx, thumbKey, "image/webp", thumb); err != nil {
		middleware.Logger.WarnContext(ctx, "failed to store thumbnail",
			slog.String("name", name), slog.String("error", err.Error()))
		return stored, nil
	}
	stored.Thumbnail = thumbKey
	return stored, nil
}

// Discard removes a stored image and its thumbnail. Used when the post write fails after upload.
func (s *UploadService) Discard(ctx context.Context, img *StoredImage) {
	if img == nil {
		return
	}
	for _, key := range []string{img.Name, img.Thumbnail} {
		if key == "" {
			continue
		}
		if err := s.store.Remove(ctx, key); err != nil {
			middleware.Logger.WarnContext(ctx, "failed to discard upload",
				slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}

// create writes the blob under a key no other upload holds.
func (s *UploadService) create(ctx context.Context, up *ImageUpload) (string, error) {
	contentType := http.DetectContentType(up.Data)
	tag := ""
	for attempt := 0; attempt < storeAttempts; attempt++ {
		name := s.storedName(up.Filename, tag)
		err := s.store.Create(ctx, name, contentType, up.Data)
		if err == nil {
			return name, nil
		}
		if !errors.Is(err, storage.ErrExists) {
			return "", err
		}
		middleware.Logger.DebugContext(ctx, "upload key taken, retrying", slog.String("name", name))
		tag = uuid.NewString()[:8]
	}
	return "", fmt.Errorf("no free key for %q after %d attempts", up.Filename, storeAttempts)
}

func (s *UploadService) storedName(original, tag string) string {
	prefix := fmt.Sprintf("%d_", s.now().Unix())
	if tag != "" {
		prefix += tag + "_"
	}
	secure := SecureFilename(original)
	if secure == "" {
		secure = "upload"
	}
	if !AllowedFile(secure) {
		// Sanitising can drop the dot, e.g. "漢字.png" becomes "png".
		secure = secure + "." + strings.ToLower(original[strings.LastIndex(original, ".")+1:])
	}

	if room := maxImageNameLength - len(prefix); len(secure) > room {
		ext := path.Ext(secure)
		secure = secure[:room-len(ext)] + ext
	}
	return prefix + secure
}

// ThumbnailKey maps an image name to the key of its WebP thumbnail.
func ThumbnailKey(name string) string {
	return path.Join(ThumbnailDir, strings.TrimSuffix(name, path.Ext(name))+".webp")
}
