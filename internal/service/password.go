package service

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

const (
	HashSchemePBKDF2 = "pbkdf2"
	HashSchemeBcrypt = "bcrypt"

	DefaultPBKDF2Iterations = 600000
	// bcryptMaxPasswordBytes is the longest input bcrypt.GenerateFromPassword accepts.
	bcryptMaxPasswordBytes = 72
	saltLength             = 16
	saltChars              = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// PasswordHasher produces and checks salted password hashes.
// New hashes use the werkzeug format "pbkdf2:sha256:<iterations>$<salt>$<hex>" or bcrypt.
// Verification also accepts werkzeug scrypt hashes so accounts created by other tools keep working.
type PasswordHasher struct {
	scheme     string
	iterations int
}

func NewPasswordHasher(scheme string, iterations int) *PasswordHasher {
	if scheme == "" {
		scheme = HashSchemePBKDF2
	}
	if iterations <= 0 {
		iterations = DefaultPBKDF2Iterations
	}
	return &PasswordHasher{scheme: scheme, iterations: iterations}
}

// CheckLength reports passwords the configured scheme cannot hash.
func (h *PasswordHasher) CheckLength(password string) error {
	if h.scheme == HashSchemeBcrypt && len(password) > bcryptMaxPasswordBytes {
		return fmt.Errorf("Password must not exceed %d bytes", bcryptMaxPasswordBytes)
	}
	return nil
}

func (h *PasswordHasher) Hash(password string) (string, error) {
	if h.scheme == HashSchemeBcrypt {
		b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	salt, err := randomSalt(saltLength)
	if err != nil {
		return "", err
	}
	key := pbkdf2.Key([]byte(password), []byte(salt), h.iterations, sha256.Size, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:%d$%s$%s", h.iterations, salt, hex.EncodeToString(key)), nil
}

// Verify reports whether password matches encoded. Unknown formats never match.
func (h *PasswordHasher) Verify(encoded, password string) bool {
	if strings.HasPrefix(encoded, "$2a$") || strings.HasPrefix(encoded, "$2b$") || strings.HasPrefix(encoded, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(encoded), []byte(password)) == nil
	}

	method, salt, want, ok := splitWerkzeugHash(encoded)
	if !ok {
		return false
	}
	got, ok := deriveWerkzeug(method, salt, password)
	if !ok {
		return false
	}
	return hmac.Equal([]byte(got), []byte(want))
}

func splitWerkzeugHash(encoded string) (method, salt, digest string, ok bool) {
	parts := strings.SplitN(encoded, "$", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func deriveWerkzeug(method, salt, password string) (string, bool) {
	fields := strings.Split(method, ":")
	switch fields[0] {
	case "pbkdf2":
		if len(fields) < 2 {
			return "", false
		}
		var newHash func() hash.Hash
		var size int
		switch fields[1] {
		case "sha256":
			newHash, size = sha256.New, sha256.Size
		case "sha512":
			newHash, size = sha512.New, sha512.Size
		default:
			return "", false
		}
		iterations := DefaultPBKDF2Iterations
		if len(fields) > 2 {
			n, err := strconv.Atoi(fields[2])
			if err != nil || n <= 0 {
				return "", false
			}
			iterations = n
		}
		return hex.EncodeToString(pbkdf2.Key([]byte(password), []byte(salt), iterations, size, newHash)), true
	case "scrypt":
		n, r, p := 1<<15, 8, 1
		if len(fields) == 4 {
			var err error
			if n, err = strconv.Atoi(fields[1]); err != nil {
				return "", false
			}
			if r, err = strconv.Atoi(fields[2]); err != nil {
				return "", false
			}
			if p, err = strconv.Atoi(fields[3]); err != nil {
				return "", false
			}
		}
		key, err := scrypt.Key([]byte(password), []byte(salt), n, r, p, 64)
		if err != nil {
			return "", false
		}
		return hex.EncodeToString(key), true
	default:
		return "", false
	}
}

func randomSalt(n int) (string, error) {
	var sb strings.Builder
	limit := big.NewInt(int64(len(saltChars)))
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		sb.WriteByte(saltChars[idx.Int64()])
	}
	return sb.String(), nil
}
