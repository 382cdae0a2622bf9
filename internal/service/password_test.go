package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordHasher_PBKDF2RoundTrip(t *testing.T) {
	h := NewPasswordHasher(HashSchemePBKDF2, 1000)

	encoded, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "pbkdf2:sha256:1000$"))
	assert.NotContains(t, encoded, "hunter2")

	parts := strings.Split(encoded, "$")
	require.Len(t, parts, 3)
	assert.Len(t, parts[1], saltLength)
	assert.Len(t, parts[2], 64)

	assert.True(t, h.Verify(encoded, "hunter2"))
	assert.False(t, h.Verify(encoded, "hunter3"))

	again, err := h.Hash("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, encoded, again, "salts must differ")
}

func TestPasswordHasher_VerifiesWerkzeugHashes(t *testing.T) {
	h := NewPasswordHasher(HashSchemePBKDF2, 0)

	tests := []struct {
		name    string
		encoded string
	}{
		{"pbkdf2 sha256", "pbkdf2:sha256:1000$Zx81abcdEFGH1234$37f9d45872ce7a818c7e176815a469984f95a242772dcfd0bea405964e054a76"},
		{"pbkdf2 sha512", "pbkdf2:sha512:1000$Zx81abcdEFGH1234$3cd4caac7dcecb90d9053724a784e48e38f4e6a8804d4f571cf443b6db33f89b9bd164f5a825c8de84f2241edc4f46feff5b684b51f698eb5454445c73fc5bcf"},
		{"scrypt", "scrypt:1024:8:1$Zx81abcdEFGH1234$1734a74df3e3d099317a2a678d099b894b7d75c4648526251a8ca6d080c02f291ca46ea4feeac263e5f91182b2cb495c56c19dc2abc3ec96730ac5dc9e698cf7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, h.Verify(tt.encoded, "hunter2"))
			assert.False(t, h.Verify(tt.encoded, "Hunter2"))
		})
	}
}

func TestPasswordHasher_Bcrypt(t *testing.T) {
	h := NewPasswordHasher(HashSchemeBcrypt, 0)
	encoded, err := h.Hash("s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$2a$"))

	// Any hasher verifies bcrypt hashes.
	assert.True(t, NewPasswordHasher(HashSchemePBKDF2, 1).Verify(encoded, "s3cret"))
	assert.False(t, h.Verify(encoded, "nope"))
}

func TestPasswordHasher_CheckLength(t *testing.T) {
	long := strings.Repeat("x", 73)
	assert.Error(t, NewPasswordHasher(HashSchemeBcrypt, 0).CheckLength(long))
	assert.NoError(t, NewPasswordHasher(HashSchemeBcrypt, 0).CheckLength(long[:72]))
	assert.NoError(t, NewPasswordHasher(HashSchemePBKDF2, 1000).CheckLength(long))
}

func TestPasswordHasher_RejectsMalformed(t *testing.T) {
	h := NewPasswordHasher("", 0)
	for _, encoded := range []string{
		"",
		"plaintext",
		"md5$salt$abc",
		"pbkdf2:sha1:1000$salt$abc",
		"pbkdf2:sha256:notanumber$salt$abc",
		"pbkdf2$salt$abc",
		"scrypt:x:8:1$salt$abc",
	} {
		assert.False(t, h.Verify(encoded, "pw"), encoded)
	}
}
