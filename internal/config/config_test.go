package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                      "development",
		Port:                     "5000",
		SecretKey:                "secure-secret-at-least-32-chars-long",
		DBDriver:                 "postgres",
		DBPassword:               "secure-password",
		DBSSLMode:                "require",
		BlobBackend:              "local",
		PasswordHashScheme:       "pbkdf2",
		UploadMaxSizeMB:          10,
		DBConnMaxLifetimeMinutes: 1,
	}
}

func TestConfig_ValidateSSLMode(t *testing.T) {
	tests := []struct {
		name        string
		env         string
		sslMode     string
		expectError bool
	}{
		{"Production with empty SSL mode", "production", "", true},
		{"Production with disable SSL mode", "production", "disable", true},
		{"Production with require SSL mode", "production", "require", false},
		{"Prod with verify-full SSL mode", "prod", "verify-full", false},
		{"Development with disable SSL mode", "development", "disable", false},
		{"Test with empty SSL mode", "test", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			c.Env = tt.env
			c.DBSSLMode = tt.sslMode

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateRejectsUnknownBackends(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"db driver", func(c *Config) { c.DBDriver = "mysql" }},
		{"blob backend", func(c *Config) { c.BlobBackend = "gcs" }},
		{"hash scheme", func(c *Config) { c.PasswordHashScheme = "md5" }},
		{"s3 without bucket", func(c *Config) { c.BlobBackend = "s3"; c.S3Endpoint = "minio:9000"; c.S3Bucket = "" }},
		{"missing secret", func(c *Config) { c.SecretKey = "" }},
		{"missing port", func(c *Config) { c.Port = "" }},
		{"zero upload size", func(c *Config) { c.UploadMaxSizeMB = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestConfig_ProductionRequiresNonDefaultSecret(t *testing.T) {
	c := validConfig()
	c.Env = "production"
	c.SecretKey = defaultSecretKey
	assert.Error(t, c.Validate())

	c.SecretKey = "short"
	assert.Error(t, c.Validate())
}

func TestConfig_SessionTTL(t *testing.T) {
	c := &Config{}
	assert.Equal(t, 24*time.Hour, c.SessionTTL())

	c.SessionTTLMinutes = 30
	assert.Equal(t, 30*time.Minute, c.SessionTTL())
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "test")
	t.Setenv("DB_DRIVER", "  SQLite ")
	t.Setenv("DB_SSLMODE", "  DISABLE  ")
	t.Setenv("UPLOAD_DIR", "/tmp/inkwell-test-uploads")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "test", c.Env)
	assert.Equal(t, "sqlite", c.DBDriver)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "/tmp/inkwell-test-uploads", c.UploadDir)
	assert.Equal(t, "pbkdf2", c.PasswordHashScheme)
	assert.False(t, c.EnforcePostOwnership)
}

func TestLoadConfig_MissingProfileFails(t *testing.T) {
	defer viper.Reset()
	t.Setenv("APP_ENV", "staging-does-not-exist")

	_, err := LoadConfig()
	assert.Error(t, err)
}
