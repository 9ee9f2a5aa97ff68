package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configKeys = []string{
	"CONFIG_FILE", "ENVIRONMENT", "PORT", "PUBLIC_URL", "ALLOWED_ORIGINS", "JWT_SECRET",
	"ADMIN_PASSPHRASE", "DATABASE_URL", "UPLOAD_DIR", "S3_BUCKET_NAME", "S3_ENDPOINT",
	"S3_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME",
	"SMTP_PASSWORD", "SMTP_FROM",
}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		if old, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { os.Setenv(key, old) })
		}
	}
}

func TestLoadConfigDevelopmentDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, 8989, cfg.Port)
	assert.Equal(t, "http://localhost:8989", cfg.PublicURL)
	assert.Equal(t, developmentJWTSecret, cfg.JWTSecret)
	assert.Empty(t, cfg.AdminPassphrase)
	assert.NotEmpty(t, cfg.DatabaseDSN)
	assert.Equal(t, "./uploads", cfg.UploadDir)
	assert.False(t, cfg.UseS3())
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.Equal(t, []string{}, cfg.AllowedOrigins)
}

func TestLoadConfigProductionRequiresSecrets(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENVIRONMENT", "production")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "JWT_SECRET")

	t.Setenv("JWT_SECRET", "s3cret")
	_, err = LoadConfig()
	require.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("DATABASE_URL", "postgres://db/relaychat")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	clearEnv(t)

	t.Setenv("PORT", "80")
	_, err := LoadConfig()
	assert.Error(t, err)

	t.Setenv("PORT", "abc")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigPartialS3(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET_NAME", "uploads")
	t.Setenv("S3_ENDPOINT", "https://s3.example.com")

	_, err := LoadConfig()
	require.ErrorContains(t, err, "S3_ACCESS_KEY_ID")
}

func TestLoadConfigFileWithEnvOverride(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "relaychat.toml")
	content := `
port = 9100
admin_passphrase = "from-file"
allowed_origins = ["https://chat.example.com"]
smtp_host = "smtp.example.com"
smtp_username = "bot@example.com"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ADMIN_PASSPHRASE", "from-env")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, "from-env", cfg.AdminPassphrase)
	assert.Equal(t, []string{"https://chat.example.com"}, cfg.AllowedOrigins)
	assert.Equal(t, "smtp.example.com", cfg.SMTPHost)
	assert.Equal(t, "bot@example.com", cfg.SMTPFrom)
}

func TestLoadConfigOriginsFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("ALLOWED_ORIGINS", " https://a.example.com , ,https://b.example.com")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.AllowedOrigins)
}
