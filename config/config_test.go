package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("SERVER_PORT", "8181")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://desk.example.com,")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("MESSAGE_RATE_PER_SECOND", "2.5")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CSRF_MODE", "token")
	t.Setenv("JWT_ACCESS_EXPIRY_MINUTES", "15")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8181", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000", "https://desk.example.com"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Cookie.Secure)
	assert.Equal(t, "token", cfg.Cookie.CSRFMode)
	assert.Equal(t, 15, cfg.JWT.AccessTokenExpiry)
	assert.Equal(t, 2.5, cfg.RateLimit.MessagesPerSecond)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	t.Setenv("SERVER_PORT", "ninety")
	_, err := Load()
	assert.ErrorContains(t, err, "SERVER_PORT")

	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CSRF_MODE", "maybe")
	_, err = Load()
	assert.ErrorContains(t, err, "CSRF_MODE")
}

func TestLoadClient(t *testing.T) {
	t.Setenv("HATCHDESK_API_URL", "http://desk.internal:9090")
	t.Setenv("HATCHDESK_LANGUAGE", "")
	t.Setenv("LANG", "tr_TR.UTF-8")
	t.Setenv("HATCHDESK_PER_PAGE", "50")

	cfg, err := LoadClient()
	require.NoError(t, err)
	assert.Equal(t, "http://desk.internal:9090", cfg.APIURL)
	assert.Equal(t, "tr_TR.UTF-8", cfg.Language)
	assert.Equal(t, 50, cfg.PerPage)

	t.Setenv("HATCHDESK_PER_PAGE", "500")
	_, err = LoadClient()
	assert.Error(t, err)
}
