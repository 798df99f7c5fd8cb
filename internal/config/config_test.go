package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EnvSelectsDatabase(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DATABASE_URL_PROD", "postgres://prod")
	t.Setenv("DATABASE_URL_DEV", "postgres://dev")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("INVITE_SECURE_TOKENS", "true")
	t.Setenv("APP_BASE_URL", "https://portal.example.de/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "postgres://prod", cfg.DatabaseURL)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
	assert.True(t, cfg.InviteSecureTokens)
	assert.Equal(t, "https://portal.example.de", cfg.AppBaseURL)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("APP_BASE_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "https://app.objektbetreuer.de", cfg.AppBaseURL)
	assert.Equal(t, 5*time.Minute, cfg.ProfileCacheTTL)
}
