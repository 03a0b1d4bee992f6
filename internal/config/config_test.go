package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/bookedin?sslmode=disable")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.RefreshInterval)
	assert.False(t, cfg.UseMockDB)
}

func TestLoadFromEnvRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnvMockDBSkipsDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("USE_MOCK_DB", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.True(t, cfg.UseMockDB)
	assert.Empty(t, cfg.DatabaseURL)
}

func TestLoadFromEnvParsesRefreshInterval(t *testing.T) {
	t.Setenv("USE_MOCK_DB", "true")
	t.Setenv("REFRESH_INTERVAL", "5s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, cfg.RefreshInterval)
}

func TestLoadFromEnvRejectsBadRefreshInterval(t *testing.T) {
	t.Setenv("USE_MOCK_DB", "true")

	t.Setenv("REFRESH_INTERVAL", "soon")
	_, err := LoadFromEnv()
	require.Error(t, err)

	t.Setenv("REFRESH_INTERVAL", "-1s")
	_, err = LoadFromEnv()
	require.Error(t, err)
}
