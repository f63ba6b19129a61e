package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 72*time.Hour, cfg.Dossier.TTL)
	assert.Equal(t, 3, cfg.Matching.Limit)
	assert.InDelta(t, 1.5, cfg.Matching.TherapistPreference, 1e-9)
	assert.InDelta(t, 0.75, cfg.Matching.TherapistElevatedRisk, 1e-9)
	assert.InDelta(t, 1.0, cfg.Geocoder.RequestsPerSecond, 1e-9)
}

func TestLoadEnvOverrides(t *testing.T) {
	chdirTemp(t)
	t.Setenv("MATCHING_LIMIT", "5")
	t.Setenv("DOSSIER_TTL", "24h")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Matching.Limit)
	assert.Equal(t, 24*time.Hour, cfg.Dossier.TTL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestParseDurationFallback(t *testing.T) {
	assert.Equal(t, time.Minute, parseDuration("nope", time.Minute))
	assert.Equal(t, time.Minute, parseDuration("", time.Minute))
	assert.Equal(t, 2*time.Second, parseDuration("2s", time.Minute))
}

func chdirTemp(t *testing.T) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
