package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Setenv("FLEETDASH_DATABASE_URL", "file::memory:")
	t.Setenv("FLEETDASH_DATABASE_DRIVER", "sqlite")
	t.Setenv("FLEETDASH_MEDIA_SIGNING_KEY", "secret")
	t.Setenv("FLEETDASH_MATRACK_CLIENT_ID", "client")
	t.Setenv("FLEETDASH_MATRACK_CLIENT_SECRET", "shh")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Dashboard.PollInterval)
	assert.Equal(t, time.Minute, cfg.Ingest.RealtimeInterval)
	assert.Equal(t, 24*time.Hour, cfg.Ingest.HistoricalInterval)
	assert.Equal(t, "https://api.matrack.live/v1", cfg.Matrack.BaseURL)
	assert.Equal(t, 15*time.Minute, cfg.Media.URLTTL)
	assert.Equal(t, "http://127.0.0.1:8080", cfg.Dashboard.APIBaseURL)
	assert.Equal(t, 10*time.Second, cfg.API.CacheTTL)
	assert.Equal(t, 60, cfg.API.SignedURLRateLimit)
	assert.Equal(t, []string{"127.0.0.1/32", "::1/128"}, cfg.Server.TrustedProxies)
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FLEETDASH_SERVER_PORT", "9999")
	t.Setenv("FLEETDASH_DASHBOARD_POLL_INTERVAL", "5s")
	t.Setenv("FLEETDASH_DASHBOARD_API_BASE_URL", "http://api.internal")
	t.Setenv("FLEETDASH_SERVER_TRUSTED_PROXIES", "10.0.0.0/8,127.0.0.1/32")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Dashboard.PollInterval)
	assert.Equal(t, "http://api.internal", cfg.Dashboard.APIBaseURL)
	assert.Equal(t, []string{"10.0.0.0/8", "127.0.0.1/32"}, cfg.Server.TrustedProxies)
}

func TestLoad_Validation(t *testing.T) {
	t.Run("missing database url", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FLEETDASH_DATABASE_URL", "")

		_, err := Load()
		assert.ErrorContains(t, err, "database.url")
	})

	t.Run("missing signing key", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FLEETDASH_MEDIA_SIGNING_KEY", "")

		_, err := Load()
		assert.ErrorContains(t, err, "media.signing_key")
	})

	t.Run("ingest disabled does not need matrack credentials", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FLEETDASH_INGEST_ENABLED", "false")
		t.Setenv("FLEETDASH_MATRACK_CLIENT_ID", "")

		_, err := Load()
		assert.NoError(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FLEETDASH_DATABASE_DRIVER", "mysql")

		_, err := Load()
		assert.ErrorContains(t, err, "database.driver")
	})

	for env, key := range map[string]string{
		"FLEETDASH_INGEST_REALTIME_INTERVAL":   "ingest.realtime_interval",
		"FLEETDASH_INGEST_HISTORICAL_INTERVAL": "ingest.historical_interval",
		"FLEETDASH_INGEST_LOCK_TTL":            "ingest.lock_ttl",
	} {
		t.Run("zero "+key, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(env, "0s")

			_, err := Load()
			assert.ErrorContains(t, err, key)
		})
	}

	t.Run("negative lock ttl", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("FLEETDASH_INGEST_LOCK_TTL", "-1m")

		_, err := Load()
		assert.ErrorContains(t, err, "ingest.lock_ttl")
	})
}
