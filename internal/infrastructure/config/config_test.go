package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearWaslaEnv blanks every env var these tests touch so ambient
// shell configuration cannot leak into a subtest. viper treats an
// empty value as unset.
func clearWaslaEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"WASLA_APP_NAME", "WASLA_APP_ENV", "WASLA_APP_PORT",
		"WASLA_DATABASE_HOST", "WASLA_DATABASE_PORT", "WASLA_DATABASE_USER",
		"WASLA_DATABASE_PASSWORD", "WASLA_DATABASE_DBNAME", "WASLA_DATABASE_SSLMODE",
		"WASLA_DATABASE_MAX_OPEN_CONNS", "WASLA_DATABASE_MAX_IDLE_CONNS",
		"WASLA_NOTIFICATION_MAX_ATTEMPTS", "WASLA_SYNC_WORKERS",
		"WASLA_GREENAPI_WEBHOOK_TOKEN", "WASLA_STORAGE_ENABLED",
		"WASLA_STORAGE_ACCESS_KEY", "WASLA_STORAGE_SECRET_KEY",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearWaslaEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wasla-backend", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Env)
	assert.Equal(t, "8080", cfg.App.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "wasla", cfg.Database.DBName)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Empty(t, cfg.Database.Password)
}

func TestLoadEnvOverrides(t *testing.T) {
	clearWaslaEnv(t)
	t.Setenv("WASLA_APP_NAME", "wasla-staging")
	t.Setenv("WASLA_APP_PORT", "9000")
	t.Setenv("WASLA_DATABASE_HOST", "db.staging.internal")
	t.Setenv("WASLA_DATABASE_PORT", "5433")
	t.Setenv("WASLA_DATABASE_PASSWORD", "s3cret")
	t.Setenv("WASLA_DATABASE_SSLMODE", "require")
	t.Setenv("WASLA_DATABASE_MAX_OPEN_CONNS", "50")
	t.Setenv("WASLA_SYNC_WORKERS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "wasla-staging", cfg.App.Name)
	assert.Equal(t, "9000", cfg.App.Port)
	assert.Equal(t, "db.staging.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "s3cret", cfg.Database.Password)
	assert.Equal(t, "require", cfg.Database.SSLMode)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.Equal(t, 8, cfg.Sync.Workers)
}

func TestLoadZeroTreatedAsUnset(t *testing.T) {
	clearWaslaEnv(t)
	t.Setenv("WASLA_DATABASE_MAX_OPEN_CONNS", "0")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
}

func TestLoadRejectsIdleAboveOpen(t *testing.T) {
	clearWaslaEnv(t)
	t.Setenv("WASLA_DATABASE_MAX_OPEN_CONNS", "10")
	t.Setenv("WASLA_DATABASE_MAX_IDLE_CONNS", "20")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_idle_conns")
	assert.Contains(t, err.Error(), "cannot exceed")
}

func TestNotificationDefaults(t *testing.T) {
	var n NotificationConfig
	n.applyDefaults()

	assert.Equal(t, 3, n.MaxAttempts)
	assert.Equal(t, 30*time.Second, n.BackoffBase)
	assert.Equal(t, 10*time.Minute, n.BackoffCap)
	assert.Zero(t, n.QuotaPerMonth, "quota stays disabled unless configured")
}

func TestSyncDefaults(t *testing.T) {
	var s SyncConfig
	s.applyDefaults()

	assert.Equal(t, 15*time.Minute, s.Interval)
	assert.Equal(t, 4, s.Workers)
	assert.Equal(t, 64, s.QueueSize)
	assert.Equal(t, 30*24*time.Hour, s.LookbackWindow)
	assert.False(t, s.Enabled, "scheduler is opt-in")
}

func TestWebhookDefaults(t *testing.T) {
	var w WebhookConfig
	w.applyDefaults()

	assert.Equal(t, int64(1<<20), w.MaxPayloadBytes)
	assert.Equal(t, time.Minute, w.ReplaySweepInterval)
	assert.Equal(t, 50, w.ReplaySweepBatchSize)
}

func TestTelemetryDefaults(t *testing.T) {
	var tc TelemetryConfig
	tc.applyDefaults()

	assert.Equal(t, "localhost:4317", tc.CollectorEndpoint)
	assert.Equal(t, 1.0, tc.SamplingRatio)
	assert.Equal(t, "wasla-backend", tc.ServiceName)
	assert.Equal(t, 200*time.Millisecond, tc.DBSlowQueryThresh)
	assert.False(t, tc.DBLogFullSQL)
}

func TestHTTPDefaultsLeaveCORSOriginsEmpty(t *testing.T) {
	var h HTTPConfig
	h.applyDefaults()

	assert.Empty(t, h.CORSAllowOrigins)
	assert.NotEmpty(t, h.CORSAllowMethods)
	assert.Contains(t, h.CORSAllowHeaders, "X-Merchant-ID")
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		return cfg
	}

	t.Run("defaults pass", func(t *testing.T) {
		assert.NoError(t, base().validate())
	})

	t.Run("backoff base above cap", func(t *testing.T) {
		cfg := base()
		cfg.Notification.BackoffBase = time.Hour
		cfg.Notification.BackoffCap = time.Minute

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "backoff_base")
	})

	t.Run("sampling ratio out of range", func(t *testing.T) {
		cfg := base()
		cfg.Telemetry.SamplingRatio = 1.5

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})

	t.Run("storage enabled without credentials", func(t *testing.T) {
		cfg := base()
		cfg.Storage.Enabled = true

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "storage.access_key")
	})
}

func TestValidateProduction(t *testing.T) {
	prod := func() *Config {
		cfg := &Config{}
		cfg.applyDefaults()
		cfg.App.Env = "production"
		cfg.Database.Password = "s3cret"
		cfg.Database.SSLMode = "require"
		cfg.GreenAPI.WebhookToken = "shared-token"
		return cfg
	}

	t.Run("hardened config passes", func(t *testing.T) {
		assert.NoError(t, prod().validate())
	})

	t.Run("requires database password", func(t *testing.T) {
		cfg := prod()
		cfg.Database.Password = ""

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("rejects sslmode disable", func(t *testing.T) {
		cfg := prod()
		cfg.Database.SSLMode = "disable"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sslmode")
	})

	t.Run("rejects wildcard CORS origin", func(t *testing.T) {
		cfg := prod()
		cfg.HTTP.CORSAllowOrigins = []string{"https://app.wasla.sa", "*"}

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cors_allow_origins")
	})

	t.Run("requires webhook token", func(t *testing.T) {
		cfg := prod()
		cfg.GreenAPI.WebhookToken = ""

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "greenapi.webhook_token")
	})

	t.Run("rejects full SQL logging", func(t *testing.T) {
		cfg := prod()
		cfg.Telemetry.DBLogFullSQL = true

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestDatabaseConfigDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "db.wasla.internal",
		Port:     5432,
		User:     "wasla",
		Password: "pass@word#123",
		DBName:   "wasla",
		SSLMode:  "require",
	}

	dsn := cfg.DSN()
	assert.Contains(t, dsn, "db.wasla.internal:5432")
	assert.Contains(t, dsn, "sslmode=require")
	// Password must be URL-escaped so the DSN stays parseable.
	assert.Contains(t, dsn, "pass%40word%23123")
	assert.NotContains(t, dsn, "pass@word")
}

func TestRedisConfigAddr(t *testing.T) {
	cfg := RedisConfig{Host: "cache.wasla.internal", Port: 6380}
	assert.Equal(t, "cache.wasla.internal:6380", cfg.Addr())
}
