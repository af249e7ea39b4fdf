package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	ctx := context.Background()

	t.Run("LoadDefaults", func(t *testing.T) {
		cfg, err := Load(ctx)
		require.NoError(t, err)
		require.NotNil(t, cfg)

		assert.Equal(t, "localhost", cfg.Server.Host)
		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
		assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
		assert.Equal(t, 120*time.Second, cfg.Server.IdleTimeout)
		assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)

		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "json", cfg.Logging.Format)

		assert.True(t, cfg.Metrics.Enabled)

		assert.Equal(t, time.Hour, cfg.Jobs.Timeout)
		assert.Equal(t, 5*time.Second, cfg.Jobs.CancelGrace)
		assert.Equal(t, "results", cfg.Jobs.OutputRoot)
		assert.Equal(t, 200, cfg.Jobs.LogTail)

		assert.Equal(t, "scripts", cfg.Procedures.ScriptsDir)
		assert.Equal(t, "python3", cfg.Procedures.Python)
	})

	t.Run("RuntimeOverrides", func(t *testing.T) {
		overrides := map[string]any{
			"server": map[string]any{
				"port": 9000,
				"host": "0.0.0.0",
			},
			"logging": map[string]any{
				"level": "debug",
			},
		}

		cfg, err := Load(ctx, overrides)
		require.NoError(t, err)

		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 9000, cfg.Server.Port)
		assert.Equal(t, "debug", cfg.Logging.Level)

		// Non-overridden values keep defaults
		assert.Equal(t, "json", cfg.Logging.Format)
		assert.Equal(t, time.Hour, cfg.Jobs.Timeout)
	})

	t.Run("EnvOverrides", func(t *testing.T) {
		t.Setenv("RFD2MCP_SERVER_PORT", "3000")
		t.Setenv("RFD2MCP_LOGGING_LEVEL", "warn")
		t.Setenv("RFD2MCP_JOBS_TIMEOUT", "30m")

		cfg, err := Load(ctx)
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Server.Port)
		assert.Equal(t, "warn", cfg.Logging.Level)
		assert.Equal(t, 30*time.Minute, cfg.Jobs.Timeout)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		_, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 99999},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.port")

		_, err = Load(ctx, map[string]any{
			"jobs": map[string]any{"timeout": "0s"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "jobs.timeout")
	})

	t.Run("GetConfigReturnsLastLoaded", func(t *testing.T) {
		cfg, err := Load(ctx, map[string]any{
			"server": map[string]any{"port": 8125},
		})
		require.NoError(t, err)

		got := GetConfig()
		require.NotNil(t, got)
		assert.Equal(t, cfg.Server.Port, got.Server.Port)
	})
}
