package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "/ws", cfg.Server.WebSocketPath)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "deathcards", cfg.Redis.ChannelPrefix)
	assert.Equal(t, 8, cfg.Engine.MaxChainDepth)
	assert.Equal(t, 1024, cfg.Engine.NotificationQueue)
}

func TestLoadFileAndEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  address: ":9000"
  shutdown_timeout: 3s
database:
  driver: postgres
  url: postgres://localhost/deathcards
logging:
  level: debug
  format: console
engine:
  max_chain_depth: 4
`), 0o600))

	t.Setenv("DEATHCARDS_DATABASE_MAX_CONNS", "25")
	t.Setenv("DEATHCARDS_REDIS_ENABLED", "true")
	t.Setenv("DEATHCARDS_LOGGING_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Server.Address)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, int32(25), cfg.Database.MaxConns)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, 4, cfg.Engine.MaxChainDepth)
}

func TestLoadMissingFileFallsBack(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Database.Driver)
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Database: DatabaseConfig{Driver: "memory"},
			Engine:   EngineConfig{MaxChainDepth: 8},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }, false},
		{"unknown driver", func(c *Config) { c.Database.Driver = "sqlite" }, false},
		{"zero depth", func(c *Config) { c.Engine.MaxChainDepth = 0 }, false},
		{"redis without addr", func(c *Config) { c.Redis.Enabled = true }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
