package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/corekit/internal/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	assert.NotNil(t, cfg)

	// App defaults
	assert.Equal(t, "corekit", cfg.App.Name)
	assert.Equal(t, "development", cfg.App.Environment)

	// MongoDB defaults
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "corekit", cfg.MongoDB.Database)
	assert.Equal(t, config.DefaultMongoDBTimeout, cfg.MongoDB.Timeout)
	assert.Equal(t, uint64(config.DefaultMongoDBMaxPoolSize), cfg.MongoDB.MaxPoolSize)

	// Redis defaults
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.Redis.Password)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, config.DefaultRedisPoolSize, cfg.Redis.PoolSize)

	// EventBus defaults
	assert.Equal(t, "events:", cfg.EventBus.RedisChannelPrefix)

	// Outbox defaults
	assert.True(t, cfg.Outbox.Enabled)
	assert.Equal(t, config.DefaultOutboxPollInterval, cfg.Outbox.PollInterval)
	assert.Equal(t, config.DefaultOutboxBatchSize, cfg.Outbox.BatchSize)
	assert.Equal(t, config.DefaultOutboxMaxRetries, cfg.Outbox.MaxRetries)
	assert.Equal(t, config.DefaultOutboxCleanupAge, cfg.Outbox.CleanupAge)
	assert.Equal(t, config.DefaultOutboxCleanupInterval, cfg.Outbox.CleanupInterval)

	// Retry defaults
	assert.Equal(t, config.DefaultRetryMaxRetries, cfg.Retry.MaxRetries)
	assert.Equal(t, config.DefaultRetryBaseDelay, cfg.Retry.BaseDelay)
	assert.Equal(t, config.DefaultRetryMaxDelay, cfg.Retry.MaxDelay)
	assert.InEpsilon(t, config.DefaultRetryMultiplier, cfg.Retry.Multiplier, 0.0001)

	// Log defaults
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestConfig_Validate_Valid(t *testing.T) {
	cfg := config.DefaultConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		errMsg string
	}{
		{
			name: "missing mongodb uri",
			modify: func(c *config.Config) {
				c.MongoDB.URI = ""
			},
			errMsg: "mongodb.uri is required",
		},
		{
			name: "missing mongodb database",
			modify: func(c *config.Config) {
				c.MongoDB.Database = ""
			},
			errMsg: "mongodb.database is required",
		},
		{
			name: "missing redis addr",
			modify: func(c *config.Config) {
				c.Redis.Addr = ""
			},
			errMsg: "redis.addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate_InvalidLogLevel(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Level = "invalid"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestConfig_Validate_InvalidLogFormat(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Log.Format = "xml"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestConfig_Validate_MissingChannelPrefix(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.EventBus.RedisChannelPrefix = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
	assert.Contains(t, err.Error(), "eventbus.redis_channel_prefix is required")
}

func TestConfig_Validate_InvalidEnvironment(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.App.Environment = "staging"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrConfigInvalid)
}

func TestConfig_Validate_OutboxConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		errMsg string
	}{
		{
			name: "zero poll interval",
			modify: func(c *config.Config) {
				c.Outbox.PollInterval = 0
			},
			errMsg: "outbox.poll_interval must be positive",
		},
		{
			name: "negative batch size",
			modify: func(c *config.Config) {
				c.Outbox.BatchSize = -1
			},
			errMsg: "outbox.batch_size must be positive",
		},
		{
			name: "negative max retries",
			modify: func(c *config.Config) {
				c.Outbox.MaxRetries = -1
			},
			errMsg: "outbox.max_retries cannot be negative",
		},
		{
			name: "zero cleanup age",
			modify: func(c *config.Config) {
				c.Outbox.CleanupAge = 0
			},
			errMsg: "outbox.cleanup_age must be positive",
		},
		{
			name: "zero cleanup interval",
			modify: func(c *config.Config) {
				c.Outbox.CleanupInterval = 0
			},
			errMsg: "outbox.cleanup_interval must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate_RetryConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		errMsg string
	}{
		{
			name: "negative max retries",
			modify: func(c *config.Config) {
				c.Retry.MaxRetries = -1
			},
			errMsg: "retry.max_retries cannot be negative",
		},
		{
			name: "zero base delay",
			modify: func(c *config.Config) {
				c.Retry.BaseDelay = 0
			},
			errMsg: "retry.base_delay must be positive",
		},
		{
			name: "max delay below base delay",
			modify: func(c *config.Config) {
				c.Retry.MaxDelay = 500 * time.Millisecond
			},
			errMsg: "retry.max_delay must be at least retry.base_delay",
		},
		{
			name: "multiplier below one",
			modify: func(c *config.Config) {
				c.Retry.Multiplier = 0.5
			},
			errMsg: "retry.multiplier must be at least 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestConfig_Validate_ValidLogLevels(t *testing.T) {
	validLevels := []string{"debug", "info", "warn", "error", "DEBUG", "INFO", "WARN", "ERROR"}

	for _, level := range validLevels {
		t.Run(level, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Log.Level = level
			err := cfg.Validate()
			assert.NoError(t, err)
		})
	}
}

func TestConfig_Environments(t *testing.T) {
	cfg := config.DefaultConfig()
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	cfg.App.Environment = "production"
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}

func TestLoadFromPath_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
app:
  name: "relay"
  environment: "production"

mongodb:
  uri: "mongodb://testhost:27017"
  database: "testdb"
  timeout: 5s
  max_pool_size: 50

redis:
  addr: "redis:6379"
  password: "testpass"
  db: 1
  pool_size: 20

eventbus:
  redis_channel_prefix: "test:"

outbox:
  enabled: true
  poll_interval: 250ms
  batch_size: 10
  max_retries: 7
  cleanup_age: 48h
  cleanup_interval: 30m

retry:
  max_retries: 5
  base_delay: 2s
  max_delay: 30s
  multiplier: 1.5

log:
  level: "debug"
  format: "text"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.LoadFromPath(configPath)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "relay", cfg.App.Name)
	assert.Equal(t, "production", cfg.App.Environment)

	assert.Equal(t, "mongodb://testhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, "testdb", cfg.MongoDB.Database)
	assert.Equal(t, uint64(50), cfg.MongoDB.MaxPoolSize)

	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "testpass", cfg.Redis.Password)
	assert.Equal(t, 1, cfg.Redis.DB)
	assert.Equal(t, 20, cfg.Redis.PoolSize)

	assert.Equal(t, "test:", cfg.EventBus.RedisChannelPrefix)

	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.PollInterval)
	assert.Equal(t, 10, cfg.Outbox.BatchSize)
	assert.Equal(t, 7, cfg.Outbox.MaxRetries)
	assert.Equal(t, 48*time.Hour, cfg.Outbox.CleanupAge)
	assert.Equal(t, 30*time.Minute, cfg.Outbox.CleanupInterval)

	assert.Equal(t, 5, cfg.Retry.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.Retry.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.Retry.MaxDelay)
	assert.InEpsilon(t, 1.5, cfg.Retry.Multiplier, 0.0001)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadFromPath_NonExistent(t *testing.T) {
	cfg, err := config.LoadFromPath("/non/existent/path/config.yaml")
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "configuration file not found")
}

func TestLoadFromPath_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	invalidContent := `
redis:
  addr: "localhost:6379"
  db: this-is-not-a-number
`
	err := os.WriteFile(configPath, []byte(invalidContent), 0o644)
	require.NoError(t, err)

	cfg, err := config.LoadFromPath(configPath)
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoader_LoadFromEnv(t *testing.T) {
	t.Setenv("APP_NAME", "env-relay")
	t.Setenv("MONGODB_URI", "mongodb://env-mongo:27017")
	t.Setenv("REDIS_ADDR", "env-redis:6379")
	t.Setenv("OUTBOX_BATCH_SIZE", "25")
	t.Setenv("LOG_LEVEL", "warn")

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	minimalConfig := `
app:
  name: "file-name"
`
	err := os.WriteFile(configPath, []byte(minimalConfig), 0o644)
	require.NoError(t, err)

	cfg, err := config.LoadFromPath(configPath)
	require.NoError(t, err)

	// Env vars should override file values
	assert.Equal(t, "env-relay", cfg.App.Name)
	assert.Equal(t, "mongodb://env-mongo:27017", cfg.MongoDB.URI)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Outbox.BatchSize)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoader_LoadFromEnv_Duration(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "2m30s")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute+30*time.Second, cfg.Outbox.PollInterval)
}

func TestLoader_LoadFromEnv_InvalidDuration(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "not-a-duration")

	cfg, err := config.Load()
	require.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "invalid duration")
}

func TestLoader_ConfigPathEnvVar(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom-config.yaml")
	configContent := `
app:
  name: "config-path-name"
mongodb:
  uri: "mongodb://localhost:27017"
  database: "testdb"
redis:
  addr: "localhost:6379"
log:
  level: "info"
  format: "json"
eventbus:
  type: "redis"
`
	err := os.WriteFile(configPath, []byte(configContent), 0o644)
	require.NoError(t, err)

	t.Setenv("CONFIG_PATH", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "config-path-name", cfg.App.Name)
	assert.Equal(t, "testdb", cfg.MongoDB.Database)
}

func TestLoader_WithConfigPaths(t *testing.T) {
	loader := config.NewLoader()
	customPaths := []string{"/custom/path1.yaml", "/custom/path2.yaml"}
	loader.WithConfigPaths(customPaths)

	assert.NotNil(t, loader)
}

func TestNewLoader(t *testing.T) {
	loader := config.NewLoader()
	assert.NotNil(t, loader)
}
