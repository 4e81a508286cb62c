package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAccountingConfig(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		expectError bool
		validate    func(*testing.T, *AccountingConfig)
	}{
		{
			name: "valid config file",
			configFile: `
debug: true
sentry_dsn: "https://sentry.example.com"
server:
  host: "127.0.0.1"
  port: 9090
  read_timeout: 20
  write_timeout: 20
  idle_timeout: 180
database:
  host: localhost
  port: 5432
  user: testuser
  password: testpass
  dbname: testdb
  sslmode: require
redis:
  addr: "redis.example.com:6379"
  password: "redis-pass"
  db: 2
auth:
  api_keys:
    - "key1"
    - "key2"
pipeline:
  flush_interval: "2m"
  history_window: "30m"
  max_queue_size: 5000
  max_per_identity: 5
  queue_key: "custom-queue"
  history_key: "custom-history"
  worker:
    pool_size: 4
    queue_size: 256
`,
			expectError: false,
			validate: func(t *testing.T, cfg *AccountingConfig) {
				assert.True(t, cfg.Debug)
				assert.Equal(t, "https://sentry.example.com", cfg.SentryDSN)
				assert.Equal(t, "127.0.0.1", cfg.Server.Host)
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, 20, cfg.Server.ReadTimeout)
				assert.Equal(t, 180, cfg.Server.IdleTimeout)
				assert.Equal(t, "localhost", cfg.Database.Host)
				assert.Equal(t, "testdb", cfg.Database.DBName)
				assert.Equal(t, "require", cfg.Database.SSLMode)
				assert.Equal(t, "redis.example.com:6379", cfg.Redis.Addr)
				assert.Equal(t, "redis-pass", cfg.Redis.Password)
				assert.Equal(t, 2, cfg.Redis.DB)
				assert.Len(t, cfg.Auth.APIKeys, 2)
				assert.Equal(t, 2*time.Minute, cfg.Pipeline.FlushInterval)
				assert.Equal(t, 30*time.Minute, cfg.Pipeline.HistoryWindow)
				assert.Equal(t, int64(5000), cfg.Pipeline.MaxQueueSize)
				assert.Equal(t, 5, cfg.Pipeline.MaxPerIdentity)
				assert.Equal(t, "custom-queue", cfg.Pipeline.QueueKey)
				assert.Equal(t, "custom-history", cfg.Pipeline.HistoryKey)
				assert.Equal(t, 4, cfg.Pipeline.Worker.PoolSize)
				assert.Equal(t, 256, cfg.Pipeline.Worker.QueueSize)
			},
		},
		{
			name: "config with defaults",
			configFile: `
database:
  host: localhost
  user: testuser
  password: testpass
  dbname: testdb
`,
			expectError: false,
			validate: func(t *testing.T, cfg *AccountingConfig) {
				// Check defaults
				assert.False(t, cfg.Debug)
				assert.Equal(t, "0.0.0.0", cfg.Server.Host)
				assert.Equal(t, 8090, cfg.Server.Port)
				assert.Equal(t, 5432, cfg.Database.Port)
				assert.Equal(t, "disable", cfg.Database.SSLMode)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 5*time.Minute, cfg.Pipeline.FlushInterval)
				assert.Equal(t, 90*time.Minute, cfg.Pipeline.HistoryWindow)
				assert.Equal(t, int64(100000), cfg.Pipeline.MaxQueueSize)
				assert.Equal(t, 3, cfg.Pipeline.MaxPerIdentity)
				assert.Equal(t, "downloads-counter-queue", cfg.Pipeline.QueueKey)
				assert.Equal(t, "downloads-history", cfg.Pipeline.HistoryKey)
				assert.Equal(t, 10, cfg.Pipeline.Worker.PoolSize)
				assert.Equal(t, 1024, cfg.Pipeline.Worker.QueueSize)
			},
		},
		{
			name: "missing database host",
			configFile: `
database:
  user: testuser
  dbname: testdb
`,
			expectError: true,
		},
		{
			name: "missing database name",
			configFile: `
database:
  host: localhost
  user: testuser
`,
			expectError: true,
		},
		{
			name: "non-positive flush interval",
			configFile: `
database:
  host: localhost
  dbname: testdb
pipeline:
  flush_interval: "0s"
`,
			expectError: true,
		},
		{
			name: "zero identity cap",
			configFile: `
database:
  host: localhost
  dbname: testdb
pipeline:
  max_per_identity: 0
`,
			expectError: true,
		},
		{
			name: "invalid yaml",
			configFile: `
				database:
				  host: localhost
				  port: invalid
			`,
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configFile := filepath.Join(tmpDir, "config.yaml")
			err := os.WriteFile(configFile, []byte(tt.configFile), 0600)
			require.NoError(t, err)

			cfg, err := LoadAccountingConfig(configFile, tmpDir)

			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, cfg)
			} else {
				require.NoError(t, err)
				require.NotNil(t, cfg)
				if tt.validate != nil {
					tt.validate(t, cfg)
				}
			}
		})
	}
}

func TestConfigWithEnvironmentVariables(t *testing.T) {
	tmpDir := t.TempDir()

	envDir := filepath.Join(tmpDir, "env")
	err := os.MkdirAll(envDir, 0750)
	require.NoError(t, err)

	// Env vars loaded via godotenv override config file values
	envFile := filepath.Join(envDir, ".env")
	envContent := `DL_ACCOUNTING_DEBUG=true
DL_ACCOUNTING_DATABASE_HOST=env-host
DL_ACCOUNTING_DATABASE_DBNAME=env-db
DL_ACCOUNTING_REDIS_ADDR=env-redis:6379
DL_ACCOUNTING_PIPELINE_FLUSH_INTERVAL=1m
`
	err = os.WriteFile(envFile, []byte(envContent), 0600)
	require.NoError(t, err)

	configPath := filepath.Join(tmpDir, "config.yaml")
	configFile := `
debug: false
database:
  host: file-host
  dbname: file-db
`
	err = os.WriteFile(configPath, []byte(configFile), 0600)
	require.NoError(t, err)

	cfg, err := LoadAccountingConfig(configPath, envDir)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.True(t, cfg.Debug)
	assert.Equal(t, "env-host", cfg.Database.Host)
	assert.Equal(t, "env-db", cfg.Database.DBName)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, time.Minute, cfg.Pipeline.FlushInterval)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
		SSLMode:  "require",
	}

	assert.Equal(t,
		"host=localhost port=5432 user=testuser password=testpass dbname=testdb sslmode=require",
		cfg.DSN(),
	)
}
