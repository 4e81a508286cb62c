package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// BaseConfig holds base configuration
type BaseConfig struct {
	Debug     bool   `mapstructure:"debug"`
	SentryDSN string `mapstructure:"sentry_dsn"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// RedisConfig holds Redis configuration for the event store substrate
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`  // in seconds
	WriteTimeout int    `mapstructure:"write_timeout"` // in seconds
	IdleTimeout  int    `mapstructure:"idle_timeout"`  // in seconds
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	APIKeys []string `mapstructure:"api_keys"`
}

// WorkerConfig holds worker pool configuration for the sink flush
type WorkerConfig struct {
	PoolSize  int `mapstructure:"pool_size"`
	QueueSize int `mapstructure:"queue_size"`
}

// PipelineConfig holds the download accounting pipeline configuration
type PipelineConfig struct {
	FlushInterval  time.Duration `mapstructure:"flush_interval"`
	HistoryWindow  time.Duration `mapstructure:"history_window"`
	MaxQueueSize   int64         `mapstructure:"max_queue_size"`
	MaxPerIdentity int           `mapstructure:"max_per_identity"`
	QueueKey       string        `mapstructure:"queue_key"`
	HistoryKey     string        `mapstructure:"history_key"`
	Worker         WorkerConfig  `mapstructure:"worker"`
}

// AccountingConfig holds configuration for the accounting service
type AccountingConfig struct {
	BaseConfig `mapstructure:",squash"`
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Redis      RedisConfig    `mapstructure:"redis"`
	Auth       AuthConfig     `mapstructure:"auth"`
	Pipeline   PipelineConfig `mapstructure:"pipeline"`
}

// LoadAccountingConfig loads configuration for the accounting service
func LoadAccountingConfig(configFile string, envPath string) (*AccountingConfig, error) {
	v := configureViper("accounting", configFile, envPath)

	// Set defaults
	v.SetDefault("debug", false)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.idle_timeout", 120)
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.conn_max_idle_time", "10m")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("pipeline.flush_interval", "5m")
	v.SetDefault("pipeline.history_window", "90m")
	v.SetDefault("pipeline.max_queue_size", 100000)
	v.SetDefault("pipeline.max_per_identity", 3)
	v.SetDefault("pipeline.queue_key", "downloads-counter-queue")
	v.SetDefault("pipeline.history_key", "downloads-history")
	v.SetDefault("pipeline.worker.pool_size", 10)
	v.SetDefault("pipeline.worker.queue_size", 1024)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// Config file not found, use environment variables
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg AccountingConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate required fields
	if cfg.Database.Host == "" {
		return nil, errors.New("database.host is required")
	}
	if cfg.Database.DBName == "" {
		return nil, errors.New("database.dbname is required")
	}
	if cfg.Pipeline.FlushInterval <= 0 {
		return nil, errors.New("pipeline.flush_interval must be positive")
	}
	if cfg.Pipeline.HistoryWindow <= 0 {
		return nil, errors.New("pipeline.history_window must be positive")
	}
	if cfg.Pipeline.MaxPerIdentity < 1 {
		return nil, errors.New("pipeline.max_per_identity must be at least 1")
	}

	return &cfg, nil
}

// configureViper returns a viper instance with the config file and environment variables set
func configureViper(service string, configFile string, envPath string) *viper.Viper {
	v := viper.New()

	// Load environment variables
	loadEnv(envPath, service)

	// Set config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(fmt.Sprintf("cmd/%s/", service))
		v.AddConfigPath("config/")
	}

	// Set environment variables
	v.SetEnvPrefix("DL_ACCOUNTING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicitly bind all environment variables
	bindAllEnvVars(v)
	return v
}

// bindAllEnvVars explicitly binds all possible environment variables.
// This is required for viper to map env vars to config struct fields when no
// config file exists.
func bindAllEnvVars(v *viper.Viper) {
	keys := []string{
		"debug",
		"sentry_dsn",
		// Database
		"database.host",
		"database.port",
		"database.user",
		"database.password",
		"database.dbname",
		"database.sslmode",
		"database.max_open_conns",
		"database.max_idle_conns",
		"database.conn_max_lifetime",
		"database.conn_max_idle_time",
		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",
		"server.idle_timeout",
		// Auth
		"auth.api_keys",
		// Pipeline
		"pipeline.flush_interval",
		"pipeline.history_window",
		"pipeline.max_queue_size",
		"pipeline.max_per_identity",
		"pipeline.queue_key",
		"pipeline.history_key",
		"pipeline.worker.pool_size",
		"pipeline.worker.queue_size",
	}

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// loadEnv loads environment variables from the config directory
func loadEnv(envPath string, service string) {
	envFiles := []string{".env", ".env.local"}
	if service != "" {
		envFiles = append(envFiles, ".env."+service+".local")
	}

	if envPath == "" {
		envPath = "config/"
	}

	for _, envFile := range envFiles {
		candidate := filepath.Join(envPath, envFile)
		_ = godotenv.Overload(candidate) // Overload lets later files override earlier ones
	}
}

// DSN returns the database connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}
