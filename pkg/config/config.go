package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment variable override
const EnvPrefix = "XCAFE"

// Config represents the application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" envconfig:"SERVER"`
	Storage       StorageConfig       `yaml:"storage" envconfig:"STORAGE"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	JWT           JWTConfig           `yaml:"jwt" envconfig:"JWT"`
	AuthRateLimit AuthRateLimitConfig `yaml:"auth_rate_limit" envconfig:"AUTH_RATE_LIMIT"`
	Revocation    RevocationConfig    `yaml:"revocation" envconfig:"REVOCATION"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host        string   `yaml:"host" envconfig:"HOST"`
	Port        int      `yaml:"port" envconfig:"PORT"`
	BaseURL     string   `yaml:"base_url" envconfig:"BASE_URL"`
	CORSOrigins []string `yaml:"cors_origins" envconfig:"CORS_ORIGINS"` // empty allows any origin
}

// StorageConfig contains storage configuration
type StorageConfig struct {
	Type    string        `yaml:"type" envconfig:"TYPE"` // memory, sqlite, mongodb
	SQLite  SQLiteConfig  `yaml:"sqlite" envconfig:"SQLITE"`
	MongoDB MongoDBConfig `yaml:"mongodb" envconfig:"MONGODB"`
}

// SQLiteConfig contains SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path" envconfig:"DB_PATH"`
}

// MongoDBConfig contains MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string `yaml:"uri" envconfig:"URI"`
	Database string `yaml:"database" envconfig:"DATABASE"`
	Timeout  int    `yaml:"timeout" envconfig:"TIMEOUT"` // seconds
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL"`   // debug, info, warn, error
	Format string `yaml:"format" envconfig:"FORMAT"` // json, text
	// File, when set, additionally writes logs to a size-rotated file
	File       string `yaml:"file" envconfig:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" envconfig:"MAX_BACKUPS"`
	MaxAgeDays int    `yaml:"max_age_days" envconfig:"MAX_AGE_DAYS"`
}

// JWTConfig contains credential signing configuration.
// Credential lifetime is fixed and not configurable.
type JWTConfig struct {
	Secret string `yaml:"secret" envconfig:"SECRET"`
	Issuer string `yaml:"issuer" envconfig:"ISSUER"`
}

// AuthRateLimitConfig limits signature verification attempts per address
type AuthRateLimitConfig struct {
	Enabled        bool `yaml:"enabled" envconfig:"ENABLED"`
	MaxAttempts    int  `yaml:"max_attempts" envconfig:"MAX_ATTEMPTS"`
	WindowSeconds  int  `yaml:"window_seconds" envconfig:"WINDOW_SECONDS"`
	LockoutSeconds int  `yaml:"lockout_seconds" envconfig:"LOCKOUT_SECONDS"`
}

// SetDefaults fills zero values
func (c *AuthRateLimitConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.LockoutSeconds <= 0 {
		c.LockoutSeconds = 300
	}
}

// RevocationConfig contains credential revocation (logout) configuration
type RevocationConfig struct {
	// Type is the revocation store type: "memory" or "redis"
	Type                   string      `yaml:"type" envconfig:"TYPE"`
	CleanupIntervalSeconds int         `yaml:"cleanup_interval_seconds" envconfig:"CLEANUP_INTERVAL_SECONDS"`
	Redis                  RedisConfig `yaml:"redis" envconfig:"REDIS"`
}

// SetDefaults fills zero values
func (c *RevocationConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "memory"
	}
	if c.CleanupIntervalSeconds <= 0 {
		c.CleanupIntervalSeconds = 300
	}
	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "xcafe:revoked:"
	}
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Address   string `yaml:"address" envconfig:"ADDRESS"`
	Password  string `yaml:"password" envconfig:"PASSWORD"`
	DB        int    `yaml:"db" envconfig:"DB"`
	KeyPrefix string `yaml:"key_prefix" envconfig:"KEY_PREFIX"`
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load from YAML file if provided (overrides defaults)
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Server.BaseURL == "" {
		cfg.Server.BaseURL = fmt.Sprintf("http://%s:%d", cfg.Server.Host, cfg.Server.Port)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Storage: StorageConfig{
			Type: "memory",
			SQLite: SQLiteConfig{
				Path: "xcafe.db",
			},
			MongoDB: MongoDBConfig{
				URI:      "mongodb://localhost:27017",
				Database: "xcafe",
				Timeout:  10,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		JWT: JWTConfig{
			Issuer: "xcafe",
		},
		AuthRateLimit: AuthRateLimitConfig{
			Enabled:        true,
			MaxAttempts:    10,
			WindowSeconds:  60,
			LockoutSeconds: 300,
		},
		Revocation: RevocationConfig{
			Type:                   "memory",
			CleanupIntervalSeconds: 300,
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "xcafe:revoked:",
			},
		},
	}
}

// minSecretLength is the minimum HS256 key size in bytes
const minSecretLength = 32

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	switch c.Storage.Type {
	case "memory":
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required when using sqlite storage")
		}
	case "mongodb":
		if c.Storage.MongoDB.URI == "" {
			return fmt.Errorf("mongodb uri is required when using mongodb storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory, sqlite, or mongodb)", c.Storage.Type)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if len(c.JWT.Secret) < minSecretLength {
		return fmt.Errorf("jwt secret must be at least %d bytes", minSecretLength)
	}

	switch c.Revocation.Type {
	case "", "memory":
	case "redis":
		if c.Revocation.Redis.Address == "" {
			return fmt.Errorf("redis address is required when using redis revocation")
		}
	default:
		return fmt.Errorf("invalid revocation type: %s (must be memory or redis)", c.Revocation.Type)
	}

	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
