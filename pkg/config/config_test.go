package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.JWT.Secret = testSecret
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestConfig_Validate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"port too low", 0},
		{"port negative", -1},
		{"port too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Server.Port = tt.port
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error for invalid port")
			}
		})
	}
}

func TestConfig_Validate_Storage(t *testing.T) {
	tests := []struct {
		name    string
		storage StorageConfig
		wantErr bool
	}{
		{"memory", StorageConfig{Type: "memory"}, false},
		{"sqlite", StorageConfig{Type: "sqlite", SQLite: SQLiteConfig{Path: "x.db"}}, false},
		{"sqlite without path", StorageConfig{Type: "sqlite"}, true},
		{"mongodb", StorageConfig{Type: "mongodb", MongoDB: MongoDBConfig{URI: "mongodb://localhost:27017"}}, false},
		{"mongodb without uri", StorageConfig{Type: "mongodb"}, true},
		{"unknown", StorageConfig{Type: "json"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Storage = tt.storage
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_JWTSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWT.Secret = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for missing JWT secret")
	}

	cfg.JWT.Secret = "short"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for short JWT secret")
	}
}

func TestConfig_Validate_Revocation(t *testing.T) {
	cfg := validConfig()
	cfg.Revocation.Type = "redis"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}

	cfg.Revocation.Redis.Address = ""
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for redis without address")
	}

	cfg.Revocation.Type = "memcached"
	if err := cfg.Validate(); err == nil {
		t.Error("Expected validation error for unknown revocation type")
	}
}

func TestServerConfig_Address(t *testing.T) {
	tests := []struct {
		host     string
		port     int
		expected string
	}{
		{"localhost", 8080, "localhost:8080"},
		{"0.0.0.0", 80, "0.0.0.0:80"},
		{"127.0.0.1", 3000, "127.0.0.1:3000"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			cfg := ServerConfig{Host: tt.host, Port: tt.port}
			if cfg.Address() != tt.expected {
				t.Errorf("Address() = %q, want %q", cfg.Address(), tt.expected)
			}
		})
	}
}

func TestAuthRateLimitConfig_SetDefaults(t *testing.T) {
	var cfg AuthRateLimitConfig
	cfg.SetDefaults()
	if cfg.MaxAttempts != 10 || cfg.WindowSeconds != 60 || cfg.LockoutSeconds != 300 {
		t.Errorf("SetDefaults() = %+v", cfg)
	}

	cfg = AuthRateLimitConfig{MaxAttempts: 3}
	cfg.SetDefaults()
	if cfg.MaxAttempts != 3 {
		t.Errorf("SetDefaults() overwrote MaxAttempts: %d", cfg.MaxAttempts)
	}
}

func TestRevocationConfig_SetDefaults(t *testing.T) {
	var cfg RevocationConfig
	cfg.SetDefaults()
	if cfg.Type != "memory" {
		t.Errorf("Type = %q, want memory", cfg.Type)
	}
	if cfg.CleanupIntervalSeconds != 300 {
		t.Errorf("CleanupIntervalSeconds = %d, want 300", cfg.CleanupIntervalSeconds)
	}
	if cfg.Redis.KeyPrefix == "" {
		t.Error("KeyPrefix not defaulted")
	}
}

func TestLoad_NonExistentFile(t *testing.T) {
	// defaults carry no JWT secret, so validation fails
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	if err == nil {
		t.Error("Expected error for missing JWT secret")
	}
	if cfg != nil {
		t.Error("Expected nil config on error")
	}
}

func TestLoad_ValidYAMLFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	content := `
server:
  host: localhost
  port: 8080
  cors_origins:
    - http://localhost:3000
storage:
  type: sqlite
  sqlite:
    path: /tmp/xcafe.db
jwt:
  secret: ` + testSecret + `
logging:
  level: debug
  file: /tmp/xcafe.log
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Storage.Type != "sqlite" || cfg.Storage.SQLite.Path != "/tmp/xcafe.db" {
		t.Errorf("Unexpected storage config: %+v", cfg.Storage)
	}
	if len(cfg.Server.CORSOrigins) != 1 {
		t.Errorf("Expected one CORS origin, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Logging.File != "/tmp/xcafe.log" {
		t.Errorf("Expected log file, got %q", cfg.Logging.File)
	}
	// defaults survive a partial file
	if cfg.Logging.MaxBackups != 5 {
		t.Errorf("Expected default MaxBackups 5, got %d", cfg.Logging.MaxBackups)
	}
	if cfg.Server.BaseURL != "http://localhost:8080" {
		t.Errorf("Unexpected BaseURL %q", cfg.Server.BaseURL)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	content := "server:\n  port: 8080\njwt:\n  secret: " + testSecret + "\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	t.Setenv("XCAFE_SERVER_PORT", "9090")
	t.Setenv("XCAFE_JWT_ISSUER", "env-issuer")
	t.Setenv("XCAFE_REVOCATION_TYPE", "redis")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected env port 9090, got %d", cfg.Server.Port)
	}
	if cfg.JWT.Issuer != "env-issuer" {
		t.Errorf("Expected env issuer, got %q", cfg.JWT.Issuer)
	}
	if cfg.Revocation.Type != "redis" {
		t.Errorf("Expected redis revocation, got %q", cfg.Revocation.Type)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")

	content := "server:\n  port: [not, a, port]\n"
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Errorf("Expected parse error, got %v", err)
	}
}
