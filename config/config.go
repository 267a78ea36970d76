package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Auth modes. Mode "any" tries local verification first and falls back to
// the external provider.
const (
	ModeLocal    = "local"
	ModeFirebase = "firebase"
	ModeAny      = "any"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Firebase      FirebaseConfig
	Session       SessionConfig
	Database      DatabaseConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// AuthConfig holds token signing and authorization configuration
type AuthConfig struct {
	Mode          string
	AccessSecret  string
	RefreshSecret string // Falls back to AccessSecret when unset
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Debug         bool // Include the decision in 403 bodies
}

// FirebaseConfig holds external identity provider configuration
type FirebaseConfig struct {
	ProjectID       string
	CheckRevoked    bool
	CredentialsFile string
	CredentialsJSON string
}

// SessionConfig holds refresh session store configuration.
// The in-memory store is used unless RedisAddr is set.
type SessionConfig struct {
	MaxPerUser    int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DatabaseConfig holds the optional PostgreSQL configuration. The in-memory
// seed user store is used unless ConnectionString is set.
type DatabaseConfig struct {
	ConnectionString string // From DATABASE_URL when set
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("PORT", 5001),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			Mode:          getEnv("AUTH_MODE", ModeLocal),
			AccessSecret:  getEnv("JWT_SECRET", "dev-secret-change-me"),
			RefreshSecret: getEnv("REFRESH_JWT_SECRET", ""),
			AccessTTL:     getEnvAsDuration("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:    getEnvAsDuration("REFRESH_TOKEN_TTL", 168*time.Hour),
			Debug:         getEnvAsBool("AUTH_DEBUG", false),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CheckRevoked:    getEnvAsBool("FIREBASE_CHECK_REVOKED", false),
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),
			CredentialsJSON: getEnv("FIREBASE_CREDENTIALS_JSON", ""),
		},
		Session: SessionConfig{
			MaxPerUser:    getEnvAsInt("REFRESH_MAX_SESSIONS_PER_USER", 3),
			RedisAddr:     getEnv("REDIS_ADDR", ""),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set.
// Misconfiguration fails here at startup, never as a per-request error.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case ModeLocal, ModeFirebase, ModeAny:
	default:
		return fmt.Errorf("invalid AUTH_MODE %q: must be local, firebase or any", c.Auth.Mode)
	}

	if c.Auth.AccessSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}

	if c.Auth.UsesFirebase() && c.Firebase.ProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID is required when AUTH_MODE is %q", c.Auth.Mode)
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// UsesLocal returns true when locally signed tokens are accepted
func (c *AuthConfig) UsesLocal() bool {
	return c.Mode == ModeLocal || c.Mode == ModeAny
}

// UsesFirebase returns true when provider ID tokens are accepted
func (c *AuthConfig) UsesFirebase() bool {
	return c.Mode == ModeFirebase || c.Mode == ModeAny
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
