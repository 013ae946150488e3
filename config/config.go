package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Signing methods accepted for session tokens
const (
	SigningHS256 = "HS256"
	SigningRS256 = "RS256"
)

// Store backends
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// MinProductionSecretLength is the shortest HS256 secret accepted in production
const MinProductionSecretLength = 32

// devSessionSecret is used outside production when SESSION_SECRET is unset
const devSessionSecret = "development-only-session-secret-do-not-deploy"

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Session       SessionConfig
	Routes        RoutesConfig
	Database      DatabaseConfig
	Store         StoreConfig
	Throttle      ThrottleConfig
	Audit         AuditConfig
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	TLS             struct {
		Enabled  bool
		CertFile string
		KeyFile  string
	}
}

// SessionConfig controls token signing and the session cookie
type SessionConfig struct {
	CookieName     string
	Secret         string
	SigningMethod  string // HS256 or RS256
	PrivateKeyPath string // RS256 only
	PublicKeyPath  string // RS256 only
	TTL            time.Duration
	Issuer         string
	SecureCookie   bool
}

// RoutesConfig holds the guard's fixed paths
type RoutesConfig struct {
	LoginPath   string
	DefaultPath string
	PublicPaths []string
	// PublicPrefixes are served without a session, e.g. static assets
	PublicPrefixes []string
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
	AutoMigrate      bool
}

// StoreConfig selects the user and audit backend
type StoreConfig struct {
	Backend      string // memory or postgres
	SeedDemo     bool
	DemoPassword string
}

// ThrottleConfig bounds failed logins per (email, client IP)
type ThrottleConfig struct {
	MaxFailures     int
	Window          time.Duration
	CleanupInterval time.Duration
}

// AuditConfig sizes the async audit writer
type AuditConfig struct {
	BufferSize int
	Workers    int
}

// CORSConfig holds cross-origin settings for the mobile and web clients
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Session: SessionConfig{
			CookieName:     getEnv("SESSION_COOKIE_NAME", "ec_session"),
			Secret:         getEnv("SESSION_SECRET", ""),
			SigningMethod:  strings.ToUpper(getEnv("SESSION_SIGNING_METHOD", SigningHS256)),
			PrivateKeyPath: getEnv("SESSION_PRIVATE_KEY_PATH", ""),
			PublicKeyPath:  getEnv("SESSION_PUBLIC_KEY_PATH", ""),
			TTL:            getEnvAsDuration("SESSION_TTL", 24*time.Hour),
			Issuer:         getEnv("SESSION_ISSUER", "emergency-console"),
		},
		Routes: RoutesConfig{
			LoginPath:      getEnv("LOGIN_PATH", "/login"),
			DefaultPath:    getEnv("DEFAULT_PATH", "/dashboard"),
			PublicPaths:    getEnvAsList("PUBLIC_PATHS", []string{"/login", "/healthz", "/readyz", "/api/auth/login"}),
			PublicPrefixes: getEnvAsList("PUBLIC_PREFIXES", []string{"/static", "/favicon.ico"}),
		},
		Database: loadDatabaseConfig(),
		Store: StoreConfig{
			Backend:      strings.ToLower(getEnv("STORE_BACKEND", StoreMemory)),
			SeedDemo:     getEnvAsBool("STORE_SEED_DEMO", true),
			DemoPassword: getEnv("STORE_DEMO_PASSWORD", "emergency123"),
		},
		Throttle: ThrottleConfig{
			MaxFailures:     getEnvAsInt("LOGIN_MAX_FAILURES", 5),
			Window:          getEnvAsDuration("LOGIN_FAILURE_WINDOW", 15*time.Minute),
			CleanupInterval: getEnvAsDuration("LOGIN_THROTTLE_CLEANUP_INTERVAL", time.Minute),
		},
		Audit: AuditConfig{
			BufferSize: getEnvAsInt("AUDIT_BUFFER_SIZE", 1000),
			Workers:    getEnvAsInt("AUDIT_WORKERS", 2),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	cfg.Server.TLS.Enabled = getEnvAsBool("TLS_ENABLED", false)
	cfg.Server.TLS.CertFile = getEnv("TLS_CERT_FILE", "certs/cert.pem")
	cfg.Server.TLS.KeyFile = getEnv("TLS_KEY_FILE", "certs/key.pem")

	cfg.Session.SecureCookie = getEnvAsBool("SESSION_SECURE_COOKIE", cfg.IsProduction())
	if cfg.Session.Secret == "" && !cfg.IsProduction() {
		cfg.Session.Secret = devSessionSecret
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	switch c.Session.SigningMethod {
	case SigningHS256:
		if c.Session.Secret == "" {
			return fmt.Errorf("session secret is required for %s", SigningHS256)
		}
		if c.IsProduction() && len(c.Session.Secret) < MinProductionSecretLength {
			return fmt.Errorf("session secret must be at least %d bytes in production", MinProductionSecretLength)
		}
	case SigningRS256:
		if c.Session.PrivateKeyPath == "" || c.Session.PublicKeyPath == "" {
			return fmt.Errorf("session key paths are required for %s", SigningRS256)
		}
	default:
		return fmt.Errorf("unsupported session signing method %q", c.Session.SigningMethod)
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Session.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}

	if !strings.HasPrefix(c.Routes.LoginPath, "/") || !strings.HasPrefix(c.Routes.DefaultPath, "/") {
		return fmt.Errorf("login and default paths must be absolute")
	}

	switch c.Store.Backend {
	case StoreMemory:
	case StorePostgres:
		if c.Database.ConnectionString == "" && c.Database.Host == "" {
			return fmt.Errorf("database configuration required: set DATABASE_URL or DB_HOST")
		}
		if c.Database.ConnectionString == "" && (c.Database.User == "" || c.Database.Database == "") {
			return fmt.Errorf("database user and name are required")
		}
	default:
		return fmt.Errorf("unsupported store backend %q", c.Store.Backend)
	}

	if c.IsProduction() && c.Store.SeedDemo {
		return fmt.Errorf("demo seeding is not allowed in production")
	}

	if c.Throttle.MaxFailures <= 0 || c.Throttle.Window <= 0 {
		return fmt.Errorf("login throttle limits must be positive")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "prod"
}

// DSN returns the PostgreSQL connection string.
// Uses ConnectionString (from DATABASE_URL) when set; otherwise builds from individual fields.
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			return fmt.Sprintf("host=%s port=%s database=%s", u.Hostname(), port, strings.TrimPrefix(u.Path, "/"))
		}
		return "host=<from DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

func loadDatabaseConfig() DatabaseConfig {
	cfg := DatabaseConfig{
		ConnectionString: getEnv("DATABASE_URL", ""),
		MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		AutoMigrate:      getEnvAsBool("DB_AUTO_MIGRATE", true),
	}
	if cfg.ConnectionString != "" {
		return cfg
	}
	cfg.Host = getEnv("DB_HOST", "localhost")
	cfg.Port = getEnvAsInt("DB_PORT", 5432)
	cfg.User = getEnv("DB_USER", "console")
	cfg.Password = getEnv("DB_PASSWORD", "")
	cfg.Database = getEnv("DB_NAME", "emergency_console")
	cfg.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8080)
func getPort() int {
	for _, key := range []string{"PORT", "SERVER_PORT"} {
		if value := os.Getenv(key); value != "" {
			if p, err := strconv.Atoi(value); err == nil {
				return p
			}
		}
	}
	return 8080
}

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

// getEnvAsList splits a comma separated value, dropping empty items
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
