package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Auth     AuthConfig
	Lockout  LockoutConfig
	Email    EmailConfig
}

type DatabaseConfig struct {
	Host              string
	Port              int
	User              string
	Password          string
	Name              string
	SSLMode           string
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
	RunMigrations     bool
}

type ServerConfig struct {
	Port           string
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type AuthConfig struct {
	JWTSecret        string
	SessionLifetime  time.Duration // absolute session expiry; also the token lifetime
	ResetTokenTTL    time.Duration
	CleanupInterval  time.Duration
	AttemptRetention time.Duration // how long login attempt audit rows are kept
}

// LockoutConfig holds the progressive lockout policy knobs.
type LockoutConfig struct {
	MaxFailedAttempts int           // threshold before the account locks
	AttemptWindow     time.Duration // trailing window failed attempts are counted over
	LockDuration      time.Duration
}

type EmailConfig struct {
	AWSRegion    string
	FromAddress  string
	ResetURLBase string // dashboard URL the reset link points at
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	env := getEnv("ENV", "development")

	cfg := &Config{
		Database: DatabaseConfig{
			Host:              getEnv("DB_HOST", "localhost"),
			Port:              getEnvAsInt("DB_PORT", 5432),
			User:              getEnv("DB_USER", "postgres"),
			Password:          getEnv("DB_PASSWORD", ""),
			Name:              getEnv("DB_NAME", "pestops"),
			SSLMode:           getEnv("DB_SSLMODE", "disable"),
			MaxConns:          int32(getEnvAsInt("DB_MAX_CONNS", 25)),
			MinConns:          int32(getEnvAsInt("DB_MIN_CONNS", 5)),
			MaxConnLifetime:   getEnvAsDuration("DB_MAX_CONN_LIFETIME", 5*time.Minute),
			MaxConnIdleTime:   getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 1*time.Minute),
			HealthCheckPeriod: getEnvAsDuration("DB_HEALTH_CHECK_PERIOD", 1*time.Minute),
			RunMigrations:     getEnvAsBool("DB_RUN_MIGRATIONS", true),
		},
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            env,
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			AllowedOrigins: parseAllowedOrigins(env),
		},
		Auth: AuthConfig{
			JWTSecret:        jwtSecret,
			SessionLifetime:  getEnvAsDuration("SESSION_LIFETIME", 24*time.Hour),
			ResetTokenTTL:    getEnvAsDuration("RESET_TOKEN_TTL", 1*time.Hour),
			CleanupInterval:  getEnvAsDuration("CLEANUP_INTERVAL", 1*time.Hour),
			AttemptRetention: getEnvAsDuration("ATTEMPT_RETENTION", 30*24*time.Hour),
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: getEnvAsInt("LOCKOUT_MAX_FAILED_ATTEMPTS", 5),
			AttemptWindow:     getEnvAsDuration("LOCKOUT_ATTEMPT_WINDOW", 15*time.Minute),
			LockDuration:      getEnvAsDuration("LOCKOUT_DURATION", 15*time.Minute),
		},
		Email: EmailConfig{
			AWSRegion:    getEnv("AWS_REGION", "us-east-1"),
			FromAddress:  getEnv("EMAIL_FROM_ADDRESS", ""),
			ResetURLBase: getEnv("RESET_URL_BASE", "http://localhost:3000"),
		},
	}

	if cfg.Database.Password == "" {
		return nil, fmt.Errorf("DB_PASSWORD is required")
	}
	if err := validateJWTSecret(jwtSecret, env); err != nil {
		return nil, err
	}
	if cfg.Lockout.MaxFailedAttempts < 1 {
		return nil, fmt.Errorf("LOCKOUT_MAX_FAILED_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

// weakJWTSecrets are placeholder values that keep showing up in deployments.
var weakJWTSecrets = []string{
	"secret", "test", "password", "12345", "changeme",
	"admin", "root", "default", "example",
}

// validateJWTSecret rejects secrets too short to sign with. Production
// demands 32 characters (256 bits of key material); development tolerates 16.
func validateJWTSecret(secret, env string) error {
	minLength := 16
	if env == "production" {
		minLength = 32
	}
	if len(secret) < minLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters in %s environment (got %d)",
			minLength, env, len(secret))
	}

	lowered := strings.ToLower(secret)
	for _, weak := range weakJWTSecrets {
		if lowered == weak {
			return fmt.Errorf("JWT_SECRET cannot be a common weak value")
		}
	}
	return nil
}

// DSN renders the keyword/value form pgx and goose both accept.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// The typed getters fall back silently on unset or unparsable values; a
// garbled env var behaves like an absent one.

func getEnvAsInt(key string, fallback int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return fallback
}

// parseAllowedOrigins reads the CORS allow-list. Production serves only the
// origins named in ALLOWED_ORIGINS; development allows the usual local
// dashboard ports.
func parseAllowedOrigins(env string) []string {
	if env != "production" {
		return []string{
			"http://localhost:3000",
			"http://localhost:8080",
			"http://localhost:5173",
			"http://127.0.0.1:3000",
			"http://127.0.0.1:8080",
			"http://127.0.0.1:5173",
		}
	}

	raw := os.Getenv("ALLOWED_ORIGINS")
	if raw == "" {
		return []string{}
	}
	origins := strings.Split(raw, ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}
	return origins
}
