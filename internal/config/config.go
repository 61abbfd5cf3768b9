// Package config loads the cellfinder API configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Development defaults. Production deployments must override the admin settings.
const (
	DefaultAdminUser   = "admin"
	DefaultAdminPass   = "admin"
	DefaultAdminSecret = "dev-secret-change-me"
	DefaultLocality    = "Angra dos Reis, RJ, Brasil"
)

// Config holds API server configuration
type Config struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	DatabaseURL string
	SeedOnStart bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminUser     string
	AdminPass     string
	AdminSecret   string
	AdminTokenTTL time.Duration

	NominatimURL     string
	GeocodeUserAgent string
	GeocodeLocality  string
	GeocodeTimeout   time.Duration
	GeocodeCacheTTL  time.Duration
	GeocodeMissTTL   time.Duration

	CORSAllowedOrigins []string
	StaticDir          string
	ExportURLTTL       time.Duration

	ConsulAddr  string
	ConsulToken string
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		Port:            getEnvInt("PORT", 3000),
		Host:            GetEnvOrDefault("SERVICE_HOST", "localhost"),
		ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),

		DatabaseURL: os.Getenv("DATABASE_URL"),
		SeedOnStart: getEnvBool("SEED_ON_START", true),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AdminUser:     GetEnvOrDefault("ADMIN_USER", DefaultAdminUser),
		AdminPass:     GetEnvOrDefault("ADMIN_PASS", DefaultAdminPass),
		AdminSecret:   GetEnvOrDefault("ADMIN_SECRET", DefaultAdminSecret),
		AdminTokenTTL: getEnvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),

		NominatimURL:     GetEnvOrDefault("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
		GeocodeUserAgent: GetEnvOrDefault("GEOCODE_USER_AGENT", "cellfinder/1.0"),
		GeocodeLocality:  GetEnvOrDefault("GEOCODE_LOCALITY", DefaultLocality),
		GeocodeTimeout:   getEnvDuration("GEOCODE_TIMEOUT", 10*time.Second),
		GeocodeCacheTTL:  getEnvDuration("GEOCODE_CACHE_TTL", 24*time.Hour),
		GeocodeMissTTL:   getEnvDuration("GEOCODE_MISS_TTL", 10*time.Minute),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000", "http://localhost:5173"}),
		StaticDir:          os.Getenv("STATIC_DIR"),
		ExportURLTTL:       getEnvDuration("EXPORT_URL_TTL", 15*time.Minute),

		ConsulAddr:  os.Getenv("CONSUL_HTTP_ADDR"),
		ConsulToken: os.Getenv("CONSUL_HTTP_TOKEN"),
	}
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var problems []string

	if c.DatabaseURL == "" {
		problems = append(problems, "DATABASE_URL is required")
	}
	if c.AdminSecret == "" {
		problems = append(problems, "ADMIN_SECRET must not be empty")
	}
	if c.AdminTokenTTL <= 0 {
		problems = append(problems, "ADMIN_TOKEN_TTL must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		problems = append(problems, fmt.Sprintf("PORT %d is out of range", c.Port))
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// UsesDefaultCredentials is true when any admin setting still has its development value.
func (c *Config) UsesDefaultCredentials() bool {
	return c.AdminUser == DefaultAdminUser ||
		c.AdminPass == DefaultAdminPass ||
		c.AdminSecret == DefaultAdminSecret
}

// ProductionEnv lists variables that must be set explicitly when APP_ENV=production.
var ProductionEnv = []string{"DATABASE_URL", "ADMIN_USER", "ADMIN_PASS", "ADMIN_SECRET"}

// IsProduction reports whether APP_ENV selects the production profile.
func IsProduction() bool {
	return strings.EqualFold(os.Getenv("APP_ENV"), "production")
}

// ValidateEnv validates that all required environment variables are set
func ValidateEnv(requiredVars []string) error {
	var missing []string

	for _, varName := range requiredVars {
		if os.Getenv(varName) == "" {
			missing = append(missing, varName)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	return nil
}

// GetEnvOrDefault retrieves an environment variable or returns a default value
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
