// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ProviderGoTrue   = "gotrue"
	ProviderFirebase = "firebase"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds all configuration for the application.
type Config struct {
	// Server Configuration
	GinMode         string        `mapstructure:"GIN_MODE"`
	AppEnv          string        `mapstructure:"APP_ENV"`
	ServerHost      string        `mapstructure:"SERVER_HOST"`
	ServerPort      string        `mapstructure:"SERVER_PORT"`
	ServerTimeout   time.Duration `mapstructure:"-"`
	FrontendOrigins []string      `mapstructure:"-"`
	// Proxies whose X-Forwarded-For is believed. Empty trusts none.
	TrustedProxies  []string      `mapstructure:"-"`

	// Identity Provider Configuration
	IdentityProvider        string        `mapstructure:"IDENTITY_PROVIDER"`
	IdentityProviderURL     string        `mapstructure:"IDENTITY_PROVIDER_URL"`
	IdentityProviderKey     string        `mapstructure:"IDENTITY_PROVIDER_KEY"`
	IdentityProviderTimeout time.Duration `mapstructure:"-"`

	// Firebase Configuration (IDENTITY_PROVIDER=firebase)
	FirebaseServiceAccountKeyPath string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_KEY_PATH"`
	FirebaseProjectID             string `mapstructure:"FIREBASE_PROJECT_ID"`
	FirebaseWebAPIKey             string `mapstructure:"FIREBASE_WEB_API_KEY"`

	// Session cookies
	SessionCookieMaxAge time.Duration `mapstructure:"-"`

	// Database Configuration
	DBDriver          string        `mapstructure:"DB_DRIVER"`
	DBHost            string        `mapstructure:"DB_HOST"`
	DBPort            string        `mapstructure:"DB_PORT"`
	DBUser            string        `mapstructure:"DB_USER"`
	DBPassword        string        `mapstructure:"DB_PASSWORD"`
	DBName            string        `mapstructure:"DB_NAME"`
	DBSSLMode         string        `mapstructure:"DB_SSL_MODE"`
	DBTimezone        string        `mapstructure:"DB_TIMEZONE"`
	DBMaxIdleConns    int           `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBMaxOpenConns    int           `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBConnMaxLifetime time.Duration `mapstructure:"-"`
	DBSQLitePath      string        `mapstructure:"DB_SQLITE_PATH"`

	// Logging Configuration
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`

	// Rate limiting for /api/auth/register and /api/auth/login
	AuthRateLimitRPS   float64 `mapstructure:"AUTH_RATE_LIMIT_RPS"`
	AuthRateLimitBurst int     `mapstructure:"AUTH_RATE_LIMIT_BURST"`

	// Cron Jobs
	AppointmentExpiryJobSchedule string `mapstructure:"APPOINTMENT_EXPIRY_JOB_SCHEDULE"`

	// Elasticsearch Configuration. Empty disables the doctor search index.
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`

	// Uploaded doctor profile images
	MediaStoragePath string `mapstructure:"MEDIA_STORAGE_PATH"`
	MediaURLPrefix   string `mapstructure:"MEDIA_URL_PREFIX"`
	MaxUploadSizeMB  int64  `mapstructure:"MAX_UPLOAD_SIZE_MB"`
}

// Load attempts to load configuration from a .env file (if present) and environment variables.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling configuration: %w", err)
	}

	// Duration fields are read as plain integers in their named unit.
	cfg.ServerTimeout = time.Duration(v.GetInt("SERVER_TIMEOUT_SECONDS")) * time.Second
	cfg.IdentityProviderTimeout = time.Duration(v.GetInt("IDENTITY_PROVIDER_TIMEOUT_SECONDS")) * time.Second
	cfg.SessionCookieMaxAge = time.Duration(v.GetInt("SESSION_COOKIE_MAX_AGE_DAYS")) * 24 * time.Hour
	cfg.DBConnMaxLifetime = time.Duration(v.GetInt("DB_CONN_MAX_LIFETIME_MINUTES")) * time.Minute
	cfg.FrontendOrigins = splitCSV(v.GetString("FRONTEND_ORIGINS"))
	cfg.TrustedProxies = splitCSV(v.GetString("TRUSTED_PROXIES"))

	cfg.AppEnv = strings.ToLower(strings.TrimSpace(cfg.AppEnv))
	cfg.IdentityProvider = strings.ToLower(strings.TrimSpace(cfg.IdentityProvider))
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("APP_ENV", EnvDevelopment)
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_TIMEOUT_SECONDS", 30)
	v.SetDefault("FRONTEND_ORIGINS", "http://localhost:5173")
	v.SetDefault("TRUSTED_PROXIES", "")

	v.SetDefault("IDENTITY_PROVIDER", ProviderGoTrue)
	v.SetDefault("IDENTITY_PROVIDER_URL", "")
	v.SetDefault("IDENTITY_PROVIDER_KEY", "")
	v.SetDefault("IDENTITY_PROVIDER_TIMEOUT_SECONDS", 10)

	v.SetDefault("FIREBASE_SERVICE_ACCOUNT_KEY_PATH", "")
	v.SetDefault("FIREBASE_PROJECT_ID", "")
	v.SetDefault("FIREBASE_WEB_API_KEY", "")

	v.SetDefault("SESSION_COOKIE_MAX_AGE_DAYS", 7)

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "password")
	v.SetDefault("DB_NAME", "medibook_db")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_TIMEZONE", "UTC")
	v.SetDefault("DB_MAX_IDLE_CONNS", 10)
	v.SetDefault("DB_MAX_OPEN_CONNS", 100)
	v.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 60)
	v.SetDefault("DB_SQLITE_PATH", "medibook.db")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")

	v.SetDefault("AUTH_RATE_LIMIT_RPS", 1)
	v.SetDefault("AUTH_RATE_LIMIT_BURST", 10)

	v.SetDefault("APPOINTMENT_EXPIRY_JOB_SCHEDULE", "@daily")

	v.SetDefault("ELASTICSEARCH_URL", "")

	v.SetDefault("MEDIA_STORAGE_PATH", "./media")
	v.SetDefault("MEDIA_URL_PREFIX", "/media")
	v.SetDefault("MAX_UPLOAD_SIZE_MB", 5)
}

// Validate checks the settings that would otherwise fail at first use.
func (c *Config) Validate() error {
	switch c.AppEnv {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("APP_ENV must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.AppEnv)
	}

	switch c.IdentityProvider {
	case ProviderGoTrue:
		if strings.TrimSpace(c.IdentityProviderURL) == "" {
			return fmt.Errorf("IDENTITY_PROVIDER_URL is required for the %s identity provider", ProviderGoTrue)
		}
		if strings.TrimSpace(c.IdentityProviderKey) == "" {
			return fmt.Errorf("IDENTITY_PROVIDER_KEY is required for the %s identity provider", ProviderGoTrue)
		}
	case ProviderFirebase:
		if strings.TrimSpace(c.FirebaseServiceAccountKeyPath) == "" {
			return fmt.Errorf("FIREBASE_SERVICE_ACCOUNT_KEY_PATH is required for the %s identity provider", ProviderFirebase)
		}
		if _, err := os.Stat(c.FirebaseServiceAccountKeyPath); os.IsNotExist(err) {
			return fmt.Errorf("firebase service account key file (%s) not found", c.FirebaseServiceAccountKeyPath)
		}
		if strings.TrimSpace(c.FirebaseWebAPIKey) == "" {
			return fmt.Errorf("FIREBASE_WEB_API_KEY is required for password sign-in with the %s identity provider", ProviderFirebase)
		}
	default:
		return fmt.Errorf("unknown IDENTITY_PROVIDER %q", c.IdentityProvider)
	}

	if c.IdentityProviderTimeout <= 0 {
		return fmt.Errorf("IDENTITY_PROVIDER_TIMEOUT_SECONDS must be positive")
	}
	if c.SessionCookieMaxAge <= 0 {
		return fmt.Errorf("SESSION_COOKIE_MAX_AGE_DAYS must be positive")
	}

	switch c.DBDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	return nil
}

// IsProduction reports whether the runtime-mode flag is set to production.
// Session cookies are Secure and SameSite=Strict only in production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

func splitCSV(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
