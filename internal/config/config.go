// Package config provides application configuration management.
// Configuration is loaded from environment variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	AppPort   int    `env:"APP_PORT" envDefault:"5000"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api/v1"`

	// Public web client, used for links in outbound email
	ClientURL string `env:"CLIENT_URL" envDefault:"http://localhost:3000"`

	// Database (PostgreSQL)
	DatabaseURL       string `env:"DATABASE_URL,required"`
	DBConnectAttempts int    `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`

	// Cache (Redis)
	RedisURL    string `env:"REDIS_URL,required"`
	EnableCache bool   `env:"ENABLE_CACHE" envDefault:"true"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Tokens
	JWTSecret           string        `env:"JWT_SECRET,required"`
	JWTExpiresIn        time.Duration `env:"JWT_EXPIRES_IN" envDefault:"168h"`
	JWTRefreshSecret    string        `env:"JWT_REFRESH_SECRET,required"`
	JWTRefreshExpiresIn time.Duration `env:"JWT_REFRESH_EXPIRES_IN" envDefault:"720h"`

	// Rate limiting (per client IP)
	RateLimitEnabled       bool          `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitWindow        time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitMax           int           `env:"RATE_LIMIT_MAX" envDefault:"100"`
	AuthRateLimitWindow    time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"1h"`
	AuthRateLimitMax       int           `env:"AUTH_RATE_LIMIT_MAX" envDefault:"5"`
	ContactRateLimitWindow time.Duration `env:"CONTACT_RATE_LIMIT_WINDOW" envDefault:"1h"`
	ContactRateLimitMax    int           `env:"CONTACT_RATE_LIMIT_MAX" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000"`

	// Request body size limit in bytes for JSON endpoints (default 10MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"10485760"`

	// Uploads
	UploadMaxFileSize int64 `env:"UPLOAD_MAX_FILE_SIZE" envDefault:"26214400"`
	UploadMaxFiles    int   `env:"UPLOAD_MAX_FILES" envDefault:"10"`

	// Email (SMTP)
	SMTPHost   string `env:"SMTP_HOST"`
	SMTPPort   int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPSecure bool   `env:"SMTP_SECURE" envDefault:"false"`
	SMTPUser   string `env:"SMTP_USER"`
	SMTPPass   string `env:"SMTP_PASS"`
	EmailFrom  string `env:"EMAIL_FROM" envDefault:"noreply@presskitpro.com"`

	// Asset storage
	StorageDriver       string `env:"STORAGE_DRIVER" envDefault:"s3"`
	S3Bucket            string `env:"S3_BUCKET"`
	S3Region            string `env:"S3_REGION" envDefault:"us-east-1"`
	S3Endpoint          string `env:"S3_ENDPOINT"`
	S3PublicBaseURL     string `env:"S3_PUBLIC_BASE_URL"`
	AWSAccessKeyID      string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretAccessKey  string `env:"AWS_SECRET_ACCESS_KEY"`
	LocalStorageDir     string `env:"LOCAL_STORAGE_DIR" envDefault:"./uploads"`
	LocalStorageBaseURL string `env:"LOCAL_STORAGE_BASE_URL" envDefault:"http://localhost:5000/uploads"`

	// Payments (Stripe)
	StripeSecretKey       string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET"`
	StripePriceBasic      string `env:"STRIPE_PRICE_BASIC"`
	StripePricePro        string `env:"STRIPE_PRICE_PRO"`
	StripePriceEnterprise string `env:"STRIPE_PRICE_ENTERPRISE"`

	// Analytics
	EnableAnalytics        bool `env:"ENABLE_ANALYTICS" envDefault:"true"`
	AnalyticsWorkerEnabled bool `env:"ANALYTICS_WORKER_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// PlanPrices maps plan names to Stripe price IDs. Plans without a configured price are omitted.
func (c *Config) PlanPrices() map[string]string {
	prices := make(map[string]string, 3)
	for plan, price := range map[string]string{
		"basic":      c.StripePriceBasic,
		"pro":        c.StripePricePro,
		"enterprise": c.StripePriceEnterprise,
	} {
		if price != "" {
			prices[plan] = price
		}
	}
	return prices
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load reads an optional .env file, parses environment variables and returns a Config.
// Returns an error if required variables are missing.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
