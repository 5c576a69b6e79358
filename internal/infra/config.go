package infra

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration parsed from environment variables.
type Config struct {
	// Database
	DatabaseURL string `env:"DATABASE_URL"`
	PGHost      string `env:"PGHOST" envDefault:"localhost"`
	PGPort      int    `env:"PGPORT" envDefault:"5432"`
	PGUser      string `env:"PGUSER" envDefault:"pong"`
	PGPassword  string `env:"PGPASSWORD" envDefault:"pong"`
	PGDatabase  string `env:"PGDATABASE" envDefault:"pong"`

	// Redis (token revocation list)
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379"`

	// JWT
	JWTSecret        string        `env:"JWT_SECRET" envDefault:"change-me-in-production"`
	JWTAccessExpiry  time.Duration `env:"JWT_ACCESS_EXPIRY" envDefault:"1h"`
	JWTRefreshExpiry time.Duration `env:"JWT_REFRESH_EXPIRY" envDefault:"168h"`
	JWTSessionExpiry time.Duration `env:"JWT_SESSION_EXPIRY" envDefault:"4h"`

	// Session cookie
	SessionCookieName     string `env:"SESSION_COOKIE_NAME" envDefault:"jwt"`
	SessionCookiePath     string `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	SessionCookieDomain   string `env:"SESSION_COOKIE_DOMAIN"`
	SessionCookieSecure   bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	SessionCookieHTTPOnly bool   `env:"SESSION_COOKIE_HTTPONLY" envDefault:"true"`
	SessionCookieSameSite string `env:"SESSION_COOKIE_SAMESITE" envDefault:"lax"`
	SessionSaveEveryReq   bool   `env:"SESSION_SAVE_EVERY_REQUEST" envDefault:"false"`

	// Server
	APIPort int `env:"API_PORT" envDefault:"8000"`

	// Kafka
	KafkaBrokers string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaEnabled bool   `env:"KAFKA_ENABLED" envDefault:"false"`

	// CORS
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:"*"`

	// Dev
	AllowInsecureDefaults bool `env:"ALLOW_INSECURE_DEFAULTS" envDefault:"false"`

	// 42 OAuth
	FortyTwoClientID     string `env:"FORTYTWO_CLIENT_ID"`
	FortyTwoClientSecret string `env:"FORTYTWO_CLIENT_SECRET"`
	FortyTwoRedirectURI  string `env:"FORTYTWO_REDIRECT_URI"`
	FrontendURL          string `env:"FRONTEND_URL" envDefault:"http://localhost:5173"`

	// SMTP (activation mail)
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@pongarena.local"`

	// File storage
	AvatarDir string `env:"AVATAR_DIR" envDefault:"./data/avatars"`
}

// LoadConfig parses environment variables into a Config struct.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks for insecure configuration that must not run in production.
// Set ALLOW_INSECURE_DEFAULTS=true to bypass (local dev only).
func (c *Config) Validate() error {
	if c.AllowInsecureDefaults {
		return nil
	}
	if c.JWTSecret == "change-me-in-production" {
		return fmt.Errorf("JWT_SECRET is set to the insecure default; set a strong secret or set ALLOW_INSECURE_DEFAULTS=true for local dev")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET is too short (%d chars); minimum 32 characters required", len(c.JWTSecret))
	}
	if !c.SessionCookieSecure {
		return fmt.Errorf("SESSION_COOKIE_SECURE must be true outside local dev")
	}
	return nil
}

// DSN returns the PostgreSQL connection string, preferring DATABASE_URL if set.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.PGUser, c.PGPassword, c.PGHost, c.PGPort, c.PGDatabase)
}
