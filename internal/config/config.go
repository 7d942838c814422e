// Package config loads process settings for cmd/forgeauth from the
// environment, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/MrEthical07/forgeauth"
)

// Config mirrors the environment. Only JWT_SECRET_KEY is required.
type Config struct {
	JWTSecretKey             string `env:"JWT_SECRET_KEY,required,notEmpty,unset"`
	JWTPublicKey             string `env:"JWT_PUBLIC_KEY,unset"`
	JWTAlgorithm             string `env:"JWT_ALGORITHM"                   envDefault:"HS256"`
	AccessTokenExpireMinutes int    `env:"JWT_ACCESS_TOKEN_EXPIRE_MINUTES" envDefault:"15"`
	RefreshTokenExpireDays   int    `env:"JWT_REFRESH_TOKEN_EXPIRE_DAYS"   envDefault:"7"`

	// DatabaseURL empty runs on the in-memory store.
	DatabaseURL string `env:"DATABASE_URL,unset"`

	RedisAddr     string `env:"REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD,unset"`
	RedisDB       int    `env:"REDIS_DB"       envDefault:"0"`

	SMTPHost     string `env:"SMTP_HOST"     envDefault:"localhost"`
	SMTPPort     int    `env:"SMTP_PORT"     envDefault:"1025"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD,unset"`
	SMTPFrom     string `env:"SMTP_FROM"     envDefault:"noreply@forgestream.dev"`
	SMTPStartTLS bool   `env:"SMTP_STARTTLS" envDefault:"false"`

	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET,unset"`
	GitHubRedirectURI  string `env:"GITHUB_REDIRECT_URI" envDefault:"http://localhost:3000/api/auth/callback/github"`

	FrontendURL     string        `env:"FRONTEND_URL"      envDefault:"http://localhost:3000"`
	HTTPAddr        string        `env:"HTTP_ADDR"         envDefault:":8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT"  envDefault:"10s"`
	LogLevel        string        `env:"LOG_LEVEL"         envDefault:"info"`
	LogDev          bool          `env:"LOG_DEV"           envDefault:"false"`
}

// Load reads files into the environment, then parses it. Variables already
// set win over file values. With no files, a .env in the working directory
// is loaded when present.
func Load(files ...string) (Config, error) {
	if len(files) > 0 {
		if err := godotenv.Load(files...); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return Config{}, fmt.Errorf("load .env: %w", err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch strings.ToUpper(c.JWTAlgorithm) {
	case "HS256":
	case "EDDSA":
		if c.JWTPublicKey == "" {
			return errors.New("JWT_PUBLIC_KEY is required for EdDSA")
		}
	default:
		return fmt.Errorf("unsupported JWT_ALGORITHM %q", c.JWTAlgorithm)
	}
	if c.AccessTokenExpireMinutes <= 0 || c.RefreshTokenExpireDays <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

// GitHubEnabled reports whether GitHub login is configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Engine maps the settings onto the library configuration.
func (c Config) Engine() forgeauth.Config {
	cfg := forgeauth.DefaultConfig()
	cfg.JWT.AccessTTL = time.Duration(c.AccessTokenExpireMinutes) * time.Minute
	cfg.JWT.RefreshTTL = time.Duration(c.RefreshTokenExpireDays) * 24 * time.Hour
	cfg.JWT.PrivateKey = []byte(c.JWTSecretKey)
	if strings.EqualFold(c.JWTAlgorithm, "EdDSA") {
		cfg.JWT.SigningMethod = "ed25519"
		cfg.JWT.PublicKey = []byte(c.JWTPublicKey)
	} else {
		cfg.JWT.SigningMethod = "hs256"
	}
	cfg.FrontendURL = c.FrontendURL
	cfg.Audit.Enabled = true
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	return cfg
}
