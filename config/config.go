// Package config reads service settings from the environment, after loading
// an optional .env file.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	StorageMongo  = "mongo"
	StorageMemory = "memory"

	EmailPostmark = "postmark"
	EmailSendGrid = "sendgrid"
	EmailNone     = "none"
)

type Config struct {
	Port     string
	LogLevel string

	Storage  string
	MongoURI string
	MongoDB  string

	JWTSecret string
	// AdminEmails get the admin role when they register.
	AdminEmails []string

	EmailProvider    string
	PostmarkAPIToken string
	SendGridAPIKey   string
	EmailSender      string
	PublicURL        string

	StripeSecretKey string
	ExpoPushURL     string

	PenaltyRate   decimal.Decimal
	SweepInterval time.Duration
}

// Load reads .env when present and then the process environment.
func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getenv("PORT", "8000"),
		LogLevel:         getenv("LOG_LEVEL", "info"),
		Storage:          strings.ToLower(getenv("STORAGE", StorageMongo)),
		MongoURI:         getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:          getenv("MONGO_DB", "ecommerce"),
		JWTSecret:        os.Getenv("JWT_SECRET"),
		EmailProvider:    strings.ToLower(getenv("EMAIL_PROVIDER", EmailNone)),
		PostmarkAPIToken: os.Getenv("POSTMARK_API_TOKEN"),
		SendGridAPIKey:   os.Getenv("SENDGRID_API_KEY"),
		EmailSender:      os.Getenv("EMAIL_SENDER"),
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		ExpoPushURL:      getenv("EXPO_PUSH_URL", "https://exp.host/--/api/v2/push/send"),
	}
	cfg.PublicURL = getenv("PUBLIC_URL", "http://localhost:"+cfg.Port)
	for _, email := range strings.Split(os.Getenv("ADMIN_EMAILS"), ",") {
		if email = strings.ToLower(strings.TrimSpace(email)); email != "" {
			cfg.AdminEmails = append(cfg.AdminEmails, email)
		}
	}

	rate, err := decimal.NewFromString(getenv("BNPL_PENALTY_RATE", "2"))
	if err != nil {
		return nil, fmt.Errorf("BNPL_PENALTY_RATE: %w", err)
	}
	if rate.IsNegative() {
		return nil, fmt.Errorf("BNPL_PENALTY_RATE must not be negative")
	}
	cfg.PenaltyRate = rate

	interval, err := time.ParseDuration(getenv("BNPL_SWEEP_INTERVAL", "1h"))
	if err != nil {
		return nil, fmt.Errorf("BNPL_SWEEP_INTERVAL: %w", err)
	}
	cfg.SweepInterval = interval

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range c.AdminEmails {
		if admin == email {
			return true
		}
	}
	return false
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is not set")
	}
	switch c.Storage {
	case StorageMongo, StorageMemory:
	default:
		return fmt.Errorf("unknown STORAGE %q", c.Storage)
	}
	switch c.EmailProvider {
	case EmailPostmark:
		if c.PostmarkAPIToken == "" {
			return fmt.Errorf("POSTMARK_API_TOKEN is not set")
		}
	case EmailSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is not set")
		}
	case EmailNone:
	default:
		return fmt.Errorf("unknown EMAIL_PROVIDER %q", c.EmailProvider)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
