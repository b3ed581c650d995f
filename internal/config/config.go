package config

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                 string        `mapstructure:"PORT"`
	Env                  string        `mapstructure:"ENV"`
	BackendBaseURL       string        `mapstructure:"BACKEND_BASE_URL"`
	BackendTimeout       time.Duration `mapstructure:"BACKEND_TIMEOUT"`
	DatabaseURL          string        `mapstructure:"DATABASE_URL"`
	DBMaxConns           int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns           int32         `mapstructure:"DB_MIN_CONNS"`
	RedisURL             string        `mapstructure:"REDIS_URL"`
	SessionStore         string        `mapstructure:"SESSION_STORE"`
	SessionSigningKey    string        `mapstructure:"SESSION_SIGNING_KEY"`
	SessionEncryptionKey string        `mapstructure:"SESSION_ENCRYPTION_KEY"`
	SessionTTL           time.Duration `mapstructure:"SESSION_TTL"`
	CORSOrigins          []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS         float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst       int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout       time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit            string        `mapstructure:"BODY_LIMIT"`
	UploadLimit          string        `mapstructure:"UPLOAD_LIMIT"`
	RefreshInterval      time.Duration `mapstructure:"REFRESH_INTERVAL"`
	PhoneCountryCode     string        `mapstructure:"PHONE_COUNTRY_CODE"`
	KafkaBrokers         []string      `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic           string        `mapstructure:"KAFKA_TOPIC"`
	KafkaGroupID         string        `mapstructure:"KAFKA_GROUP_ID"`
	SentryDSN            string        `mapstructure:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3000/api")
	v.SetDefault("BACKEND_TIMEOUT", "15s")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("SESSION_STORE", "") // auto-detect from DATABASE_URL / REDIS_URL
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("UPLOAD_LIMIT", "10M")
	v.SetDefault("REFRESH_INTERVAL", "30s")
	v.SetDefault("PHONE_COUNTRY_CODE", "+91")
	v.SetDefault("KAFKA_TOPIC", "record-changes")
	v.SetDefault("KAFKA_GROUP_ID", "mediimate-gateway")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "BACKEND_BASE_URL", "BACKEND_TIMEOUT",
		"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "REDIS_URL",
		"SESSION_STORE", "SESSION_SIGNING_KEY", "SESSION_ENCRYPTION_KEY", "SESSION_TTL",
		"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"REQUEST_TIMEOUT", "BODY_LIMIT", "UPLOAD_LIMIT", "REFRESH_INTERVAL",
		"PHONE_COUNTRY_CODE", "KAFKA_BROKERS", "KAFKA_TOPIC", "KAFKA_GROUP_ID",
		"SENTRY_DSN",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(cfg.CORSOrigins, v.GetString("CORS_ORIGINS"))
	cfg.KafkaBrokers = splitList(cfg.KafkaBrokers, v.GetString("KAFKA_BROKERS"))
	cfg.BackendBaseURL = strings.TrimRight(cfg.BackendBaseURL, "/")

	if cfg.IsDev() && cfg.SessionSigningKey == "" {
		log.Println("WARNING: SESSION_SIGNING_KEY is not set; using an insecure development key.")
		cfg.SessionSigningKey = "development-only-session-signing-key"
	}

	return cfg, nil
}

// splitList normalizes comma-separated env values into trimmed, non-empty
// elements.
func splitList(parsed []string, raw string) []string {
	if len(parsed) == 0 && raw != "" {
		parsed = []string{raw}
	}
	var out []string
	for _, p := range parsed {
		for _, s := range strings.Split(p, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedSessionStore returns the effective session backend. If
// SESSION_STORE is explicitly set, it is returned. Otherwise:
//   - DATABASE_URL set → "postgres"
//   - REDIS_URL set    → "redis"
//   - Otherwise        → "memory"
func (c *Config) ResolvedSessionStore() string {
	if c.SessionStore != "" {
		return c.SessionStore
	}
	if c.DatabaseURL != "" {
		return "postgres"
	}
	if c.RedisURL != "" {
		return "redis"
	}
	return "memory"
}

// KafkaEnabled reports whether the backend change feed should be consumed.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0 && c.KafkaTopic != ""
}

// Validate checks that the configuration is safe to run.
func (c *Config) Validate() error {
	if c.BackendBaseURL == "" {
		return fmt.Errorf("BACKEND_BASE_URL is required")
	}

	switch store := c.ResolvedSessionStore(); store {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SESSION_STORE is \"postgres\"")
		}
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required when SESSION_STORE is \"redis\"")
		}
	default:
		return fmt.Errorf("SESSION_STORE must be \"memory\", \"postgres\", or \"redis\", got %q", store)
	}

	if c.SessionSigningKey == "" {
		return fmt.Errorf("SESSION_SIGNING_KEY is required outside development")
	}
	if c.IsProduction() && c.SessionEncryptionKey == "" {
		return fmt.Errorf("SESSION_ENCRYPTION_KEY is required in production")
	}
	if c.SessionEncryptionKey != "" {
		keyBytes, err := hex.DecodeString(c.SessionEncryptionKey)
		if err != nil {
			return fmt.Errorf("SESSION_ENCRYPTION_KEY is not valid hex: %w", err)
		}
		if len(keyBytes) != 32 {
			return fmt.Errorf("SESSION_ENCRYPTION_KEY must be 32 bytes (64 hex chars), got %d bytes", len(keyBytes))
		}
	}

	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}
	if c.RefreshInterval <= 0 {
		return fmt.Errorf("REFRESH_INTERVAL must be positive")
	}

	return nil
}
