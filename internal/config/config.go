// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	v "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/ajwan-web/ajwan-admin/internal/locale"
)

// knownWeakSecrets contains default/example secrets that must be rejected.
var knownWeakSecrets = []string{
	"change-me-to-32-byte-secret-key!",
	"REPLACE_WITH_YOUR_OWN_SECRET_KEY!",
}

// Config holds the application configuration loaded from environment variables.
type Config struct {
	CMSURL           string        `env:"AJWAN_CMS_URL" envDefault:"http://localhost:1337"`
	CMSAPIPath       string        `env:"AJWAN_CMS_API_PATH" envDefault:"/api"`
	CMSTimeout       time.Duration `env:"AJWAN_CMS_TIMEOUT" envDefault:"30s"`
	CMSUploadTimeout time.Duration `env:"AJWAN_CMS_UPLOAD_TIMEOUT" envDefault:"60s"`

	DBPath        string `env:"AJWAN_DB_PATH" envDefault:"./data/ajwan-admin.db"`
	SessionSecret string `env:"AJWAN_SESSION_SECRET,required"`
	ServerHost    string `env:"AJWAN_SERVER_HOST" envDefault:"localhost"`
	ServerPort    int    `env:"AJWAN_SERVER_PORT" envDefault:"8080"`
	Env           string `env:"AJWAN_ENV" envDefault:"development"`
	LogLevel      string `env:"AJWAN_LOG_LEVEL" envDefault:"info"`

	// AdminRoleID is the CMS role allowed into the dashboard.
	AdminRoleID     int64  `env:"AJWAN_ADMIN_ROLE_ID" envDefault:"3"`
	PrimaryLocale   string `env:"AJWAN_PRIMARY_LOCALE" envDefault:"en"`
	SecondaryLocale string `env:"AJWAN_SECONDARY_LOCALE" envDefault:"ar-SA"`
	MaxUploadBytes  int64  `env:"AJWAN_MAX_UPLOAD_BYTES" envDefault:"10485760"`

	// Cache configuration
	RedisURL     string        `env:"AJWAN_REDIS_URL"` // memory cache when empty
	CachePrefix  string        `env:"AJWAN_CACHE_PREFIX" envDefault:"ajwan:"`
	CacheMaxSize int           `env:"AJWAN_CACHE_MAX_SIZE" envDefault:"10000"`
	RoleCacheTTL time.Duration `env:"AJWAN_ROLE_CACHE_TTL" envDefault:"5m"`

	WorkspaceIdle       time.Duration `env:"AJWAN_WORKSPACE_IDLE" envDefault:"2h"`
	EventRetentionDays  int           `env:"AJWAN_EVENT_RETENTION_DAYS" envDefault:"30"`
	LoginMaxAttempts    int           `env:"AJWAN_LOGIN_MAX_ATTEMPTS" envDefault:"5"`
	LoginLockoutMinutes int           `env:"AJWAN_LOGIN_LOCKOUT_MINUTES" envDefault:"15"`
}

// IsDevelopment returns true if the application is running in development mode.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

// ServerAddr returns the full server address in host:port format.
func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

// UseRedisCache returns true if Redis caching is configured.
func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Locales returns the configured language pair.
func (c Config) Locales() (locale.Locales, error) {
	return locale.New(c.PrimaryLocale, c.SecondaryLocale)
}

// EventRetention returns how long activity events are kept.
func (c Config) EventRetention() time.Duration {
	return time.Duration(c.EventRetentionDays) * 24 * time.Hour
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// MinSessionSecretLength is the minimum required length for the session secret.
const MinSessionSecretLength = 32

// Load parses environment variables and returns a validated Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := validateSecret(cfg.SessionSecret); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	cfg.CMSURL = strings.TrimRight(cfg.CMSURL, "/")
	return cfg, nil
}

// Validate checks value ranges and formats.
func (c Config) Validate() error {
	err := v.ValidateStruct(&c,
		v.Field(&c.CMSURL, v.Required, is.URL),
		v.Field(&c.CMSAPIPath, v.Required, v.By(startsWithSlash)),
		v.Field(&c.CMSTimeout, v.Required, v.Min(time.Second)),
		v.Field(&c.CMSUploadTimeout, v.Required, v.Min(time.Second)),
		v.Field(&c.DBPath, v.Required),
		v.Field(&c.ServerPort, v.Required, v.Min(1), v.Max(65535)),
		v.Field(&c.Env, v.Required, v.In("development", "production")),
		v.Field(&c.AdminRoleID, v.Required, v.Min(int64(1))),
		v.Field(&c.MaxUploadBytes, v.Required, v.Min(int64(1))),
		v.Field(&c.RedisURL, v.When(c.RedisURL != "", is.RequestURL)),
		v.Field(&c.CacheMaxSize, v.Min(0)),
		v.Field(&c.RoleCacheTTL, v.Min(time.Duration(0))),
		v.Field(&c.WorkspaceIdle, v.Required, v.Min(time.Minute)),
		v.Field(&c.EventRetentionDays, v.Required, v.Min(1)),
		v.Field(&c.LoginMaxAttempts, v.Required, v.Min(1)),
		v.Field(&c.LoginLockoutMinutes, v.Required, v.Min(1)),
	)
	if err != nil {
		return err
	}
	if _, err := c.Locales(); err != nil {
		return err
	}
	return nil
}

func startsWithSlash(value any) error {
	s, _ := value.(string)
	if !strings.HasPrefix(s, "/") {
		return errors.New("must start with /")
	}
	return nil
}

func validateSecret(secret string) error {
	if len(secret) < MinSessionSecretLength {
		return fmt.Errorf("AJWAN_SESSION_SECRET must be at least %d bytes long, got %d bytes; "+
			"generate a secure secret with: openssl rand -base64 32",
			MinSessionSecretLength, len(secret))
	}

	for _, weak := range knownWeakSecrets {
		if secret == weak {
			return errors.New("AJWAN_SESSION_SECRET is a known default value and must not be used; " +
				"generate a secure secret with: openssl rand -base64 32")
		}
	}

	if !hasMinimumEntropy(secret) {
		slog.Warn("AJWAN_SESSION_SECRET has low character diversity; "+
			"consider generating a random secret with: openssl rand -base64 32", "category", "config")
	}
	return nil
}

// hasMinimumEntropy checks that a secret contains at least 3 character classes
// (lowercase, uppercase, digits, special characters).
func hasMinimumEntropy(s string) bool {
	charTypes := 0
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyz") {
		charTypes++
	}
	if strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		charTypes++
	}
	if strings.ContainsAny(s, "0123456789") {
		charTypes++
	}
	if strings.ContainsAny(s, "!@#$%^&*()-_=+[]{}|;:,.<>?/~`'\"\\") {
		charTypes++
	}
	return charTypes >= 3
}
