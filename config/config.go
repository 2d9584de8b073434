// Package config loads process settings from the environment, optionally
// seeded from a .env file in the working directory.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Env  string `env:"ENV" env-default:"development"`
	Port string `env:"PORT" env-default:"8080"`

	SQLiteDB string `env:"SQLITE_DB" env-default:"data/subscribers.db"`

	Session Session
	Admin   Admin
	Log     Log

	BcryptCost     int  `env:"BCRYPT_COST" env-default:"10"`
	TracingEnabled bool `env:"TRACING_ENABLED" env-default:"false"`
	MetricsEnabled bool `env:"METRICS_ENABLED" env-default:"true"`
}

type Session struct {
	Secret        string        `env:"SESSION_SECRET" env-required:"true"`
	TTL           time.Duration `env:"SESSION_TTL" env-default:"24h"`
	SecureCookies bool          `env:"SECURE_COOKIES" env-default:"false"`
}

// Admin is the single console principal. It is never stored in the database.
type Admin struct {
	Username string `env:"ADMIN_USERNAME" env-required:"true"`
	Password string `env:"ADMIN_PASSWORD" env-required:"true"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"json"`
}

// Load reads .env files (missing ones are ignored) and then the environment.
func Load(envFiles ...string) (*Config, error) {
	const op = "config.Load"

	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %s: %w", op, f, err)
		}
	}

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	// cleanenv's env-required only checks presence
	if strings.TrimSpace(c.Admin.Username) == "" || c.Admin.Password == "" {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must not be empty")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %s", c.Session.TTL)
	}
	if len(c.Session.Secret) < 16 {
		return errors.New("SESSION_SECRET must be at least 16 bytes")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST out of range: %d", c.BcryptCost)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// String omits secrets so the config can be logged at startup.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s, Port: %s, SQLiteDB: %s, SessionTTL: %s, SecureCookies: %t, Admin: %s, "+
			"BcryptCost: %d, Tracing: %t, Metrics: %t, LogLevel: %s",
		c.Env, c.Port, c.SQLiteDB, c.Session.TTL, c.Session.SecureCookies, c.Admin.Username,
		c.BcryptCost, c.TracingEnabled, c.MetricsEnabled, c.Log.Level,
	)
}
