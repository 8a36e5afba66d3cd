// Package config loads runtime settings for the server and the board client.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix         = "PM_"
	maxConfigFileSize = 1024 * 1024
)

// Config keeps runtime settings for the server.
type Config struct {
	Server    Server    `koanf:"server"`
	Database  Database  `koanf:"database"`
	Auth      Auth      `koanf:"auth"`
	Cache     Cache     `koanf:"cache"`
	Storage   Storage   `koanf:"storage"`
	Logging   Logging   `koanf:"logging"`
	Scheduler Scheduler `koanf:"scheduler"`
}

type Server struct {
	Addr            string        `koanf:"addr"`
	StaticDir       string        `koanf:"static_dir"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// AuthRatePerMin throttles the public auth endpoints per client IP;
	// zero disables throttling.
	AuthRatePerMin int `koanf:"auth_rate_per_min"`
	AuthBurst      int `koanf:"auth_burst"`
}

type Database struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
	Debug  bool   `koanf:"debug"`
}

type Auth struct {
	JWTSecret   string        `koanf:"jwt_secret"`
	JWTIssuer   string        `koanf:"jwt_issuer"`
	JWTAudience string        `koanf:"jwt_audience"`
	TokenTTL    time.Duration `koanf:"token_ttl"`
	OTPTTL      time.Duration `koanf:"otp_ttl"`
	// PublicURL is used to build OAuth callback URLs.
	PublicURL string `koanf:"public_url"`
	GitHub    OAuth  `koanf:"github"`
	Google    OAuth  `koanf:"google"`
}

// OAuth holds client credentials for one identity provider. An empty
// ClientID disables the provider.
type OAuth struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
}

type Cache struct {
	Backend       string        `koanf:"backend"`
	TTL           time.Duration `koanf:"ttl"`
	RedisAddr     string        `koanf:"redis_addr"`
	RedisDB       int           `koanf:"redis_db"`
	RedisPassword string        `koanf:"redis_password"`
	RedisPrefix   string        `koanf:"redis_prefix"`
}

type Storage struct {
	Dir            string `koanf:"dir"`
	MaxUploadBytes int64  `koanf:"max_upload_bytes"`
}

type Logging struct {
	Level      string `koanf:"level"`
	Format     string `koanf:"format"`
	Output     string `koanf:"output"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb"`
	MaxAgeDays int    `koanf:"max_age_days"`
}

type Scheduler struct {
	Enabled       bool          `koanf:"enabled"`
	PurgeInterval time.Duration `koanf:"purge_interval"`
	// DigestAt is the HH:MM local time of the daily overdue digest.
	DigestAt string `koanf:"digest_at"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8008",
			CORSOrigins:     []string{"*"},
			ShutdownTimeout: 10 * time.Second,
			AuthRatePerMin:  30,
			AuthBurst:       10,
		},
		Database: Database{
			Driver: "sqlite",
			DSN:    "projectboard.db",
		},
		Auth: Auth{
			JWTSecret:   "development-insecure-secret-change-me",
			JWTIssuer:   "projectboard-api",
			JWTAudience: "projectboard-clients",
			TokenTTL:    24 * time.Hour,
			OTPTTL:      10 * time.Minute,
			PublicURL:   "http://localhost:8008",
		},
		Cache: Cache{
			Backend:     "memory",
			TTL:         time.Minute,
			RedisAddr:   "localhost:6379",
			RedisPrefix: "projectboard:",
		},
		Storage: Storage{
			Dir:            "uploads",
			MaxUploadBytes: 10 << 20,
		},
		Logging: Logging{
			Level:      "info",
			Format:     "console",
			Output:     "stdout",
			File:       "logs/projectboard.log",
			MaxSizeMB:  100,
			MaxAgeDays: 7,
		},
		Scheduler: Scheduler{
			Enabled:       true,
			PurgeInterval: 5 * time.Minute,
			DigestAt:      "09:00",
		},
	}
}

// Load builds the configuration from defaults, then the optional YAML file at
// path, then PM_-prefixed environment variables. A double underscore separates
// sections: PM_AUTH__JWT_SECRET -> auth.jwt_secret.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	return io.ReadAll(f)
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth jwt_secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token_ttl must be positive")
	}
	if c.Storage.MaxUploadBytes <= 0 {
		return fmt.Errorf("storage max_upload_bytes must be positive")
	}
	return nil
}
