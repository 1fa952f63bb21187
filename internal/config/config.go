package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultIODBaseURL = "https://api.idolondemand.com/1"

	bootstrapKeyPrefix = "tix_"
	minBootstrapKeyLen = 36
)

// Config holds all configuration for the textindex gateway.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	IOD      IODConfig
	Gateway  GatewayConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL string
}

// IODConfig configures the upstream indexing API client.
type IODConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type GatewayConfig struct {
	RateLimitPerMinute int
	StatusCacheTTL     time.Duration
	ResultCacheTTL     time.Duration
	MaxUploadBytes     int64

	// BootstrapKey, when set, is seeded as an admin key of the default tenant
	// at startup so the first key can be used to create the others.
	BootstrapKey string
}

// Load reads configuration from environment variables and returns a validated Config.
// If envFile is non-empty and exists it is loaded first; variables already set
// in the environment take precedence over the file.
func Load(envFile string) (*Config, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("TEXTINDEX_PORT", 8080),
			Env:  envString("TEXTINDEX_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		IOD: readIOD(),
		Gateway: GatewayConfig{
			RateLimitPerMinute: envInt("RATE_LIMIT_PER_MINUTE", 60),
			StatusCacheTTL:     envDuration("STATUS_CACHE_TTL", 30*time.Minute),
			ResultCacheTTL:     envDuration("RESULT_CACHE_TTL", 24*time.Hour),
			MaxUploadBytes:     int64(envInt("MAX_UPLOAD_BYTES", 50<<20)),
			BootstrapKey:       strings.TrimSpace(os.Getenv("GATEWAY_BOOTSTRAP_KEY")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadIOD reads only the upstream API settings. It is used by the CLI, which
// talks to the indexing API directly and needs no database or cache.
func LoadIOD(envFile string) (*IODConfig, error) {
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	cfg := readIOD()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func readIOD() IODConfig {
	return IODConfig{
		BaseURL: envString("IOD_BASE_URL", defaultIODBaseURL),
		APIKey:  os.Getenv("IOD_API_KEY"),
		Timeout: envDuration("IOD_TIMEOUT", 60*time.Second),
	}
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if err := c.IOD.validate(); err != nil {
		return err
	}
	if c.IOD.APIKey == "" {
		return fmt.Errorf("IOD_API_KEY is required")
	}

	if c.Gateway.RateLimitPerMinute <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MINUTE must be positive, got %d", c.Gateway.RateLimitPerMinute)
	}
	if c.Gateway.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.Gateway.MaxUploadBytes)
	}
	if k := c.Gateway.BootstrapKey; k != "" {
		if !strings.HasPrefix(k, bootstrapKeyPrefix) || len(k) < minBootstrapKeyLen {
			return fmt.Errorf("GATEWAY_BOOTSTRAP_KEY must start with %q and be at least %d characters",
				bootstrapKeyPrefix, minBootstrapKeyLen)
		}
	}

	return nil
}

func (c IODConfig) validate() error {
	if !strings.HasPrefix(c.BaseURL, "http://") && !strings.HasPrefix(c.BaseURL, "https://") {
		return fmt.Errorf("IOD_BASE_URL must start with http:// or https://, got %q", c.BaseURL)
	}
	return nil
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
