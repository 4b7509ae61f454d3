package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Database       DatabaseConfig       `yaml:"database"`
	Auction        AuctionConfig        `yaml:"auction"`
	Admin          AdminConfig          `yaml:"admin"`
	HTTP           HTTPConfig           `yaml:"http"`
	Discord        DiscordConfig        `yaml:"discord"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
}

// DiscordConfig holds Discord bot settings. The bot is off without a token.
type DiscordConfig struct {
	Token   string `yaml:"token" env:"AUCTION_DISCORD_TOKEN"`
	GuildID string `yaml:"guild_id" env:"AUCTION_DISCORD_GUILD_ID"`
}

// DatabaseConfig holds persistence settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver" env:"AUCTION_DB_DRIVER"` // "bolt", "postgres" or "sqlite"
	// Path is the database file for the embedded drivers.
	Path string `yaml:"path" env:"AUCTION_DB_PATH"`

	Host     string `yaml:"host" env:"AUCTION_DB_HOST"`
	Port     int    `yaml:"port" env:"AUCTION_DB_PORT"`
	User     string `yaml:"user" env:"AUCTION_DB_USER"`
	Password string `yaml:"password" env:"AUCTION_DB_PASSWORD"`
	DBName   string `yaml:"dbname" env:"AUCTION_DB_NAME"`
	SSLMode  string `yaml:"sslmode" env:"AUCTION_DB_SSLMODE"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port" env:"AUCTION_PORT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"AUCTION_SHUTDOWN_TIMEOUT"`
}

// AuctionConfig holds the auction floor settings.
type AuctionConfig struct {
	Purse int64 `yaml:"purse" env:"AUCTION_PURSE"`
	// SeedFile is a CSV in the seed format used as the default pool.
	SeedFile     string        `yaml:"seed_file" env:"AUCTION_SEED_FILE"`
	SyncInterval time.Duration `yaml:"sync_interval" env:"AUCTION_SYNC_INTERVAL"`
	// RandSeed fixes the draw order. Zero means random.
	RandSeed uint64 `yaml:"rand_seed" env:"AUCTION_RAND_SEED"`
}

// AdminConfig holds the credentials guarding admin routes.
type AdminConfig struct {
	PasswordHash string        `yaml:"password_hash" env:"AUCTION_ADMIN_PASSWORD_HASH"`
	JWTSecret    string        `yaml:"jwt_secret" env:"AUCTION_JWT_SECRET"`
	TokenTTL     time.Duration `yaml:"token_ttl" env:"AUCTION_TOKEN_TTL"`
}

// HTTPConfig holds settings for the public API surface.
type HTTPConfig struct {
	CORSOrigins []string `yaml:"cors_origins" env:"AUCTION_CORS_ORIGINS" envSeparator:","`
	// RateLimit is requests per second per client on bid routes.
	RateLimit float64 `yaml:"rate_limit" env:"AUCTION_RATE_LIMIT"`
	RateBurst int     `yaml:"rate_burst" env:"AUCTION_RATE_BURST"`
	// LimiterCacheSize bounds the number of tracked clients.
	LimiterCacheSize int `yaml:"limiter_cache_size" env:"AUCTION_LIMITER_CACHE_SIZE"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name" env:"AUCTION_SERVICE_NAME"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint" env:"AUCTION_OTLP_ENDPOINT"`
	Insecure       bool   `yaml:"insecure" env:"AUCTION_OTLP_INSECURE"`
	// LogLevel applies to the local stderr logger: debug, info, warn or error.
	LogLevel string `yaml:"log_level" env:"AUCTION_LOG_LEVEL"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled" env:"AUCTION_LEADER_ELECTION"`
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace" env:"AUCTION_LEASE_NAMESPACE"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "bolt",
			Path:    "auction.db",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Auction: AuctionConfig{
			Purse:        1_200_000_000,
			SyncInterval: time.Second,
		},
		Admin: AdminConfig{
			TokenTTL: 12 * time.Hour,
		},
		HTTP: HTTPConfig{
			CORSOrigins:      []string{"*"},
			RateLimit:        5,
			RateBurst:        10,
			LimiterCacheSize: 1024,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctiond",
			ServiceVersion: "0.1.0",
			LogLevel:       "info",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctiond-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
	}
}

// Load reads a YAML configuration file from the given path and applies
// AUCTION_* environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "bolt", "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("database driver %q requires a path", c.Database.Driver)
		}
	case "postgres":
		// valid
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"bolt\", \"postgres\" or \"sqlite\"", c.Database.Driver)
	}
	if c.Auction.Purse <= 0 {
		return errors.New("auction purse must be positive")
	}
	if c.Auction.SyncInterval <= 0 {
		return errors.New("auction sync interval must be positive")
	}
	if c.Admin.PasswordHash != "" && c.Admin.JWTSecret == "" {
		return errors.New("admin jwt secret is required when a password hash is set")
	}
	if c.HTTP.RateLimit <= 0 || c.HTTP.RateBurst <= 0 {
		return errors.New("http rate limit and burst must be positive")
	}
	if c.HTTP.LimiterCacheSize <= 0 {
		return errors.New("http limiter cache size must be positive")
	}
	return nil
}
