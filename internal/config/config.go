package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maltedev/product-extractor/internal/archive"
	"github.com/maltedev/product-extractor/internal/database"
	"github.com/maltedev/product-extractor/internal/fetch"
	"github.com/maltedev/product-extractor/internal/marketplace"
)

// FileEnv names the optional YAML file layered between defaults and environment.
const FileEnv = "EXTRACTOR_CONFIG_FILE"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Fetch    FetchConfig    `yaml:"fetch"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Events   EventsConfig   `yaml:"events"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port            string        `yaml:"port"`
	Host            string        `yaml:"host"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type FetchConfig struct {
	Relays        []string      `yaml:"relays"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes"`
	UserAgents    []string      `yaml:"user_agents"`
	PacingEnabled bool          `yaml:"pacing_enabled"`
	PacingMin     time.Duration `yaml:"pacing_min"`
	PacingMax     time.Duration `yaml:"pacing_max"`

	// Lets page and image requests reach loopback and private addresses.
	AllowPrivateNetworks bool `yaml:"allow_private_networks"`
}

type ArchiveConfig struct {
	Folder        string        `yaml:"folder"`
	Concurrency   int           `yaml:"concurrency"`
	Timeout       time.Duration `yaml:"timeout"`
	MaxImageBytes int64         `yaml:"max_image_bytes"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// EventsConfig controls PRODUCT_EXTRACTED publishing. Enabling it requires
// both Postgres (outbox) and Redis (relay target).
type EventsConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Stream       string        `yaml:"stream"`
	PollInterval time.Duration `yaml:"poll_interval"`
	BatchSize    int           `yaml:"batch_size"`
	StreamMaxLen int64         `yaml:"stream_max_len"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8080",
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 10 * time.Second,
			AllowedOrigins:  []string{"http://localhost:*", "https://localhost:*"},
		},
		Fetch: FetchConfig{
			Relays:       fetch.DefaultRelays(),
			Timeout:      fetch.DefaultTimeout,
			MaxBodyBytes: fetch.DefaultMaxBodyBytes,
			UserAgents:   marketplace.DefaultUserAgents(),
			PacingMin:    500 * time.Millisecond,
			PacingMax:    5 * time.Second,
		},
		Archive: ArchiveConfig{
			Folder:        archive.DefaultFolder,
			Concurrency:   archive.DefaultConcurrency,
			Timeout:       archive.DefaultTimeout,
			MaxImageBytes: archive.DefaultMaxImageBytes,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			DBName:   "product_extractor",
			SSLMode:  "disable",
			MaxConns: 10,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Events: EventsConfig{
			Stream:       database.DefaultTargetStream,
			PollInterval: 5 * time.Second,
			BatchSize:    100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file named
// by EXTRACTOR_CONFIG_FILE, and environment variables, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(FileEnv); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

func (c *Config) applyEnv() {
	c.Server.Port = getEnvOrDefault("SERVER_PORT", c.Server.Port)
	c.Server.Host = getEnvOrDefault("SERVER_HOST", c.Server.Host)
	c.Server.ReadTimeout = getDurationOrDefault("SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getDurationOrDefault("SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.ShutdownTimeout = getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	c.Server.AllowedOrigins = getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", c.Server.AllowedOrigins)

	c.Fetch.Relays = getStringSliceOrDefault("FETCH_RELAYS", c.Fetch.Relays)
	if os.Getenv("FETCH_DISABLE_RELAYS") == "true" {
		c.Fetch.Relays = []string{}
	}
	c.Fetch.Timeout = getDurationOrDefault("FETCH_TIMEOUT", c.Fetch.Timeout)
	c.Fetch.MaxBodyBytes = int64(getIntOrDefault("FETCH_MAX_BODY_BYTES", int(c.Fetch.MaxBodyBytes)))
	c.Fetch.UserAgents = getStringSliceOrDefault("FETCH_USER_AGENTS", c.Fetch.UserAgents)
	c.Fetch.PacingEnabled = getBoolOrDefault("FETCH_PACING_ENABLED", c.Fetch.PacingEnabled)
	c.Fetch.PacingMin = getDurationOrDefault("FETCH_PACING_MIN", c.Fetch.PacingMin)
	c.Fetch.PacingMax = getDurationOrDefault("FETCH_PACING_MAX", c.Fetch.PacingMax)
	c.Fetch.AllowPrivateNetworks = getBoolOrDefault("FETCH_ALLOW_PRIVATE_NETWORKS", c.Fetch.AllowPrivateNetworks)

	c.Archive.Folder = getEnvOrDefault("ARCHIVE_FOLDER", c.Archive.Folder)
	c.Archive.Concurrency = getIntOrDefault("ARCHIVE_CONCURRENCY", c.Archive.Concurrency)
	c.Archive.Timeout = getDurationOrDefault("ARCHIVE_TIMEOUT", c.Archive.Timeout)
	c.Archive.MaxImageBytes = int64(getIntOrDefault("ARCHIVE_MAX_IMAGE_BYTES", int(c.Archive.MaxImageBytes)))

	c.Database.Host = getEnvOrDefault("DB_HOST", c.Database.Host)
	c.Database.Port = getIntOrDefault("DB_PORT", c.Database.Port)
	c.Database.User = getEnvOrDefault("DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("DB_PASSWORD", c.Database.Password)
	c.Database.DBName = getEnvOrDefault("DB_NAME", c.Database.DBName)
	c.Database.SSLMode = getEnvOrDefault("DB_SSL_MODE", c.Database.SSLMode)
	c.Database.MaxConns = int32(getIntOrDefault("DB_MAX_CONNS", int(c.Database.MaxConns)))

	c.Redis.Addr = getEnvOrDefault("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = getIntOrDefault("REDIS_DB", c.Redis.DB)

	c.Events.Enabled = getBoolOrDefault("EVENTS_ENABLED", c.Events.Enabled)
	c.Events.Stream = getEnvOrDefault("EVENTS_STREAM", c.Events.Stream)
	c.Events.PollInterval = getDurationOrDefault("EVENTS_POLL_INTERVAL", c.Events.PollInterval)
	c.Events.BatchSize = getIntOrDefault("EVENTS_BATCH_SIZE", c.Events.BatchSize)
	c.Events.StreamMaxLen = int64(getIntOrDefault("EVENTS_STREAM_MAX_LEN", int(c.Events.StreamMaxLen)))

	c.Logging.Level = getEnvOrDefault("LOG_LEVEL", c.Logging.Level)
	c.Logging.Format = getEnvOrDefault("LOG_FORMAT", c.Logging.Format)
}

func (c *Config) Validate() error {
	var errs []error

	if c.Fetch.Timeout <= 0 {
		errs = append(errs, errors.New("FETCH_TIMEOUT must be positive"))
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("FETCH_MAX_BODY_BYTES must be positive"))
	}
	if c.Fetch.PacingMin > c.Fetch.PacingMax {
		errs = append(errs, errors.New("FETCH_PACING_MIN cannot be greater than FETCH_PACING_MAX"))
	}
	for _, relay := range c.Fetch.Relays {
		if !strings.HasPrefix(relay, "http://") && !strings.HasPrefix(relay, "https://") {
			errs = append(errs, fmt.Errorf("relay %q must be an http(s) url", relay))
		}
	}

	if c.Archive.Concurrency < 1 {
		errs = append(errs, errors.New("ARCHIVE_CONCURRENCY must be at least 1"))
	}
	if strings.Trim(c.Archive.Folder, "/") == "" {
		errs = append(errs, errors.New("ARCHIVE_FOLDER cannot be empty"))
	}

	if c.Events.Enabled {
		if c.Events.BatchSize < 1 {
			errs = append(errs, errors.New("EVENTS_BATCH_SIZE must be at least 1"))
		}
		if c.Events.Stream == "" {
			errs = append(errs, errors.New("EVENTS_STREAM cannot be empty"))
		}
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// Addr is the listen address of the HTTP server.
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}

func (c DatabaseConfig) Connection() database.Config {
	return database.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.DBName,
		SSLMode:  c.SSLMode,
		MaxConns: c.MaxConns,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

// getStringSliceOrDefault splits a comma separated list, dropping blank entries.
func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
