package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const defaultDatabase = "warranty-manager"

type Config struct {
	ServerAddress string `env:"SERVER_ADDRESS"`

	StoreDriver   string `env:"STORE_DRIVER"`
	MongoURI      string `env:"MONGODB_URI"`
	MongoDatabase string `env:"MONGODB_DATABASE"`
	SQLitePath    string `env:"SQLITE_PATH"`
	DataDir       string `env:"DATA_DIR"`

	UploadDir      string `env:"UPLOAD_DIR"`
	MaxUploadBytes int64  `env:"MAX_UPLOAD_BYTES"`

	CORSOrigins string `env:"CORS_ORIGINS"`

	LogLevel  string `env:"LOG_LEVEL"`
	LogFormat string `env:"LOG_FORMAT"`

	UIEnabled  bool   `env:"UI_ENABLED"`
	APIBaseURL string `env:"API_BASE_URL"`

	// Seconds.
	ReadTimeout     int `env:"READ_TIMEOUT"`
	WriteTimeout    int `env:"WRITE_TIMEOUT"`
	ShutdownTimeout int `env:"SHUTDOWN_TIMEOUT"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		ServerAddress:   ":5000",
		StoreDriver:     "mongo",
		MongoURI:        "mongodb://localhost:27017/" + defaultDatabase,
		SQLitePath:      "./data/locker.db",
		UploadDir:       "./uploads",
		MaxUploadBytes:  5_000_000,
		CORSOrigins:     "http://localhost:3000",
		LogLevel:        "info",
		LogFormat:       "json",
		UIEnabled:       true,
		ReadTimeout:     30,
		WriteTimeout:    60,
		ShutdownTimeout: 10,
	}
}

// Load reads envFile (if it exists) into the process environment and then
// overlays the environment onto the defaults. An empty envFile means ".env".
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = ".env"
	}
	if _, err := os.Stat(envFile); err == nil {
		if err := godotenv.Load(envFile); err != nil {
			return nil, errors.Wrapf(err, "load %s", envFile)
		}
	}

	cfg := Default()
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, errors.Wrap(err, "read environment")
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) normalize() error {
	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case "mongo", "sqlite", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be mongo, sqlite or memory, got %q", c.StoreDriver)
	}

	if c.StoreDriver == "mongo" && c.MongoDatabase == "" {
		c.MongoDatabase = databaseFromURI(c.MongoURI)
	}
	if c.StoreDriver == "sqlite" && c.SQLitePath == "" {
		return errors.New("SQLITE_PATH is required for the sqlite store")
	}
	if c.UploadDir == "" {
		return errors.New("UPLOAD_DIR must not be empty")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.LogFormat)
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = "http://localhost" + c.ServerAddress
		if !strings.HasPrefix(c.ServerAddress, ":") {
			c.APIBaseURL = "http://" + c.ServerAddress
		}
	}
	return nil
}

// AllowedOrigins splits CORS_ORIGINS on commas.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c *Config) WriteTimeoutDuration() time.Duration {
	return time.Duration(c.WriteTimeout) * time.Second
}

func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Second
}

// databaseFromURI returns the database named in the URI path, or the default.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err != nil {
		return defaultDatabase
	}
	if name := strings.Trim(u.Path, "/"); name != "" {
		return name
	}
	return defaultDatabase
}
