package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LIBRARY_DB_DSN for db.dsn.
const EnvPrefix = "LIBRARY"

type Config struct {
	Port     string
	LogLevel string
	DB       DBConfig
	Auth     AuthConfig
	Storage  StorageConfig
	CORS     CORSConfig
	Books    BooksConfig
}

type DBConfig struct {
	Driver string // sqlite | postgres
	DSN    string
}

type AuthConfig struct {
	SigningKey string
	TokenTTL   time.Duration
}

type StorageConfig struct {
	CoversDir     string
	MaxCoverBytes int64
}

type CORSConfig struct {
	AllowedOrigins []string
}

type BooksConfig struct {
	DefaultLimit int
}

var defaults = map[string]any{
	"port":                    "8080",
	"log_level":               "info",
	"db.driver":               "sqlite",
	"db.dsn":                  "library.db",
	"auth.signing_key":        "",
	"auth.token_ttl":          "30m",
	"storage.covers_dir":      "covers",
	"storage.max_cover_bytes": 5 << 20,
	"cors.allowed_origins":    []string{"*"},
	"books.default_limit":     10,
}

// Load reads an optional .env file, then configs/config.yml (or the directories given), then
// LIBRARY_* environment variables. Missing files are not an error; every key has a default.
func Load(paths ...string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	if len(paths) == 0 {
		paths = []string{"configs"}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		Port:     v.GetString("port"),
		LogLevel: strings.ToLower(v.GetString("log_level")),
		DB: DBConfig{
			Driver: strings.ToLower(v.GetString("db.driver")),
			DSN:    v.GetString("db.dsn"),
		},
		Auth: AuthConfig{
			SigningKey: v.GetString("auth.signing_key"),
			TokenTTL:   v.GetDuration("auth.token_ttl"),
		},
		Storage: StorageConfig{
			CoversDir:     v.GetString("storage.covers_dir"),
			MaxCoverBytes: v.GetInt64("storage.max_cover_bytes"),
		},
		CORS:  CORSConfig{AllowedOrigins: splitList(v.GetStringSlice("cors.allowed_origins"))},
		Books: BooksConfig{DefaultLimit: v.GetInt("books.default_limit")},
	}
	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required (set LIBRARY_AUTH_SIGNING_KEY)")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	if c.Books.DefaultLimit <= 0 {
		return fmt.Errorf("books.default_limit must be positive, got %d", c.Books.DefaultLimit)
	}
	switch c.DB.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported db.driver %q", c.DB.Driver)
	}
	return nil
}

// splitList accepts both YAML lists and a comma-separated env value.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
