// Package config reads server settings from the environment.
//
// A .env file in the working directory is loaded first if it exists.
// Variables already set in the real environment win over the file.
//
//	PORT=5000
//	STORE=sqlite            # or "mongo"
//	DB_PATH=data/devconnect.db
//	MONGO_URI=mongodb://localhost:27017
//	MONGO_DB=devconnect
//	JWT_SECRET=...          # required, see auth.MinSecretLength
//	TOKEN_TTL=100h          # 0 = tokens never expire
//	CORS_ORIGINS=http://localhost:3000,https://app.example.com
//	RATE_LIMIT_RPS=10       # 0 disables
//	RATE_LIMIT_BURST=20
//	GITHUB_CLIENT_ID=...    # GitHub login is enabled only when set
//	GITHUB_CLIENT_SECRET=...
//	GITHUB_CALLBACK_URL=http://localhost:5000/auth/github/callback
//	LOG_LEVEL=info          # debug | info | warn | error
//	LOG_FORMAT=text         # text | json
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/devconnect/internal/auth"
)

const (
	StoreSQLite = "sqlite"
	StoreMongo  = "mongo"
)

type Config struct {
	Port int

	Store    string
	DBPath   string
	MongoURI string
	MongoDB  string

	JWTSecret string
	TokenTTL  time.Duration

	CORSOrigins    []string
	RateLimitRPS   float64
	RateLimitBurst int

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	LogLevel  slog.Level
	LogFormat string
}

// GitHubEnabled reports whether GitHub OAuth credentials are configured.
func (c Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads the given .env files (default ".env"), then the environment.
// Missing .env files are not an error.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (Config, error) {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := Config{
		Store:              strings.ToLower(getEnv("STORE", StoreSQLite)),
		DBPath:             getEnv("DB_PATH", "data/devconnect.db"),
		MongoURI:           getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:            getEnv("MONGO_DB", "devconnect"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		CORSOrigins:        splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		GitHubClientID:     os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubCallbackURL:  os.Getenv("GITHUB_CALLBACK_URL"),
		LogFormat:          strings.ToLower(getEnv("LOG_FORMAT", "text")),
	}

	var err error
	cfg.Port, err = getInt("PORT", 5000)
	collect(err)
	cfg.TokenTTL, err = getDuration("TOKEN_TTL", 100*time.Hour)
	collect(err)
	cfg.RateLimitRPS, err = getFloat("RATE_LIMIT_RPS", 10)
	collect(err)
	cfg.RateLimitBurst, err = getInt("RATE_LIMIT_BURST", 20)
	collect(err)

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		collect(fmt.Errorf("LOG_LEVEL: %w", err))
	}

	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/auth/github/callback", cfg.Port)
	}

	collect(cfg.Validate())

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return cfg, nil
}

// Validate checks values that parsed but make no sense together.
func (c Config) Validate() error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Port))
	}
	switch c.Store {
	case StoreSQLite:
		if c.DBPath == "" {
			errs = append(errs, errors.New("DB_PATH is required when STORE=sqlite"))
		}
	case StoreMongo:
		if c.MongoURI == "" || c.MongoDB == "" {
			errs = append(errs, errors.New("MONGO_URI and MONGO_DB are required when STORE=mongo"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE must be %q or %q, got %q", StoreSQLite, StoreMongo, c.Store))
	}
	if len(c.JWTSecret) < auth.MinSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d characters", auth.MinSecretLength))
	}
	if c.TokenTTL < 0 {
		errs = append(errs, errors.New("TOKEN_TTL must not be negative"))
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative"))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat))
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		errs = append(errs, errors.New("GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together"))
	}

	return errors.Join(errs...)
}

// Logger builds the process logger from LogLevel and LogFormat.
func (c Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.LogLevel}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, raw)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, raw)
	}
	return f, nil
}

// getDuration accepts Go durations ("90m", "100h") and bare seconds ("3600").
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, raw)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
