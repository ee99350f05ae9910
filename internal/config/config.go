package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the server and the CLI.
type Config struct {
	DBPath         string
	UploadsDir     string
	Port           string
	APIToken       string
	BaseCurrency   string
	AliasCacheSize int
	AliasCacheTTL  time.Duration
	MaxUploadBytes int64
	LogLevel       string
	// CORSOrigins lists browser origins allowed to call the API. Empty
	// disables CORS handling.
	CORSOrigins []string
}

// Load reads an optional .env file (or the given files) and then the
// environment. Unset variables take their defaults; malformed numbers and
// durations are an error.
func Load(envFiles ...string) (Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	cfg := Config{
		DBPath:       getEnv("BANKIMPORT_DB_PATH", "./data/bankimport.db"),
		Port:         getEnv("PORT", "8080"),
		APIToken:     os.Getenv("BANKIMPORT_API_TOKEN"),
		BaseCurrency: strings.ToUpper(getEnv("BANKIMPORT_BASE_CURRENCY", "KZT")),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	cfg.CORSOrigins = getList("BANKIMPORT_CORS_ORIGINS")
	cfg.UploadsDir = getEnv("BANKIMPORT_UPLOADS_DIR", filepath.Join(filepath.Dir(cfg.DBPath), "uploads"))

	var err error
	if cfg.AliasCacheSize, err = getInt("BANKIMPORT_ALIAS_CACHE_SIZE", 256); err != nil {
		return Config{}, err
	}
	if cfg.AliasCacheTTL, err = getDuration("BANKIMPORT_ALIAS_CACHE_TTL", 10*time.Minute); err != nil {
		return Config{}, err
	}
	maxUploadMB, err := getInt("BANKIMPORT_MAX_UPLOAD_MB", 20)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxUploadBytes = int64(maxUploadMB) << 20

	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Port
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("parse %s=%q: want a non-negative integer", key, v)
	}
	return n, nil
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
