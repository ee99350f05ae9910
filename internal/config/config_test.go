package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

var configKeys = []string{
	"BANKIMPORT_DB_PATH", "PORT", "BANKIMPORT_API_TOKEN", "BANKIMPORT_BASE_CURRENCY",
	"BANKIMPORT_ALIAS_CACHE_SIZE", "BANKIMPORT_ALIAS_CACHE_TTL", "BANKIMPORT_UPLOADS_DIR",
	"BANKIMPORT_MAX_UPLOAD_MB", "LOG_LEVEL", "BANKIMPORT_CORS_ORIGINS",
}

// clearEnv unsets the config variables for the test; t.Setenv restores them
// afterwards. godotenv does not override variables that are set, even empty.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range configKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.DBPath != "./data/bankimport.db" || cfg.Port != "8080" || cfg.BaseCurrency != "KZT" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.UploadsDir != filepath.Join("data", "uploads") {
		t.Errorf("UploadsDir = %q", cfg.UploadsDir)
	}
	if cfg.AliasCacheSize != 256 || cfg.AliasCacheTTL != 10*time.Minute || cfg.MaxUploadBytes != 20<<20 {
		t.Errorf("cache/upload settings = %+v", cfg)
	}
	if cfg.Addr() != ":8080" {
		t.Errorf("Addr = %q", cfg.Addr())
	}
}

func TestLoadEnvFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	content := "BANKIMPORT_DB_PATH=/var/lib/bankimport/app.db\nBANKIMPORT_BASE_CURRENCY=usd\nBANKIMPORT_ALIAS_CACHE_TTL=90s\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "9090")
	t.Setenv("BANKIMPORT_CORS_ORIGINS", "https://books.example.com, ,http://localhost:3000")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DBPath != "/var/lib/bankimport/app.db" || cfg.UploadsDir != "/var/lib/bankimport/uploads" {
		t.Errorf("paths = %q, %q", cfg.DBPath, cfg.UploadsDir)
	}
	if cfg.BaseCurrency != "USD" || cfg.AliasCacheTTL != 90*time.Second || cfg.Port != "9090" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://localhost:3000" {
		t.Errorf("CORSOrigins = %q", cfg.CORSOrigins)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"BANKIMPORT_ALIAS_CACHE_SIZE", "lots"},
		{"BANKIMPORT_ALIAS_CACHE_SIZE", "-1"},
		{"BANKIMPORT_ALIAS_CACHE_TTL", "10 minutes"},
		{"BANKIMPORT_MAX_UPLOAD_MB", "1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Error("expected error")
			}
		})
	}
}
