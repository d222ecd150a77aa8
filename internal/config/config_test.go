package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Port != 8750 {
		t.Errorf("Port = %d, want 8750", cfg.Port)
	}
	if cfg.DBPath != "/data/shipd.db" {
		t.Errorf("DBPath = %q, want /data/shipd.db", cfg.DBPath)
	}
	if cfg.StatusTTL != 10*time.Minute {
		t.Errorf("StatusTTL = %s, want 10m", cfg.StatusTTL)
	}
	if cfg.SubscriberBuffer != 64 {
		t.Errorf("SubscriberBuffer = %d, want 64", cfg.SubscriberBuffer)
	}
	if !cfg.InsightEnabled {
		t.Error("InsightEnabled should default to true")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("SHIPD_DB_PATH", "/tmp/other.db")
	t.Setenv("SHIPD_API_KEY", "secret")
	t.Setenv("STATUS_TTL", "30s")
	t.Setenv("INSIGHT_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Port != 9000 {
		t.Errorf("Port = %d, want 9000", cfg.Port)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Errorf("DBPath = %q, want /tmp/other.db", cfg.DBPath)
	}
	if cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q, want secret", cfg.APIKey)
	}
	if cfg.StatusTTL != 30*time.Second {
		t.Errorf("StatusTTL = %s, want 30s", cfg.StatusTTL)
	}
	if cfg.InsightEnabled {
		t.Error("InsightEnabled should be overridden to false")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipd.yaml")
	if err := os.WriteFile(path, []byte("port: 7000\nstatusTtl: 5m\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHIPD_CONFIG_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want 7000", cfg.Port)
	}
	if cfg.StatusTTL != 5*time.Minute {
		t.Errorf("StatusTTL = %s, want 5m", cfg.StatusTTL)
	}
}

func TestEnvBeatsConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipd.yaml")
	if err := os.WriteFile(path, []byte("port: 7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SHIPD_CONFIG_FILE", path)
	t.Setenv("PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 7001 {
		t.Errorf("Port = %d, want 7001", cfg.Port)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"negative ttl", "STATUS_TTL", "-1s"},
		{"zero subscriber buffer", "SUBSCRIBER_BUFFER", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Fatal("expected validation error, got nil")
			}
		})
	}
}
