package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, hash, err := LoadConfigWithHash(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.Guard.DenyOnHardLimit || !cfg.Guard.ConfirmOnSoftLimit || !cfg.Guard.LogAllDecisions {
		t.Errorf("defaults must be full enforcement: %+v", cfg.Guard)
	}
	if cfg.Trust.DailyGainCap != 150 {
		t.Errorf("default daily gain cap = %d, want 150", cfg.Trust.DailyGainCap)
	}
	// SHA-256 of empty input.
	if hash != "sha256:e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855" {
		t.Errorf("hash = %s", hash)
	}
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `guard:
  deny_on_hard_limit: false
trust:
  daily_gain_cap: 80
store:
  driver: memory
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, hash, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Guard.DenyOnHardLimit {
		t.Error("overlay must override deny_on_hard_limit")
	}
	// Unspecified fields keep their defaults.
	if !cfg.Guard.ConfirmOnSoftLimit || !cfg.Guard.LogAllDecisions {
		t.Errorf("unspecified guard flags must keep defaults: %+v", cfg.Guard)
	}
	if cfg.Trust.DailyGainCap != 80 {
		t.Errorf("daily gain cap = %d, want 80", cfg.Trust.DailyGainCap)
	}
	if cfg.Store.Driver != "memory" {
		t.Errorf("driver = %s", cfg.Store.Driver)
	}
	if !strings.HasPrefix(hash, "sha256:") || len(hash) != len("sha256:")+64 {
		t.Errorf("malformed hash %q", hash)
	}
}

func TestLoadConfigHashTracksContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte("trust:\n  daily_gain_cap: 10\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, first, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if err := os.WriteFile(path, []byte("trust:\n  daily_gain_cap: 20\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	_, second, err := LoadConfigWithHash(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}

	if first == second {
		t.Error("different file content must produce different hashes")
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "guard: [not a map\n"},
		{"unknown driver", "store:\n  driver: postgres\n"},
		{"negative cap", "trust:\n  daily_gain_cap: -5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, _, err := LoadConfigWithHash(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
