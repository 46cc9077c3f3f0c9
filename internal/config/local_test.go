package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = filepath.Join(t.TempDir(), "syllabus")

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error = %v", err)
	}

	for _, dir := range []string{cfg.DataDir, cfg.LogDir(), cfg.AssetsDir()} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Errorf("%s not created: %v", dir, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("%s is not a directory", dir)
		}
	}

	// Idempotent
	if err := cfg.EnsureDataDir(); err != nil {
		t.Errorf("second EnsureDataDir() error = %v", err)
	}
}

func TestPaths_Overrides(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data"

	if got := cfg.AssetsDir(); got != filepath.Join("/data", "assets") {
		t.Errorf("AssetsDir() = %q", got)
	}

	cfg.Storage.SQLitePath = "/tmp/custom.db"
	cfg.Grading.AssetsPath = "/opt/assets"
	if got := cfg.SQLiteFile(); got != "/tmp/custom.db" {
		t.Errorf("SQLiteFile() = %q", got)
	}
	if got := cfg.AssetsDir(); got != "/opt/assets" {
		t.Errorf("AssetsDir() = %q", got)
	}
}

func TestLoadSecrets_NoSecretsFile(t *testing.T) {
	cfg := Default()
	if err := loadSecrets(t.TempDir(), cfg); err != nil {
		t.Errorf("loadSecrets() should not error when secrets file is missing: %v", err)
	}
}

func TestLoadSecrets_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("invalid: yaml: content:"), 0600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	if err := loadSecrets(dir, Default()); err == nil {
		t.Error("loadSecrets() should error on invalid YAML")
	}
}

func TestLoadSecrets_PartialKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), []byte("judge_api_key: k\n"), 0600); err != nil {
		t.Fatalf("write secrets: %v", err)
	}

	cfg := Default()
	if err := loadSecrets(dir, cfg); err != nil {
		t.Fatalf("loadSecrets() error = %v", err)
	}
	if cfg.Judge.APIKey != "k" {
		t.Errorf("APIKey = %q, want k", cfg.Judge.APIKey)
	}
	if cfg.Queue.URL != Default().Queue.URL {
		t.Errorf("Queue.URL = %q, want default", cfg.Queue.URL)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.yaml")

	cfg := Default()
	cfg.DataDir = dir
	cfg.Server.Port = 9191
	cfg.Judge.APIKey = "never-written"

	if err := Save(cfg, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if strings.Contains(string(data), "never-written") {
		t.Error("config.yaml must not contain secrets")
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Server.Port != 9191 {
		t.Errorf("Port = %d, want 9191", loaded.Server.Port)
	}
}
