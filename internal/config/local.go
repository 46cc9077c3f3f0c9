package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SecretsConfig holds credentials kept out of config.yaml
type SecretsConfig struct {
	JudgeAPIKey string `yaml:"judge_api_key,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`
	RabbitMQURL string `yaml:"rabbitmq_url,omitempty"`
}

// DefaultDataDir returns ~/.syllabus, or ./.syllabus when there is no home.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".syllabus"
	}
	return filepath.Join(home, ".syllabus")
}

// DefaultConfigPath returns the config file inside the default data dir.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// EnsureDataDir creates the data directory and its subdirectories.
func (c *Config) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.LogDir(), c.AssetsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create dir %s: %w", dir, err)
		}
	}
	return nil
}

// LogDir is where the daemon writes its JSON log.
func (c *Config) LogDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// SQLiteFile resolves the SQLite database path.
func (c *Config) SQLiteFile() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.DataDir, "syllabus.db")
}

// AssetsDir resolves the grading asset directory (test runner jar).
func (c *Config) AssetsDir() string {
	if c.Grading.AssetsPath != "" {
		return c.Grading.AssetsPath
	}
	return filepath.Join(c.DataDir, "assets")
}

func dirOf(path string) string {
	return filepath.Dir(path)
}

// loadSecrets applies secrets.yaml from dir, if present.
func loadSecrets(dir string, cfg *Config) error {
	data, err := os.ReadFile(filepath.Join(dir, "secrets.yaml"))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read secrets: %w", err)
	}

	var secrets SecretsConfig
	if err := yaml.Unmarshal(data, &secrets); err != nil {
		return fmt.Errorf("parse secrets: %w", err)
	}

	if secrets.JudgeAPIKey != "" {
		cfg.Judge.APIKey = secrets.JudgeAPIKey
	}
	if secrets.DatabaseURL != "" {
		cfg.Storage.DatabaseURL = secrets.DatabaseURL
	}
	if secrets.RabbitMQURL != "" {
		cfg.Queue.URL = secrets.RabbitMQURL
	}
	return nil
}

// Save writes the non-secret settings to path.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// SaveSecrets writes secrets.yaml into dir.
func SaveSecrets(dir string, secrets SecretsConfig) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}

	data, err := yaml.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("marshal secrets: %w", err)
	}

	// Owner read/write only
	if err := os.WriteFile(filepath.Join(dir, "secrets.yaml"), data, 0600); err != nil {
		return fmt.Errorf("write secrets: %w", err)
	}
	return nil
}
