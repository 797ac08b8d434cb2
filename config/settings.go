package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProviderConfig configures one chat backend.
type ProviderConfig struct {
	ID      string `toml:"id"` // "ollama", "openai", "anthropic"
	BaseURL string `toml:"base_url"`
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	Enabled bool   `toml:"enabled"`
}

// EncryptionConfig controls at-rest encryption of thread files.
type EncryptionConfig struct {
	Enabled       bool   `toml:"enabled"`
	PassphraseEnv string `toml:"passphrase_env"` // env var holding the passphrase
}

// Config is the application settings, stored as TOML.
type Config struct {
	DataDir         string           `toml:"data_dir"`
	DefaultProvider string           `toml:"default_provider"`
	Providers       []ProviderConfig `toml:"providers"`
	Encryption      EncryptionConfig `toml:"encryption"`

	// RefreshIntervalSeconds is how often provisional tool results are
	// reconciled against the quote source.
	RefreshIntervalSeconds int `toml:"refresh_interval_seconds"`

	Debug bool `toml:"debug"`
}

// Default returns the configuration used when no settings file exists.
func Default() *Config {
	return &Config{
		DataDir:         GetDefaultDataDir(),
		DefaultProvider: "ollama",
		Providers: []ProviderConfig{
			{ID: "ollama", BaseURL: "http://localhost:11434", Model: "llama3.1:latest", Enabled: true},
			{ID: "openai", BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini", Enabled: false},
			{ID: "anthropic", BaseURL: "https://api.anthropic.com", Enabled: false},
		},
		Encryption:             EncryptionConfig{PassphraseEnv: "CONVO_PASSPHRASE"},
		RefreshIntervalSeconds: 2,
	}
}

// Load reads settings.toml, creating it with defaults on first run.
// CONVO_DATA_DIR overrides the configured data directory.
func Load() (*Config, error) {
	cfg := Default()
	settingsPath := GetSettingsFilePath()

	if !FileExists(settingsPath) {
		if err := writeDefault(settingsPath, cfg); err != nil {
			return nil, fmt.Errorf("failed to create settings: %w", err)
		}
	} else if _, err := toml.DecodeFile(settingsPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse settings: %w", err)
	}

	if dir := os.Getenv("CONVO_DATA_DIR"); dir != "" {
		cfg.DataDir = dir
	}
	if cfg.DataDir == "" {
		cfg.DataDir = GetDefaultDataDir()
	}
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// Provider returns the configuration for id, falling back to the default
// provider and then to the first enabled one.
func (c *Config) Provider(id string) (ProviderConfig, error) {
	if id == "" {
		id = c.DefaultProvider
	}
	for _, p := range c.Providers {
		if p.ID == id && p.Enabled {
			return p, nil
		}
	}
	for _, p := range c.Providers {
		if p.Enabled {
			return p, nil
		}
	}
	return ProviderConfig{}, fmt.Errorf("no enabled provider (looked for %q)", id)
}

// APIKeyFor resolves the API key for a provider, preferring the settings
// file and falling back to the conventional environment variable
// (OPENAI_API_KEY, ANTHROPIC_API_KEY).
func APIKeyFor(p ProviderConfig) string {
	if p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv(strings.ToUpper(p.ID) + "_API_KEY")
}

// Passphrase reads the at-rest encryption passphrase, empty when encryption
// is disabled or the variable is unset.
func (c *Config) Passphrase() string {
	if !c.Encryption.Enabled {
		return ""
	}
	env := c.Encryption.PassphraseEnv
	if env == "" {
		env = "CONVO_PASSPHRASE"
	}
	return os.Getenv(env)
}
