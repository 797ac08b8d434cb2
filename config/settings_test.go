package config

import (
	"testing"
)

func TestProviderSelection(t *testing.T) {
	cfg := &Config{
		DefaultProvider: "openai",
		Providers: []ProviderConfig{
			{ID: "ollama", Enabled: true},
			{ID: "openai", Enabled: true},
			{ID: "anthropic", Enabled: false},
		},
	}

	tests := []struct {
		name    string
		id      string
		wantID  string
		wantErr bool
	}{
		{"explicit id", "ollama", "ollama", false},
		{"empty falls back to default", "", "openai", false},
		{"disabled falls back to first enabled", "anthropic", "ollama", false},
		{"unknown falls back to first enabled", "mystery", "ollama", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.Provider(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Provider(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if got.ID != tt.wantID {
				t.Errorf("Provider(%q).ID = %q, want %q", tt.id, got.ID, tt.wantID)
			}
		})
	}
}

func TestProviderNoneEnabled(t *testing.T) {
	cfg := &Config{Providers: []ProviderConfig{{ID: "ollama", Enabled: false}}}
	if _, err := cfg.Provider("ollama"); err == nil {
		t.Error("Provider() error = nil with nothing enabled")
	}
}

func TestAPIKeyForPrefersSettings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "env-key")

	if got := APIKeyFor(ProviderConfig{ID: "openai", APIKey: "file-key"}); got != "file-key" {
		t.Errorf("APIKeyFor() = %q, want file-key", got)
	}
	if got := APIKeyFor(ProviderConfig{ID: "openai"}); got != "env-key" {
		t.Errorf("APIKeyFor() = %q, want env-key", got)
	}
}

func TestPassphraseDisabled(t *testing.T) {
	t.Setenv("CONVO_PASSPHRASE", "secret")
	cfg := &Config{Encryption: EncryptionConfig{Enabled: false}}
	if got := cfg.Passphrase(); got != "" {
		t.Errorf("Passphrase() = %q with encryption disabled, want empty", got)
	}
	cfg.Encryption.Enabled = true
	if got := cfg.Passphrase(); got != "secret" {
		t.Errorf("Passphrase() = %q, want secret", got)
	}
}
