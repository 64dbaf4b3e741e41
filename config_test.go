package bookchat

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Routes.ChatStream != "/api/chat_stream" {
		t.Errorf("ChatStream = %q", cfg.Routes.ChatStream)
	}
	if cfg.Routes.Recommendations != "/chat_card_recommendations" {
		t.Errorf("Recommendations = %q", cfg.Routes.Recommendations)
	}
	if cfg.CardLimit != 5 {
		t.Errorf("CardLimit = %d", cfg.CardLimit)
	}
	if cfg.RequestTimeout != 60*time.Second {
		t.Errorf("RequestTimeout = %v", cfg.RequestTimeout)
	}
}

func TestParseConfig_Overlay(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
base_url: https://library.example.edu/
routes:
  chat_stream: /v2/chat
card_limit: 10
request_timeout: 5s
`))
	if err != nil {
		t.Fatalf("ParseConfig failed: %v", err)
	}

	if cfg.Routes.ChatStream != "/v2/chat" {
		t.Errorf("ChatStream = %q", cfg.Routes.ChatStream)
	}
	if cfg.Routes.GenerateContext != "/api/generate_llm_context" {
		t.Errorf("unset routes should keep defaults, got %q", cfg.Routes.GenerateContext)
	}
	if cfg.CardLimit != 10 || cfg.RequestTimeout != 5*time.Second {
		t.Errorf("CardLimit=%d RequestTimeout=%v", cfg.CardLimit, cfg.RequestTimeout)
	}
	if got := cfg.endpoint(cfg.Routes.ChatStream); got != "https://library.example.edu/v2/chat" {
		t.Errorf("endpoint = %q", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"relative base url", func(c *Config) { c.BaseURL = "localhost:8000/api" }, "base_url"},
		{"empty base url", func(c *Config) { c.BaseURL = "" }, "base_url"},
		{"route without slash", func(c *Config) { c.Routes.ChatCard = "api/chat_card" }, "routes.chat_card"},
		{"empty route", func(c *Config) { c.Routes.Disciplines = "" }, "routes.disciplines"},
		{"negative card limit", func(c *Config) { c.CardLimit = -1 }, "card_limit"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("Field = %q, want %q", verr.Field, tt.field)
			}
			if !errors.Is(err, ErrInvalidRequest) {
				t.Error("should wrap ErrInvalidRequest")
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookchat.yaml")
	if err := os.WriteFile(path, []byte("session_id: fixed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}
	if cfg.SessionID != "fixed" {
		t.Errorf("SessionID = %q", cfg.SessionID)
	}

	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
	if _, err := ParseConfig([]byte("card_limit: [")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
