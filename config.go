package bookchat

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config/defaults.yaml
var defaultConfigYAML []byte

// Config describes where the backend lives and how to talk to it.
//
// Defaults are embedded in the binary. Callers can override them by:
//  1. Calling LoadConfigFromFile() with a YAML file holding any subset of fields
//  2. Mutating the struct returned by DefaultConfig()
type Config struct {
	Version string `yaml:"version"`

	// BaseURL is the backend origin, e.g. "http://localhost:8000"
	BaseURL string `yaml:"base_url"`

	Routes Routes `yaml:"routes"`

	// CardLimit is the "k" sent with card searches
	CardLimit int `yaml:"card_limit"`

	// SessionID is sent with card searches; a random one is generated when empty
	SessionID string `yaml:"session_id"`

	// TokenEnv names the environment variable consulted for a bearer token
	TokenEnv string `yaml:"token_env"`

	// RequestTimeout bounds non-streaming calls only. Streams are never timed out
	// by the client; pass a context deadline to bound them.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Routes maps each backend operation to its path.
type Routes struct {
	ChatStream      string `yaml:"chat_stream"`
	GenerateContext string `yaml:"generate_context"`
	ChatCard        string `yaml:"chat_card"`
	Disciplines     string `yaml:"disciplines"`
	Recommendations string `yaml:"recommendations"`
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfigYAML, &cfg); err != nil {
		// The embedded file is part of the build; failing here is a programming error.
		panic(fmt.Sprintf("bookchat: embedded defaults are invalid: %v", err))
	}
	return cfg
}

// LoadConfigFromFile overlays the YAML file at path on top of the defaults.
func LoadConfigFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig overlays YAML data on top of the defaults.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that the configuration can be used to build a Client.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return &ValidationError{
			Field:  "base_url",
			Value:  c.BaseURL,
			Reason: "must be an absolute http(s) URL",
			Err:    ErrInvalidRequest,
		}
	}

	routes := []struct{ field, path string }{
		{"routes.chat_stream", c.Routes.ChatStream},
		{"routes.generate_context", c.Routes.GenerateContext},
		{"routes.chat_card", c.Routes.ChatCard},
		{"routes.disciplines", c.Routes.Disciplines},
		{"routes.recommendations", c.Routes.Recommendations},
	}
	for _, r := range routes {
		if !strings.HasPrefix(r.path, "/") {
			return &ValidationError{
				Field:  r.field,
				Value:  r.path,
				Reason: "must be an absolute path",
				Err:    ErrInvalidRequest,
			}
		}
	}

	if c.CardLimit < 0 {
		return &ValidationError{
			Field:  "card_limit",
			Value:  c.CardLimit,
			Reason: "must not be negative",
			Err:    ErrInvalidRequest,
		}
	}
	return nil
}

// endpoint joins the base URL and a route.
func (c Config) endpoint(route string) string {
	return strings.TrimRight(c.BaseURL, "/") + route
}
