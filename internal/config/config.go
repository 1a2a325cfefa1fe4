package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the top-level application configuration.
type Config struct {
	Server   ServerConfig             `yaml:"server"`
	Database DatabaseConfig           `yaml:"database"`
	Auth     AuthConfig               `yaml:"auth"`
	AI       AIConfig                 `yaml:"ai"`
	OAuth    map[string]OAuthProvider `yaml:"oauth"`
	// EncryptionKey is the hex-encoded 32-byte key used to encrypt
	// connection credentials at rest. Empty disables encryption.
	EncryptionKey string `yaml:"encryption_key"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig holds database connection settings. An empty URL
// makes the server fall back to in-memory storage.
type DatabaseConfig struct {
	URL string `yaml:"url"`
}

// AuthConfig holds token-issuing settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTLHours is the lifetime of issued tokens (default: 72).
	TokenTTLHours int `yaml:"token_ttl_hours"`
}

// AIConfig holds generative-model settings.
type AIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OAuthProvider holds per-service OAuth application settings, keyed by
// service name (e.g. "slack", "gmail") in Config.OAuth.
type OAuthProvider struct {
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	AuthURL      string   `yaml:"auth_url"`
	TokenURL     string   `yaml:"token_url"`
	RedirectURL  string   `yaml:"redirect_url"`
	Scopes       []string `yaml:"scopes"`
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Database: DatabaseConfig{},
		Auth: AuthConfig{
			TokenTTLHours: 72,
		},
		AI: AIConfig{
			Model: "gemini-2.0-flash",
		},
		OAuth: map[string]OAuthProvider{},
	}
}

// Load reads a YAML configuration file at path and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Ensure OAuth map is never nil even if YAML has "oauth: {}" or omits it.
	if cfg.OAuth == nil {
		cfg.OAuth = map[string]OAuthProvider{}
	}

	cfg.applyEnv()
	return cfg, nil
}

// LoadDefault tries to load "config.yaml" from the current directory.
// If the file does not exist, it returns sensible defaults.
// Any other error (e.g. permission denied, malformed YAML) is returned.
func LoadDefault() (*Config, error) {
	cfg, err := Load("config.yaml")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg = defaults()
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays environment variables on top of file values so
// secrets can stay out of config files.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.AI.APIKey = v
	}
	if v := os.Getenv("ENCRYPTION_KEY"); v != "" {
		c.EncryptionKey = v
	}
}
