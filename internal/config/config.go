package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendFirebase = "firebase"
	BackendMemory   = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	Port    string `mapstructure:"PORT"`
	GinMode string `mapstructure:"GIN_MODE"`
	// LogLevel overrides the level implied by GinMode (debug, info, warn, error).
	LogLevel string `mapstructure:"LOG_LEVEL"`
	Backend  string `mapstructure:"BACKEND"`

	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	FirebaseDatabaseURL              string `mapstructure:"FIREBASE_DATABASE_URL"`
	FirebaseStorageBucket            string `mapstructure:"FIREBASE_STORAGE_BUCKET"`

	// Collections lists the Firestore collections exposed by the server.
	Collections []string `mapstructure:"COLLECTIONS"`
	// Documents lists pinned documents as alias=collection/doc.
	Documents []string `mapstructure:"DOCUMENTS"`
	// Trees lists Realtime Database nodes as alias=path (below FIREBASE_DATABASE_URL).
	Trees []string `mapstructure:"TREES"`
	// Assets maps a registered name to its storage namespace as name=namespace.
	Assets []string `mapstructure:"ASSETS"`

	ClientURL    string `mapstructure:"CLIENT_URL"`
	AuthRequired bool   `mapstructure:"AUTH_REQUIRED"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	RabbitMQURL   string `mapstructure:"RABBITMQ_URL"`
	RabbitMQQueue string `mapstructure:"RABBITMQ_QUEUE"`

	TreePollInterval time.Duration `mapstructure:"TREE_POLL_INTERVAL"`
}

var keys = []string{
	"PORT", "GIN_MODE", "LOG_LEVEL", "BACKEND",
	"FIREBASE_PROJECT_ID", "GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"FIREBASE_DATABASE_URL", "FIREBASE_STORAGE_BUCKET",
	"COLLECTIONS", "DOCUMENTS", "TREES", "ASSETS",
	"CLIENT_URL", "AUTH_REQUIRED",
	"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"RABBITMQ_URL", "RABBITMQ_QUEUE",
	"TREE_POLL_INTERVAL",
}

// LoadConfig loads configuration from environment variables using Viper.
// When CONFIG_FILE is set, that file (YAML, JSON or TOML) is read first and
// environment variables override it.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("BACKEND", BackendFirebase)
	v.SetDefault("AUTH_REQUIRED", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RABBITMQ_QUEUE", "docsync.mutations")
	v.SetDefault("TREE_POLL_INTERVAL", "2s")

	for _, key := range keys {
		_ = v.BindEnv(key)
	}
	_ = v.BindEnv("CONFIG_FILE")

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %q: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}
	cfg.Collections = splitList(cfg.Collections)
	cfg.Documents = splitList(cfg.Documents)
	cfg.Trees = splitList(cfg.Trees)
	cfg.Assets = splitList(cfg.Assets)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields for the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFirebase:
		if c.FirebaseProjectID == "" {
			return errors.New("FIREBASE_PROJECT_ID is required")
		}
		if len(c.Trees) > 0 && c.FirebaseDatabaseURL == "" {
			return errors.New("FIREBASE_DATABASE_URL is required when TREES is set")
		}
	default:
		return fmt.Errorf("BACKEND must be %q or %q, got %q", BackendFirebase, BackendMemory, c.Backend)
	}
	if c.AuthRequired && c.Backend != BackendFirebase {
		return errors.New("AUTH_REQUIRED needs the firebase backend")
	}
	for _, list := range [][]string{c.Documents, c.Trees, c.Assets} {
		for _, entry := range list {
			if _, _, err := ParsePair(entry); err != nil {
				return err
			}
		}
	}
	return nil
}

// IsRelease reports whether the server runs in gin release mode.
func (c *Config) IsRelease() bool {
	return strings.EqualFold(c.GinMode, "release")
}

// ParsePair splits an alias=value list entry.
func ParsePair(entry string) (string, string, error) {
	name, value, ok := strings.Cut(entry, "=")
	name, value = strings.TrimSpace(name), strings.TrimSpace(value)
	if !ok || name == "" || value == "" {
		return "", "", fmt.Errorf("invalid entry %q: expected name=value", entry)
	}
	return name, value, nil
}

// splitList normalises list values that arrive either as a slice or as a
// single comma separated string.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
