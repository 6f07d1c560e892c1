// Package config loads lendflow's process configuration from the environment.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aretw0/lendflow/internal/logging"
	"github.com/aretw0/lendflow/pkg/persistence/middleware"
	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Store kinds.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Prefix is prepended to every variable name.
const Prefix = "LENDFLOW_"

// Config holds the environment driven configuration.
//
// Loading order, highest priority first:
//  1. Environment variables
//  2. .env file (if present)
//  3. Default values from struct tags
type Config struct {
	Addr            string        `env:"ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	ProgressDelay   time.Duration `env:"PROGRESS_DELAY" envDefault:"800ms"`
	MaxInputSize    int           `env:"MAX_INPUT_SIZE" envDefault:"4096"`
	RulesPath       string        `env:"RULES"`

	Store      StoreConfig      `envPrefix:"STORE_"`
	Security   SecurityConfig   `envPrefix:"SECURITY_"`
	Bureau     BureauConfig     `envPrefix:"BUREAU_"`
	Classifier ClassifierConfig `envPrefix:"CLASSIFIER_"`
	Knowledge  KnowledgeConfig  `envPrefix:"KNOWLEDGE_"`
}

// StoreConfig selects and configures the session backend.
type StoreConfig struct {
	Kind          string        `env:"KIND" envDefault:"memory"`
	Dir           string        `env:"DIR" envDefault:".lendflow/sessions"`
	SQLitePath    string        `env:"SQLITE_PATH" envDefault:".lendflow/lendflow.db"`
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	RedisDB       int           `env:"REDIS_DB" envDefault:"0"`
	TTL           time.Duration `env:"TTL" envDefault:"24h"`
	LockTTL       time.Duration `env:"LOCK_TTL" envDefault:"30s"`
}

// SecurityConfig controls the store middleware.
type SecurityConfig struct {
	// EncryptionKey is a base64 encoded 32 byte key. Empty disables encryption.
	EncryptionKey string `env:"ENCRYPTION_KEY"`
	// FallbackKeys are older keys still accepted for decryption.
	FallbackKeys   []string `env:"FALLBACK_KEYS" envSeparator:","`
	AllowPlaintext bool     `env:"ALLOW_PLAINTEXT" envDefault:"false"`
	MaskPII        bool     `env:"MASK_PII" envDefault:"true"`
}

// BureauConfig points at the credit bureau. An empty URL uses the built-in mock.
type BureauConfig struct {
	URL     string        `env:"URL"`
	APIKey  string        `env:"API_KEY"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s"`
}

// ClassifierConfig enables the external intent classifier. An empty API key keeps routing
// fully deterministic.
type ClassifierConfig struct {
	APIKey    string        `env:"API_KEY"`
	BaseURL   string        `env:"BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	Model     string        `env:"MODEL" envDefault:"llama-3.1-8b-instant"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"10s"`
	Threshold float64       `env:"THRESHOLD" envDefault:"0.6"`
}

// KnowledgeConfig configures the knowledge base. An empty Dir serves the seed documents.
type KnowledgeConfig struct {
	Dir       string `env:"DIR"`
	CacheSize int    `env:"CACHE_SIZE" envDefault:"128"`
	TopK      int    `env:"TOP_K" envDefault:"3"`
}

// Load reads .env when present and parses the LENDFLOW_* variables into Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreMemory, StoreFile, StoreRedis, StoreSQLite:
	default:
		return fmt.Errorf("LENDFLOW_STORE_KIND must be one of memory, file, redis, sqlite (got %q)", c.Store.Kind)
	}
	if c.Store.Kind == StoreFile && strings.TrimSpace(c.Store.Dir) == "" {
		return errors.New("LENDFLOW_STORE_DIR cannot be empty for the file store")
	}
	if c.Store.Kind == StoreSQLite && strings.TrimSpace(c.Store.SQLitePath) == "" {
		return errors.New("LENDFLOW_STORE_SQLITE_PATH cannot be empty for the sqlite store")
	}
	if c.Store.Kind == StoreRedis && strings.TrimSpace(c.Store.RedisAddr) == "" {
		return errors.New("LENDFLOW_STORE_REDIS_ADDR cannot be empty for the redis store")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LENDFLOW_LOG_LEVEL: %w", err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("LENDFLOW_LOG_FORMAT must be text or json (got %q)", c.LogFormat)
	}
	if c.MaxInputSize <= 0 {
		return errors.New("LENDFLOW_MAX_INPUT_SIZE must be > 0")
	}
	if c.ShutdownTimeout <= 0 || c.Bureau.Timeout <= 0 || c.Classifier.Timeout <= 0 {
		return errors.New("timeouts must be > 0")
	}
	if c.Classifier.Threshold <= 0 || c.Classifier.Threshold > 1 {
		return errors.New("LENDFLOW_CLASSIFIER_THRESHOLD must be in (0, 1]")
	}
	if c.Knowledge.TopK <= 0 {
		return errors.New("LENDFLOW_KNOWLEDGE_TOP_K must be > 0")
	}
	if _, _, err := c.Keys(); err != nil {
		return err
	}
	return nil
}

// Keys decodes the encryption keys. A nil active key means encryption is disabled.
func (c *Config) Keys() (active []byte, fallback [][]byte, err error) {
	if c.Security.EncryptionKey == "" {
		return nil, nil, nil
	}
	active, err = decodeKey(c.Security.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("LENDFLOW_SECURITY_ENCRYPTION_KEY: %w", err)
	}
	for i, k := range c.Security.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("LENDFLOW_SECURITY_FALLBACK_KEYS[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// Logger builds the process logger from LogLevel and LogFormat. With MaskPII set, customer
// identifiers are masked in every logged value.
func (c *Config) Logger() *slog.Logger {
	level, _ := logging.ParseLevel(c.LogLevel)
	json := c.LogFormat == "json"
	if c.Security.MaskPII {
		return logging.NewRedacted(os.Stderr, level, json, middleware.MaskText)
	}
	if json {
		return logging.NewJSON(level)
	}
	return logging.New(level)
}
