// Package config loads runtime settings from a YAML file, a .env file and LECTERN_* variables.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no explicit path is given and the file exists.
const DefaultPath = "lectern.yaml"

// Config represents the structure of lectern.yaml.
type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Model     ModelConfig     `yaml:"model"`
	Documents DocumentsConfig `yaml:"documents"`
	Quiz      QuizConfig      `yaml:"quiz"`
	Answer    AnswerConfig    `yaml:"answer"`
	Security  SecurityConfig  `yaml:"security"`
	Log       LogConfig       `yaml:"log"`
	Events    EventsConfig    `yaml:"events"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Tracing   TracingConfig   `yaml:"tracing"`
	Input     InputConfig     `yaml:"input"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" validate:"oneof=memory file redis sqlite postgres"`

	// Dir is the root of the file backend; each workflow gets a subdirectory.
	Dir string `yaml:"dir" validate:"required_if=Backend file"`

	RedisAddr     string        `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db" validate:"gte=0"`
	RedisPrefix   string        `yaml:"redis_prefix"`
	RedisTTL      time.Duration `yaml:"redis_ttl" validate:"gte=0"`

	SQLitePath  string `yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
	PostgresURL string `yaml:"postgres_url" validate:"required_if=Backend postgres"`

	// Lock serializes sessions across processes through redis.
	Lock bool `yaml:"lock"`
}

type ModelConfig struct {
	Provider string        `yaml:"provider" validate:"oneof=ollama"`
	BaseURL  string        `yaml:"base_url" validate:"omitempty,url"`
	Name     string        `yaml:"name" validate:"required"`
	Timeout  time.Duration `yaml:"timeout" validate:"gt=0"`
}

type DocumentsConfig struct {
	Dir      string        `yaml:"dir"`
	CacheTTL time.Duration `yaml:"cache_ttl" validate:"gte=0"`
}

type QuizConfig struct {
	MaxQuestions int `yaml:"max_questions" validate:"gte=1,lte=20"`
}

type AnswerConfig struct {
	FidelitySampleRate float64 `yaml:"fidelity_sample_rate" validate:"gte=0,lte=1"`
}

type SecurityConfig struct {
	// EncryptionKey is a base64 encoded 32 byte key. Empty disables encryption.
	EncryptionKey string   `yaml:"encryption_key" validate:"omitempty,base64"`
	FallbackKeys  []string `yaml:"fallback_keys" validate:"dive,base64"`
	PIIKeys       []string `yaml:"pii_keys"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

type EventsConfig struct {
	Backend string `yaml:"backend" validate:"oneof=none channel nats"`
	NATSURL string `yaml:"nats_url" validate:"required_if=Backend nats"`
}

type MetricsConfig struct {
	Namespace string `yaml:"namespace" validate:"required"`
}

// InputConfig bounds text read from users before it reaches a model.
type InputConfig struct {
	MaxSize int `yaml:"max_size" validate:"gte=1"`
}

type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:     "file",
			Dir:         ".lectern/sessions",
			RedisPrefix: "lectern:",
			SQLitePath:  ".lectern/lectern.db",
		},
		Model: ModelConfig{
			Provider: "ollama",
			Name:     "llama3",
			Timeout:  2 * time.Minute,
		},
		Documents: DocumentsConfig{CacheTTL: time.Hour},
		Quiz:      QuizConfig{MaxQuestions: 5},
		Answer:    AnswerConfig{FidelitySampleRate: 0.1},
		Log:       LogConfig{Level: "info"},
		Events:    EventsConfig{Backend: "none"},
		Metrics:   MetricsConfig{Namespace: "lectern"},
		Input:     InputConfig{MaxSize: 4096},
	}
}

// Load builds the configuration. Precedence, lowest first: defaults, the YAML
// file, then the environment (a .env file in the working directory included).
// An empty path reads DefaultPath when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and the encryption keys.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, _, err := c.Security.Keys(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Keys decodes the encryption keys. active is nil when encryption is off.
func (s SecurityConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

type envVar struct {
	name string
	set  func(string) error
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	vars := []envVar{
		{"LECTERN_STORE", str(&cfg.Store.Backend)},
		{"LECTERN_STORE_DIR", str(&cfg.Store.Dir)},
		{"LECTERN_REDIS_ADDR", str(&cfg.Store.RedisAddr)},
		{"LECTERN_REDIS_PASSWORD", str(&cfg.Store.RedisPassword)},
		{"LECTERN_REDIS_DB", integer(&cfg.Store.RedisDB)},
		{"LECTERN_REDIS_PREFIX", str(&cfg.Store.RedisPrefix)},
		{"LECTERN_REDIS_TTL", duration(&cfg.Store.RedisTTL)},
		{"LECTERN_SQLITE_PATH", str(&cfg.Store.SQLitePath)},
		{"LECTERN_POSTGRES_URL", str(&cfg.Store.PostgresURL)},
		{"LECTERN_LOCK", boolean(&cfg.Store.Lock)},
		{"LECTERN_MODEL_PROVIDER", str(&cfg.Model.Provider)},
		{"LECTERN_MODEL_URL", str(&cfg.Model.BaseURL)},
		{"LECTERN_MODEL", str(&cfg.Model.Name)},
		{"LECTERN_MODEL_TIMEOUT", duration(&cfg.Model.Timeout)},
		{"LECTERN_DOCS_DIR", str(&cfg.Documents.Dir)},
		{"LECTERN_DOCS_CACHE_TTL", duration(&cfg.Documents.CacheTTL)},
		{"LECTERN_QUIZ_MAX_QUESTIONS", integer(&cfg.Quiz.MaxQuestions)},
		{"LECTERN_FIDELITY_SAMPLE_RATE", float(&cfg.Answer.FidelitySampleRate)},
		{"LECTERN_ENCRYPTION_KEY", str(&cfg.Security.EncryptionKey)},
		{"LECTERN_FALLBACK_KEYS", list(&cfg.Security.FallbackKeys)},
		{"LECTERN_PII_KEYS", list(&cfg.Security.PIIKeys)},
		{"LECTERN_LOG_LEVEL", str(&cfg.Log.Level)},
		{"LECTERN_LOG_FILE", str(&cfg.Log.File)},
		{"LECTERN_EVENTS", str(&cfg.Events.Backend)},
		{"LECTERN_NATS_URL", str(&cfg.Events.NATSURL)},
		{"LECTERN_METRICS_NAMESPACE", str(&cfg.Metrics.Namespace)},
		{"LECTERN_TRACING", boolean(&cfg.Tracing.Enabled)},
		{"LECTERN_TRACING_ENDPOINT", str(&cfg.Tracing.Endpoint)},
		{"LECTERN_MAX_INPUT_SIZE", integer(&cfg.Input.MaxSize)},
	}
	for _, v := range vars {
		raw, ok := lookup(v.name)
		if !ok {
			continue
		}
		if err := v.set(strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s: %w", v.name, err)
		}
	}
	return nil
}

func str(dst *string) func(string) error {
	return func(s string) error { *dst = s; return nil }
}

func integer(dst *int) func(string) error {
	return func(s string) (err error) { *dst, err = strconv.Atoi(s); return err }
}

func float(dst *float64) func(string) error {
	return func(s string) (err error) { *dst, err = strconv.ParseFloat(s, 64); return err }
}

func boolean(dst *bool) func(string) error {
	return func(s string) (err error) { *dst, err = strconv.ParseBool(s); return err }
}

func duration(dst *time.Duration) func(string) error {
	return func(s string) (err error) { *dst, err = time.ParseDuration(s); return err }
}

// list splits on commas and drops empty items.
func list(dst *[]string) func(string) error {
	return func(s string) error {
		var out []string
		for _, item := range strings.Split(s, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
		return nil
	}
}
