package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"pdfqa/internal/domain"
)

// ChunkerConfig configures how documents are split into word windows.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size" validate:"gt=0"`
	Overlap   int `yaml:"overlap" validate:"gte=0,ltfield=ChunkSize"`
}

// LocalEmbedderConfig configures the in-process embedder.
type LocalEmbedderConfig struct {
	Dimension int `yaml:"dimension" validate:"gte=0"`
}

// RemoteEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type RemoteEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

// CacheConfig sizes the query embedding cache. Zero disables it.
type CacheConfig struct {
	Size    int `yaml:"size" validate:"gte=0"`
	TTLSecs int `yaml:"ttl_secs" validate:"gte=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Backend string               `yaml:"backend" validate:"oneof=local remote"`
	Local   LocalEmbedderConfig  `yaml:"local"`
	Remote  RemoteEmbedderConfig `yaml:"remote"`
	Cache   CacheConfig          `yaml:"cache"`
}

// AnswererConfig configures retrieval depth and the chat completion request.
type AnswererConfig struct {
	ChatModel   string  `yaml:"chat_model" validate:"required"`
	Temperature float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	TopK        int     `yaml:"top_k" validate:"gt=0"`
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	TimeoutSecs int     `yaml:"timeout_secs" validate:"gte=0"`
}

// SummarizerConfig configures the document overview.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences" validate:"gte=0"`
}

// RetryConfig bounds how often the host retries transient remote failures.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" validate:"gte=1"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Answerer   AnswererConfig   `yaml:"answerer"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Retry      RetryConfig      `yaml:"retry"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path on top of the defaults. If the
// file does not exist, returns defaults. Environment overrides are applied
// and the result is validated.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/pdfqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/pdfqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, Default()); err != nil {
		return nil, "", err
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks option ranges. Failures wrap domain.ErrInvalidConfiguration.
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "pdfqa", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Chunker: ChunkerConfig{ChunkSize: 500, Overlap: 50},
		Embedder: EmbedderConfig{
			Backend: "local",
			Local:   LocalEmbedderConfig{Dimension: 384},
			Remote: RemoteEmbedderConfig{
				BaseURL:     "https://api.openai.com/v1",
				APIKeyEnv:   "OPENAI_API_KEY",
				Model:       "text-embedding-ada-002",
				TimeoutSecs: 60,
			},
			Cache: CacheConfig{Size: 256, TTLSecs: 600},
		},
		Answerer: AnswererConfig{
			ChatModel:   "gpt-3.5-turbo",
			Temperature: 0.2,
			TopK:        3,
			BaseURL:     "https://api.openai.com/v1",
			APIKeyEnv:   "OPENAI_API_KEY",
			TimeoutSecs: 60,
		},
		Summarizer: SummarizerConfig{MaxSentences: 3},
		Retry:      RetryConfig{MaxAttempts: 3},
		Log:        LogConfig{Level: "info"},
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := os.Getenv("PDFQA_EMBEDDING_BACKEND"); v != "" {
		cfg.Embedder.Backend = v
	}
	if v := os.Getenv("PDFQA_CHAT_MODEL"); v != "" {
		cfg.Answerer.ChatModel = v
	}
}
