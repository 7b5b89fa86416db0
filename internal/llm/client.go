// Package llm builds clients for OpenAI-compatible endpoints and classifies
// their failures for the host retry policy.
package llm

import (
	"fmt"
	"net/http"
	"os"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	DefaultBaseURL   = "https://api.openai.com/v1"
	DefaultAPIKeyEnv = "OPENAI_API_KEY"
	defaultTimeout   = 60 * time.Second
)

// ClientConfig configures an OpenAI-compatible API client.
type ClientConfig struct {
	BaseURL   string
	APIKeyEnv string
	Timeout   time.Duration
}

// NewClient reads the API key from the configured environment variable and
// returns a go-openai client pointed at BaseURL.
func NewClient(cfg ClientConfig) (*openai.Client, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = DefaultAPIKeyEnv
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	t := cfg.Timeout
	if t == 0 {
		t = defaultTimeout
	}
	oc := openai.DefaultConfig(key)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = &http.Client{Timeout: t}
	return openai.NewClientWithConfig(oc), nil
}
