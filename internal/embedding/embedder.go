// Package embedding selects the embedding backend for a session.
package embedding

import (
	"fmt"
	"time"

	"pdfqa/internal/config"
	"pdfqa/internal/domain"
	"pdfqa/internal/embedding/local"
	"pdfqa/internal/embedding/openai"
	"pdfqa/internal/llm"
)

// Backend names accepted in configuration.
const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// New builds the embedder named by cfg.Backend. The choice is made once;
// vectors from different backends must never meet in one index.
func New(cfg config.EmbedderConfig) (domain.Embedder, error) {
	var emb domain.Embedder
	switch cfg.Backend {
	case BackendLocal, "":
		emb = local.NewEmbedder(cfg.Local.Dimension)
	case BackendRemote:
		client, err := openai.NewClient(openai.Config{
			ClientConfig: llm.ClientConfig{
				BaseURL:   cfg.Remote.BaseURL,
				APIKeyEnv: cfg.Remote.APIKeyEnv,
				Timeout:   time.Duration(cfg.Remote.TimeoutSecs) * time.Second,
			},
			Model: cfg.Remote.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("remote embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("%w: unknown embedding backend %q", domain.ErrInvalidConfiguration, cfg.Backend)
	}
	return emb, nil
}
