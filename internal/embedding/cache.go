package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"pdfqa/internal/domain"
)

// WithCache wraps e with an expiring LRU of embeddings keyed by backend name
// and text. Misses from one call are embedded in a single batch. A
// non-positive size or ttl returns e unchanged.
func WithCache(e domain.Embedder, size int, ttl time.Duration) domain.Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &lruEmbedder{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  domain.Embedder
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string { return l.next.Name() }

func (l *lruEmbedder) Dimension() int { return l.next.Dimension() }

func (l *lruEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missPos []int
	for i, text := range texts {
		if cached, ok := l.cache.Get(l.key(text)); ok {
			out[i] = cloneEmbedding(cached)
			continue
		}
		missTexts = append(missTexts, text)
		missPos = append(missPos, i)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	res, err := l.next.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(res) != len(missTexts) {
		return nil, fmt.Errorf("%w: embedder returned %d vectors for %d texts", domain.ErrRemoteService, len(res), len(missTexts))
	}
	for j, vec := range res {
		l.cache.Add(l.key(missTexts[j]), cloneEmbedding(vec))
		out[missPos[j]] = vec
	}
	return out, nil
}

func (l *lruEmbedder) key(text string) string {
	return l.next.Name() + "\x00" + text
}

func cloneEmbedding(values []float32) []float32 {
	if values == nil {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
