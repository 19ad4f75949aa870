package embedding

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Cache stores embeddings keyed by model version and exact input text.
type Cache interface {
	// GetMany returns the cached vectors for the texts it knows; misses are absent.
	GetMany(ctx context.Context, model string, texts []string) (map[string][]float32, error)
	// PutMany stores vectors for the given texts.
	PutMany(ctx context.Context, model string, entries map[string][]float32) error
	Close() error
}

// CachedEmbedder consults a Cache before delegating to another Embedder.
// Only misses are sent, in one ordered batch, and the response is reassembled
// in input order. Cache failures degrade to cache misses; provider failures
// propagate unchanged.
type CachedEmbedder struct {
	next  Embedder
	cache Cache
	model string
}

// NewCachedEmbedder wraps next with cache under the model namespace.
func NewCachedEmbedder(next Embedder, cache Cache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

// EmbedBatch implements Embedder.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	cached, err := c.cache.GetMany(ctx, c.model, texts)
	if err != nil {
		log.Warn().Err(err).Str("model", c.model).Msg("Embedding cache read failed - embedding all texts")
		cached = nil
	}

	var misses []string
	seen := make(map[string]bool, len(texts))
	for _, t := range texts {
		if _, ok := cached[t]; ok || seen[t] {
			continue
		}
		seen[t] = true
		misses = append(misses, t)
	}

	fresh := make(map[string][]float32, len(misses))
	if len(misses) > 0 {
		vectors, err := c.next.EmbedBatch(ctx, misses)
		if err != nil {
			return nil, err
		}
		if err := ValidateVectors(len(misses), vectors); err != nil {
			return nil, err
		}
		for i, t := range misses {
			fresh[t] = vectors[i]
		}
		if err := c.cache.PutMany(ctx, c.model, fresh); err != nil {
			log.Warn().Err(err).Str("model", c.model).Int("entries", len(fresh)).Msg("Embedding cache write failed")
		}
	}

	log.Debug().
		Str("model", c.model).
		Int("requested", len(texts)).
		Int("hits", len(texts)-len(misses)).
		Msg("Embedding cache lookup")

	results := make([][]float32, len(texts))
	for i, t := range texts {
		if v, ok := fresh[t]; ok {
			results[i] = v
			continue
		}
		v, ok := cached[t]
		if !ok {
			return nil, fmt.Errorf("%w: no vector for input %d", ErrContractViolation, i)
		}
		results[i] = v
	}
	return results, nil
}
