// Package embedding provides text embedding generation with swappable models.
package embedding

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Embedder turns an ordered batch of texts into one vector per text, in the same order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingModel represents a text embedding model.
type EmbeddingModel interface {
	Embedder

	// Name returns the human-readable model name (e.g., "text-embedding-3-small").
	Name() string

	// Version returns a short version string used as a cache namespace (e.g., "openai").
	Version() string

	// Dimensions returns the embedding vector size.
	Dimensions() int

	// Close releases model resources.
	Close() error
}

// ModelConfig carries the settings a model factory may need.
type ModelConfig struct {
	Version    string
	BaseURL    string
	APIKey     string
	ModelName  string
	Dimensions int
	Timeout    time.Duration
	MaxTokens  int
}

// ModelMetadata describes an embedding model for UI/config.
type ModelMetadata struct {
	Name        string `json:"name"`        // Human-readable name
	Version     string `json:"version"`     // Short ID for config and cache namespaces
	Dimensions  int    `json:"dimensions"`  // Vector size
	Description string `json:"description"` // Brief description
	Default     bool   `json:"default"`     // Is this the default model?
}

// ModelFactory creates a new instance of an embedding model.
type ModelFactory func(cfg ModelConfig) (EmbeddingModel, error)

// ModelRegistry provides model lookup by version.
type ModelRegistry struct {
	models       map[string]ModelFactory
	metadata     map[string]ModelMetadata
	defaultModel string
	mu           sync.RWMutex
}

// NewModelRegistry creates a new model registry.
func NewModelRegistry() *ModelRegistry {
	return &ModelRegistry{
		models:   make(map[string]ModelFactory),
		metadata: make(map[string]ModelMetadata),
	}
}

// Register adds a model factory to the registry.
func (r *ModelRegistry) Register(meta ModelMetadata, factory ModelFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.models[meta.Version] = factory
	r.metadata[meta.Version] = meta

	if meta.Default {
		r.defaultModel = meta.Version
	}
}

// Get creates a new instance of the model with the given version.
func (r *ModelRegistry) Get(cfg ModelConfig) (EmbeddingModel, error) {
	version := cfg.Version
	if version == "" {
		version = r.Default()
	}

	r.mu.RLock()
	factory, ok := r.models[version]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownModel, version)
	}

	cfg.Version = version
	return factory(cfg)
}

// Default returns the default model version.
func (r *ModelRegistry) Default() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// List returns metadata for all registered models, sorted by version.
func (r *ModelRegistry) List() []ModelMetadata {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ModelMetadata, 0, len(r.metadata))
	for _, meta := range r.metadata {
		result = append(result, meta)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Version < result[j].Version
	})
	return result
}

// DefaultRegistry is the global model registry with all available models.
var DefaultRegistry = NewModelRegistry()

// RegisterModel adds a model to the default registry.
func RegisterModel(meta ModelMetadata, factory ModelFactory) {
	DefaultRegistry.Register(meta, factory)
}

// GetModel creates a model instance from the default registry.
func GetModel(cfg ModelConfig) (EmbeddingModel, error) {
	return DefaultRegistry.Get(cfg)
}

// GetDefaultModel returns the default model version from the default registry.
func GetDefaultModel() string {
	return DefaultRegistry.Default()
}

// ListModels returns metadata for all models in the default registry.
func ListModels() []ModelMetadata {
	return DefaultRegistry.List()
}
