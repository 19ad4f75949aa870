package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrUnknownModel is returned when no factory is registered for a model version.
	ErrUnknownModel = errors.New("unknown embedding model")

	// ErrInvalidInput is returned for empty batches or empty texts.
	ErrInvalidInput = errors.New("invalid embedding input")

	// ErrContractViolation is returned when a provider answers with the wrong number
	// of vectors, empty or mismatched dimensions, or non-finite values.
	ErrContractViolation = errors.New("embedding provider contract violation")
)

// Service provides text embedding generation with model abstraction.
// It enforces the batch contract on both sides of the model call.
type Service struct {
	model EmbeddingModel
}

// NewService creates a new embedding service from the default registry.
func NewService(cfg ModelConfig) (*Service, error) {
	model, err := GetModel(cfg)
	if err != nil {
		return nil, fmt.Errorf("get model %s: %w", cfg.Version, err)
	}
	return &Service{model: model}, nil
}

// NewServiceWithModel wraps an already constructed model.
func NewServiceWithModel(model EmbeddingModel) *Service {
	return &Service{model: model}
}

// Name returns the human-readable model name.
func (s *Service) Name() string {
	return s.model.Name()
}

// Version returns the short version string for cache namespaces.
func (s *Service) Version() string {
	return s.model.Version()
}

// Dimensions returns the embedding vector size.
func (s *Service) Dimensions() int {
	return s.model.Dimensions()
}

// Embed generates an embedding for a single text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple texts.
// texts must be non-empty and contain no empty strings.
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrInvalidInput)
	}
	for i, t := range texts {
		if t == "" {
			return nil, fmt.Errorf("%w: empty text at index %d", ErrInvalidInput, i)
		}
	}

	vectors, err := s.model.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, err
	}
	if err := ValidateVectors(len(texts), vectors); err != nil {
		return nil, fmt.Errorf("model %s: %w", s.model.Version(), err)
	}
	return vectors, nil
}

// Close releases model resources.
func (s *Service) Close() error {
	return s.model.Close()
}

// ValidateVectors checks a provider response against the batch contract:
// exactly want vectors, all non-empty, all of one dimensionality, all finite.
// Violations wrap ErrContractViolation.
func ValidateVectors(want int, vectors [][]float32) error {
	if len(vectors) != want {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrContractViolation, len(vectors), want)
	}
	if want == 0 {
		return nil
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector at index %d", ErrContractViolation, i)
		}
		if len(v) != dims {
			return fmt.Errorf("%w: vector %d has %d dimensions, expected %d", ErrContractViolation, i, len(v), dims)
		}
		for _, x := range v {
			f := float64(x)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return fmt.Errorf("%w: non-finite value in vector %d", ErrContractViolation, i)
			}
		}
	}
	return nil
}
