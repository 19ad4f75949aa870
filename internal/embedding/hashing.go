package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

const (
	HashingModelVersion     = "hashing"
	HashingModelName        = "feature-hashing"
	HashingDefaultDimension = 256
)

// hashingModel is a deterministic offline embedder. It hashes word unigrams and
// bigrams into signed buckets and L2-normalizes the result. Texts sharing most
// of their words land close together; it knows nothing about synonyms.
type hashingModel struct {
	dimensions int
}

func init() {
	RegisterModel(ModelMetadata{
		Name:        HashingModelName,
		Version:     HashingModelVersion,
		Dimensions:  HashingDefaultDimension,
		Description: "Offline lexical feature hashing (no network, deterministic)",
		Default:     true,
	}, newHashingModel)
}

func newHashingModel(cfg ModelConfig) (EmbeddingModel, error) {
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = HashingDefaultDimension
	}
	return &hashingModel{dimensions: dims}, nil
}

// NewHashingModel returns the offline model with the given dimensionality.
func NewHashingModel(dimensions int) EmbeddingModel {
	if dimensions <= 0 {
		dimensions = HashingDefaultDimension
	}
	return &hashingModel{dimensions: dimensions}
}

func (m *hashingModel) Name() string    { return HashingModelName }
func (m *hashingModel) Version() string { return HashingModelVersion }
func (m *hashingModel) Dimensions() int { return m.dimensions }
func (m *hashingModel) Close() error    { return nil }

func (m *hashingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		results[i] = m.embed(text)
	}
	return results, nil
}

func (m *hashingModel) embed(text string) []float32 {
	vec := make([]float32, m.dimensions)
	words := strings.Fields(strings.ToLower(text))

	for i, w := range words {
		m.add(vec, w, 1)
		if i > 0 {
			m.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func (m *hashingModel) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(m.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}
