// Package grouping clusters free-text questions by embedding similarity.
//
// Texts are normalized and deduplicated, the distinct keys are embedded in a
// single batch, and a greedy single pass groups every remaining key with the
// first unclustered seed it is similar enough to. Membership depends only on
// similarity to the seed, so clusters are not transitive.
package grouping

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/thebtf/asklens/internal/embedding"
	"github.com/thebtf/asklens/pkg/models"
	"github.com/thebtf/asklens/pkg/similarity"
	"github.com/thebtf/asklens/pkg/textnorm"
)

const (
	// DefaultThreshold is the similarity used by the analytics report.
	DefaultThreshold = 0.85
	// DefaultMaxGroups caps the organization-wide question list.
	DefaultMaxGroups = 10
)

var (
	ErrInvalidThreshold = errors.New("threshold must be in (0, 1]")
	ErrInvalidMaxGroups = errors.New("max groups must not be negative")
	// ErrEmbeddingFailed wraps any error returned by the embedder itself.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrProviderContract is returned when the embedder breaks its batch contract.
	ErrProviderContract = embedding.ErrContractViolation
)

// Options controls a single Group call.
type Options struct {
	// Threshold is the inclusive cosine similarity needed to join a seed.
	Threshold float64
	// MaxGroups keeps only the largest clusters. Zero means unlimited.
	MaxGroups int
}

// Validate checks the options before any embedding work is done.
func (o Options) Validate() error {
	if math.IsNaN(o.Threshold) || o.Threshold <= 0 || o.Threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, o.Threshold)
	}
	if o.MaxGroups < 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxGroups, o.MaxGroups)
	}
	return nil
}

// DefaultOptions returns the options used for organization-wide reports.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, MaxGroups: DefaultMaxGroups}
}

type instruments struct {
	calls    metric.Int64Counter
	embedded metric.Int64Counter
	duration metric.Float64Histogram
}

// Grouper groups texts with a fixed embedder. It holds no per-call state and
// is safe for concurrent use.
type Grouper struct {
	embedder embedding.Embedder
	metrics  *instruments
}

// Option configures a Grouper.
type Option func(*Grouper)

// WithMeterProvider records metrics against mp instead of the global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(g *Grouper) {
		g.metrics = newInstruments(mp)
	}
}

// New creates a Grouper that embeds through embedder.
func New(embedder embedding.Embedder, opts ...Option) *Grouper {
	g := &Grouper{embedder: embedder}
	for _, opt := range opts {
		opt(g)
	}
	if g.metrics == nil {
		g.metrics = newInstruments(otel.GetMeterProvider())
	}
	return g
}

func newInstruments(mp metric.MeterProvider) *instruments {
	meter := mp.Meter("github.com/thebtf/asklens/internal/grouping")
	ins := &instruments{}

	var err error
	if ins.calls, err = meter.Int64Counter("asklens.grouping.calls",
		metric.WithDescription("Number of grouping calls")); err != nil {
		log.Warn().Err(err).Msg("Failed to create grouping call counter")
	}
	if ins.embedded, err = meter.Int64Counter("asklens.grouping.embedded_texts",
		metric.WithDescription("Distinct normalized texts sent for embedding")); err != nil {
		log.Warn().Err(err).Msg("Failed to create embedded texts counter")
	}
	if ins.duration, err = meter.Float64Histogram("asklens.grouping.duration",
		metric.WithDescription("Grouping call latency"),
		metric.WithUnit("s")); err != nil {
		log.Warn().Err(err).Msg("Failed to create grouping duration histogram")
	}
	return ins
}

// entry pairs a distinct key with its vector as soon as the batch returns.
type entry struct {
	raw    string
	vector []float32
}

// Group clusters texts and returns the clusters ordered by total count,
// largest first. Equal counts keep seed order. Texts with no content after
// normalization are ignored; if none remain the embedder is not called.
func (g *Grouper) Group(ctx context.Context, texts []string, opts Options) ([]models.Cluster, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	if g.metrics.calls != nil {
		g.metrics.calls.Add(ctx, 1)
	}

	freq := NewFrequencyTable(texts)
	if freq.Len() == 0 {
		return []models.Cluster{}, nil
	}

	entries, err := g.embed(ctx, freq)
	if err != nil {
		return nil, err
	}

	vectors := make([][]float32, len(entries))
	for i, e := range entries {
		vectors[i] = e.vector
	}

	groups := similarity.GreedyClusters(vectors, opts.Threshold)
	clusters := make([]models.Cluster, 0, len(groups))
	for _, members := range groups {
		c := models.Cluster{
			Representative:   entries[members[0]].raw,
			SimilarQuestions: make([]string, 0, len(members)),
		}
		for _, idx := range members {
			raw := entries[idx].raw
			c.SimilarQuestions = append(c.SimilarQuestions, raw)
			c.TotalCount += freq.Count(textnorm.Normalize(raw))
		}
		clusters = append(clusters, c)
	}

	clusters = rank(clusters, opts.MaxGroups)

	elapsed := time.Since(start)
	if g.metrics.duration != nil {
		g.metrics.duration.Record(ctx, elapsed.Seconds())
	}
	log.Debug().
		Int("inputs", len(texts)).
		Int("distinct", freq.Len()).
		Int("clusters", len(clusters)).
		Float64("threshold", opts.Threshold).
		Dur("duration", elapsed).
		Msg("Grouped texts")

	return clusters, nil
}

func (g *Grouper) embed(ctx context.Context, freq *FrequencyTable) ([]entry, error) {
	keys := freq.Keys()
	if g.metrics.embedded != nil {
		g.metrics.embedded.Add(ctx, int64(len(keys)))
	}

	vectors, err := g.embedder.EmbedBatch(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %d texts: %w", ErrEmbeddingFailed, len(keys), err)
	}
	if err := embedding.ValidateVectors(len(keys), vectors); err != nil {
		return nil, err
	}

	entries := make([]entry, len(keys))
	for i, key := range keys {
		raw, _ := freq.Representative(key)
		entries[i] = entry{raw: raw, vector: vectors[i]}
	}
	return entries, nil
}

// rank orders clusters by total count, largest first, keeping seed order on
// ties, and keeps at most maxGroups of them when maxGroups is positive.
func rank(clusters []models.Cluster, maxGroups int) []models.Cluster {
	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].TotalCount > clusters[j].TotalCount
	})
	if maxGroups > 0 && len(clusters) > maxGroups {
		clusters = clusters[:maxGroups]
	}
	return clusters
}
