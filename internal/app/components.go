// Package app builds the embedding, storage and grouping components shared by
// the worker and the CLI from a loaded configuration.
package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm/logger"

	"github.com/thebtf/asklens/internal/analytics"
	"github.com/thebtf/asklens/internal/config"
	"github.com/thebtf/asklens/internal/db"
	gormdb "github.com/thebtf/asklens/internal/db/gorm"
	"github.com/thebtf/asklens/internal/db/sqlite"
	"github.com/thebtf/asklens/internal/embedding"
	"github.com/thebtf/asklens/internal/grouping"
	"github.com/thebtf/asklens/internal/vector/bolt"
	"github.com/thebtf/asklens/internal/vector/pgvector"
)

// Supported values for config.EmbeddingCache and config.QuestionSource.
const (
	CacheNone     = ""
	CacheBolt     = "bolt"
	CachePgvector = "pgvector"

	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
)

// ErrUnsupported is returned for unknown cache or source kinds.
var ErrUnsupported = errors.New("unsupported backend")

// Components is the wired object graph. Source and Reporter are nil when
// built without a question source.
type Components struct {
	Model    *embedding.Service
	Embedder embedding.Embedder
	Cache    embedding.Cache
	Source   db.QuestionSource
	Grouper  *grouping.Grouper
	Reporter *analytics.Reporter
}

// BuildOptions selects the optional parts of the graph.
type BuildOptions struct {
	// WithSource opens the question source and builds the Reporter.
	WithSource bool
}

// ModelConfig maps the embedding settings onto a registry config.
func ModelConfig(cfg *config.Config) embedding.ModelConfig {
	return embedding.ModelConfig{
		Version:    cfg.EmbeddingModel,
		BaseURL:    cfg.EmbeddingBaseURL,
		APIKey:     cfg.EmbeddingAPIKey,
		ModelName:  cfg.EmbeddingModelName,
		Dimensions: cfg.EmbeddingDimensions,
		Timeout:    time.Duration(cfg.EmbeddingTimeoutSecs) * time.Second,
		MaxTokens:  cfg.EmbeddingMaxTokens,
	}
}

// ReportConfig maps the grouping settings onto an analytics config.
func ReportConfig(cfg *config.Config) analytics.Config {
	return analytics.Config{
		Threshold:            cfg.GroupingThreshold,
		MaxGroups:            cfg.GroupingMaxGroups,
		TopDocuments:         cfg.TopDocuments,
		QuestionsPerDocument: cfg.QuestionsPerDocument,
		RedactQuestions:      cfg.RedactQuestions,
	}
}

// Build constructs the components described by cfg. On error everything
// opened so far is closed.
func Build(cfg *config.Config, opts BuildOptions) (*Components, error) {
	model, err := embedding.NewService(ModelConfig(cfg))
	if err != nil {
		return nil, err
	}
	c := &Components{Model: model, Embedder: model}

	cache, err := OpenCache(cfg)
	if err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("open embedding cache: %w", err)
	}
	if cache != nil {
		c.Cache = cache
		c.Embedder = embedding.NewCachedEmbedder(model, cache, model.Version())
	}
	c.Grouper = grouping.New(c.Embedder)

	if opts.WithSource {
		source, err := OpenSource(cfg)
		if err != nil {
			_ = c.Close()
			return nil, fmt.Errorf("open question source: %w", err)
		}
		c.Source = source
		c.Reporter = analytics.NewReporter(source, c.Grouper, ReportConfig(cfg))
	}

	log.Info().
		Str("model", model.Name()).
		Str("cache", cfg.EmbeddingCache).
		Bool("source", c.Source != nil).
		Msg("Components ready")
	return c, nil
}

// OpenCache opens the configured embedding cache. It returns nil, nil when
// caching is disabled.
func OpenCache(cfg *config.Config) (embedding.Cache, error) {
	switch strings.ToLower(cfg.EmbeddingCache) {
	case CacheNone:
		return nil, nil
	case CacheBolt:
		if err := os.MkdirAll(filepath.Dir(cfg.EmbeddingCachePath), 0750); err != nil {
			return nil, err
		}
		cache, err := bolt.Open(cfg.EmbeddingCachePath)
		if err != nil {
			return nil, err
		}
		return cache, nil
	case CachePgvector:
		cache, err := pgvector.Open(pgvector.Config{
			DSN:      cfg.DatabaseDSN,
			MaxConns: cfg.MaxConns,
			LogLevel: logger.Silent,
		})
		if err != nil {
			return nil, err
		}
		return cache, nil
	default:
		return nil, fmt.Errorf("%w: embedding cache %q", ErrUnsupported, cfg.EmbeddingCache)
	}
}

// OpenSource opens the configured question log.
func OpenSource(cfg *config.Config) (db.QuestionSource, error) {
	switch strings.ToLower(cfg.QuestionSource) {
	case SourceSQLite:
		if !strings.Contains(cfg.SQLitePath, ":memory:") {
			if err := os.MkdirAll(filepath.Dir(cfg.SQLitePath), 0750); err != nil {
				return nil, err
			}
		}
		store, err := sqlite.NewStore(sqlite.StoreConfig{Path: cfg.SQLitePath, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return store, nil
	case SourcePostgres:
		store, err := gormdb.NewStore(gormdb.Config{DSN: cfg.DatabaseDSN, MaxConns: cfg.MaxConns})
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: question source %q", ErrUnsupported, cfg.QuestionSource)
	}
}

// Close releases the source, the cache and the model.
func (c *Components) Close() error {
	var errs []error
	if c.Source != nil {
		errs = append(errs, c.Source.Close())
	}
	if c.Cache != nil {
		errs = append(errs, c.Cache.Close())
	}
	if c.Model != nil {
		errs = append(errs, c.Model.Close())
	}
	return errors.Join(errs...)
}
