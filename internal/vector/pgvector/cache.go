// Package pgvector provides a PostgreSQL+pgvector embedding cache shared by
// every worker that points at the same database.
package pgvector

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-gormigrate/gormigrate/v2"
	pgvec "github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// cacheRecord is the GORM model for the embedding_cache table.
type cacheRecord struct {
	CreatedAt    time.Time    `gorm:"column:created_at;autoCreateTime"`
	ModelVersion string       `gorm:"primaryKey;column:model_version;size:200"`
	TextHash     string       `gorm:"primaryKey;column:text_hash;size:64"`
	Text         string       `gorm:"column:text;not null"`
	Embedding    pgvec.Vector `gorm:"column:embedding;type:vector;not null"`
}

func (cacheRecord) TableName() string { return "embedding_cache" }

// Config holds configuration for opening a cache from a DSN.
type Config struct {
	DSN      string
	MaxConns int
	LogLevel logger.LogLevel
}

// Cache implements embedding.Cache on top of PostgreSQL.
type Cache struct {
	db    *gorm.DB
	sqlDB *sql.DB
	owned bool
}

// Open connects to PostgreSQL and prepares the cache table.
func Open(cfg Config) (*Cache, error) {
	logLevel := cfg.LogLevel
	if logLevel == 0 {
		logLevel = logger.Silent
	}
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = 4
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns / 2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	c, err := New(db)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// New wraps an existing connection and runs the cache migrations.
func New(db *gorm.DB) (*Cache, error) {
	if db == nil {
		return nil, fmt.Errorf("DB is required")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Cache{db: db, sqlDB: sqlDB}, nil
}

func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID: "001_pgvector_extension",
			Migrate: func(tx *gorm.DB) error {
				return tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error
			},
			Rollback: func(tx *gorm.DB) error {
				return nil
			},
		},
		{
			ID: "002_embedding_cache",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&cacheRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("embedding_cache")
			},
		},
	})
	return m.Migrate()
}

// Close closes the connection if the cache opened it.
func (c *Cache) Close() error {
	if !c.owned {
		return nil
	}
	return c.sqlDB.Close()
}

// GetMany returns cached vectors for texts under model.
func (c *Cache) GetMany(ctx context.Context, model string, texts []string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	if len(texts) == 0 {
		return out, nil
	}

	byHash := make(map[string]string, len(texts))
	hashes := make([]string, 0, len(texts))
	for _, t := range texts {
		h := textHash(t)
		if _, ok := byHash[h]; ok {
			continue
		}
		byHash[h] = t
		hashes = append(hashes, h)
	}

	var records []cacheRecord
	err := c.db.WithContext(ctx).
		Where("model_version = ? AND text_hash IN ?", model, hashes).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("query embedding cache: %w", err)
	}

	for _, rec := range records {
		text, ok := byHash[rec.TextHash]
		if !ok || text != rec.Text {
			log.Debug().Str("model", model).Str("hash", rec.TextHash).Msg("Embedding cache hash collision ignored")
			continue
		}
		out[text] = rec.Embedding.Slice()
	}
	return out, nil
}

// PutMany upserts vectors for texts under model.
func (c *Cache) PutMany(ctx context.Context, model string, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}

	records := make([]cacheRecord, 0, len(entries))
	for text, vec := range entries {
		if text == "" || len(vec) == 0 {
			continue
		}
		records = append(records, cacheRecord{
			ModelVersion: model,
			TextHash:     textHash(text),
			Text:         text,
			Embedding:    pgvec.NewVector(vec),
		})
	}
	if len(records) == 0 {
		return nil
	}

	// Upsert: INSERT ... ON CONFLICT (model_version, text_hash) DO UPDATE SET ...
	return c.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "model_version"}, {Name: "text_hash"}},
			DoUpdates: clause.AssignmentColumns([]string{"text", "embedding"}),
		}).
		CreateInBatches(&records, 500).Error
}

// Count returns the number of cached vectors for model.
func (c *Cache) Count(ctx context.Context, model string) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).Model(&cacheRecord{}).Where("model_version = ?", model).Count(&n).Error
	return n, err
}

// textHash keys rows by content so long texts stay indexable.
func textHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
