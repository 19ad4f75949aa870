// Package bolt provides a local bbolt-backed embedding cache.
package bolt

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

// maxKeySize mirrors bbolt's own key limit.
const maxKeySize = 32768

// Cache stores vectors in one bucket per embedding model version.
// Keys are the exact input texts; values are little-endian float32 blobs.
type Cache struct {
	db *bbolt.DB
}

// Open opens (or creates) the cache file at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open embedding cache %s: %w", path, err)
	}
	return &Cache{db: db}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// GetMany returns the cached vectors for texts under model.
func (c *Cache) GetMany(ctx context.Context, model string, texts []string) (map[string][]float32, error) {
	out := make(map[string][]float32)
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(model))
		if b == nil {
			return nil
		}
		for _, text := range texts {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !validKey(text) {
				continue
			}
			data := b.Get([]byte(text))
			if data == nil {
				continue
			}
			vec, ok := decodeVector(data)
			if !ok {
				log.Debug().Str("model", model).Int("bytes", len(data)).Msg("Skipping corrupt cached embedding")
				continue
			}
			out[text] = vec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PutMany stores entries under model, creating its bucket on first use.
func (c *Cache) PutMany(ctx context.Context, model string, entries map[string][]float32) error {
	if len(entries) == 0 {
		return nil
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(model))
		if err != nil {
			return fmt.Errorf("create bucket %s: %w", model, err)
		}
		for text, vec := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !validKey(text) || len(vec) == 0 {
				continue
			}
			if err := b.Put([]byte(text), encodeVector(vec)); err != nil {
				return fmt.Errorf("put embedding: %w", err)
			}
		}
		return nil
	})
}

// Models lists the model versions that have cached vectors.
func (c *Cache) Models() ([]string, error) {
	var models []string
	err := c.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			models = append(models, string(name))
			return nil
		})
	})
	return models, err
}

// Purge drops every cached vector for model.
func (c *Cache) Purge(model string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(model))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}

func validKey(text string) bool {
	return text != "" && len(text) <= maxKeySize
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, x := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(x))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, bool) {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil, false
	}
	vec := make([]float32, len(data)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, true
}
