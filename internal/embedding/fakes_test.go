package embedding

import (
	"context"
	"sync"
)

// stubModel returns fixed vectors (or a fixed error) and records every batch.
type stubModel struct {
	err     error
	vectors map[string][]float32
	batches [][]string
	mu      sync.Mutex
}

func newStubModel(vectors map[string][]float32) *stubModel {
	return &stubModel{vectors: vectors}
}

func (m *stubModel) Name() string    { return "stub" }
func (m *stubModel) Version() string { return "stub-v1" }
func (m *stubModel) Dimensions() int { return 2 }
func (m *stubModel) Close() error    { return nil }

func (m *stubModel) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batches = append(m.batches, append([]string(nil), texts...))
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *stubModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.batches)
}

// memCache is an in-memory Cache.
type memCache struct {
	getErr  error
	putErr  error
	entries map[string][]float32
	mu      sync.Mutex
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]float32)}
}

func (c *memCache) GetMany(_ context.Context, model string, texts []string) (map[string][]float32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	out := make(map[string][]float32)
	for _, t := range texts {
		if v, ok := c.entries[model+"|"+t]; ok {
			out[t] = v
		}
	}
	return out, nil
}

func (c *memCache) PutMany(_ context.Context, model string, entries map[string][]float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.putErr != nil {
		return c.putErr
	}
	for t, v := range entries {
		c.entries[model+"|"+t] = v
	}
	return nil
}

func (c *memCache) Close() error { return nil }
