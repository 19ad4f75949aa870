package grouping

import (
	"context"
	"fmt"
	"sync"
)

// spyEmbedder returns vectors by exact key and records every batch it sees.
type spyEmbedder struct {
	err     error
	respond func(texts []string) [][]float32
	vectors map[string][]float32
	batches [][]string
	mu      sync.Mutex
}

func newSpy(vectors map[string][]float32) *spyEmbedder {
	return &spyEmbedder{vectors: vectors}
}

func (s *spyEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	s.batches = append(s.batches, append([]string(nil), texts...))
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.err != nil {
		return nil, s.err
	}
	if s.respond != nil {
		return s.respond(texts), nil
	}

	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := s.vectors[t]
		if !ok {
			return nil, fmt.Errorf("spy: no vector for %q", t)
		}
		out[i] = v
	}
	return out, nil
}

func (s *spyEmbedder) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}
