package grouping

import "github.com/thebtf/asklens/pkg/textnorm"

// FrequencyTable counts occurrences of normalized texts and remembers the
// first raw text seen for each key. Keys keep first-seen order.
type FrequencyTable struct {
	index  map[string]int
	keys   []string
	raws   []string
	counts []int
}

// NewFrequencyTable builds a table from raw texts. Texts that normalize to
// the empty string are skipped.
func NewFrequencyTable(texts []string) *FrequencyTable {
	ft := &FrequencyTable{index: make(map[string]int, len(texts))}
	for _, raw := range texts {
		ft.Add(raw)
	}
	return ft
}

// Add records one occurrence of raw. It returns false if raw has no content.
func (ft *FrequencyTable) Add(raw string) bool {
	key := textnorm.Normalize(raw)
	if key == "" {
		return false
	}
	if i, ok := ft.index[key]; ok {
		ft.counts[i]++
		return true
	}
	ft.index[key] = len(ft.keys)
	ft.keys = append(ft.keys, key)
	ft.raws = append(ft.raws, raw)
	ft.counts = append(ft.counts, 1)
	return true
}

// Len returns the number of distinct keys.
func (ft *FrequencyTable) Len() int { return len(ft.keys) }

// Keys returns the distinct keys in first-seen order.
func (ft *FrequencyTable) Keys() []string { return ft.keys }

// Representative returns the first raw text recorded for key.
func (ft *FrequencyTable) Representative(key string) (string, bool) {
	i, ok := ft.index[key]
	if !ok {
		return "", false
	}
	return ft.raws[i], true
}

// Count returns how many raw texts normalized to key.
func (ft *FrequencyTable) Count(key string) int {
	i, ok := ft.index[key]
	if !ok {
		return 0
	}
	return ft.counts[i]
}
