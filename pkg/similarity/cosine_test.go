package similarity

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []float32
		b        []float32
		expected float64
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, expected: 1},
		{name: "scaled", a: []float32{1, 2, 3}, b: []float32{2, 4, 6}, expected: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, expected: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, expected: -1},
		{name: "three four five", a: []float32{1, 0}, b: []float32{3, 4}, expected: 0.6},
		{name: "zero vector left", a: []float32{0, 0}, b: []float32{1, 1}, expected: 0},
		{name: "zero vector right", a: []float32{1, 1}, b: []float32{0, 0}, expected: 0},
		{name: "both zero", a: []float32{0, 0}, b: []float32{0, 0}, expected: 0},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, expected: 0},
		{name: "empty", a: nil, b: nil, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			assert.InDelta(t, tt.expected, got, 1e-9)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func TestCosineSimilarity_ZeroVectorWithItself(t *testing.T) {
	zero := make([]float32, 8)
	assert.Equal(t, 0.0, CosineSimilarity(zero, zero))
}

func TestMagnitude(t *testing.T) {
	assert.InDelta(t, 5.0, Magnitude([]float32{3, 4}), 1e-9)
	assert.Equal(t, 0.0, Magnitude(nil))
}
