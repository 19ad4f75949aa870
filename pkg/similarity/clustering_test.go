package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGreedyClusters_Empty(t *testing.T) {
	assert.Nil(t, GreedyClusters(nil, 0.5))
}

func TestGreedyClusters_SingleVector(t *testing.T) {
	assert.Equal(t, [][]int{{0}}, GreedyClusters([][]float32{{1, 0}}, 0.9))
}

func TestGreedyClusters_ThresholdInclusive(t *testing.T) {
	// cos([1,0],[3,4]) is exactly 0.6
	vectors := [][]float32{{1, 0}, {3, 4}}

	assert.Equal(t, [][]int{{0, 1}}, GreedyClusters(vectors, 0.6))
	assert.Equal(t, [][]int{{0}, {1}}, GreedyClusters(vectors, 0.6+1e-9))
}

func TestGreedyClusters_NotTransitive(t *testing.T) {
	// A~B and B~C at ~0.707, A and C orthogonal.
	vectors := [][]float32{
		{1, 0}, // A
		{1, 1}, // B
		{0, 1}, // C
	}

	clusters := GreedyClusters(vectors, 0.7)

	assert.Equal(t, [][]int{{0, 1}, {2}}, clusters)
}

func TestGreedyClusters_SeedDecidesMembership(t *testing.T) {
	// When B comes first it seeds and absorbs both A and C.
	vectors := [][]float32{
		{1, 1}, // B
		{1, 0}, // A
		{0, 1}, // C
	}

	assert.Equal(t, [][]int{{0, 1, 2}}, GreedyClusters(vectors, 0.7))
}

func TestGreedyClusters_MembersAscendingAfterSeed(t *testing.T) {
	vectors := [][]float32{
		{1, 0},
		{0, 1},
		{1, 0.01},
		{0.01, 1},
		{1, 0.02},
	}

	assert.Equal(t, [][]int{{0, 2, 4}, {1, 3}}, GreedyClusters(vectors, 0.99))
}

func TestGreedyClusters_ZeroVectorsNeverMatch(t *testing.T) {
	vectors := [][]float32{{0, 0}, {0, 0}, {1, 0}}

	assert.Equal(t, [][]int{{0}, {1}, {2}}, GreedyClusters(vectors, 0.01))
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		set1     map[string]bool
		set2     map[string]bool
		name     string
		expected float64
	}{
		{
			name:     "identical sets",
			set1:     map[string]bool{"a": true, "b": true, "c": true},
			set2:     map[string]bool{"a": true, "b": true, "c": true},
			expected: 1.0,
		},
		{
			name:     "no overlap",
			set1:     map[string]bool{"a": true, "b": true},
			set2:     map[string]bool{"c": true, "d": true},
			expected: 0.0,
		},
		{
			name:     "partial overlap",
			set1:     map[string]bool{"a": true, "b": true, "c": true},
			set2:     map[string]bool{"b": true, "c": true, "d": true},
			expected: 0.5, // intersection=2, union=4
		},
		{
			name:     "empty sets",
			set1:     map[string]bool{},
			set2:     map[string]bool{},
			expected: 0.0,
		},
		{
			name:     "one empty set",
			set1:     map[string]bool{"a": true},
			set2:     map[string]bool{},
			expected: 0.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := JaccardSimilarity(tt.set1, tt.set2)
			assert.InDelta(t, tt.expected, result, 0.001)
		})
	}
}

func TestExtractTerms(t *testing.T) {
	terms := ExtractTerms("How do I reset my password on the mobile app?")

	assert.Contains(t, terms, "reset")
	assert.Contains(t, terms, "password")
	assert.Contains(t, terms, "mobile")
	assert.Contains(t, terms, "app")

	// Stop words and short words are dropped
	assert.NotContains(t, terms, "how")
	assert.NotContains(t, terms, "the")
	assert.NotContains(t, terms, "my")
}

func TestExtractTerms_NonASCII(t *testing.T) {
	assert.Equal(t, map[string]bool{"cómo": true, "está": true}, ExtractTerms("¿Cómo está?"))
	assert.Equal(t, map[string]bool{"日本語の質問": true}, ExtractTerms("日本語の質問"))
	assert.Equal(t, map[string]bool{"привет": true, "мир": true}, ExtractTerms("Привет, мир"))
	assert.Empty(t, ExtractTerms("What is it?"))
}

func TestClusterTexts_TermlessTextsStaySeparate(t *testing.T) {
	texts := []string{"what is it", "how do i", "is it", "reset password", "reset password"}

	assert.Equal(t, [][]int{{0}, {1}, {2}, {3, 4}}, ClusterTexts(texts, 0.5))
}

func TestClusterTexts(t *testing.T) {
	texts := []string{
		"reset password mobile app",
		"database migration guide",
		"reset password mobile",
		"database migration steps guide",
	}

	clusters := ClusterTexts(texts, 0.5)

	assert.Equal(t, [][]int{{0, 2}, {1, 3}}, clusters)
}

func TestClusterTexts_LargeSetUsesSameSemantics(t *testing.T) {
	texts := make([]string, 0, 60)
	for i := 0; i < 30; i++ {
		texts = append(texts, "refund policy question")
		texts = append(texts, "password reset question")
	}

	clusters := ClusterTexts(texts, 0.9)

	assert.Len(t, clusters, 2)
	assert.Len(t, clusters[0], 30)
	assert.Len(t, clusters[1], 30)
	assert.Equal(t, 0, clusters[0][0])
	assert.Equal(t, 1, clusters[1][0])
}

func TestClusterTexts_Empty(t *testing.T) {
	assert.Nil(t, ClusterTexts(nil, 0.5))
}
