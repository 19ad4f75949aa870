package grouping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thebtf/asklens/pkg/models"
)

func TestLexical(t *testing.T) {
	clusters, err := Lexical([]string{
		"Refund policy please",
		"How do I reset my password?",
		"how do i reset my password",
		"Password reset, how?",
	}, opts(DefaultLexicalThreshold, 0))
	require.NoError(t, err)

	assert.Equal(t, []models.Cluster{
		{
			Representative:   "How do I reset my password?",
			SimilarQuestions: []string{"How do I reset my password?", "Password reset, how?"},
			TotalCount:       3,
		},
		{
			Representative:   "Refund policy please",
			SimilarQuestions: []string{"Refund policy please"},
			TotalCount:       1,
		},
	}, clusters)
}

func TestLexical_EmptyAndInvalid(t *testing.T) {
	clusters, err := Lexical([]string{"", "  ?! "}, opts(0.5, 0))
	require.NoError(t, err)
	assert.Empty(t, clusters)
	assert.NotNil(t, clusters)

	_, err = Lexical([]string{"a"}, opts(0, 0))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestLexical_MaxGroups(t *testing.T) {
	clusters, err := Lexical([]string{"alpha question", "bravo question", "charlie topic"}, opts(0.9, 2))
	require.NoError(t, err)
	assert.Len(t, clusters, 2)
	assert.Equal(t, "alpha question", clusters[0].Representative)
}

func TestLexical_TermlessAndNonASCIIQuestionsStaySeparate(t *testing.T) {
	clusters, err := Lexical([]string{"¿Cómo está?", "日本語の質問", "What is it?", "How do I?"}, opts(DefaultLexicalThreshold, 0))
	require.NoError(t, err)

	require.Len(t, clusters, 4)
	for _, c := range clusters {
		assert.Len(t, c.SimilarQuestions, 1, "cluster %q", c.Representative)
	}
	assert.Equal(t, "¿Cómo está?", clusters[0].Representative)
	assert.Equal(t, 1, clusters[0].TotalCount)
}
