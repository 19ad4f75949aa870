package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCluster_JSONFieldNames(t *testing.T) {
	c := Cluster{
		Representative:   "How do I reset my password?",
		SimilarQuestions: []string{"How do I reset my password?", "reset password"},
		TotalCount:       3,
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "How do I reset my password?", raw["representative"])
	assert.Len(t, raw["similar_questions"], 2)
	assert.Equal(t, float64(3), raw["total_count"])
	assert.Equal(t, 2, c.Variants())
}
