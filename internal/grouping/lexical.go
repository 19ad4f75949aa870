package grouping

import (
	"github.com/thebtf/asklens/pkg/models"
	"github.com/thebtf/asklens/pkg/similarity"
)

// DefaultLexicalThreshold is the Jaccard similarity used for lexical previews.
const DefaultLexicalThreshold = 0.5

// Lexical groups texts by term overlap instead of embeddings. It dedupes and
// counts exactly like Grouper.Group and applies the same seed-only policy,
// so it previews what semantic grouping is likely to merge without calling
// an embedding provider.
func Lexical(texts []string, opts Options) ([]models.Cluster, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	freq := NewFrequencyTable(texts)
	if freq.Len() == 0 {
		return []models.Cluster{}, nil
	}

	keys := freq.Keys()
	groups := similarity.ClusterTexts(keys, opts.Threshold)
	clusters := make([]models.Cluster, 0, len(groups))
	for _, members := range groups {
		var c models.Cluster
		for _, idx := range members {
			raw, _ := freq.Representative(keys[idx])
			if c.Representative == "" {
				c.Representative = raw
			}
			c.SimilarQuestions = append(c.SimilarQuestions, raw)
			c.TotalCount += freq.Count(keys[idx])
		}
		clusters = append(clusters, c)
	}

	return rank(clusters, opts.MaxGroups), nil
}
