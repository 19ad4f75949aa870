// Package similarity provides vector and text similarity plus greedy clustering.
package similarity

import (
	"math/bits"
	"strings"
	"unicode"
	"unicode/utf8"
)

// GreedyClusters groups vectors by direct cosine similarity to a seed.
//
// Vectors are visited in order. The first unclustered vector seeds a new
// cluster, and every later unclustered vector whose similarity to that seed is
// >= threshold joins it. Membership is never transitive: a vector similar only
// to a non-seed member starts or joins another cluster.
//
// The returned clusters hold input indices, in seed order, seed first and the
// remaining members ascending.
func GreedyClusters(vectors [][]float32, threshold float64) [][]int {
	n := len(vectors)
	if n == 0 {
		return nil
	}

	// Track which vectors are already clustered
	clustered := make([]bool, n)
	clusters := make([][]int, 0, n)

	for i := 0; i < n; i++ {
		if clustered[i] {
			continue
		}

		members := []int{i}
		clustered[i] = true

		for j := i + 1; j < n; j++ {
			if clustered[j] {
				continue
			}
			if CosineSimilarity(vectors[i], vectors[j]) >= threshold {
				members = append(members, j)
				clustered[j] = true
			}
		}

		clusters = append(clusters, members)
	}

	return clusters
}

// ClusterTexts groups texts lexically using Jaccard similarity on extracted terms.
// It uses the same seed-only greedy policy as GreedyClusters and needs no
// embeddings, so it serves as a cheap preview of what semantic grouping will merge.
// Texts should be sorted by preference; the first text of each cluster is its seed.
func ClusterTexts(texts []string, similarityThreshold float64) [][]int {
	if len(texts) == 0 {
		return nil
	}

	// For small sets, use the simple O(n²) algorithm
	if len(texts) <= 50 {
		return clusterTextsSimple(texts, similarityThreshold)
	}

	// For larger sets, use signature pre-filtering
	return clusterTextsOptimized(texts, similarityThreshold)
}

// clusterTextsSimple is the simple O(n²) algorithm for small sets.
func clusterTextsSimple(texts []string, similarityThreshold float64) [][]int {
	termSets := make([]map[string]bool, len(texts))
	for i, text := range texts {
		termSets[i] = ExtractTerms(text)
	}

	clustered := make([]bool, len(texts))
	result := make([][]int, 0)

	for i := 0; i < len(texts); i++ {
		if clustered[i] {
			continue
		}

		members := []int{i}
		clustered[i] = true

		for j := i + 1; j < len(texts); j++ {
			if clustered[j] {
				continue
			}
			if JaccardSimilarity(termSets[i], termSets[j]) >= similarityThreshold {
				members = append(members, j)
				clustered[j] = true
			}
		}

		result = append(result, members)
	}

	return result
}

// clusterTextsOptimized uses a hash signature to skip clearly dissimilar pairs.
func clusterTextsOptimized(texts []string, similarityThreshold float64) [][]int {
	n := len(texts)

	type termSetWithSig struct {
		terms     map[string]bool
		signature uint64
	}

	termSets := make([]termSetWithSig, n)
	for i, text := range texts {
		terms := ExtractTerms(text)
		termSets[i] = termSetWithSig{
			terms:     terms,
			signature: computeTermSignature(terms),
		}
	}

	clustered := make([]bool, n)
	result := make([][]int, 0, n/2)

	for i := 0; i < n; i++ {
		if clustered[i] {
			continue
		}

		members := []int{i}
		clustered[i] = true

		sigI := termSets[i].signature
		termsI := termSets[i].terms

		for j := i + 1; j < n; j++ {
			if clustered[j] {
				continue
			}

			// More than half of the signature bits differ: similarity is likely low
			if popCount64(sigI^termSets[j].signature) > 32 {
				continue
			}

			if JaccardSimilarity(termsI, termSets[j].terms) >= similarityThreshold {
				members = append(members, j)
				clustered[j] = true
			}
		}

		result = append(result, members)
	}

	return result
}

// computeTermSignature creates a quick hash signature for term sets.
func computeTermSignature(terms map[string]bool) uint64 {
	var sig uint64
	for term := range terms {
		// FNV-1a
		h := uint64(14695981039346656037)
		for i := 0; i < len(term); i++ {
			h ^= uint64(term[i])
			h *= 1099511628211
		}
		sig ^= h
	}
	return sig
}

func popCount64(x uint64) int {
	return bits.OnesCount64(x)
}

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "must": true, "shall": true, "can": true,
	"this": true, "that": true, "these": true, "those": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"for": true, "from": true, "with": true, "about": true, "into": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "by": true,
	"it": true, "its": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "why": true, "you": true,
	"your": true, "get": true,
}

// ExtractTerms tokenizes text into a set of meaningful lowercase terms.
// Words are runs of letters, digits, marks and underscores in any script;
// words shorter than three runes and stop words are dropped.
func ExtractTerms(text string) map[string]bool {
	terms := make(map[string]bool)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) || r == '_')
	})

	for _, word := range words {
		if utf8.RuneCountInString(word) >= 3 && !stopWords[word] {
			terms[word] = true
		}
	}
	return terms
}

// JaccardSimilarity calculates the Jaccard similarity between two term sets.
// Returns a value between 0 (no overlap) and 1 (identical). An empty set shares
// no terms with anything, itself included, so term-less texts never cluster.
func JaccardSimilarity(set1, set2 map[string]bool) float64 {
	if len(set1) == 0 || len(set2) == 0 {
		return 0.0
	}

	intersection := 0
	for term := range set1 {
		if set2[term] {
			intersection++
		}
	}

	union := len(set1) + len(set2) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}
