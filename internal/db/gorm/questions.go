package gorm

import (
	"context"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/thebtf/asklens/internal/db"
	"github.com/thebtf/asklens/pkg/models"
)

var _ db.QuestionSource = (*Store)(nil)

// topDocumentRow is one row of the top documents query.
type topDocumentRow struct {
	DocumentSource string `gorm:"column:document_source"`
	ReferenceCount int64  `gorm:"column:reference_count"`
	Questions      string `gorm:"column:questions"`
}

// AllQuestions returns every non-null question text for orgID in r.
func (s *Store) AllQuestions(ctx context.Context, orgID string, r models.TimeRange) ([]string, error) {
	filter, args := rangeArgs(r)
	query := `
		SELECT question_text
		FROM token_cost_calculation
		WHERE org_id = ? AND question_text IS NOT NULL` + filter + `
		ORDER BY created_at`

	var questions []string
	err := s.DB.WithContext(ctx).Raw(query, append([]any{orgID}, args...)...).Scan(&questions).Error
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", translateError(err))
	}
	return questions, nil
}

// TopDocuments returns the most referenced documents for orgID in r, each
// with up to questionsPerDoc distinct questions gathered by a lateral join.
func (s *Store) TopDocuments(ctx context.Context, orgID string, r models.TimeRange, limit, questionsPerDoc int) ([]models.DocumentQuestions, error) {
	if limit <= 0 {
		return nil, nil
	}
	filter, args := rangeArgs(r)

	perDocLimit := "ALL"
	if questionsPerDoc > 0 {
		perDocLimit = fmt.Sprintf("%d", questionsPerDoc)
	}

	query := `
		SELECT
			d.document_source,
			d.reference_count,
			COALESCE(JSON_AGG(q.question_text) FILTER (WHERE q.question_text IS NOT NULL), '[]')::text AS questions
		FROM (
			SELECT document_source, COUNT(*) AS reference_count
			FROM token_cost_calculation
			WHERE org_id = ?
			  AND document_source IS NOT NULL
			  AND question_text IS NOT NULL` + filter + `
			GROUP BY document_source
			ORDER BY reference_count DESC, document_source
			LIMIT ?
		) d
		LEFT JOIN LATERAL (
			SELECT DISTINCT question_text
			FROM token_cost_calculation
			WHERE org_id = ?
			  AND document_source = d.document_source
			  AND question_text IS NOT NULL` + filter + `
			LIMIT ` + perDocLimit + `
		) q ON true
		GROUP BY d.document_source, d.reference_count
		ORDER BY d.reference_count DESC, d.document_source`

	queryArgs := append([]any{orgID}, args...)
	queryArgs = append(queryArgs, limit, orgID)
	queryArgs = append(queryArgs, args...)

	var rows []topDocumentRow
	if err := s.DB.WithContext(ctx).Raw(query, queryArgs...).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("query top documents: %w", translateError(err))
	}

	docs := make([]models.DocumentQuestions, 0, len(rows))
	for _, row := range rows {
		var questions []string
		if err := json.Unmarshal([]byte(row.Questions), &questions); err != nil {
			return nil, fmt.Errorf("decode questions for %s: %w", row.DocumentSource, err)
		}
		docs = append(docs, models.DocumentQuestions{
			DocumentSource: row.DocumentSource,
			ReferenceCount: row.ReferenceCount,
			Questions:      questions,
		})
	}
	return docs, nil
}

func rangeArgs(r models.TimeRange) (string, []any) {
	clause, times := db.RangeClause("created_at", r)
	args := make([]any, len(times))
	for i, t := range times {
		args[i] = t
	}
	return clause, args
}
