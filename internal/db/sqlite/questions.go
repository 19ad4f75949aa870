package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/thebtf/asklens/internal/db"
	"github.com/thebtf/asklens/pkg/models"
)

var (
	_ db.QuestionSource = (*Store)(nil)
	_ db.QuestionWriter = (*Store)(nil)
)

// InsertQuestion appends one question to the log.
func (s *Store) InsertQuestion(ctx context.Context, rec models.QuestionRecord) (int64, error) {
	const query = `
		INSERT INTO token_cost_calculation (org_id, question_text, document_source, created_at)
		VALUES (?, ?, ?, ?)
	`
	if rec.OrgID == "" {
		return 0, fmt.Errorf("org id is required")
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	result, err := s.execContext(ctx, query,
		rec.OrgID, nullString(rec.QuestionText), nullString(rec.DocumentSource), formatTime(createdAt))
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return result.LastInsertId()
}

// AllQuestions returns every logged question text for orgID in r, oldest first.
func (s *Store) AllQuestions(ctx context.Context, orgID string, r models.TimeRange) ([]string, error) {
	filter, args := rangeArgs(r)
	query := `
		SELECT question_text
		FROM token_cost_calculation
		WHERE org_id = ? AND question_text IS NOT NULL` + filter + `
		ORDER BY created_at, id
	`

	rows, err := s.queryContext(ctx, query, append([]any{orgID}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// TopDocuments returns the documents referenced most often by orgID's
// questions in r, each with up to questionsPerDoc distinct questions.
func (s *Store) TopDocuments(ctx context.Context, orgID string, r models.TimeRange, limit, questionsPerDoc int) ([]models.DocumentQuestions, error) {
	if limit <= 0 {
		return nil, nil
	}
	filter, args := rangeArgs(r)

	topQuery := `
		SELECT document_source, COUNT(*) AS reference_count
		FROM token_cost_calculation
		WHERE org_id = ?
		  AND document_source IS NOT NULL
		  AND question_text IS NOT NULL` + filter + `
		GROUP BY document_source
		ORDER BY reference_count DESC, document_source
		LIMIT ?
	`
	topArgs := append(append([]any{orgID}, args...), limit)

	rows, err := s.queryContext(ctx, topQuery, topArgs...)
	if err != nil {
		return nil, fmt.Errorf("query top documents: %w", err)
	}
	var docs []models.DocumentQuestions
	for rows.Next() {
		var d models.DocumentQuestions
		if err := rows.Scan(&d.DocumentSource, &d.ReferenceCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range docs {
		questions, err := s.documentQuestions(ctx, orgID, docs[i].DocumentSource, filter, args, questionsPerDoc)
		if err != nil {
			return nil, err
		}
		docs[i].Questions = questions
	}
	return docs, nil
}

func (s *Store) documentQuestions(ctx context.Context, orgID, source, filter string, args []any, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT question_text
		FROM token_cost_calculation
		WHERE org_id = ?
		  AND document_source = ?
		  AND question_text IS NOT NULL` + filter + `
		LIMIT ?
	`
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	qArgs := append(append([]any{orgID, source}, args...), limit)

	rows, err := s.queryContext(ctx, query, qArgs...)
	if err != nil {
		return nil, fmt.Errorf("query questions for %s: %w", source, err)
	}
	defer rows.Close()

	var questions []string
	for rows.Next() {
		var q string
		if err := rows.Scan(&q); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// rangeArgs converts the shared range clause to stored timestamp strings.
func rangeArgs(r models.TimeRange) (string, []any) {
	clause, times := db.RangeClause("created_at", r)
	args := make([]any, len(times))
	for i, t := range times {
		args[i] = formatTime(t)
	}
	return clause, args
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
