// Package db defines the question source interfaces shared by the stores.
package db

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/thebtf/asklens/pkg/models"
)

// ErrSchemaMissing is returned when the question log table does not exist.
var ErrSchemaMissing = errors.New("question log table not found")

// QuestionTable is the table both stores read questions from.
const QuestionTable = "token_cost_calculation"

// QuestionReader reads logged questions for an organization.
type QuestionReader interface {
	// AllQuestions returns every non-null question text for orgID in r.
	AllQuestions(ctx context.Context, orgID string, r models.TimeRange) ([]string, error)
	// TopDocuments returns the most referenced documents, largest first, each
	// with up to questionsPerDoc distinct questions.
	TopDocuments(ctx context.Context, orgID string, r models.TimeRange, limit, questionsPerDoc int) ([]models.DocumentQuestions, error)
}

// QuestionWriter records questions. Only the local store implements it.
type QuestionWriter interface {
	InsertQuestion(ctx context.Context, rec models.QuestionRecord) (int64, error)
}

// QuestionSource is a QuestionReader with a connection lifecycle.
type QuestionSource interface {
	QuestionReader
	Ping(ctx context.Context) error
	Close() error
}

// RangeClause returns the SQL filter for r on column and its arguments.
// The clause starts with " AND " or is empty for an open range.
func RangeClause(column string, r models.TimeRange) (string, []time.Time) {
	var parts []string
	var args []time.Time
	if r.Start != nil {
		parts = append(parts, column+" >= ?")
		args = append(args, r.Start.UTC())
	}
	if r.End != nil {
		parts = append(parts, column+" <= ?")
		args = append(args, r.End.UTC())
	}
	if len(parts) == 0 {
		return "", nil
	}
	return " AND " + strings.Join(parts, " AND "), args
}
