// Package analytics builds the "what are users asking" report for an
// organization from its question log.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/thebtf/asklens/internal/db"
	"github.com/thebtf/asklens/internal/grouping"
	"github.com/thebtf/asklens/internal/privacy"
	"github.com/thebtf/asklens/pkg/models"
)

// ErrMissingOrg is returned when a report is requested without an organization.
var ErrMissingOrg = errors.New("organization id is required")

// Config tunes the report. A zero Threshold, TopDocuments or
// QuestionsPerDocument falls back to DefaultConfig; MaxGroups 0 is unlimited.
type Config struct {
	Threshold            float64
	MaxGroups            int
	TopDocuments         int
	QuestionsPerDocument int
	// RedactQuestions masks credentials and personal data before grouping.
	RedactQuestions bool
}

// DefaultConfig returns the report settings used by the dashboard.
func DefaultConfig() Config {
	return Config{
		Threshold:            grouping.DefaultThreshold,
		MaxGroups:            grouping.DefaultMaxGroups,
		TopDocuments:         5,
		QuestionsPerDocument: 20,
		RedactQuestions:      true,
	}
}

// Reporter assembles question reports. It is safe for concurrent use.
type Reporter struct {
	source  db.QuestionReader
	grouper *grouping.Grouper
	cfg     Config
	now     func() time.Time
}

// NewReporter creates a Reporter reading from source and grouping with grouper.
func NewReporter(source db.QuestionReader, grouper *grouping.Grouper, cfg Config) *Reporter {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.MaxGroups < 0 {
		cfg.MaxGroups = def.MaxGroups
	}
	if cfg.TopDocuments <= 0 {
		cfg.TopDocuments = def.TopDocuments
	}
	if cfg.QuestionsPerDocument <= 0 {
		cfg.QuestionsPerDocument = def.QuestionsPerDocument
	}
	return &Reporter{source: source, grouper: grouper, cfg: cfg, now: time.Now}
}

// QuestionReport groups all of orgID's questions in r, capped at the
// configured number of clusters, and groups the questions behind each of the
// most referenced documents without a cap. Any failure fails the whole report.
func (rp *Reporter) QuestionReport(ctx context.Context, orgID string, r models.TimeRange) (*models.QuestionReport, error) {
	orgID = strings.TrimSpace(orgID)
	if orgID == "" {
		return nil, ErrMissingOrg
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	var (
		questions []string
		docs      []models.DocumentQuestions
	)
	loads, loadCtx := errgroup.WithContext(ctx)
	loads.Go(func() error {
		var err error
		questions, err = rp.source.AllQuestions(loadCtx, orgID, r)
		if err != nil {
			return fmt.Errorf("load questions: %w", err)
		}
		return nil
	})
	loads.Go(func() error {
		var err error
		docs, err = rp.source.TopDocuments(loadCtx, orgID, r, rp.cfg.TopDocuments, rp.cfg.QuestionsPerDocument)
		if err != nil {
			return fmt.Errorf("load top documents: %w", err)
		}
		return nil
	})
	if err := loads.Wait(); err != nil {
		return nil, err
	}

	questions = rp.prepare(questions)
	for i := range docs {
		docs[i].Questions = rp.prepare(docs[i].Questions)
	}

	report := &models.QuestionReport{
		OrgID:             orgID,
		StartDate:         r.Start,
		EndDate:           r.End,
		TotalQuestions:    len(questions),
		DocumentsAnalysis: make([]models.DocumentAnalysis, len(docs)),
	}

	groups, groupCtx := errgroup.WithContext(ctx)
	groups.Go(func() error {
		clusters, err := rp.grouper.Group(groupCtx, questions, grouping.Options{
			Threshold: rp.cfg.Threshold,
			MaxGroups: rp.cfg.MaxGroups,
		})
		if err != nil {
			return fmt.Errorf("group questions: %w", err)
		}
		report.Questions = clusters
		return nil
	})
	for i, doc := range docs {
		i, doc := i, doc
		groups.Go(func() error {
			clusters, err := rp.grouper.Group(groupCtx, doc.Questions, grouping.Options{Threshold: rp.cfg.Threshold})
			if err != nil {
				return fmt.Errorf("group questions for %s: %w", doc.DocumentSource, err)
			}
			report.DocumentsAnalysis[i] = models.DocumentAnalysis{
				DocumentSource: doc.DocumentSource,
				ReferenceCount: doc.ReferenceCount,
				Questions:      clusters,
			}
			return nil
		})
	}
	if err := groups.Wait(); err != nil {
		return nil, err
	}

	report.GeneratedAt = rp.now().UTC()
	log.Info().
		Str("org_id", orgID).
		Int("questions", report.TotalQuestions).
		Int("clusters", len(report.Questions)).
		Int("documents", len(report.DocumentsAnalysis)).
		Dur("duration", time.Since(start)).
		Msg("Question report generated")

	return report, nil
}

// prepare trims texts and masks secrets when configured.
func (rp *Reporter) prepare(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = strings.TrimSpace(t)
	}
	if rp.cfg.RedactQuestions {
		if n := privacy.RedactAll(out); n > 0 {
			log.Debug().Int("redacted", n).Msg("Masked sensitive values in questions")
		}
	}
	return out
}
