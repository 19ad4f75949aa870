package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/thebtf/asklens/internal/app"
	"github.com/thebtf/asklens/internal/db"
	"github.com/thebtf/asklens/pkg/models"
)

type recordOptions struct {
	org string
	doc string
}

func newRecordCmd(root *rootOptions) *cobra.Command {
	opts := &recordOptions{}
	cmd := &cobra.Command{
		Use:   "record [questions...]",
		Short: "Append questions to the local question log",
		Long: `Append questions to the local SQLite question log. Questions come from
the arguments, or one per line on stdin when none are given.

Examples:
  asklens record --org acme "How do I reset my password?"
  asklens record --org acme --doc handbook.pdf < questions.txt`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecord(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.org, "org", "", "organization id (required)")
	f.StringVar(&opts.doc, "doc", "", "document the questions referenced")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func runRecord(cmd *cobra.Command, root *rootOptions, opts *recordOptions, args []string) error {
	texts := args
	if len(texts) == 0 {
		var err error
		if texts, err = readLines(cmd.InOrStdin(), nil); err != nil {
			return err
		}
	}
	if len(texts) == 0 {
		return fmt.Errorf("no questions to record")
	}

	source, err := app.OpenSource(root.cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	writer, ok := source.(db.QuestionWriter)
	if !ok {
		return fmt.Errorf("%w: question source %q is read-only", app.ErrUnsupported, root.cfg.QuestionSource)
	}

	now := time.Now().UTC()
	for _, text := range texts {
		_, err := writer.InsertQuestion(cmd.Context(), models.QuestionRecord{
			CreatedAt:      now,
			OrgID:          opts.org,
			QuestionText:   text,
			DocumentSource: opts.doc,
		})
		if err != nil {
			return fmt.Errorf("record question: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Recorded %d questions for %s\n", len(texts), opts.org)
	return nil
}
