package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/thebtf/asklens/internal/app"
	"github.com/thebtf/asklens/pkg/models"
)

type reportOptions struct {
	org    string
	start  string
	end    string
	format string
}

func newReportCmd(root *rootOptions) *cobra.Command {
	opts := &reportOptions{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build the question report for an organization",
		Long: `Build the question report for an organization from the configured
question log. Dates accept YYYY-MM-DD or RFC 3339; a date-only --end
includes that whole day.

Examples:
  asklens report --org acme
  asklens report --org acme --start 2025-01-01 --end 2025-01-31 --format yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, root, opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.org, "org", "", "organization id (required)")
	f.StringVar(&opts.start, "start", "", "only questions asked on or after this date")
	f.StringVar(&opts.end, "end", "", "only questions asked on or before this date")
	f.StringVarP(&opts.format, "format", "f", FormatTable, "output format: table, json or yaml")
	_ = cmd.MarkFlagRequired("org")
	return cmd
}

func runReport(cmd *cobra.Command, root *rootOptions, opts *reportOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	var (
		tr  models.TimeRange
		err error
	)
	if tr.Start, err = models.ParseTimeBound(opts.start, false); err != nil {
		return err
	}
	if tr.End, err = models.ParseTimeBound(opts.end, true); err != nil {
		return err
	}
	if err := tr.Validate(); err != nil {
		return err
	}

	comps, err := app.Build(root.cfg, app.BuildOptions{WithSource: true})
	if err != nil {
		return err
	}
	defer comps.Close()
	if comps.Reporter == nil {
		return errors.New("no question source configured")
	}

	report, err := comps.Reporter.QuestionReport(cmd.Context(), opts.org, tr)
	if err != nil {
		return fmt.Errorf("build report: %w", err)
	}
	return renderReport(cmd.OutOrStdout(), opts.format, report)
}
