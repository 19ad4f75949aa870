package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/asklens/pkg/models"
)

// Output formats accepted by --format.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

var errUnknownFormat = errors.New("unknown output format")

func checkFormat(format string) error {
	switch format {
	case FormatTable, FormatJSON, FormatYAML:
		return nil
	}
	return fmt.Errorf("%w %q (want table, json or yaml)", errUnknownFormat, format)
}

// render writes v as JSON or YAML, or calls table with a tabwriter.
func render(w io.Writer, format string, v interface{}, table func(tw *tabwriter.Writer)) error {
	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case FormatTable:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		table(tw)
		return tw.Flush()
	}
	return checkFormat(format)
}

func writeClusterRows(tw *tabwriter.Writer, clusters []models.Cluster) {
	fmt.Fprintln(tw, "COUNT\tVARIANTS\tREPRESENTATIVE")
	for _, c := range clusters {
		fmt.Fprintf(tw, "%d\t%d\t%s\n", c.TotalCount, c.Variants(), oneLine(c.Representative))
	}
}

func renderClusters(w io.Writer, format string, clusters []models.Cluster) error {
	return render(w, format, clusters, func(tw *tabwriter.Writer) {
		writeClusterRows(tw, clusters)
	})
}

func renderReport(w io.Writer, format string, report *models.QuestionReport) error {
	return render(w, format, report, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "Organization:\t%s\n", report.OrgID)
		fmt.Fprintf(tw, "Questions:\t%d\n", report.TotalQuestions)
		fmt.Fprintln(tw)
		writeClusterRows(tw, report.Questions)
		for _, doc := range report.DocumentsAnalysis {
			fmt.Fprintln(tw)
			fmt.Fprintf(tw, "Document:\t%s (%d references)\n", doc.DocumentSource, doc.ReferenceCount)
			writeClusterRows(tw, doc.Questions)
		}
	})
}

// oneLine flattens whitespace so a question fits one table row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
