package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/thebtf/asklens/internal/app"
	"github.com/thebtf/asklens/internal/grouping"
	"github.com/thebtf/asklens/pkg/models"
)

// maxLineBytes bounds a single question line read from input.
const maxLineBytes = 1 << 20

type groupOptions struct {
	glob      string
	threshold float64
	maxGroups int
	lexical   bool
	format    string
}

func newGroupCmd(root *rootOptions) *cobra.Command {
	opts := &groupOptions{}
	cmd := &cobra.Command{
		Use:   "group [files...]",
		Short: "Cluster similar questions",
		Long: `Cluster questions read one per line from files, a glob or stdin.
Clusters are ordered by total occurrences, largest first.

Examples:
  asklens group questions.txt
  cat questions.txt | asklens group --threshold 0.9 --format json
  cat extra.txt | asklens group questions.txt -
  asklens group --lexical --glob 'exports/**/*.txt' --max-groups 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGroup(cmd, root, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.glob, "glob", "", "read every file matching this doublestar pattern")
	f.Float64Var(&opts.threshold, "threshold", 0, "similarity threshold in (0, 1] (default from config)")
	f.IntVar(&opts.maxGroups, "max-groups", 0, "keep only the largest N clusters (0 = all)")
	f.BoolVar(&opts.lexical, "lexical", false, "group by term overlap instead of embeddings")
	f.StringVarP(&opts.format, "format", "f", FormatTable, "output format: table, json or yaml")
	return cmd
}

func runGroup(cmd *cobra.Command, root *rootOptions, opts *groupOptions, args []string) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}

	gopts := grouping.Options{Threshold: root.cfg.GroupingThreshold, MaxGroups: opts.maxGroups}
	if opts.lexical {
		gopts.Threshold = grouping.DefaultLexicalThreshold
	}
	if cmd.Flags().Changed("threshold") {
		gopts.Threshold = opts.threshold
	}
	if err := gopts.Validate(); err != nil {
		return err
	}

	texts, err := readInputs(cmd, args, opts.glob, root.quiet)
	if err != nil {
		return err
	}

	var clusters []models.Cluster
	if opts.lexical {
		clusters, err = grouping.Lexical(texts, gopts)
	} else {
		comps, buildErr := app.Build(root.cfg, app.BuildOptions{})
		if buildErr != nil {
			return buildErr
		}
		defer comps.Close()
		clusters, err = comps.Grouper.Group(cmd.Context(), texts, gopts)
	}
	if err != nil {
		return fmt.Errorf("group questions: %w", err)
	}

	return renderClusters(cmd.OutOrStdout(), opts.format, clusters)
}

// stdinArg names stdin in the file list.
const stdinArg = "-"

// readInputs collects question lines from the named files and glob matches,
// in order. The argument "-" reads stdin at its position; with no files and
// no glob, stdin is read.
func readInputs(cmd *cobra.Command, args []string, glob string, quiet bool) ([]string, error) {
	files := make([]string, 0, len(args))
	stdinSeen := false
	for _, a := range args {
		if a == stdinArg {
			if stdinSeen {
				return nil, fmt.Errorf("stdin (%q) given more than once", stdinArg)
			}
			stdinSeen = true
		}
		files = append(files, a)
	}
	if glob != "" {
		matches, err := doublestar.FilepathGlob(glob, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid glob %q: %w", glob, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", glob)
		}
		files = append(files, matches...)
	}

	if len(files) == 0 {
		if stdinIsTerminal(cmd) {
			return nil, fmt.Errorf("no input: pass files, --glob or pipe questions on stdin")
		}
		return readLines(cmd.InOrStdin(), nil)
	}

	var bar *progressbar.ProgressBar
	if len(files) > 1 && !quiet {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("Reading"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionClearOnFinish(),
		)
	}

	var texts []string
	for _, path := range files {
		if path == stdinArg {
			var err error
			if texts, err = readLines(cmd.InOrStdin(), texts); err != nil {
				return nil, fmt.Errorf("read stdin: %w", err)
			}
			if bar != nil {
				_ = bar.Add(1)
			}
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		texts, err = readLines(f, texts)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return texts, nil
}

// readLines appends the non-blank lines of r to texts.
func readLines(r io.Reader, texts []string) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			texts = append(texts, line)
		}
	}
	return texts, sc.Err()
}
