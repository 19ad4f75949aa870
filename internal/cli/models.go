package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thebtf/asklens/internal/embedding"
)

func newModelsCmd(root *rootOptions) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the available embedding models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			list := embedding.ListModels()
			return render(cmd.OutOrStdout(), format, list, func(tw *tabwriter.Writer) {
				fmt.Fprintln(tw, "ACTIVE\tVERSION\tNAME\tDIMENSIONS\tDESCRIPTION")
				for _, m := range list {
					active := ""
					if m.Version == root.cfg.EmbeddingModel {
						active = "*"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", active, m.Version, m.Name, m.Dimensions, m.Description)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", FormatTable, "output format: table, json or yaml")
	return cmd
}
