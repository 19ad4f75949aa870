package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/thebtf/asklens/internal/vector/bolt"
)

func newCacheCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the local embedding cache",
		Long: `Inspect the local bbolt embedding cache at ASKLENS_EMBEDDING_CACHE_PATH.
Vectors are kept per model version, so changing models never serves stale
vectors; purge reclaims the space of models no longer in use.`,
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List model versions with cached vectors",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openLocalCache(root.cfg.EmbeddingCachePath)
				if err != nil || cache == nil {
					return err
				}
				defer cache.Close()

				names, err := cache.Models()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "purge MODEL",
			Short: "Drop every cached vector for a model version",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				cache, err := openLocalCache(root.cfg.EmbeddingCachePath)
				if err != nil || cache == nil {
					return err
				}
				defer cache.Close()

				if err := cache.Purge(args[0]); err != nil {
					return fmt.Errorf("purge %s: %w", args[0], err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Purged %s\n", args[0])
				return nil
			},
		},
	)
	return cmd
}

// openLocalCache opens an existing cache file. It returns nil, nil when there
// is no cache yet.
func openLocalCache(path string) (*bolt.Cache, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return bolt.Open(path)
}
