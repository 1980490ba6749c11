package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/saasrank/internal/indexer"
)

func newImportCmd(flags *globalFlags) *cobra.Command {
	var cfg indexer.Config

	cmd := &cobra.Command{
		Use:   "import <catalog.json>",
		Short: "Load a JSON catalog into the SQLite store",
		Long: `Load candidates, facts and pre-chunked documents from a JSON catalog
file, embedding each new or changed chunk with the configured provider.
Re-importing the same file is idempotent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := indexer.LoadFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			a, err := newApp(ctx, cmd, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.store == nil {
				return errImportNeedsSQLite
			}

			idx := indexer.New(a.store, a.embedder, indexer.WithLogger(a.logger.Named("indexer")))
			stats, err := idx.IndexCatalog(ctx, doc, &cfg)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d candidates, %d chunks (%d unchanged), %d embeddings in %v\n",
				stats.CandidatesIndexed, stats.ChunksIndexed, stats.ChunksSkipped,
				stats.EmbeddingsCreated, stats.Duration.Round(time.Millisecond))
			if stats.EmbeddingsFailed > 0 {
				fmt.Fprintf(out, "%d chunks were stored without embeddings:\n", stats.EmbeddingsFailed)
				for _, msg := range stats.ErrorMessages {
					fmt.Fprintf(out, "  %s\n", msg)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&cfg.BatchSize, "batch-size", indexer.DefaultBatchSize, "candidates per transaction")
	cmd.Flags().BoolVar(&cfg.SkipEmbeddings, "skip-embeddings", false, "store chunks without embeddings")

	return cmd
}
