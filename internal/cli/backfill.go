package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/embedding"
)

// NewBackfillCommand creates the embedding backfill command.
func NewBackfillCommand(opts *RootOptions) *cobra.Command {
	var (
		batch  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Encode embeddings for indexed events that lack one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			s, err := openStores(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if s.sem == nil {
				return f.Fail("backfill", "no embedding endpoint configured", nil)
			}

			if _, err := s.syncAll(cmd.Context()); err != nil {
				f.Textf("Warning: %v", err)
			}

			b := &embedding.Backfiller{Index: s.idx, Embedding: s.sem, BatchSize: batch}
			result, err := b.Run(cmd.Context(), dryRun)
			if err != nil {
				return f.Fail("backfill", "backfill failed", err)
			}

			if done, err := f.JSON(map[string]any{
				"dry_run": dryRun,
				"result":  result,
			}); done {
				return err
			}

			verb := "encoded"
			if dryRun {
				verb = "would encode"
			}
			f.Textf("Scanned %d events: %s %d, skipped %d, failed %d",
				result.Scanned, verb, result.Encoded, result.Skipped, result.Failed)
			return nil
		},
	}

	cmd.Flags().IntVar(&batch, "batch", 32, "events per encoding batch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "count without encoding")

	return cmd
}
