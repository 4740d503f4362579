package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/repair"
)

// NewRepairCommand creates the response-gap reconciliation command.
func NewRepairCommand(opts *RootOptions) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "repair [session-id]",
		Short: "Backfill missing assistant responses from transcripts",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			s, err := openStores(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			rec := repair.New(s.log)

			var summaries []repair.Summary
			if len(args) == 1 {
				summary, err := rec.Repair(args[0], dryRun)
				if err != nil {
					return f.Fail("repair", "repair failed", err)
				}
				summaries = []repair.Summary{summary}
			} else {
				summaries, err = rec.RepairAll(dryRun)
				if err != nil {
					return f.Fail("repair", "repair failed", err)
				}
			}

			if done, err := f.JSON(map[string]any{
				"dry_run":  dryRun,
				"sessions": summaries,
			}); done {
				return err
			}

			if len(summaries) == 0 {
				f.Textf("Nothing to repair")
				return nil
			}
			for _, sum := range summaries {
				label := "repaired"
				if dryRun {
					label = "would repair"
				}
				f.Textf("%s: %d missing, %s %d, skipped %d, failed %d",
					sum.Session, sum.Missing, label, sum.Repaired, sum.Skipped, sum.Failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report gaps without modifying logs")

	return cmd
}
