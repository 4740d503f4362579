package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/syncer"
)

// NewSyncCommand creates the command that replays session logs into the
// index.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync [session-id]",
		Short: "Replay session logs into the search index",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			s, err := openStores(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			eng := syncer.New(s.log, s.idx, nil)

			var synced int
			if len(args) == 1 {
				synced, err = eng.Sync(cmd.Context(), args[0])
			} else {
				synced, err = eng.SyncAll(cmd.Context())
			}
			if err != nil {
				return f.Fail("sync", "sync failed", err)
			}

			if done, err := f.JSON(map[string]int{"synced": synced}); done {
				return err
			}
			f.Textf("Synced %d events", synced)
			return nil
		},
	}
	return cmd
}
