package cli

import (
	"github.com/spf13/cobra"
)

// NewStatsCommand creates the whole-index statistics command.
func NewStatsCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

			s, err := openStores(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.syncAll(cmd.Context()); err != nil {
				f.Textf("Warning: %v", err)
			}

			st, err := s.idx.Stats(cmd.Context())
			if err != nil {
				return f.Fail("stats", "stats failed", err)
			}

			if done, err := f.JSON(st); done {
				return err
			}

			f.Textf("Sessions: %d", st.SessionCount)
			f.Textf("Events:   %d", st.EventCount)
			f.Textf("Tokens:   %d", st.TotalTokens)
			if st.FirstSession != "" {
				f.Textf("First:    %s", st.FirstSession)
				f.Textf("Last:     %s", st.LastSession)
			}
			return nil
		},
	}
	return cmd
}
