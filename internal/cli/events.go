package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewEventsCommand creates the recent-events listing command.
func NewEventsCommand(opts *RootOptions) *cobra.Command {
	var (
		limit int
		types []string
	)

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List the most recent events",
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

			events, err := s.idx.RecentEvents(cmd.Context(), limit, types)
			if err != nil {
				return f.Fail("events", "list events failed", err)
			}

			if done, err := f.JSON(events); done {
				return err
			}

			if len(events) == 0 {
				f.Textf("No events")
				return nil
			}
			for _, e := range events {
				content := strings.ReplaceAll(e.Content, "\n", " ")
				if len(content) > 100 {
					content = content[:100] + "..."
				}
				f.Textf("%s  [%s]  %s", e.Timestamp, e.Type, content)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum events")
	cmd.Flags().StringSliceVar(&types, "types", nil, "restrict to event types")

	return cmd
}
