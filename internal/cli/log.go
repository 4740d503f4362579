package cli

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/ingest"
)

// NewLogCommand creates the ingestion command. It reads one envelope from
// stdin, runs the pipeline, and stays silent: failures are absorbed into
// the side error log so the host is never blocked or failed by us.
func NewLogCommand(opts *RootOptions) *cobra.Command {
	var eventType string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Record one host event from stdin",
		Long:  "Reads a JSON ingestion envelope from stdin and appends the event to the session log. Always exits 0 and prints nothing; errors go to the side error log.",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return nil
			}

			p := ingest.New()
			if opts.Storage != "" {
				p.ResolveRoot = func(string) string { return opts.Storage }
			}
			_, _ = p.Process(eventType, raw)
			return nil
		},
	}

	cmd.Flags().StringVarP(&eventType, "event", "e", "", "event type name (required)")
	_ = cmd.MarkFlagRequired("event")

	return cmd
}
