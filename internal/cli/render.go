package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/render"
)

// NewRenderCommand creates the markdown projection command.
func NewRenderCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "render <session-id>",
		Short: "Regenerate a session's markdown transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			sessionID := args[0]

			s, err := openStores(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := render.Write(s.log, sessionID); err != nil {
				return f.Fail("render", "render failed", err)
			}

			path := s.log.MarkdownPath(sessionID)
			if done, err := f.JSON(map[string]string{"path": path}); done {
				return err
			}
			f.Textf("Wrote %s", path)
			return nil
		},
	}
	return cmd
}
