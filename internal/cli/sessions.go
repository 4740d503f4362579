package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// NewSessionsCommand creates the session listing command.
func NewSessionsCommand(opts *RootOptions) *cobra.Command {
	var (
		limit    int
		offset   int
		dateFrom string
		dateTo   string
		counts   bool
	)

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List session rollups",
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

			sessions, err := s.idx.ListSessions(cmd.Context(), limit, offset, dateFrom, dateTo)
			if err != nil {
				return f.Fail("sessions", "list sessions failed", err)
			}

			var byType map[string]map[string]int
			if counts {
				ids := make([]string, len(sessions))
				for i, sess := range sessions {
					ids[i] = sess.ID
				}
				byType, err = s.idx.AggregateCounts(cmd.Context(), ids)
				if err != nil {
					return f.Fail("sessions", "aggregate counts failed", err)
				}
			}

			if counts {
				type sessionWithCounts struct {
					ID          string         `json:"id"`
					StartedAt   string         `json:"started_at"`
					EndedAt     string         `json:"ended_at,omitempty"`
					CWD         string         `json:"cwd,omitempty"`
					EventCount  int            `json:"event_count"`
					TotalTokens int            `json:"total_tokens"`
					Counts      map[string]int `json:"counts"`
				}
				enriched := make([]sessionWithCounts, len(sessions))
				for i, sess := range sessions {
					enriched[i] = sessionWithCounts{
						ID:          sess.ID,
						StartedAt:   sess.StartedAt,
						EndedAt:     sess.EndedAt,
						CWD:         sess.CWD,
						EventCount:  sess.EventCount,
						TotalTokens: sess.TotalTokens,
						Counts:      byType[sess.ID],
					}
				}
				if done, err := f.JSON(enriched); done {
					return err
				}
			} else {
				if done, err := f.JSON(sessions); done {
					return err
				}
			}

			if len(sessions) == 0 {
				f.Textf("No sessions")
				return nil
			}
			for _, sess := range sessions {
				line := sess.ID
				if len(line) > 8 {
					line = line[:8]
				}
				f.Textf("%s  %s  %d events  %d tokens  %s",
					line, sess.StartedAt, sess.EventCount, sess.TotalTokens, sess.CWD)
				if counts && byType[sess.ID] != nil {
					parts := []string{}
					for typ, n := range byType[sess.ID] {
						parts = append(parts, fmt.Sprintf("%s=%d", typ, n))
					}
					sort.Strings(parts)
					f.Textf("    %s", strings.Join(parts, " "))
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum sessions")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	cmd.Flags().StringVar(&dateFrom, "from", "", "sessions started at or after this timestamp")
	cmd.Flags().StringVar(&dateTo, "to", "", "sessions started at or before this timestamp")
	cmd.Flags().BoolVar(&counts, "counts", false, "include per-type event counts")

	return cmd
}
