package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chronicle/internal/search"
)

// NewSearchCommand creates the hybrid search command. The index is synced
// first so results reflect everything appended up to now.
func NewSearchCommand(opts *RootOptions) *cobra.Command {
	var (
		limit    int
		types    []string
		dateFrom string
		dateTo   string
		semantic bool
		suggest  bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search events by keyword and meaning",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
			query := strings.Join(args, " ")

			s, err := openStores(opts)
			if err != nil {
				return err
			}
			defer s.Close()

			if _, err := s.syncAll(cmd.Context()); err != nil {
				f.Textf("Warning: %v", err)
			}

			svc := search.New(s.idx, s.sem)

			if suggest {
				suggestions, err := svc.Suggest(cmd.Context(), query, limit)
				if err != nil {
					return f.Fail("search", "suggest failed", err)
				}
				if done, err := f.JSON(suggestions); done {
					return err
				}
				for _, sug := range suggestions {
					f.Textf("%s", sug)
				}
				return nil
			}

			filters := search.Filters{Types: types, DateFrom: dateFrom, DateTo: dateTo}
			results, elapsed, err := svc.Hybrid(cmd.Context(), query, limit, filters, semantic)
			if err != nil {
				return f.Fail("search", "search failed", err)
			}

			if done, err := f.JSON(map[string]any{
				"results":    results,
				"elapsed_ms": elapsed.Milliseconds(),
			}); done {
				return err
			}

			if len(results) == 0 {
				f.Textf("No results for %q", query)
				return nil
			}
			f.Textf("%d results (%dms)", len(results), elapsed.Milliseconds())
			for i, r := range results {
				content := strings.ReplaceAll(r.Content, "\n", " ")
				if len(content) > 100 {
					content = content[:100] + "..."
				}
				f.Textf("%2d. [%s] %s %s score=%.4f", i+1, r.EventType, r.SessionID[:min(8, len(r.SessionID))], content, r.Score)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().StringSliceVar(&types, "types", nil, "restrict to event types")
	cmd.Flags().StringVar(&dateFrom, "from", "", "events at or after this timestamp")
	cmd.Flags().StringVar(&dateTo, "to", "", "events at or before this timestamp")
	cmd.Flags().BoolVar(&semantic, "semantic", true, "include semantic results when available")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "return prefix suggestions instead of searching")

	return cmd
}
