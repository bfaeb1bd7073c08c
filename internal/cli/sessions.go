package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gumshoe-dev/gumshoe/internal/session"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect persisted debug sessions",
	}
	cmd.AddCommand(newSessionsListCmd())
	cmd.AddCommand(newSessionsShowCmd())
	return cmd
}

func openStore(cmd *cobra.Command) (session.Store, error) {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	return session.NewStore(cfg.Database.Path)
}

func newSessionsListCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List persisted sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			summaries, err := store.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTARTED\tSTEPS\tCONFIDENCE\tPROBLEM\tROOT CAUSE")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d/%d\t%s\t%s\t%s\n",
					shorten(s.ID, 8),
					s.StartedAt.Format("2006-01-02 15:04"),
					s.Steps, s.MaxSteps,
					s.Confidence,
					shorten(s.Problem, 40),
					shorten(s.RootCause, 50))
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of sessions to list")
	return cmd
}

func newSessionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Print the full report of one session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			rec, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if rec.Report != "" {
				fmt.Fprint(cmd.OutOrStdout(), rec.Report)
				return nil
			}

			// Sessions saved without a report get a terse summary.
			fmt.Fprintf(cmd.OutOrStdout(), "Session %s\nProblem: %s\nSteps: %d/%d\nRoot cause (%s): %s\n",
				rec.ID, rec.Problem, rec.Steps, rec.MaxSteps, rec.Confidence, rec.RootCause)
			return nil
		},
	}
}

func shorten(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
