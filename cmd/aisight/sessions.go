package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayusman/aisight/internal/store"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		sessions, err := db.Sessions().List(sessionsLimit)
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}
		printSessions(cmd.OutOrStdout(), sessions)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "maximum sessions to show (0 for all)")
	rootCmd.AddCommand(sessionsCmd)
}

func printSessions(out io.Writer, sessions []*store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tSTATE\tSTARTED\tDURATION\tFRAMES\tDROPPED\tREASON")
	fmt.Fprintln(w, "--\t----\t-----\t-------\t--------\t------\t-------\t------")

	for _, s := range sessions {
		duration := "-"
		if s.EndedAt != nil {
			duration = s.EndedAt.Sub(s.StartedAt).Round(time.Second).String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID, s.Mode, s.State, s.StartedAt.Local().Format("2006-01-02 15:04"),
			duration, s.FramesProcessed, s.FramesDropped, s.EndReason)
	}
	w.Flush()
}
