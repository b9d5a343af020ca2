package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayusman/aisight/internal/app"
	"github.com/ayusman/aisight/internal/log"
	"github.com/ayusman/aisight/internal/mode"
)

var runMode string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a headless session; each Enter is a tap, three taps exit",
	Long:  "Run a headless session. Each Enter is a tap and three taps exit.\nOn unix SIGUSR1 pauses the session and SIGUSR2 resumes it.",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := mode.Parse(runMode)
		if err != nil {
			return err
		}
		return runSession(cmd.Context(), m, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	runCmd.Flags().StringVar(&runMode, "mode", string(mode.Door), "session mode: door or money")
	rootCmd.AddCommand(runCmd)
}

func runSession(ctx context.Context, m mode.Mode, in io.Reader, out io.Writer) error {
	f := &sessionFactory{cfg: cfg, store: db, presenter: consolePresenter{w: out}}
	if e := connectHaptics(ctx, cfg.Haptics); e != nil {
		defer e.Disconnect()
		f.withHaptics(e)
	}

	controller := app.NewController(f.build)
	defer controller.Close()

	s, err := controller.Open(ctx, m)
	if err != nil {
		return fmt.Errorf("failed to start %s session: %w", m, err)
	}
	fmt.Fprintf(out, "%s session %s started, press Enter three times to exit\n", m, s.ID())

	go readTaps(in, s)
	watchSignals(ctx, controller)

	select {
	case <-ctx.Done():
		controller.Stop(app.ReasonStopped)
	case <-s.Done():
	}

	st := s.Stats()
	log.Info("session ended", "session", s.ID(), "accepted", st.Accepted, "dropped", st.Dropped)
	return nil
}

// readTaps forwards every input line to s as a tap until s is torn down
// or the input ends.
func readTaps(in io.Reader, s *app.Session) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if s.State() == app.TornDown || s.Tap() {
			return
		}
	}
}
