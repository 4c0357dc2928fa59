package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ptapal/experimental-psychology/internal/replay"
	"github.com/ptapal/experimental-psychology/internal/store"
)

// #region export-cmd

func newExportCmd() *cobra.Command {
	var outPath string
	var threshold int
	cmd := &cobra.Command{
		Use:   "export <session-id>",
		Short: "Export a recorded session as a replay fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			sess, err := st.GetSession(args[0])
			if err != nil {
				return err
			}
			trials, err := st.ListTrials(sess.ID)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = storedThreshold(sess, cfg.StreakThreshold)
			}

			desc := fmt.Sprintf("session %s, participant %s (%s)", sess.ID, sess.Participant, sess.Status)
			fixture := replay.FromTrials(desc, sess.Seed, threshold, trials)
			data, err := json.MarshalIndent(fixture, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal fixture: %w", err)
			}
			if outPath == "" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(outPath, append(data, '\n'), 0o644); err != nil {
				return fmt.Errorf("write fixture: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d trials to %s\n", len(trials), outPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output fixture path (default stdout)")
	cmd.Flags().IntVar(&threshold, "threshold", 0, "streak threshold (default: the one stored with the session)")
	return cmd
}

// storedThreshold reads the threshold recorded at run time.
func storedThreshold(sess store.Session, fallback int) int {
	var sc storedConfig
	if err := json.Unmarshal([]byte(sess.ConfigJSON), &sc); err != nil || sc.StreakThreshold <= 0 {
		return fallback
	}
	return sc.StreakThreshold
}

// #endregion export-cmd
