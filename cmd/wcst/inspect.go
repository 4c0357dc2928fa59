package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ptapal/experimental-psychology/internal/eval"
	"github.com/ptapal/experimental-psychology/internal/logging"
	"github.com/ptapal/experimental-psychology/internal/session"
	"github.com/ptapal/experimental-psychology/internal/store"
)

// #region inspect-cmd

func newInspectCmd() *cobra.Command {
	var last int
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "inspect [session-id]",
		Short: "List recent sessions or show one session's trials",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := store.NewStore(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return runDetailMode(cmd.Context(), out, st, args[0], jsonOut)
			}
			return runListMode(out, st, last, jsonOut)
		},
	}
	cmd.Flags().IntVar(&last, "last", 20, "show N most recent sessions")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output as JSON instead of table")
	return cmd
}

// #endregion inspect-cmd

// #region list-mode

func runListMode(out io.Writer, st *store.Store, last int, jsonOut bool) error {
	sessions, err := st.ListSessions(last)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(out, sessions)
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no sessions found")
		return nil
	}

	fmt.Fprintf(out, "%-10s  %-12s  %-10s  %6s  %7s  %s\n",
		"Session", "Participant", "Status", "Trials", "Changes", "Started")
	fmt.Fprintf(out, "%-10s+-%-12s+-%-10s+-%6s+-%7s+-%s\n",
		"----------", "------------", "----------", "------", "-------", "--------------------")
	for _, s := range sessions {
		fmt.Fprintf(out, "%-10s  %-12s  %-10s  %6d  %7d  %s\n",
			shortID(s.ID), s.Participant, s.Status, s.TrialCount, s.RuleChanges,
			s.StartedAt.Format("2006-01-02T15:04:05Z"))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type detailOutput struct {
	Session     store.Session             `json:"session"`
	Summary     eval.Summary              `json:"summary"`
	Transitions []logging.RuleChangeEntry `json:"transitions"`
	Trials      []session.Trial           `json:"trials"`
}

func runDetailMode(ctx context.Context, out io.Writer, st *store.Store, id string, jsonOut bool) error {
	sess, err := st.GetSession(id)
	if err != nil {
		return err
	}
	trials, err := st.ListTrials(id)
	if err != nil {
		return err
	}
	transitions, err := logging.ListRuleChanges(ctx, st.DB(), id)
	if err != nil {
		return err
	}
	detail := detailOutput{
		Session:     sess,
		Summary:     eval.Summarize(trials),
		Transitions: transitions,
		Trials:      trials,
	}
	if jsonOut {
		return printJSON(out, detail)
	}

	fmt.Fprintf(out, "Session:     %s\n", sess.ID)
	fmt.Fprintf(out, "Participant: %s\n", sess.Participant)
	if sess.Label != "" {
		fmt.Fprintf(out, "Label:       %s\n", sess.Label)
	}
	fmt.Fprintf(out, "Status:      %s\n", sess.Status)
	fmt.Fprintf(out, "Seed:        %d\n", sess.Seed)
	fmt.Fprintf(out, "First rule:  %s\n\n", sess.InitialRule)

	fmt.Fprintf(out, "%5s  %-22s  %-15s  %-6s  %6s  %4s  %-11s  %8s\n",
		"Trial", "Target", "References", "Rule", "Choice", "Key", "Outcome", "RT")
	for _, t := range trials {
		choice, rt := "—", "—"
		if t.Choice != nil {
			choice = fmt.Sprintf("%d", *t.Choice+1)
		}
		if t.ResponseTime != nil {
			rt = t.ResponseTime.Round(time.Millisecond).String()
		}
		marker := ""
		if t.RuleChanged {
			marker = "  -> " + string(t.NextRule)
		}
		fmt.Fprintf(out, "%5d  %-22s  %2d %2d %2d %2d     %-6s  %6s  %4d  %-11s  %8s%s\n",
			t.Index, t.Target, t.References[0].ID, t.References[1].ID, t.References[2].ID, t.References[3].ID,
			t.ActiveRule, choice, t.CorrectIndex+1, t.Outcome(), rt, marker)
	}

	s := detail.Summary
	fmt.Fprintf(out, "\nCorrect %d  Incorrect %d  No response %d\n", s.Correct, s.Incorrect, s.NoResponse)
	fmt.Fprintf(out, "Categories %d  Perseverative errors %d  Failure to maintain set %d\n",
		s.CategoriesCompleted, s.PerseverativeErrors, s.FailureToMaintain)
	return nil
}

// #endregion detail-mode

// #region helpers

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// #endregion helpers
