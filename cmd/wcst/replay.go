package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ptapal/experimental-psychology/internal/replay"
)

// #region replay-cmd

func newReplayCmd() *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:   "replay <fixture.json>",
		Short: "Replay a scripted session fixture and check its expectations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFixtureMode(cmd, args[0], quiet)
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the summary")
	return cmd
}

func runFixtureMode(cmd *cobra.Command, path string, quiet bool) error {
	f, err := replay.LoadFixture(path)
	if err != nil {
		return err
	}
	steps, err := f.ToSteps()
	if err != nil {
		return err
	}
	results, err := replay.Replay(cmd.Context(), steps, f.ToReplayConfig(), logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Fixture: %s\n", f.Description)
	if !quiet {
		printReplayTable(out, results)
	}
	s := replay.Summarize(results)
	fmt.Fprintf(out, "\n%d trials: %d correct, %d incorrect, %d no response, %d rule changes (final rule %s)\n",
		s.TotalTrials, s.Correct, s.Incorrect, s.NoResponse, s.RuleChanges, s.FinalRule)

	mismatches := replay.Compare(results, f.ExpectedResults)
	if len(mismatches) == 0 {
		fmt.Fprintln(out, "PASS")
		return nil
	}
	for _, m := range mismatches {
		fmt.Fprintf(out, "  MISMATCH %s\n", m)
	}
	return fmt.Errorf("%d mismatches against %s", len(mismatches), path)
}

func printReplayTable(out io.Writer, results []replay.ReplayResult) {
	fmt.Fprintf(out, "%5s  %-6s  %6s  %-11s  %s\n", "Trial", "Rule", "Choice", "Outcome", "Change")
	for _, r := range results {
		choice := "—"
		if r.Choice != nil {
			choice = fmt.Sprintf("%d", *r.Choice+1)
		}
		change := ""
		if r.RuleChanged {
			change = "-> " + string(r.NextRule)
		}
		fmt.Fprintf(out, "%5d  %-6s  %6s  %-11s  %s\n", r.Trial, r.ActiveRule, choice, r.Outcome, change)
	}
}

// #endregion replay-cmd
