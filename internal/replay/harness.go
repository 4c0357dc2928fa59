package replay

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/rule"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region types
// Action is what the scripted participant does on one trial.
type Action string

const (
	ActionCorrect Action = "correct"
	ActionWrong   Action = "wrong"
	ActionTimeout Action = "timeout"
	ActionChoice  Action = "choice"
)

// Step is one scripted response. Choice is only read for ActionChoice.
type Step struct {
	Action Action
	Choice int
}

// scriptedRT is the response time reported for every scripted answer.
const scriptedRT = 300 * time.Millisecond

// ReplayConfig bundles the session parameters a replay needs.
type ReplayConfig struct {
	Seed      uint64
	Trials    int
	Threshold int
}

// DefaultReplayConfig returns a full-length session at the standard threshold.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		Seed:      1,
		Trials:    session.DefaultConfig().Trials,
		Threshold: rule.DefaultConfig().Threshold,
	}
}

// ReplayResult captures one replayed trial.
type ReplayResult struct {
	Trial       int
	Outcome     session.Feedback
	Correct     bool
	RuleChanged bool
	ActiveRule  card.Rule
	NextRule    card.Rule
	Choice      *int
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTrials int
	Correct     int
	Incorrect   int
	NoResponse  int
	RuleChanges int
	FinalRule   card.Rule
}

// #endregion types

// #region participant
// scripted answers from the script, falling back to correct once it runs
// out. The oracle reads the runner's published rule.
type scripted struct {
	script []Step
	rule   func() card.Rule
	target card.Card
	refs   [foil.ReferenceCount]card.Card
	next   int
}

func (p *scripted) Present(_ context.Context, target card.Card, refs [foil.ReferenceCount]card.Card) error {
	p.target, p.refs = target, refs
	return nil
}

func (p *scripted) AwaitResponse(context.Context, time.Duration) (session.Response, error) {
	step := Step{Action: ActionCorrect}
	if p.next < len(p.script) {
		step = p.script[p.next]
	}
	p.next++

	correct := rule.CorrectReference(p.target, p.refs, p.rule())
	switch step.Action {
	case ActionCorrect:
		return session.Response{Chosen: true, Index: correct, Elapsed: scriptedRT}, nil
	case ActionWrong:
		return session.Response{Chosen: true, Index: (correct + 1) % foil.ReferenceCount, Elapsed: scriptedRT}, nil
	case ActionChoice:
		return session.Response{Chosen: true, Index: step.Choice, Elapsed: scriptedRT}, nil
	case ActionTimeout:
		return session.Response{}, nil
	default:
		return session.Response{}, fmt.Errorf("unknown scripted action %q", step.Action)
	}
}

// #endregion participant

// #region replay
// Replay runs the real session runner in memory against a scripted
// participant. The same config and script always yield the same results.
func Replay(ctx context.Context, script []Step, config ReplayConfig, logger *zap.Logger) ([]ReplayResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := &session.MemoryLog{}
	p := &scripted{script: script}
	sessCfg := session.DefaultConfig()
	sessCfg.Trials = config.Trials

	runner, err := session.NewSeeded(sessCfg, rule.Config{Threshold: config.Threshold}, config.Seed,
		session.Collaborators{Presenter: p, Responder: p, Recorder: log},
		session.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build runner: %w", err)
	}
	p.rule = runner.ActiveRule

	if _, err := runner.Run(ctx); err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	trials := log.Trials()
	results := make([]ReplayResult, 0, len(trials))
	for _, t := range trials {
		results = append(results, ReplayResult{
			Trial:       t.Index,
			Outcome:     t.Outcome(),
			Correct:     t.Correct,
			RuleChanged: t.RuleChanged,
			ActiveRule:  t.ActiveRule,
			NextRule:    t.NextRule,
			Choice:      t.Choice,
		})
	}
	return results, nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult) ReplaySummary {
	s := ReplaySummary{TotalTrials: len(results)}
	for _, r := range results {
		switch r.Outcome {
		case session.FeedbackCorrect:
			s.Correct++
		case session.FeedbackIncorrect:
			s.Incorrect++
		case session.FeedbackNoResponse:
			s.NoResponse++
		}
		if r.RuleChanged {
			s.RuleChanges++
		}
		s.FinalRule = r.NextRule
	}
	return s
}

// #endregion replay

// #region compare
// Mismatch is one difference between a replay and its expectations.
type Mismatch struct {
	Trial    int
	Field    string
	Expected string
	Actual   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("trial %d: expected %s=%s, got %s", m.Trial, m.Field, m.Expected, m.Actual)
}

// Compare checks results against expectations trial by trial. Only the
// fields an expectation sets are compared.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Mismatch {
	var out []Mismatch
	if len(results) != len(expected) {
		out = append(out, Mismatch{
			Field:    "trials",
			Expected: fmt.Sprint(len(expected)),
			Actual:   fmt.Sprint(len(results)),
		})
	}
	for i, exp := range expected {
		if i >= len(results) {
			break
		}
		got := results[i]
		if exp.Trial != 0 && exp.Trial != got.Trial {
			out = append(out, Mismatch{Trial: got.Trial, Field: "trial", Expected: fmt.Sprint(exp.Trial), Actual: fmt.Sprint(got.Trial)})
		}
		if exp.Correct != nil && *exp.Correct != got.Correct {
			out = append(out, Mismatch{Trial: got.Trial, Field: "correct", Expected: fmt.Sprint(*exp.Correct), Actual: fmt.Sprint(got.Correct)})
		}
		if exp.RuleChanged != nil && *exp.RuleChanged != got.RuleChanged {
			out = append(out, Mismatch{Trial: got.Trial, Field: "rule_changed", Expected: fmt.Sprint(*exp.RuleChanged), Actual: fmt.Sprint(got.RuleChanged)})
		}
		if exp.Outcome != "" && exp.Outcome != string(got.Outcome) {
			out = append(out, Mismatch{Trial: got.Trial, Field: "outcome", Expected: exp.Outcome, Actual: string(got.Outcome)})
		}
	}
	return out
}

// #endregion compare
