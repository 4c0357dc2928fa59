package eval

import (
	"fmt"
	"time"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// maintainSetRun is the streak after which an error counts as a failure to
// maintain set.
const maintainSetRun = 5

// #region summarize
// Summarize scores a session's trials in presentation order.
func Summarize(trials []session.Trial) Summary {
	s := Summary{Trials: len(trials)}

	var previous card.Rule
	var rtTotal time.Duration
	answered := 0

	for i, t := range trials {
		switch t.Outcome() {
		case session.FeedbackCorrect:
			s.Correct++
		case session.FeedbackIncorrect:
			s.Incorrect++
			if previous != "" && t.References[*t.Choice].MatchesOn(t.Target, previous) {
				s.PerseverativeErrors++
			}
		case session.FeedbackNoResponse:
			s.NoResponse++
		}

		if !t.Correct && t.StreakAtStart >= maintainSetRun {
			s.FailureToMaintain++
		}
		if t.ResponseTime != nil {
			rtTotal += *t.ResponseTime
			answered++
		}
		if t.RuleChanged {
			s.CategoriesCompleted++
			if s.TrialsToFirst == 0 {
				s.TrialsToFirst = i + 1
			}
			previous = t.ActiveRule
		}
	}

	if answered > 0 {
		s.MeanResponseTime = rtTotal / time.Duration(answered)
	}
	return s
}

// #endregion summarize

// #region eval-harness
// EvalHarness checks whether a session produced a usable score.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run scores the trials and applies the validity checks.
func (h *EvalHarness) Run(trials []session.Trial) EvalResult {
	summary := Summarize(trials)
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Participant engagement
	noResp := rate(summary.NoResponse, summary.Trials)
	noRespPass := noResp <= h.config.MaxNoResponseRate
	metrics = append(metrics, EvalMetric{Name: "no_response_rate", Value: noResp, Pass: noRespPass})
	if !noRespPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("no-response rate %.2f exceeds %.2f", noResp, h.config.MaxNoResponseRate))
	}

	// 2. At least one category learned
	catPass := summary.CategoriesCompleted >= h.config.MinCategories
	metrics = append(metrics, EvalMetric{Name: "categories_completed", Value: float64(summary.CategoriesCompleted), Pass: catPass})
	if !catPass {
		passed = false
		failReasons = append(failReasons, fmt.Sprintf("%d categories completed, need %d", summary.CategoriesCompleted, h.config.MinCategories))
	}

	// 3. Perseveration: informational only
	pers := rate(summary.PerseverativeErrors, summary.Trials)
	metrics = append(metrics, EvalMetric{Name: "perseverative_rate", Value: pers, Pass: pers <= h.config.MaxPerseverative})

	metrics = append(metrics,
		EvalMetric{Name: "accuracy", Value: rate(summary.Correct, summary.Trials), Pass: true},
		EvalMetric{Name: "failure_to_maintain_set", Value: float64(summary.FailureToMaintain), Pass: true},
		EvalMetric{Name: "mean_rt_ms", Value: float64(summary.MeanResponseTime) / float64(time.Millisecond), Pass: true},
	)

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Summary: summary,
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

// #region helpers
func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// #endregion helpers
