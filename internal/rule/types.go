package rule

import "github.com/ptapal/experimental-psychology/internal/card"

// #region config
// Config holds the adaptation parameters of the rule engine.
type Config struct {
	Threshold int // consecutive correct answers that trigger a rule change
}

// DefaultConfig returns the classic card-sorting setting of ten in a row.
func DefaultConfig() Config {
	return Config{Threshold: 10}
}

// #endregion config

// #region rule-state
// RuleState is the engine's mutable state. Only Engine writes it.
type RuleState struct {
	ActiveRule         card.Rule
	ConsecutiveCorrect int
	TotalRuleChanges   int
}

// #endregion rule-state

// #region outcome
// Outcome is the scoring result of one trial.
type Outcome struct {
	CorrectIndex int
	Correct      bool
	Responded    bool
	RuleChanged  bool

	RuleBefore   card.Rule // rule the trial was scored against
	RuleAfter    card.Rule // rule in effect for the next trial
	StreakBefore int
	StreakAfter  int
}

// #endregion outcome
