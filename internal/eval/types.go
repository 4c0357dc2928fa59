package eval

import "time"

// #region eval-config
// EvalConfig holds the validity thresholds for a scored session.
type EvalConfig struct {
	MaxNoResponseRate float64 // reject if this share of trials went unanswered
	MinCategories     int     // reject if fewer rule changes were earned
	MaxPerseverative  float64 // warn if this share of trials were perseverative errors
}

// DefaultEvalConfig returns the thresholds used for routine sessions.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		MaxNoResponseRate: 0.25,
		MinCategories:     1,
		MaxPerseverative:  0.3,
	}
}

// #endregion eval-config

// #region summary
// Summary is the standard card-sorting score sheet for one session.
type Summary struct {
	Trials              int           `json:"trials"`
	Correct             int           `json:"correct"`
	Incorrect           int           `json:"incorrect"`
	NoResponse          int           `json:"no_response"`
	CategoriesCompleted int           `json:"categories_completed"`
	TrialsToFirst       int           `json:"trials_to_first_category"`
	PerseverativeErrors int           `json:"perseverative_errors"`
	FailureToMaintain   int           `json:"failure_to_maintain_set"`
	MeanResponseTime    time.Duration `json:"mean_response_time"`
}

// #endregion summary

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of session validation.
type EvalResult struct {
	Summary Summary
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// #endregion eval-result
