package store

import (
	"time"

	"github.com/ptapal/experimental-psychology/internal/card"
)

// #region status
// Status is the lifecycle state of a session row.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusAborted   Status = "aborted"
	StatusFailed    Status = "failed"
)

// #endregion status

// #region session-info
// SessionInfo is what the caller knows before the first trial.
type SessionInfo struct {
	Participant string
	Label       string
	Seed        uint64
	InitialRule card.Rule
	ConfigJSON  string
}

// #endregion session-info

// #region session
// Session is a persisted session with its trial count.
type Session struct {
	ID          string     `json:"id"`
	Participant string     `json:"participant"`
	Label       string     `json:"label"`
	Seed        uint64     `json:"seed"`
	InitialRule card.Rule  `json:"initial_rule"`
	ConfigJSON  string     `json:"config,omitempty"`
	Status      Status     `json:"status"`
	RuleChanges int        `json:"rule_changes"`
	TrialCount  int        `json:"trial_count"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// #endregion session
