package logging

import (
	"context"
	"database/sql"
	"time"
)

// #region rule-change-entry
// RuleChangeEntry is a single row in the rule_transitions table.
type RuleChangeEntry struct {
	SessionID  string
	TrialIndex int
	FromRule   string
	ToRule     string
	Streak     int    // consecutive correct answers that triggered the change
	Reason     string // optional free text, stored as NULL when empty
	CreatedAt  time.Time
}

// #endregion rule-change-entry

// #region execer
// Execer is satisfied by both *sql.DB and *sql.Tx so transitions can be
// written inside the same transaction as their trial.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// #endregion execer
