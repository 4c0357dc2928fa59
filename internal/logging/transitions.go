package logging

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// #region schema
// TransitionsSchema creates the rule_transitions table. The session store
// includes it in its migration; standalone callers may run it directly.
const TransitionsSchema = `
CREATE TABLE IF NOT EXISTS rule_transitions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	trial_index   INTEGER NOT NULL,
	from_rule     TEXT NOT NULL,
	to_rule       TEXT NOT NULL,
	streak        INTEGER NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region log-rule-change
// LogRuleChange writes a transition entry to the rule_transitions table.
func LogRuleChange(ctx context.Context, db Execer, entry RuleChangeEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx,
		`INSERT INTO rule_transitions (session_id, trial_index, from_rule, to_rule, streak, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.TrialIndex,
		entry.FromRule,
		entry.ToRule,
		entry.Streak,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log rule change: %w", err)
	}
	return nil
}

// #endregion log-rule-change

// #region list-rule-changes
// ListRuleChanges returns a session's transitions in trial order.
func ListRuleChanges(ctx context.Context, db *sql.DB, sessionID string) ([]RuleChangeEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, trial_index, from_rule, to_rule, streak, reason, created_at
		 FROM rule_transitions WHERE session_id = ? ORDER BY trial_index`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rule changes: %w", err)
	}
	defer rows.Close()

	var entries []RuleChangeEntry
	for rows.Next() {
		var e RuleChangeEntry
		var reason sql.NullString
		var createdStr string
		if err := rows.Scan(&e.SessionID, &e.TrialIndex, &e.FromRule, &e.ToRule, &e.Streak, &reason, &createdStr); err != nil {
			return nil, fmt.Errorf("scan rule change: %w", err)
		}
		e.Reason = reason.String
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// #endregion list-rule-changes

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// #endregion helpers
