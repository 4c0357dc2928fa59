package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/ptapal/experimental-psychology/internal/card"
	"github.com/ptapal/experimental-psychology/internal/foil"
	"github.com/ptapal/experimental-psychology/internal/logging"
	"github.com/ptapal/experimental-psychology/internal/session"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	participant   TEXT NOT NULL,
	label         TEXT,
	seed          INTEGER NOT NULL,
	initial_rule  TEXT NOT NULL,
	config_json   TEXT,
	status        TEXT NOT NULL,
	rule_changes  INTEGER NOT NULL DEFAULT 0,
	started_at    TEXT NOT NULL,
	finished_at   TEXT
);

CREATE TABLE IF NOT EXISTS trials (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	trial_index     INTEGER NOT NULL,
	target_id       INTEGER NOT NULL,
	target_shape    TEXT NOT NULL,
	target_color    TEXT NOT NULL,
	target_count    INTEGER NOT NULL,
	ref1            INTEGER NOT NULL,
	ref2            INTEGER NOT NULL,
	ref3            INTEGER NOT NULL,
	ref4            INTEGER NOT NULL,
	active_rule     TEXT NOT NULL,
	correct_index   INTEGER NOT NULL,
	choice          INTEGER,
	rt_ms           REAL,
	correct         INTEGER NOT NULL,
	streak_at_start INTEGER NOT NULL,
	rule_changed    INTEGER NOT NULL,
	next_rule       TEXT NOT NULL,
	presented_at    TEXT NOT NULL,
	UNIQUE (session_id, trial_index),
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);
` + logging.TransitionsSchema

// #endregion schema

// #region store-struct
// Store persists sessions and their append-only trial logs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for readers such as logging.ListRuleChanges.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region create-session
// CreateSession inserts a running session with a fresh id.
func (s *Store) CreateSession(info SessionInfo) (Session, error) {
	if info.Participant == "" {
		return Session{}, fmt.Errorf("participant id is required")
	}
	sess := Session{
		ID:          uuid.New().String(),
		Participant: info.Participant,
		Label:       info.Label,
		Seed:        info.Seed,
		InitialRule: info.InitialRule,
		ConfigJSON:  info.ConfigJSON,
		Status:      StatusRunning,
		StartedAt:   time.Now().UTC(),
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, participant, label, seed, initial_rule, config_json, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Participant, nullIfEmpty(sess.Label), int64(sess.Seed), string(sess.InitialRule),
		nullIfEmpty(sess.ConfigJSON), string(sess.Status), sess.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// #endregion create-session

// #region record-trial
// RecordTrial appends a trial and, when it changed the rule, its transition,
// in one transaction. A trial index can only be written once per session.
func (s *Store) RecordTrial(ctx context.Context, sessionID string, t session.Trial) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var choice, rtMs interface{}
	if t.Choice != nil {
		choice = *t.Choice
	}
	if t.ResponseTime != nil {
		rtMs = float64(*t.ResponseTime) / float64(time.Millisecond)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO trials (session_id, trial_index, target_id, target_shape, target_color, target_count,
		   ref1, ref2, ref3, ref4, active_rule, correct_index, choice, rt_ms, correct,
		   streak_at_start, rule_changed, next_rule, presented_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, t.Index, t.Target.ID, string(t.Target.Shape), string(t.Target.Color), t.Target.Count,
		t.References[0].ID, t.References[1].ID, t.References[2].ID, t.References[3].ID,
		string(t.ActiveRule), t.CorrectIndex, choice, rtMs, boolToInt(t.Correct),
		t.StreakAtStart, boolToInt(t.RuleChanged), string(t.NextRule),
		t.PresentedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert trial %d: %w", t.Index, err)
	}

	if t.RuleChanged {
		err = logging.LogRuleChange(ctx, tx, logging.RuleChangeEntry{
			SessionID:  sessionID,
			TrialIndex: t.Index,
			FromRule:   string(t.ActiveRule),
			ToRule:     string(t.NextRule),
			Streak:     t.StreakAtStart + 1,
			Reason:     "streak threshold reached",
		})
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// #endregion record-trial

// #region finish-session
// FinishSession stamps the final status and rule-change count.
func (s *Store) FinishSession(id string, status Status, ruleChanges int) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET status = ?, rule_changes = ?, finished_at = ? WHERE session_id = ?`,
		string(status), ruleChanges, time.Now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// #endregion finish-session

// #region get-session
const sessionColumns = `s.session_id, s.participant, s.label, s.seed, s.initial_rule, s.config_json,
	s.status, s.rule_changes, s.started_at, s.finished_at,
	(SELECT COUNT(*) FROM trials t WHERE t.session_id = s.session_id)`

// GetSession retrieves one session by id.
func (s *Store) GetSession(id string) (Session, error) {
	row := s.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions s WHERE s.session_id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	return sess, nil
}

// ListSessions returns the most recently started sessions.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(`SELECT `+sessionColumns+` FROM sessions s ORDER BY s.started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (Session, error) {
	var sess Session
	var label, configJSON, finishedStr sql.NullString
	var seed int64
	var rule, status, startedStr string

	err := row.Scan(&sess.ID, &sess.Participant, &label, &seed, &rule, &configJSON,
		&status, &sess.RuleChanges, &startedStr, &finishedStr, &sess.TrialCount)
	if err != nil {
		return Session{}, err
	}
	sess.Label = label.String
	sess.ConfigJSON = configJSON.String
	sess.Seed = uint64(seed)
	sess.InitialRule = card.Rule(rule)
	sess.Status = Status(status)
	sess.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finishedStr.Valid {
		ft, _ := time.Parse(time.RFC3339Nano, finishedStr.String)
		sess.FinishedAt = &ft
	}
	return sess, nil
}

// #endregion get-session

// #region list-trials
// ListTrials returns a session's trials in presentation order.
func (s *Store) ListTrials(sessionID string) ([]session.Trial, error) {
	rows, err := s.db.Query(
		`SELECT trial_index, target_id, ref1, ref2, ref3, ref4, active_rule, correct_index,
		        choice, rt_ms, correct, streak_at_start, rule_changed, next_rule, presented_at
		 FROM trials WHERE session_id = ? ORDER BY trial_index`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var trials []session.Trial
	for rows.Next() {
		var t session.Trial
		var targetID int
		var refIDs [foil.ReferenceCount]int
		var activeRule, nextRule, presentedStr string
		var choice sql.NullInt64
		var rtMs sql.NullFloat64
		var correct, ruleChanged int

		if err := rows.Scan(&t.Index, &targetID, &refIDs[0], &refIDs[1], &refIDs[2], &refIDs[3],
			&activeRule, &t.CorrectIndex, &choice, &rtMs, &correct, &t.StreakAtStart,
			&ruleChanged, &nextRule, &presentedStr); err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}

		if t.Target, err = card.AttributesOf(targetID); err != nil {
			return nil, fmt.Errorf("trial %d target: %w", t.Index, err)
		}
		for i, id := range refIDs {
			if t.References[i], err = card.AttributesOf(id); err != nil {
				return nil, fmt.Errorf("trial %d reference: %w", t.Index, err)
			}
		}
		t.ActiveRule = card.Rule(activeRule)
		t.NextRule = card.Rule(nextRule)
		if t.CorrectIndex < 0 || t.CorrectIndex >= foil.ReferenceCount {
			return nil, fmt.Errorf("trial %d: correct index %d out of range", t.Index, t.CorrectIndex)
		}
		if choice.Valid {
			c := int(choice.Int64)
			if c < 0 || c >= foil.ReferenceCount {
				return nil, fmt.Errorf("trial %d: choice %d out of range", t.Index, c)
			}
			t.Choice = &c
		}
		if rtMs.Valid {
			rt := time.Duration(rtMs.Float64 * float64(time.Millisecond))
			t.ResponseTime = &rt
		}
		t.Correct = correct == 1
		t.RuleChanged = ruleChanged == 1
		t.PresentedAt, _ = time.Parse(time.RFC3339Nano, presentedStr)
		trials = append(trials, t)
	}
	return trials, rows.Err()
}

// #endregion list-trials

// #region recorder
// Recorder adapts the store to session.Recorder for one session.
func (s *Store) Recorder(sessionID string) session.Recorder {
	return &sessionRecorder{store: s, sessionID: sessionID}
}

type sessionRecorder struct {
	store     *Store
	sessionID string
}

func (r *sessionRecorder) Record(ctx context.Context, t session.Trial) error {
	return r.store.RecordTrial(ctx, r.sessionID, t)
}

// #endregion recorder

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
