package logging

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"go.uber.org/zap/zapcore"
	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(TransitionsSchema); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-rule-change-tests
func TestLogRuleChange_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	ctx := context.Background()

	entry := RuleChangeEntry{
		SessionID:  "s1",
		TrialIndex: 10,
		FromRule:   "color",
		ToRule:     "shape",
		Streak:     10,
		Reason:     "streak threshold reached",
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogRuleChange(ctx, db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := ListRuleChanges(ctx, db, "s1")
	if err != nil {
		t.Fatalf("ListRuleChanges: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 row, got %d", len(entries))
	}
	got := entries[0]
	if got.FromRule != "color" || got.ToRule != "shape" || got.TrialIndex != 10 {
		t.Errorf("unexpected entry %+v", got)
	}
	if !got.CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("expected created_at %s, got %s", entry.CreatedAt, got.CreatedAt)
	}
}

func TestLogRuleChange_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogRuleChange(context.Background(), db, RuleChangeEntry{SessionID: "s2", TrialIndex: 20, FromRule: "shape", ToRule: "count", Streak: 10})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM rule_transitions").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogRuleChange_EmptyReasonIsNull(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogRuleChange(context.Background(), db, RuleChangeEntry{SessionID: "s3", FromRule: "count", ToRule: "color"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var reason sql.NullString
	db.QueryRow("SELECT reason FROM rule_transitions").Scan(&reason)
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogRuleChange_InsideTransaction(t *testing.T) {
	db := setupDB(t)
	defer db.Close()
	ctx := context.Background()

	tx, err := db.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := LogRuleChange(ctx, tx, RuleChangeEntry{SessionID: "s4", FromRule: "color", ToRule: "count"}); err != nil {
		t.Fatal(err)
	}
	tx.Rollback()

	entries, err := ListRuleChanges(ctx, db, "s4")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("rolled back entry should not persist, got %d", len(entries))
	}
}

func TestLogRuleChange_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	err := LogRuleChange(context.Background(), db, RuleChangeEntry{SessionID: "s5", FromRule: "color", ToRule: "shape"})
	if err == nil {
		t.Fatal("expected error on closed db")
	}
}

// #endregion log-rule-change-tests

// #region logger-tests
func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", true)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("expected debug level enabled")
	}

	l, err = NewLogger("warn", false)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) {
		t.Error("info should be disabled at warn level")
	}
}

func TestNewLoggerBadLevel(t *testing.T) {
	if _, err := NewLogger("chatty", false); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// #endregion logger-tests
