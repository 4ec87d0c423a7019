package logging

import (
	"database/sql"
	"testing"
	"time"

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
	_, err = db.Exec(`CREATE TABLE provenance_log (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		exchange_id TEXT NOT NULL,
		turn        INTEGER NOT NULL,
		outcome     TEXT NOT NULL,
		code        TEXT,
		detail      TEXT,
		status      INTEGER,
		latency_ms  INTEGER,
		created_at  TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests
func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		SessionID:  "s1",
		ExchangeID: "ex1",
		Turn:       4,
		Outcome:    "recoverable",
		Code:       "http_status",
		Detail:     "HTTP 502",
		Status:     502,
		Latency:    1500 * time.Millisecond,
		CreatedAt:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := RecentDecisions(db, "s1", 10)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 row, got %d", len(got))
	}
	if !got[0].CreatedAt.Equal(entry.CreatedAt) {
		t.Errorf("created_at: want %v, got %v", entry.CreatedAt, got[0].CreatedAt)
	}
	got[0].CreatedAt = entry.CreatedAt
	if got[0] != entry {
		t.Errorf("round trip mismatch:\nwant %+v\ngot  %+v", entry, got[0])
	}
}

func TestLogDecision_ZeroCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	before := time.Now().UTC()
	err := LogDecision(db, ProvenanceEntry{SessionID: "s", ExchangeID: "e", Outcome: "success"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	err := LogDecision(db, ProvenanceEntry{SessionID: "s", ExchangeID: "e", Turn: 1, Outcome: "success"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var code, detail sql.NullString
	var status sql.NullInt64
	db.QueryRow("SELECT code, detail, status FROM provenance_log").Scan(&code, &detail, &status)
	if code.Valid || detail.Valid || status.Valid {
		t.Errorf("expected NULL code/detail/status, got %v %v %v", code, detail, status)
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	if err := LogDecision(db, ProvenanceEntry{SessionID: "s", Outcome: "fatal"}); err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestRecentDecisions_NewestFirst(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	for i, outcome := range []string{"recoverable", "recoverable", "fatal"} {
		if err := LogDecision(db, ProvenanceEntry{SessionID: "s", ExchangeID: "e", Turn: i + 1, Outcome: outcome}); err != nil {
			t.Fatalf("LogDecision: %v", err)
		}
	}
	LogDecision(db, ProvenanceEntry{SessionID: "other", ExchangeID: "x", Outcome: "success"})

	got, err := RecentDecisions(db, "s", 2)
	if err != nil {
		t.Fatalf("RecentDecisions: %v", err)
	}
	if len(got) != 2 || got[0].Outcome != "fatal" || got[1].Turn != 2 {
		t.Errorf("unexpected rows: %+v", got)
	}
}

// #endregion log-decision-tests

// #region null-helpers-tests
func TestNullIfEmpty(t *testing.T) {
	if nullIfEmpty("") != nil {
		t.Error("expected nil for empty string")
	}
	if nullIfEmpty("hello") != "hello" {
		t.Error("expected 'hello'")
	}
}

func TestNullIfZero(t *testing.T) {
	if nullIfZero(0) != nil {
		t.Error("expected nil for zero")
	}
	if nullIfZero(429) != 429 {
		t.Error("expected 429")
	}
}

// #endregion null-helpers-tests

// #region logger-tests
func TestNew(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		log, err := New(level, false)
		if err != nil {
			t.Fatalf("New(%q): %v", level, err)
		}
		log.Sync()
	}
	if _, err := New("loud", true); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

// #endregion logger-tests
