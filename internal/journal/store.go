// Package journal archives every verified turn in SQLite so runs can be
// inspected after the fact and recent outcomes can inform later turns.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ledger"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS turn_records (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id      TEXT NOT NULL,
	turn            INTEGER NOT NULL,
	inputs_json     TEXT NOT NULL,
	primary_button  TEXT,
	before_json     TEXT,
	after_json      TEXT,
	map_group       INTEGER,
	map_num         INTEGER,
	changed         INTEGER NOT NULL DEFAULT 0,
	result          TEXT NOT NULL,
	reason          TEXT,
	created_at      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_turn_records_session ON turn_records(session_id, turn);
CREATE INDEX IF NOT EXISTS idx_turn_records_map ON turn_records(map_group, map_num, primary_button);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	exchange_id   TEXT NOT NULL,
	turn          INTEGER NOT NULL,
	outcome       TEXT NOT NULL,
	code          TEXT,
	detail        TEXT,
	status        INTEGER,
	latency_ms    INTEGER,
	created_at    TEXT NOT NULL
);
`

// #endregion schema

// #region store-struct
// Store is the SQLite-backed turn archive.
type Store struct {
	db  *sql.DB
	now func() time.Time
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
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region record
// RecordTurn appends one completed turn.
func (s *Store) RecordTurn(sessionID string, rec ledger.TurnRecord) error {
	inputs, err := json.Marshal(rec.Inputs)
	if err != nil {
		return fmt.Errorf("marshal inputs: %w", err)
	}
	before, err := marshalPos(rec.PositionBefore)
	if err != nil {
		return err
	}
	after, err := marshalPos(rec.PositionAfter)
	if err != nil {
		return err
	}

	var mapGroup, mapNum any
	if rec.PositionBefore != nil {
		mapGroup, mapNum = rec.PositionBefore.MapGroup, rec.PositionBefore.MapNum
	}
	var primary any
	for _, in := range rec.Inputs {
		if in.Button.Directional() {
			primary = string(in.Button)
			break
		}
	}
	changed := 0
	if rec.PositionChanged {
		changed = 1
	}
	created := rec.Timestamp
	if created.IsZero() {
		created = s.now()
	}

	_, err = s.db.Exec(
		`INSERT INTO turn_records (session_id, turn, inputs_json, primary_button, before_json, after_json,
		  map_group, map_num, changed, result, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, rec.TurnNumber, string(inputs), primary, before, after,
		mapGroup, mapNum, changed, string(rec.Result), rec.Reason,
		created.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert turn: %w", err)
	}
	return nil
}

func marshalPos(p *groundtruth.Position) (any, error) {
	if p == nil {
		return nil, nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal position: %w", err)
	}
	return string(b), nil
}

// #endregion record

// #region query
// Entry is a journaled turn.
type Entry struct {
	SessionID string
	ledger.TurnRecord
}

// RecentTurns returns up to limit most recent turns, newest last. An empty
// sessionID matches every session.
func (s *Store) RecentTurns(sessionID string, limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT session_id, turn, inputs_json, before_json, after_json, changed, result, reason, created_at
		 FROM turn_records
		 WHERE (? = '' OR session_id = ?)
		 ORDER BY id DESC LIMIT ?`,
		sessionID, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var inputs, created string
		var before, after, reason sql.NullString
		var changed int
		var result string
		if err := rows.Scan(&e.SessionID, &e.TurnNumber, &inputs, &before, &after, &changed, &result, &reason, &created); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		if err := json.Unmarshal([]byte(inputs), &e.Inputs); err != nil {
			return nil, fmt.Errorf("decode inputs: %w", err)
		}
		e.PositionBefore = unmarshalPos(before)
		e.PositionAfter = unmarshalPos(after)
		e.PositionChanged = changed == 1
		e.Result = ledger.Result(result)
		e.Reason = reason.String
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func unmarshalPos(ns sql.NullString) *groundtruth.Position {
	if !ns.Valid {
		return nil
	}
	var p groundtruth.Position
	if err := json.Unmarshal([]byte(ns.String), &p); err != nil {
		return nil
	}
	return &p
}

// SessionSummary aggregates one session's turns.
type SessionSummary struct {
	SessionID string
	Turns     int
	Success   int
	Failed    int
	Unknown   int
	LastAt    time.Time
}

// Sessions lists sessions, most recently active first.
func (s *Store) Sessions() ([]SessionSummary, error) {
	rows, err := s.db.Query(
		`SELECT session_id, COUNT(*),
		        SUM(CASE WHEN result = 'SUCCESS' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN result = 'FAILED' THEN 1 ELSE 0 END),
		        SUM(CASE WHEN result = 'UNKNOWN' THEN 1 ELSE 0 END),
		        MAX(created_at)
		 FROM turn_records GROUP BY session_id ORDER BY MAX(id) DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var out []SessionSummary
	for rows.Next() {
		var ss SessionSummary
		var last string
		if err := rows.Scan(&ss.SessionID, &ss.Turns, &ss.Success, &ss.Failed, &ss.Unknown, &last); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		ss.LastAt, _ = time.Parse(time.RFC3339Nano, last)
		out = append(out, ss)
	}
	return out, rows.Err()
}

// #endregion query
