package logging

import (
	"database/sql"
	"fmt"
	"time"
)

// #region log-decision
// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db *sql.DB, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO provenance_log (session_id, exchange_id, turn, outcome, code, detail, status, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.ExchangeID,
		entry.Turn,
		entry.Outcome,
		nullIfEmpty(entry.Code),
		nullIfEmpty(entry.Detail),
		nullIfZero(entry.Status),
		entry.Latency.Milliseconds(),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region recent
// RecentDecisions returns up to limit entries for sessionID, newest first.
func RecentDecisions(db *sql.DB, sessionID string, limit int) ([]ProvenanceEntry, error) {
	rows, err := db.Query(
		`SELECT session_id, exchange_id, turn, outcome, code, detail, status, latency_ms, created_at
		 FROM provenance_log WHERE session_id = ? ORDER BY id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query decisions: %w", err)
	}
	defer rows.Close()

	var out []ProvenanceEntry
	for rows.Next() {
		var e ProvenanceEntry
		var code, detail sql.NullString
		var status sql.NullInt64
		var latencyMS int64
		var created string
		if err := rows.Scan(&e.SessionID, &e.ExchangeID, &e.Turn, &e.Outcome, &code, &detail, &status, &latencyMS, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		e.Code = code.String
		e.Detail = detail.String
		e.Status = int(status.Int64)
		e.Latency = time.Duration(latencyMS) * time.Millisecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion recent

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}

// #endregion helpers
