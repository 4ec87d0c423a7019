package logging

import "time"

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table: one request
// to the reasoning service and how it ended.
type ProvenanceEntry struct {
	SessionID  string
	ExchangeID string
	Turn       int
	Outcome    string // "success" | "recoverable" | "fatal"
	Code       string
	Detail     string
	Status     int
	Latency    time.Duration
	CreatedAt  time.Time
}

// #endregion provenance-entry
