// Package ledger records what every turn actually did to the player's
// position, independent of what the reasoning service claims.
package ledger

// #region imports
import (
	"fmt"
	"time"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ring"
)

// #endregion imports

// #region types

// Capacity is how many turn records are kept in memory.
const Capacity = 20

// Result is the ground-truth verdict for a turn.
type Result string

const (
	ResultSuccess Result = "SUCCESS"
	ResultFailed  Result = "FAILED"
	ResultUnknown Result = "UNKNOWN"
)

// TurnRecord is one verified turn.
type TurnRecord struct {
	TurnNumber      int                      `json:"turn"`
	Timestamp       time.Time                `json:"timestamp"`
	Inputs          []directive.LogicalInput `json:"inputs"`
	PositionBefore  *groundtruth.Position    `json:"position_before,omitempty"`
	PositionAfter   *groundtruth.Position    `json:"position_after,omitempty"`
	PositionChanged bool                     `json:"position_changed"`
	Result          Result                   `json:"result"`
	Reason          string                   `json:"reason"`
}

// #endregion types

// #region verdict

// Verdict judges inputs against the positions on either side of them.
// Only d-pad turns can be verified; anything else stays UNKNOWN, as does any
// turn where either position is unknown.
func Verdict(inputs []directive.LogicalInput, before, after *groundtruth.Position) (Result, bool, string) {
	if !directive.HasDirectional(inputs) {
		return ResultUnknown, false, "no directional input; effect not verifiable"
	}
	if before == nil || after == nil {
		return ResultUnknown, false, "position unknown"
	}
	if !groundtruth.SamePlace(before, after) {
		return ResultSuccess, true, fmt.Sprintf("moved %s -> %s", before, after)
	}
	if before.InBattle != after.InBattle {
		return ResultFailed, false, fmt.Sprintf("still at %s; only the battle flag changed", before)
	}
	return ResultFailed, false, fmt.Sprintf("still at %s", before)
}

// #endregion verdict

// #region ledger

type openTurn struct {
	number  int
	before  *groundtruth.Position
	started time.Time
}

// Ledger holds the most recent turn records. Owned by the orchestrator loop.
type Ledger struct {
	records *ring.Buffer[TurnRecord]
	oracle  groundtruth.Oracle
	now     func() time.Time
	turn    int
	open    *openTurn
}

// New returns an empty ledger reading positions from oracle.
func New(oracle groundtruth.Oracle, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		records: ring.New[TurnRecord](Capacity),
		oracle:  oracle,
		now:     now,
	}
}

// BeginTurn opens a new turn and captures the position before its inputs run.
// Returns the captured position, nil if unknown.
func (l *Ledger) BeginTurn() *groundtruth.Position {
	l.turn++
	before := l.oracle.Position()
	l.open = &openTurn{number: l.turn, before: before, started: l.now()}
	return before
}

// CompleteTurn closes the open turn with the inputs that were issued and the
// position observed after them. ok is false when no turn is open.
func (l *Ledger) CompleteTurn(inputs []directive.LogicalInput, after *groundtruth.Position) (rec TurnRecord, ok bool) {
	if l.open == nil {
		return TurnRecord{}, false
	}
	result, changed, reason := Verdict(inputs, l.open.before, after)
	rec = TurnRecord{
		TurnNumber:      l.open.number,
		Timestamp:       l.open.started,
		Inputs:          append([]directive.LogicalInput(nil), inputs...),
		PositionBefore:  l.open.before,
		PositionAfter:   after,
		PositionChanged: changed,
		Result:          result,
		Reason:          reason,
	}
	l.open = nil
	l.records.Push(rec)
	return rec, true
}

// Abandon drops the open turn without recording it.
func (l *Ledger) Abandon() { l.open = nil }

// Turn returns the number of the most recently opened turn.
func (l *Ledger) Turn() int { return l.turn }

// SetTurn restores the turn counter from a saved session.
func (l *Ledger) SetTurn(n int) { l.turn = n }

// Records returns every kept record, oldest first.
func (l *Ledger) Records() []TurnRecord { return l.records.Items() }

// Last returns up to n most recent records, oldest first.
func (l *Ledger) Last(n int) []TurnRecord { return l.records.Last(n) }

// #endregion ledger
