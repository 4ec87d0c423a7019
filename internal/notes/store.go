// Package notes holds the bounded scratchpad the reasoning service writes to
// across turns, and keeps it honest against ground truth.
package notes

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ring"
)

// #endregion imports

// #region types

// Capacity is the maximum number of live notes. The oldest is evicted first.
const Capacity = 20

// Status tracks whether a note's claim has been checked.
type Status string

const (
	StatusUnverified   Status = "UNVERIFIED"
	StatusVerified     Status = "VERIFIED"
	StatusContradicted Status = "CONTRADICTED"
)

// Note is one persistent scratchpad entry.
type Note struct {
	ID              int       `json:"id"`
	Timestamp       time.Time `json:"timestamp"`
	Content         string    `json:"content"`
	Status          Status    `json:"status"`
	WrittenThisTurn bool      `json:"written_this_turn"`

	// Anchor is the position when the note was written, nil if unknown.
	// Predicted is set when the guard rewrote the note as a prediction.
	Anchor          *groundtruth.Position `json:"anchor,omitempty"`
	Turn            int                   `json:"turn"`
	Predicted       directive.Button      `json:"predicted,omitempty"`
	PredictsSuccess bool                  `json:"predicts_success,omitempty"`
}

// ApplyResult summarises one reply's directives.
type ApplyResult struct {
	Added   []int
	Cleared []int
	Guarded []int
	Evicted []int
}

// #endregion types

// #region store

// Store is the bounded note list. Not safe for concurrent use; the
// orchestrator owns it on its loop.
type Store struct {
	notes  *ring.Buffer[Note]
	nextID int
	turn   int
	anchor *groundtruth.Position
	now    func() time.Time
}

// New returns an empty store. now defaults to time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		notes:  ring.New[Note](Capacity),
		nextID: 1,
		now:    now,
	}
}

// BeginTurn marks the start of a reply: previous notes lose their
// written-this-turn flag and new notes are anchored at pos.
func (s *Store) BeginTurn(turn int, pos *groundtruth.Position) {
	s.turn = turn
	s.anchor = copyPos(pos)
	for i := 0; i < s.notes.Len(); i++ {
		s.notes.Ptr(i).WrittenThisTurn = false
	}
}

// Add stores text as a new UNVERIFIED note and returns its id.
func (s *Store) Add(text string) int {
	id, _ := s.add(text)
	return id
}

func (s *Store) add(text string) (int, *Note) {
	s.maybeCompact()
	n := Note{
		ID:              s.nextID,
		Timestamp:       s.now(),
		Content:         text,
		Status:          StatusUnverified,
		WrittenThisTurn: true,
		Anchor:          copyPos(s.anchor),
		Turn:            s.turn,
	}
	s.nextID++
	s.notes.Push(n)
	return n.ID, s.notes.Ptr(s.notes.Len() - 1)
}

// Clear removes the note with id. Returns false if no such note exists.
func (s *Store) Clear(id int) bool {
	return s.notes.Filter(func(n Note) bool { return n.ID != id }) > 0
}

// ClearAll removes every note and restarts numbering at 1.
func (s *Store) ClearAll() {
	s.notes.Reset()
	s.nextID = 1
}

// List returns the live notes, oldest first.
func (s *Store) List() []Note {
	return s.notes.Items()
}

// Len returns the number of live notes.
func (s *Store) Len() int { return s.notes.Len() }

// NextID returns the id the next note will get, before any compaction.
func (s *Store) NextID() int { return s.nextID }

// maybeCompact renumbers live notes 1..n once the counter passes twice the
// capacity, so ids stay small.
func (s *Store) maybeCompact() {
	if s.nextID <= 2*Capacity {
		return
	}
	for i := 0; i < s.notes.Len(); i++ {
		s.notes.Ptr(i).ID = i + 1
	}
	s.nextID = s.notes.Len() + 1
}

// #endregion store

// #region apply

// Apply runs one reply's note directives. Every clear runs before any add so
// "[CLEAR ALL NOTES] ... [NOTE: x]" leaves exactly x as note #1. Adds that
// predict the outcome of one of inputs are rewritten by the guard.
func (s *Store) Apply(ops []directive.NoteOp, inputs []directive.LogicalInput) ApplyResult {
	var res ApplyResult

	for _, op := range ops {
		switch op.Kind {
		case directive.NoteClearAll:
			for _, n := range s.notes.Items() {
				res.Cleared = append(res.Cleared, n.ID)
			}
			s.ClearAll()
		case directive.NoteClear:
			if s.Clear(op.ID) {
				res.Cleared = append(res.Cleared, op.ID)
			}
		}
	}

	for _, op := range ops {
		if op.Kind != directive.NoteAdd {
			continue
		}
		text := op.Text
		pred := DetectPrediction(text, inputs)
		if pred != nil {
			text = pred.RewrittenText
		}

		s.maybeCompact()
		var oldest int
		full := s.notes.Len() == s.notes.Cap()
		if full {
			oldest = s.notes.At(0).ID
		}

		id, n := s.add(text)
		if full {
			res.Evicted = append(res.Evicted, oldest)
		}
		res.Added = append(res.Added, id)
		if pred != nil {
			n.Predicted = pred.Button
			n.PredictsSuccess = pred.ClaimsSuccess
			res.Guarded = append(res.Guarded, id)
		}
	}
	return res
}

// #endregion apply

// #region verification

// ValidateAgainstGroundTruth flips UNVERIFIED notes that claim the player
// moved somewhere to CONTRADICTED when, at least one turn later, the player is
// still exactly where the note was written. Returns the contradicted ids.
func (s *Store) ValidateAgainstGroundTruth(pos *groundtruth.Position) []int {
	if pos == nil {
		return nil
	}
	var flipped []int
	for i := 0; i < s.notes.Len(); i++ {
		n := s.notes.Ptr(i)
		if n.Status != StatusUnverified || n.Turn >= s.turn {
			continue
		}
		if !groundtruth.SamePlace(n.Anchor, pos) || !claimsMovement(n.Content) {
			continue
		}
		n.Status = StatusContradicted
		flipped = append(flipped, n.ID)
	}
	return flipped
}

// ResolvePredictions settles predictions about button written in turn once
// that turn's verdict is known. moved is true when the position changed.
func (s *Store) ResolvePredictions(turn int, button directive.Button, moved bool) []int {
	var resolved []int
	for i := 0; i < s.notes.Len(); i++ {
		n := s.notes.Ptr(i)
		if n.Predicted != button || n.Turn != turn || n.Status != StatusUnverified {
			continue
		}
		if n.PredictsSuccess == moved {
			n.Status = StatusVerified
		} else {
			n.Status = StatusContradicted
		}
		resolved = append(resolved, n.ID)
	}
	return resolved
}

// #endregion verification

// #region persistence

// Restore replaces the store contents with persisted notes. Notes beyond
// capacity are dropped oldest first.
func (s *Store) Restore(saved []Note, nextID int) {
	s.notes.Reset()
	maxID := 0
	for _, n := range saved {
		n.WrittenThisTurn = false
		s.notes.Push(n)
		if n.ID > maxID {
			maxID = n.ID
		}
	}
	if nextID <= maxID {
		nextID = maxID + 1
	}
	s.nextID = nextID
}

// #endregion persistence

func copyPos(p *groundtruth.Position) *groundtruth.Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
