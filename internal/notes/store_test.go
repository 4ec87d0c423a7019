package notes

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
)

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

func ids(ns []Note) []int {
	out := make([]int, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

// #region basic

func TestAdd_NewNotesAreUnverified(t *testing.T) {
	s := New(fixedClock())
	id := s.Add("Mom is downstairs")
	require.Equal(t, 1, id)

	list := s.List()
	require.Len(t, list, 1)
	require.Equal(t, StatusUnverified, list[0].Status)
	require.True(t, list[0].WrittenThisTurn)

	s.BeginTurn(2, nil)
	require.False(t, s.List()[0].WrittenThisTurn)
}

func TestClear(t *testing.T) {
	s := New(fixedClock())
	s.Add("one")
	s.Add("two")
	require.True(t, s.Clear(1))
	require.False(t, s.Clear(1))
	require.Equal(t, []int{2}, ids(s.List()))
}

func TestCapacityEvictsOldest(t *testing.T) {
	s := New(fixedClock())
	for i := 0; i < Capacity+3; i++ {
		s.Add(fmt.Sprintf("note %d", i))
	}
	list := s.List()
	require.Len(t, list, Capacity)
	require.Equal(t, 4, list[0].ID)
	require.Equal(t, "note 3", list[0].Content)
}

func TestCompactionRenumbers(t *testing.T) {
	s := New(fixedClock())
	for i := 0; i < 2*Capacity; i++ {
		s.Add("x")
	}
	require.Equal(t, 2*Capacity+1, s.NextID())

	id := s.Add("after compaction")
	require.Equal(t, Capacity+1, id)

	want := make([]int, Capacity)
	for i := range want {
		want[i] = i + 2
	}
	require.Equal(t, want, ids(s.List()))
}

// #endregion basic

// #region apply

func TestApply_ClearAllThenNoteStartsAtOne(t *testing.T) {
	s := New(fixedClock())
	for i := 0; i < 7; i++ {
		s.Add("old")
	}

	reply := "[NOTE: Route 101 is north]\n[CLEAR ALL NOTES]\nBUTTONS: UP"
	inputs, _ := directive.ParseInputs(reply, directive.ButtonB)
	res := s.Apply(directive.ParseNotes(reply), inputs)

	list := s.List()
	require.Len(t, list, 1)
	require.Equal(t, 1, list[0].ID)
	require.Equal(t, "Route 101 is north", list[0].Content)
	require.Equal(t, []int{1}, res.Added)
	require.Len(t, res.Cleared, 7)
}

func TestApply_GuardRewritesPrediction(t *testing.T) {
	s := New(fixedClock())
	inputs := []directive.LogicalInput{{Button: directive.ButtonDown, RepeatCount: 1}}
	ops := []directive.NoteOp{{Kind: directive.NoteAdd, Text: "down didn't work"}}

	res := s.Apply(ops, inputs)
	require.Equal(t, []int{1}, res.Guarded)

	n := s.List()[0]
	require.Equal(t, "[UNVERIFIED PREDICTION] down didn't work (written while issuing DOWN; outcome not yet observed)", n.Content)
	require.Equal(t, StatusUnverified, n.Status)
	require.Equal(t, directive.ButtonDown, n.Predicted)
	require.False(t, n.PredictsSuccess)
}

func TestApply_GuardIgnoresButtonsNotIssued(t *testing.T) {
	s := New(fixedClock())
	inputs := []directive.LogicalInput{{Button: directive.ButtonA, RepeatCount: 1}}
	ops := []directive.NoteOp{{Kind: directive.NoteAdd, Text: "down didn't work earlier"}}

	res := s.Apply(ops, inputs)
	require.Empty(t, res.Guarded)
	require.Equal(t, "down didn't work earlier", s.List()[0].Content)
}

func TestDetectPrediction(t *testing.T) {
	a := []directive.LogicalInput{{Button: directive.ButtonA, RepeatCount: 1}}
	b := []directive.LogicalInput{{Button: directive.ButtonB, RepeatCount: 1}}
	up := []directive.LogicalInput{{Button: directive.ButtonUp, RepeatCount: 2}}
	down := []directive.LogicalInput{{Button: directive.ButtonDown, RepeatCount: 1}}

	tests := []struct {
		name    string
		text    string
		inputs  []directive.LogicalInput
		guarded bool
		success bool
	}{
		{"article is not the A button", "A door leads to the lab", a, false, false},
		{"pressing a", "pressing a opened the menu", a, true, true},
		{"uppercase standalone", "A, it worked on the sign", a, true, true},
		{"no outcome claim", "UP is toward the exit", up, false, false},
		{"movement success", "Going up took me to the second floor", up, true, true},
		{"failure wins over success words", "up moved nothing, it is blocked", up, true, false},
		{"word boundary", "upstairs is where mom works", up, false, false},
		{"no change", "down: no change", down, true, false},
		{"nothing changed", "pressed up, nothing changed", up, true, false},
		{"did not change", "Down did not change the map", down, true, false},
		{"no progress", "up again, no progress", up, true, false},
		{"control failure", "down didn't work", down, true, false},
		{"capital A then failure", "A didn't work", a, true, false},
		{"capital A opened", "A opened the door", a, true, true},
		{"capital B closed", "B closed the menu", b, true, true},
		{"article before noun", "A sign worked as a hint", a, false, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := DetectPrediction(tc.text, tc.inputs)
			if !tc.guarded {
				require.Nil(t, p)
				return
			}
			require.NotNil(t, p)
			require.Equal(t, tc.success, p.ClaimsSuccess)
		})
	}
}

// #endregion apply

// #region verification

func TestValidateAgainstGroundTruth(t *testing.T) {
	s := New(fixedClock())
	home := &groundtruth.Position{X: 4, Y: 6, MapGroup: 1, MapNum: 0}

	s.BeginTurn(1, home)
	claim := s.Add("Entered the house through the door")
	plain := s.Add("Need to find Professor Birch")

	require.Empty(t, s.ValidateAgainstGroundTruth(home), "same turn is never swept")

	s.BeginTurn(2, home)
	require.Equal(t, []int{claim}, s.ValidateAgainstGroundTruth(home))

	for _, n := range s.List() {
		switch n.ID {
		case claim:
			require.Equal(t, StatusContradicted, n.Status)
		case plain:
			require.Equal(t, StatusUnverified, n.Status)
		}
	}
}

func TestValidateAgainstGroundTruth_MovedOrUnknown(t *testing.T) {
	s := New(fixedClock())
	s.BeginTurn(1, &groundtruth.Position{X: 1, Y: 1})
	s.Add("walked into the lab")
	s.BeginTurn(2, nil)

	require.Empty(t, s.ValidateAgainstGroundTruth(&groundtruth.Position{X: 1, Y: 2}))
	require.Empty(t, s.ValidateAgainstGroundTruth(nil))

	s2 := New(fixedClock())
	s2.BeginTurn(1, nil)
	s2.Add("walked into the lab")
	s2.BeginTurn(2, nil)
	require.Empty(t, s2.ValidateAgainstGroundTruth(&groundtruth.Position{X: 1, Y: 1}), "unknown anchor")
}

func TestResolvePredictions(t *testing.T) {
	s := New(fixedClock())
	s.BeginTurn(3, nil)
	down := []directive.LogicalInput{{Button: directive.ButtonDown, RepeatCount: 1}}
	s.Apply([]directive.NoteOp{
		{Kind: directive.NoteAdd, Text: "down didn't work"},
		{Kind: directive.NoteAdd, Text: "down moved me to the exit"},
	}, down)

	require.Empty(t, s.ResolvePredictions(2, directive.ButtonDown, true), "other turn")
	require.Equal(t, []int{1, 2}, s.ResolvePredictions(3, directive.ButtonDown, true))

	list := s.List()
	require.Equal(t, StatusContradicted, list[0].Status)
	require.Equal(t, StatusVerified, list[1].Status)
}

// #endregion verification

func TestRestore(t *testing.T) {
	s := New(fixedClock())
	s.Restore([]Note{
		{ID: 3, Content: "a", Status: StatusVerified, WrittenThisTurn: true},
		{ID: 9, Content: "b", Status: StatusUnverified},
	}, 4)

	require.Equal(t, 10, s.NextID())
	require.Equal(t, []int{3, 9}, ids(s.List()))
	require.False(t, s.List()[0].WrittenThisTurn)
}
