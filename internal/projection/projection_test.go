package projection

import (
	"strings"
	"testing"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ledger"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
)

// #region project-tests

func TestProjectToPrompt_Minimal(t *testing.T) {
	out := ProjectToPrompt(Input{})
	if !strings.Contains(out, "Position: unknown") {
		t.Errorf("expected unknown position, got:\n%s", out)
	}
	if strings.Contains(out, "[TURN LEDGER]") || strings.Contains(out, "[WARNINGS]") {
		t.Errorf("empty sections should be omitted, got:\n%s", out)
	}
	if !strings.Contains(out, "[NOTES]\n(none)") {
		t.Errorf("expected empty notes marker, got:\n%s", out)
	}
}

func TestProjectToPrompt_Full(t *testing.T) {
	out := ProjectToPrompt(Input{
		Position: &groundtruth.Position{X: 4, Y: 9, MapGroup: 0, MapNum: 10},
		Recent: []ledger.TurnRecord{
			{TurnNumber: 3, Inputs: []directive.LogicalInput{{Button: directive.ButtonUp, RepeatCount: 2}}, Result: ledger.ResultFailed, Reason: "still at map 0.10 (4,9)"},
			{TurnNumber: 4, Result: ledger.ResultUnknown, Reason: "no directional input; effect not verifiable"},
		},
		Summary: ledger.Summary{Window: 5, FailedRecent: 3, LikelyStuck: true,
			Repetition: &ledger.Repetition{Button: directive.ButtonUp, Count: 6, Turns: 5}},
		Notes: []notes.Note{
			{ID: 1, Status: notes.StatusContradicted, Content: "Entered the lab"},
		},
		Contradicted: []int{1},
		Guarded:      []int{4, 5},
		FellBack:     true,
		Hints:        []string{"UP: 0/4 recent attempts moved"},
	})

	for _, want := range []string{
		"Position: map 0.10 (4,9)",
		"Turn 3: UP x2 -> FAILED",
		"Turn 4: NONE -> UNKNOWN",
		"likely stuck",
		"UP was pressed 6 times in the last 5 turns",
		"Notes #1 claimed movement",
		"Notes #4, #5 predicted",
		"no parseable BUTTONS line",
		"[HISTORY ON THIS MAP]\n- UP: 0/4",
		"#1 [CONTRADICTED] Entered the lab",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestProjectToPrompt_ShowsOnlyRecentRows(t *testing.T) {
	var recs []ledger.TurnRecord
	for i := 1; i <= 8; i++ {
		recs = append(recs, ledger.TurnRecord{TurnNumber: i, Result: ledger.ResultUnknown})
	}
	out := ProjectToPrompt(Input{Recent: recs})
	if strings.Contains(out, "Turn 3:") || !strings.Contains(out, "Turn 4:") || !strings.Contains(out, "Turn 8:") {
		t.Errorf("expected turns 4..8 only, got:\n%s", out)
	}
}

// #endregion project-tests

// #region wrap-tests

func TestWrapPrompt(t *testing.T) {
	if got := WrapPrompt("", "go"); got != "go" {
		t.Errorf("WrapPrompt empty = %q", got)
	}
	got := WrapPrompt("[NOTES]\n(none)\n", "Decide your next input.")
	if !strings.HasSuffix(got, "[YOUR TURN]\nDecide your next input.") {
		t.Errorf("WrapPrompt = %q", got)
	}
}

// #endregion wrap-tests
