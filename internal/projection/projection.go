package projection

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ledger"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
)

// #region types

// Input is everything the turn prompt is built from.
type Input struct {
	Turn         int
	Position     *groundtruth.Position
	Recent       []ledger.TurnRecord
	Summary      ledger.Summary
	Notes        []notes.Note
	Contradicted []int
	Guarded      []int
	FellBack     bool
	Hints        []string
}

// recentShown is how many ledger rows the prompt includes.
const recentShown = 5

// #endregion types

// #region project

// ProjectToPrompt renders the state sections that precede the turn
// instruction. Sections with nothing to say are omitted.
func ProjectToPrompt(in Input) string {
	var b strings.Builder

	b.WriteString("[GROUND TRUTH]\n")
	if in.Position != nil {
		fmt.Fprintf(&b, "Position: %s\n", in.Position)
	} else {
		b.WriteString("Position: unknown\n")
	}

	if len(in.Recent) > 0 {
		b.WriteString("\n[TURN LEDGER]\n")
		recent := in.Recent
		if len(recent) > recentShown {
			recent = recent[len(recent)-recentShown:]
		}
		for _, r := range recent {
			fmt.Fprintf(&b, "Turn %d: %s -> %s (%s)\n", r.TurnNumber, inputsText(r.Inputs), r.Result, r.Reason)
		}
	}

	if warnings := warningLines(in); len(warnings) > 0 {
		b.WriteString("\n[WARNINGS]\n")
		for _, w := range warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
	}

	if len(in.Hints) > 0 {
		b.WriteString("\n[HISTORY ON THIS MAP]\n")
		for _, h := range in.Hints {
			fmt.Fprintf(&b, "- %s\n", h)
		}
	}

	b.WriteString("\n[NOTES]\n")
	if len(in.Notes) == 0 {
		b.WriteString("(none)\n")
	}
	for _, n := range in.Notes {
		fmt.Fprintf(&b, "#%d [%s] %s\n", n.ID, n.Status, n.Content)
	}
	return b.String()
}

func warningLines(in Input) []string {
	var out []string
	if in.Summary.LikelyStuck {
		out = append(out, fmt.Sprintf("%d of the last %d turns did not move you. You are likely stuck; try a different direction.", in.Summary.FailedRecent, in.Summary.Window))
	}
	if r := in.Summary.Repetition; r != nil {
		out = append(out, fmt.Sprintf("%s was pressed %d times in the last %d turns.", r.Button, r.Count, r.Turns))
	}
	if len(in.Contradicted) > 0 {
		out = append(out, fmt.Sprintf("Notes %s claimed movement but your position has not changed; they are marked CONTRADICTED.", idList(in.Contradicted)))
	}
	if len(in.Guarded) > 0 {
		out = append(out, fmt.Sprintf("Notes %s predicted the outcome of inputs before it was observed; check the ledger before trusting them.", idList(in.Guarded)))
	}
	if in.FellBack {
		out = append(out, "Your last reply had no parseable BUTTONS line; a default input was used.")
	}
	return out
}

func inputsText(inputs []directive.LogicalInput) string {
	if len(inputs) == 0 {
		return "NONE"
	}
	return strings.Join(directive.Strings(inputs), ", ")
}

func idList(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}

// WrapPrompt appends the turn instruction after the state block.
// If stateBlock is empty, returns instruction unchanged.
func WrapPrompt(stateBlock, instruction string) string {
	if stateBlock == "" {
		return instruction
	}
	return stateBlock + "\n[YOUR TURN]\n" + instruction
}

// #endregion project
