// Package replay runs recorded replies through parsing, the prediction guard
// and turn verification without the network or an emulator.
package replay

import (
	"time"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
	"github.com/danielpatrickdp/turnpilot/internal/groundtruth"
	"github.com/danielpatrickdp/turnpilot/internal/ledger"
	"github.com/danielpatrickdp/turnpilot/internal/notes"
)

// #region types
// Interaction represents a single recorded turn for replay.
type Interaction struct {
	TurnID         string
	ResponseText   string
	PositionBefore *groundtruth.Position
	PositionAfter  *groundtruth.Position
}

// ReplayConfig holds the replay settings.
type ReplayConfig struct {
	Fallback directive.Button
}

// DefaultReplayConfig returns the live defaults.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{Fallback: directive.ButtonB}
}

// ReplayResult captures the outcome of replaying one interaction.
type ReplayResult struct {
	TurnID   string
	Turn     int
	Inputs   []string
	Fallback bool

	Result ledger.Result
	Reason string

	NotesAdded   []int
	NotesCleared []int
	Guarded      []int
	Contradicted []int
	Resolved     []int

	LikelyStuck bool
}

// ReplaySummary provides aggregate stats from a replay run.
type ReplaySummary struct {
	TotalTurns   int
	Success      int
	Failed       int
	Unknown      int
	Fallbacks    int
	Guarded      int
	Contradicted int
	StuckTurns   int
	FinalNotes   []notes.Note
}

// #endregion types

// #region replay

// scriptOracle answers with whatever position the replay loop last set.
type scriptOracle struct{ pos *groundtruth.Position }

func (s *scriptOracle) Position() *groundtruth.Position { return s.pos }

// Replay iterates through interactions, applying the turn pipeline:
// sweep → parse → guard → verdict → resolve. Operates entirely in-memory and
// returns the final note list alongside the per-turn results.
func Replay(interactions []Interaction, config ReplayConfig) ([]ReplayResult, []notes.Note) {
	clock := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	now := func() time.Time { return clock }
	oracle := &scriptOracle{}
	led := ledger.New(oracle, now)
	store := notes.New(now)
	results := make([]ReplayResult, 0, len(interactions))

	for _, inter := range interactions {
		clock = clock.Add(time.Second)
		turn := led.Turn() + 1

		// 1. Contradiction sweep at the pre-state
		store.BeginTurn(turn, inter.PositionBefore)
		contradicted := store.ValidateAgainstGroundTruth(inter.PositionBefore)

		// 2. Parse inputs and note directives, guard predictions
		inputs, fellBack := directive.ParseInputs(inter.ResponseText, config.Fallback)
		applied := store.Apply(directive.ParseNotes(inter.ResponseText), inputs)

		// 3. Verdict for the inputs this reply produced
		oracle.pos = inter.PositionBefore
		led.BeginTurn()
		rec, _ := led.CompleteTurn(inputs, inter.PositionAfter)

		// 4. Settle predictions written this turn
		var resolved []int
		if rec.Result != ledger.ResultUnknown {
			seen := map[directive.Button]bool{}
			for _, in := range inputs {
				if in.Button.Directional() && !seen[in.Button] {
					seen[in.Button] = true
					resolved = append(resolved, store.ResolvePredictions(rec.TurnNumber, in.Button, rec.Result == ledger.ResultSuccess)...)
				}
			}
		}

		results = append(results, ReplayResult{
			TurnID:       inter.TurnID,
			Turn:         rec.TurnNumber,
			Inputs:       directive.Strings(inputs),
			Fallback:     fellBack,
			Result:       rec.Result,
			Reason:       rec.Reason,
			NotesAdded:   applied.Added,
			NotesCleared: applied.Cleared,
			Guarded:      applied.Guarded,
			Contradicted: contradicted,
			Resolved:     resolved,
			LikelyStuck:  led.Summary().LikelyStuck,
		})
	}

	return results, store.List()
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, finalNotes []notes.Note) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		FinalNotes: finalNotes,
	}
	for _, r := range results {
		switch r.Result {
		case ledger.ResultSuccess:
			s.Success++
		case ledger.ResultFailed:
			s.Failed++
		case ledger.ResultUnknown:
			s.Unknown++
		}
		if r.Fallback {
			s.Fallbacks++
		}
		if r.LikelyStuck {
			s.StuckTurns++
		}
		s.Guarded += len(r.Guarded)
		s.Contradicted += len(r.Contradicted)
	}
	return s
}

// #endregion replay
