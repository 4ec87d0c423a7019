package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/turnpilot/internal/replay"
)

// #region command

var replayCmd = &cobra.Command{
	Use:   "replay <fixture.json>",
	Short: "Replay recorded replies and compare verdicts",
	Long: `Runs each recorded reply through parsing, the prediction guard and turn
verification, then compares the outcome with the fixture's expected results.
Exits non-zero if any turn diverges.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := replay.LoadFixture(args[0])
		if err != nil {
			return err
		}
		rc, err := f.Config.ToReplayConfig()
		if err != nil {
			return err
		}
		results, final := replay.Replay(f.ToInteractions(), rc)
		out := cmd.OutOrStdout()
		diverge := printComparison(out, results, f.ExpectedResults)
		printSummary(out, replay.Summarize(results, final))
		if diverge > 0 {
			return fmt.Errorf("%d of %d turns diverge", diverge, len(f.ExpectedResults))
		}
		return nil
	},
}

// #endregion command

// #region output

// printComparison writes the expected/replayed table and returns the number
// of diverging turns. Expected entries are matched by turn id.
func printComparison(w io.Writer, results []replay.ReplayResult, expected []replay.FixtureExpectedResult) int {
	byID := make(map[string]replay.ReplayResult, len(results))
	for _, r := range results {
		byID[r.TurnID] = r
	}

	fmt.Fprintf(w, "%-12s| %-10s| %-10s| %-24s| %s\n", "Turn", "Expected", "Replayed", "Inputs", "Match")
	fmt.Fprintf(w, "%-12s+%-11s+%-11s+%-25s+%s\n",
		"------------", "-----------", "-----------", "-------------------------", "------")

	diverge := 0
	for _, e := range expected {
		got, ok := byID[e.TurnID]
		match := "OK"
		if !ok || !turnMatches(e, got) {
			match = "DIFF"
			diverge++
		}
		fmt.Fprintf(w, "%-12s| %-10s| %-10s| %-24s| %s\n",
			e.TurnID, e.Result, got.Result, strings.Join(got.Inputs, ", "), match)
	}
	fmt.Fprintf(w, "\nSummary: %d total, %d match, %d diverge\n", len(expected), len(expected)-diverge, diverge)
	return diverge
}

// turnMatches compares verdict, fallback use and guard counts; inputs are
// compared only when the fixture lists them.
func turnMatches(e replay.FixtureExpectedResult, got replay.ReplayResult) bool {
	if e.Result != string(got.Result) || e.Fallback != got.Fallback {
		return false
	}
	if e.Guarded != len(got.Guarded) || e.Contradicted != len(got.Contradicted) {
		return false
	}
	if e.Inputs != nil && strings.Join(e.Inputs, ",") != strings.Join(got.Inputs, ",") {
		return false
	}
	return true
}

func printSummary(w io.Writer, s replay.ReplaySummary) {
	fmt.Fprintf(w, "Verdicts: %d success, %d failed, %d unknown; %d fallback, %d stuck\n",
		s.Success, s.Failed, s.Unknown, s.Fallbacks, s.StuckTurns)
	fmt.Fprintf(w, "Notes: %d guarded, %d contradicted, %d kept\n", s.Guarded, s.Contradicted, len(s.FinalNotes))
	for _, n := range s.FinalNotes {
		fmt.Fprintf(w, "  [%d] %-12s %s\n", n.ID, n.Status, n.Content)
	}
}

// #endregion output
