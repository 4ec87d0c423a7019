package ledger

import "github.com/danielpatrickdp/turnpilot/internal/directive"

// #region config

const (
	summaryWindow      = 5
	stuckThreshold     = 3
	repetitionMinTurns = 3
	repetitionMinCount = 4
)

// #endregion config

// #region summary

// Repetition flags one d-pad button dominating recent turns.
type Repetition struct {
	Button directive.Button
	Count  int
	Turns  int
}

// Summary is the derived view of recent turns shown to the reasoning service.
type Summary struct {
	Window       int
	FailedRecent int
	LikelyStuck  bool
	Repetition   *Repetition
}

// Summary looks at the last few turns: three or more FAILED out of five means
// likely stuck, and one directional button issued four or more times across
// at least three turns means repetition.
func (l *Ledger) Summary() Summary {
	recent := l.records.Last(summaryWindow)
	s := Summary{Window: len(recent)}

	for _, r := range recent {
		if r.Result == ResultFailed {
			s.FailedRecent++
		}
	}
	s.LikelyStuck = s.FailedRecent >= stuckThreshold

	if len(recent) < repetitionMinTurns {
		return s
	}
	counts := make(map[directive.Button]int)
	for _, r := range recent {
		for _, in := range r.Inputs {
			if in.Button.Directional() {
				counts[in.Button]++
			}
		}
	}
	for _, b := range directive.Buttons {
		c := counts[b]
		if c < repetitionMinCount {
			continue
		}
		if s.Repetition == nil || c > s.Repetition.Count {
			s.Repetition = &Repetition{Button: b, Count: c, Turns: len(recent)}
		}
	}
	return s
}

// #endregion summary
