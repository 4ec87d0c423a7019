package directive

import (
	"fmt"
	"strings"
)

// #region button

// Button is a logical GBA key.
type Button string

const (
	ButtonA      Button = "A"
	ButtonB      Button = "B"
	ButtonL      Button = "L"
	ButtonR      Button = "R"
	ButtonStart  Button = "START"
	ButtonSelect Button = "SELECT"
	ButtonUp     Button = "UP"
	ButtonDown   Button = "DOWN"
	ButtonLeft   Button = "LEFT"
	ButtonRight  Button = "RIGHT"
)

// Buttons lists every key in GBA key-bit order.
var Buttons = []Button{
	ButtonA, ButtonB, ButtonSelect, ButtonStart,
	ButtonRight, ButtonLeft, ButtonUp, ButtonDown,
	ButtonR, ButtonL,
}

// Directional reports whether b is on the d-pad.
func (b Button) Directional() bool {
	switch b {
	case ButtonUp, ButtonDown, ButtonLeft, ButtonRight:
		return true
	}
	return false
}

// ParseButton maps a case-insensitive name to a Button.
func ParseButton(s string) (Button, bool) {
	b := Button(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Buttons {
		if b == known {
			return b, true
		}
	}
	return "", false
}

// #endregion button

// #region logical-input

// MaxRepeat bounds a single input's repeat count so one turn cannot run for long.
const MaxRepeat = 10

// LogicalInput is one button action requested by the reasoning service.
type LogicalInput struct {
	Button      Button
	RepeatCount int
}

// ClampRepeat forces n into [1, MaxRepeat].
func ClampRepeat(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxRepeat {
		return MaxRepeat
	}
	return n
}

func (in LogicalInput) String() string {
	if in.RepeatCount > 1 {
		return fmt.Sprintf("%s x%d", in.Button, in.RepeatCount)
	}
	return string(in.Button)
}

// Strings renders inputs the way the ledger and prompts show them.
func Strings(inputs []LogicalInput) []string {
	out := make([]string, len(inputs))
	for i, in := range inputs {
		out[i] = in.String()
	}
	return out
}

// HasDirectional reports whether any input is a d-pad press.
func HasDirectional(inputs []LogicalInput) bool {
	for _, in := range inputs {
		if in.Button.Directional() {
			return true
		}
	}
	return false
}

// #endregion logical-input

// #region note-op

// NoteOpKind distinguishes note directives.
type NoteOpKind int

const (
	NoteAdd NoteOpKind = iota
	NoteClear
	NoteClearAll
)

// NoteOp is one parsed [NOTE: ...] / [CLEAR NOTE: id] / [CLEAR ALL NOTES] directive.
type NoteOp struct {
	Kind NoteOpKind
	ID   int    // NoteClear only
	Text string // NoteAdd only
}

// #endregion note-op
