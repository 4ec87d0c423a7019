package notes

// #region imports
import (
	"fmt"
	"regexp"
	"strings"

	"github.com/danielpatrickdp/turnpilot/internal/directive"
)

// #endregion imports

// #region keywords

// failurePhrases claim a button had no effect.
var failurePhrases = []string{
	"didn't work", "did not work", "doesn't work", "does not work", "won't work",
	"didn't move", "did not move", "doesn't move", "not moving",
	"nothing happened", "no effect", "blocked", "is a wall", "hit a wall",
	"can't go", "cannot go", "can't pass", "cannot pass", "failed", "stuck",
	"no change", "nothing changed", "didn't change", "did not change", "no progress",
}

// successPhrases claim a button changed something.
var successPhrases = []string{
	"worked", "works", "moved", "moves me", "took me", "takes me", "leads to",
	"entered", "enters", "reached", "reaches", "arrived", "opened", "opens",
	"exited", "exits", "went through", "goes through", "walked", "succeeded",
	"closed", "closes",
}

// buttonVerbs can follow a capital A or B that names the button rather
// than acting as an article.
var buttonVerbs = []string{
	"did", "does", "didn't", "doesn't", "won't", "had no", "has no", "was", "is",
	"confirmed", "confirms", "selected", "selects", "cancelled", "canceled",
	"advanced", "advances", "skipped", "skips", "press", "pressed", "again",
}

// movementClaims assert the player is somewhere new.
var movementClaims = []string{
	"moved", "walked", "went", "entered", "reached", "arrived", "exited",
	"made it", "now in", "now at", "now on", "now outside", "now inside",
	"got to", "left the", "took the stairs", "went up", "went down",
}

var locationKeywords = []string{
	"room", "house", "door", "building", "town", "route", "cave", "floor",
	"upstairs", "downstairs", "stairs", "outside", "inside", "lab", "center",
	"mart", "gym", "city", "forest", "exit", "bedroom", "map", "road", "grass",
}

// #endregion keywords

// #region button-mentions

var wordButton = map[directive.Button]*regexp.Regexp{
	directive.ButtonUp:     regexp.MustCompile(`(?i)\bup\b`),
	directive.ButtonDown:   regexp.MustCompile(`(?i)\bdown\b`),
	directive.ButtonLeft:   regexp.MustCompile(`(?i)\bleft\b`),
	directive.ButtonRight:  regexp.MustCompile(`(?i)\bright\b`),
	directive.ButtonStart:  regexp.MustCompile(`(?i)\bstart\b`),
	directive.ButtonSelect: regexp.MustCompile(`(?i)\bselect\b`),
}

// mentions reports whether text names b. Single-letter buttons count in
// "press a" / "a button" form, or as an uppercase standalone letter. A capital
// letter followed by a lowercase word is an article ("A door") unless that
// word starts an outcome or verb phrase ("A opened the door").
func mentions(text string, b directive.Button) bool {
	if re, ok := wordButton[b]; ok {
		return re.MatchString(text)
	}

	letter := string(b)
	lower := strings.ToLower(text)
	l := strings.ToLower(letter)
	for _, phrase := range []string{"press " + l, "pressed " + l, "pressing " + l, l + " button"} {
		if containsWord(lower, phrase) {
			return true
		}
	}

	for i := 0; i < len(text); i++ {
		if text[i] != letter[0] {
			continue
		}
		if i > 0 && isWordByte(text[i-1]) {
			continue
		}
		if i+1 < len(text) && isWordByte(text[i+1]) {
			continue
		}
		if i+2 < len(text) && text[i+1] == ' ' && text[i+2] >= 'a' && text[i+2] <= 'z' &&
			!startsClaim(strings.ToLower(text[i+2:])) {
			continue
		}
		return true
	}
	return false
}

// startsClaim reports whether rest opens with an outcome phrase or a verb.
func startsClaim(rest string) bool {
	for _, list := range [][]string{failurePhrases, successPhrases, buttonVerbs} {
		for _, p := range list {
			if strings.HasPrefix(rest, p) && (len(rest) == len(p) || !isWordByte(rest[len(p)])) {
				return true
			}
		}
	}
	return false
}

func containsWord(haystack, phrase string) bool {
	for start := 0; ; {
		idx := strings.Index(haystack[start:], phrase)
		if idx < 0 {
			return false
		}
		at := start + idx
		end := at + len(phrase)
		if (at == 0 || !isWordByte(haystack[at-1])) && (end == len(haystack) || !isWordByte(haystack[end])) {
			return true
		}
		start = at + 1
	}
}

func isWordByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// #endregion button-mentions

// #region guard

// Prediction describes a note that asserts the outcome of an input issued in
// the same reply.
type Prediction struct {
	Button        directive.Button
	ClaimsSuccess bool
	OriginalText  string
	RewrittenText string
}

// DetectPrediction checks text against the inputs issued alongside it.
// Returns nil when the note names none of those buttons or makes no outcome claim.
func DetectPrediction(text string, inputs []directive.LogicalInput) *Prediction {
	lower := strings.ToLower(text)
	failure := containsAny(lower, failurePhrases)
	success := containsAny(lower, successPhrases)
	if !failure && !success {
		return nil
	}

	for _, in := range inputs {
		if !mentions(text, in.Button) {
			continue
		}
		return &Prediction{
			Button:        in.Button,
			ClaimsSuccess: !failure,
			OriginalText:  text,
			RewrittenText: fmt.Sprintf("[UNVERIFIED PREDICTION] %s (written while issuing %s; outcome not yet observed)", text, in.Button),
		}
	}
	return nil
}

// claimsMovement reports whether text asserts arrival somewhere.
func claimsMovement(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, movementClaims) && containsAny(lower, locationKeywords)
}

// #endregion guard
