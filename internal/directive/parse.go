// Package directive parses the free-text reply of the reasoning service into
// button inputs and note directives.
package directive

import (
	"regexp"
	"strconv"
	"strings"
)

// #region patterns

var (
	buttonsLine  = regexp.MustCompile(`(?im)^[\s*_>#-]*BUTTONS?[\s*_]*:[\s*_]*(.*)$`)
	inlineToken  = regexp.MustCompile(`(?i)\b(up|down|left|right|start|select|a|b|l|r)\b(?:\s*[x×*]?\s*(\d+)\b)?`)
	countToken   = regexp.MustCompile(`(?i)^[x×*]?(\d+)[x×]?$`)
	noteAdd      = regexp.MustCompile(`(?is)\[\s*NOTE\s*:\s*(.*?)\]`)
	noteClear    = regexp.MustCompile(`(?i)\[\s*CLEAR\s+NOTE\s*:?\s*#?(\d+)\s*\]`)
	noteClearAll = regexp.MustCompile(`(?i)\[\s*CLEAR\s+ALL(?:\s+NOTES)?\s*\]`)
	anyNote      = regexp.MustCompile(`(?is)\[\s*(?:CLEAR\s+ALL(?:\s+NOTES)?|CLEAR\s+NOTE[^\]]*|NOTE\s*:.*?)\]`)
)

// #endregion patterns

// #region parse-inputs

// ParseInputs extracts button inputs from a reply. A BUTTONS: line wins; otherwise
// inline tokens such as "up 3" on the last non-empty line are used. When neither
// yields anything the single fallback input is returned with usedFallback=true.
// "BUTTONS: NONE" is an explicit empty decision and does not fall back.
func ParseInputs(text string, fallback Button) (inputs []LogicalInput, usedFallback bool) {
	body := anyNote.ReplaceAllString(text, " ")

	if m := buttonsLine.FindStringSubmatch(body); m != nil {
		line := strings.Trim(strings.TrimSpace(m[1]), "*_`")
		if strings.EqualFold(strings.TrimSpace(line), "NONE") {
			return nil, false
		}
		if inputs := parseButtonList(line); len(inputs) > 0 {
			return inputs, false
		}
	}

	if inputs := parseInline(lastLine(body)); len(inputs) > 0 {
		return inputs, false
	}

	return []LogicalInput{{Button: fallback, RepeatCount: 1}}, true
}

// parseButtonList handles "UP 3, A", "UP+A", "left x2 b".
// '+' joins buttons meant for one step; they are delivered back to back
// because only one key may be held at a time.
func parseButtonList(line string) []LogicalInput {
	var out []LogicalInput
	var group []Button

	flush := func(count int) {
		for _, b := range group {
			out = append(out, LogicalInput{Button: b, RepeatCount: ClampRepeat(count)})
		}
		group = nil
	}

	fields := strings.FieldsFunc(line, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	for _, field := range fields {
		if m := countToken.FindStringSubmatch(field); m != nil {
			n, _ := strconv.Atoi(m[1])
			flush(n)
			continue
		}
		var parsed []Button
		for _, part := range strings.Split(field, "+") {
			if b, ok := ParseButton(strings.Trim(part, "*_`.()[]")); ok {
				parsed = append(parsed, b)
			}
		}
		if len(parsed) == 0 {
			continue
		}
		flush(1)
		group = parsed
	}
	flush(1)
	return out
}

func parseInline(line string) []LogicalInput {
	var out []LogicalInput
	for _, m := range inlineToken.FindAllStringSubmatch(line, -1) {
		b, ok := ParseButton(m[1])
		if !ok {
			continue
		}
		count := 1
		if m[2] != "" {
			count, _ = strconv.Atoi(m[2])
		}
		out = append(out, LogicalInput{Button: b, RepeatCount: ClampRepeat(count)})
	}
	return out
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return ""
}

// #endregion parse-inputs

// #region parse-notes

// ParseNotes extracts note directives in the order they appear.
// Ordering between clears and adds is the note store's job.
func ParseNotes(text string) []NoteOp {
	type located struct {
		at int
		op NoteOp
	}
	var found []located

	for _, idx := range noteClearAll.FindAllStringIndex(text, -1) {
		found = append(found, located{idx[0], NoteOp{Kind: NoteClearAll}})
	}
	for _, m := range noteClear.FindAllStringSubmatchIndex(text, -1) {
		id, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		found = append(found, located{m[0], NoteOp{Kind: NoteClear, ID: id}})
	}
	for _, m := range noteAdd.FindAllStringSubmatchIndex(text, -1) {
		content := strings.TrimSpace(text[m[2]:m[3]])
		if content == "" {
			continue
		}
		found = append(found, located{m[0], NoteOp{Kind: NoteAdd, Text: content}})
	}

	// insertion sort by position; replies carry a handful of directives
	for i := 1; i < len(found); i++ {
		for j := i; j > 0 && found[j].at < found[j-1].at; j-- {
			found[j], found[j-1] = found[j-1], found[j]
		}
	}

	ops := make([]NoteOp, len(found))
	for i, f := range found {
		ops[i] = f.op
	}
	return ops
}

// #endregion parse-notes
