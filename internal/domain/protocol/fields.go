package protocol

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

type fieldKind uint8

const (
	fieldInt fieldKind = iota
	fieldTime
	fieldColor
	fieldEnum
	fieldText
	fieldMarker
)

// field describes one positional token after the event code.
type field struct {
	name     string
	kind     fieldKind
	min, max int
	values   []string
	optional bool
}

func intField(name string, lo, hi int) field {
	return field{name: name, kind: fieldInt, min: lo, max: hi}
}

func timeField(name string) field { return field{name: name, kind: fieldTime} }

func colorField(name string) field { return field{name: name, kind: fieldColor, optional: true} }

func enumField(name string, values ...string) field {
	return field{name: name, kind: fieldEnum, values: values}
}

func textField(name string) field { return field{name: name, kind: fieldText} }

func marker(literal string) field {
	return field{name: literal, kind: fieldMarker, values: []string{literal}}
}

func optional(f field) field {
	f.optional = true
	return f
}

// extracted holds per-position values produced by layout.extract.
type extracted struct {
	ints    []int
	texts   []string
	present []bool
}

func (x extracted) int(i int) int {
	if i < len(x.ints) {
		return x.ints[i]
	}
	return 0
}

func (x extracted) text(i int) string {
	if i < len(x.texts) {
		return x.texts[i]
	}
	return ""
}

func (x extracted) has(i int) bool {
	return i < len(x.present) && x.present[i]
}

// extract validates tokens against fields, returning best-effort values and
// one message per violation. Excess tokens are ignored.
func extract(fields []field, tokens []string) (extracted, []string) {
	x := extracted{
		ints:    make([]int, len(fields)),
		texts:   make([]string, len(fields)),
		present: make([]bool, len(fields)),
	}
	var errs []string

	for i, f := range fields {
		tok := ""
		if i < len(tokens) {
			tok = tokens[i]
		}
		if tok == "" {
			if !f.optional {
				errs = append(errs, fmt.Sprintf("%s: required field missing", f.name))
			}
			continue
		}
		x.present[i] = true
		x.texts[i] = tok

		var msg string
		switch f.kind {
		case fieldInt:
			x.ints[i], msg = parseIntToken(f, tok)
		case fieldTime:
			x.ints[i], msg = parseTimeToken(f, tok)
		case fieldColor:
			msg = checkColorToken(f, tok)
		case fieldEnum, fieldMarker:
			x.texts[i], msg = matchEnumToken(f, tok)
		case fieldText:
		}
		if msg != "" {
			errs = append(errs, msg)
		}
	}
	return x, errs
}

func parseIntToken(f field, tok string) (int, string) {
	n, err := strconv.Atoi(tok)
	if err != nil {
		var numErr *strconv.NumError
		if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
			return 0, fmt.Sprintf("%s: value %q overflows the numeric range", f.name, tok)
		}
		return 0, fmt.Sprintf("%s: not a number: %q", f.name, tok)
	}
	if n < f.min || n > f.max {
		return n, fmt.Sprintf("%s: %d out of range [%d, %d]", f.name, n, f.min, f.max)
	}
	return n, ""
}

// parseTimeToken accepts m:ss (ss < 60) or plain seconds.
func parseTimeToken(f field, tok string) (int, string) {
	bad := fmt.Sprintf("%s: invalid time %q, expected m:ss or ss", f.name, tok)

	minutes, seconds, hasColon := strings.Cut(tok, ":")
	if !hasColon {
		if !isDigits(tok, 1, 3) {
			return 0, bad
		}
		s, _ := strconv.Atoi(tok)
		return s, ""
	}
	if !isDigits(minutes, 1, 2) || !isDigits(seconds, 2, 2) {
		return 0, bad
	}
	m, _ := strconv.Atoi(minutes)
	s, _ := strconv.Atoi(seconds)
	if s >= 60 {
		return 0, bad
	}
	return m*60 + s, ""
}

func checkColorToken(f field, tok string) string {
	if len(tok) != 7 || tok[0] != '#' {
		return fmt.Sprintf("%s: invalid color %q, expected #RRGGBB", f.name, tok)
	}
	for i := 1; i < len(tok); i++ {
		if !isHex(tok[i]) {
			return fmt.Sprintf("%s: invalid color %q, expected #RRGGBB", f.name, tok)
		}
	}
	return ""
}

// matchEnumToken matches case-insensitively and returns the canonical spelling.
func matchEnumToken(f field, tok string) (string, string) {
	for _, v := range f.values {
		if strings.EqualFold(v, tok) {
			return v, ""
		}
	}
	if f.kind == fieldMarker {
		return tok, fmt.Sprintf("%s: expected marker %q, got %q", f.name, f.values[0], tok)
	}
	return tok, fmt.Sprintf("%s: %q not one of %s", f.name, tok, strings.Join(f.values, "|"))
}

func isDigits(s string, minLen, maxLen int) bool {
	if len(s) < minLen || len(s) > maxLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}
