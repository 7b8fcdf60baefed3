package protocol

import (
	"encoding/json"
	"fmt"
	"sort"
)

// RuleKind names the class of a validation rule.
type RuleKind string

// Rule kinds.
const (
	RuleRange    RuleKind = "range"
	RuleFormat   RuleKind = "format"
	RuleRequired RuleKind = "required"
)

// Rule describes one validation the codec applies. Rules are reference data
// seeded into the store at migration time.
type Rule struct {
	EventKind       Kind     `json:"event_kind"`
	ProtocolVersion string   `json:"protocol_version"`
	RuleKind        RuleKind `json:"rule_kind"`
	Field           string   `json:"field"`
	Definition      string   `json:"definition"`
	ErrorMessage    string   `json:"error_message"`
}

type ruleDefinition struct {
	Field    string   `json:"field"`
	Position int      `json:"position"`
	Min      *int     `json:"min,omitempty"`
	Max      *int     `json:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// Rules returns the rule table of the default codec.
func Rules() []Rule { return defaultCodec.Rules() }

// Rules returns the validation rules for this codec's version, ordered by
// event kind then field position.
func (c *Codec) Rules() []Rule {
	byKind := make(map[Kind]*layout)
	for _, l := range layouts {
		byKind[l.kind] = l
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)

	var out []Rule
	for _, k := range kinds {
		l := byKind[Kind(k)]
		for pos, f := range l.fields {
			out = append(out, c.fieldRules(l.kind, pos, f)...)
		}
	}
	return out
}

func (c *Codec) fieldRules(kind Kind, pos int, f field) []Rule {
	base := ruleDefinition{Field: f.name, Position: pos + 1}
	var rules []Rule

	if !f.optional {
		rules = append(rules, c.rule(kind, RuleRequired, base, fmt.Sprintf("%s: required field missing", f.name)))
	}

	def := base
	switch f.kind {
	case fieldInt:
		lo, hi := f.min, f.max
		def.Min, def.Max = &lo, &hi
		rules = append(rules, c.rule(kind, RuleRange, def, fmt.Sprintf("%s: out of range [%d, %d]", f.name, lo, hi)))
	case fieldTime:
		def.Pattern = `^(\d{1,2}:[0-5]\d|\d{1,3})$`
		rules = append(rules, c.rule(kind, RuleFormat, def, fmt.Sprintf("%s: expected m:ss or ss", f.name)))
	case fieldColor:
		def.Pattern = `^#[0-9A-Fa-f]{6}$`
		rules = append(rules, c.rule(kind, RuleFormat, def, fmt.Sprintf("%s: expected #RRGGBB", f.name)))
	case fieldEnum, fieldMarker:
		def.Values = f.values
		rules = append(rules, c.rule(kind, RuleFormat, def, fmt.Sprintf("%s: expected one of %v", f.name, f.values)))
	case fieldText:
	}
	return rules
}

func (c *Codec) rule(kind Kind, rk RuleKind, def ruleDefinition, msg string) Rule {
	b, err := json.Marshal(def)
	if err != nil {
		b = []byte(`{}`)
	}
	return Rule{
		EventKind:       kind,
		ProtocolVersion: c.version,
		RuleKind:        rk,
		Field:           def.Field,
		Definition:      string(b),
		ErrorMessage:    msg,
	}
}
