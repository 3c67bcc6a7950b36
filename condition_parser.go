package access

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseCondition parses a compact condition string into an ABACCondition.
// The form is `attribute operator value`, e.g.
//
//	user.department != finance
//	record.amount <= 5000
//	user.roles in [manager, finance_lead]
//	document.state regex "^draft|review$"
//
// Values parse as numbers or booleans when they look like one, quoted
// strings keep their text verbatim, and bracketed lists split on commas.
// This covers the config and CLI surface; nested groups are built in
// structured form, not parsed.
func ParseCondition(s string) (*ABACCondition, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("parse condition: empty input")
	}
	attr, rest, err := splitAttribute(s)
	if err != nil {
		return nil, err
	}
	op, rest, err := splitOperator(rest)
	if err != nil {
		return nil, fmt.Errorf("parse condition %q: %w", s, err)
	}
	val, err := parseConditionValue(rest)
	if err != nil {
		return nil, fmt.Errorf("parse condition %q: %w", s, err)
	}
	return &ABACCondition{Attribute: attr, Operator: op, Value: val}, nil
}

// MustParseCondition is ParseCondition for package-level policy literals;
// it panics on malformed input.
func MustParseCondition(s string) *ABACCondition {
	c, err := ParseCondition(s)
	if err != nil {
		panic(err)
	}
	return c
}

func splitAttribute(s string) (attr, rest string, err error) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return "", "", fmt.Errorf("parse condition %q: missing operator", s)
	}
	return s[:i], strings.TrimSpace(s[i:]), nil
}

// operatorWords are the multi-character operators ordered so that longer
// forms win over their prefixes (>= before >, not_in before in).
var operatorWords = []Operator{
	OpNotIn, OpStartsWith, OpEndsWith, OpContains, OpRegex, OpIn,
	OpGte, OpLte, OpNe, OpEq, OpGt, OpLt,
}

func splitOperator(s string) (Operator, string, error) {
	for _, op := range operatorWords {
		w := string(op)
		if !strings.HasPrefix(s, w) {
			continue
		}
		rest := s[len(w):]
		// Word operators need a boundary so "integer" never matches "in".
		if isWordOperator(op) && rest != "" && !startsWithSpace(rest) {
			continue
		}
		return op, strings.TrimSpace(rest), nil
	}
	return "", "", fmt.Errorf("unknown operator in %q", s)
}

func isWordOperator(op Operator) bool {
	switch op {
	case OpIn, OpNotIn, OpContains, OpStartsWith, OpEndsWith, OpRegex:
		return true
	}
	return false
}

func startsWithSpace(s string) bool { return s[0] == ' ' || s[0] == '\t' }

func parseConditionValue(s string) (any, error) {
	if s == "" {
		return nil, fmt.Errorf("missing value")
	}
	if strings.HasPrefix(s, "[") {
		if !strings.HasSuffix(s, "]") {
			return nil, fmt.Errorf("unterminated list %q", s)
		}
		items := splitListItems(s[1 : len(s)-1])
		vals := make([]any, 0, len(items))
		for _, it := range items {
			v, err := parseScalar(it)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return vals, nil
	}
	return parseScalar(s)
}

func splitListItems(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseScalar(s string) (any, error) {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1], nil
		}
	}
	if s == "true" {
		return true, nil
	}
	if s == "false" {
		return false, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return n, nil
	}
	return s, nil
}
