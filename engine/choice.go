package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/path"
)

// choiceHook evaluates Choices in declaration order, returning the Next
// of the first match (or Default when none matches); it never produces
// a task result of its own, just the input passed through plus a
// nextOverride, mirroring the teacher's condition-edge traversal in
// engine/traverser.go generalized from a DAG edge predicate to ASL's
// richer comparator/boolean-combinator grammar.
type choiceHook struct{}

func (choiceHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	if st.QueryLanguage == stepflow.QueryLanguageJSONata {
		bindings := jsonataBindings(taskInput, jsonvalue.Value{}, false, rc.ec, rc.drv.originalInput)
		for _, c := range st.Choices {
			v, err := evalJSONataExpr(c.Condition, taskInput, bindings)
			if err != nil {
				return hookOutcome{err: stepflow.ToASLError(err)}
			}
			if v.IsBool() && v.Bool() {
				return hookOutcome{value: taskInput, hasValue: true, nextOverride: c.Next, hasNextOverride: true}
			}
		}
		return choiceDefault(st, taskInput)
	}

	for _, c := range st.Choices {
		matched, err := evalChoice(c, taskInput, rc.ec.Variables)
		if err != nil {
			return hookOutcome{err: stepflow.ToASLError(err)}
		}
		if matched {
			return hookOutcome{value: taskInput, hasValue: true, nextOverride: c.Next, hasNextOverride: true}
		}
	}
	return choiceDefault(st, taskInput)
}

func choiceDefault(st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	if st.Default == "" {
		return hookOutcome{err: stepflow.NewASLError(stepflow.ErrStatesRuntime, "no Choice rule matched and no Default given")}
	}
	return hookOutcome{value: taskInput, hasValue: true, nextOverride: st.Default, hasNextOverride: true}
}

// evalChoice evaluates one JSONPath-mode Choice rule: a boolean
// combinator (And/Or/Not) recurses into its children; a leaf rule reads
// Variable out of input and applies Comparator against either the
// static Value or, for a "...Path"-suffixed comparator, the value found
// at ValuePath.
func evalChoice(c stepflow.Choice, input jsonvalue.Value, variables *jsonvalue.Object) (bool, error) {
	if len(c.And) > 0 {
		for _, sub := range c.And {
			m, err := evalChoice(sub, input, variables)
			if err != nil || !m {
				return false, err
			}
		}
		return true, nil
	}
	if len(c.Or) > 0 {
		for _, sub := range c.Or {
			m, err := evalChoice(sub, input, variables)
			if err != nil {
				return false, err
			}
			if m {
				return true, nil
			}
		}
		return false, nil
	}
	if c.Not != nil {
		m, err := evalChoice(*c.Not, input, variables)
		if err != nil {
			return false, err
		}
		return !m, nil
	}

	val, present, err := path.Get(input, c.Variable)
	if err != nil {
		return false, err
	}

	switch c.Comparator {
	case "IsPresent":
		return present == c.Value.Bool(), nil
	case "IsNull":
		if !present {
			return false, nil
		}
		return val.IsNull() == c.Value.Bool(), nil
	case "IsNumeric":
		if !present {
			return false, nil
		}
		return val.IsNumber() == c.Value.Bool(), nil
	case "IsString":
		if !present {
			return false, nil
		}
		return val.IsString() == c.Value.Bool(), nil
	case "IsBoolean":
		if !present {
			return false, nil
		}
		return val.IsBool() == c.Value.Bool(), nil
	case "IsTimestamp":
		if !present {
			return false, nil
		}
		return (val.IsString() && isTimestamp(val.Str())) == c.Value.Bool(), nil
	}

	if !present {
		return false, nil
	}

	cmp := c.Comparator
	rhs := c.Value
	if c.ValuePath != "" {
		rv, rpresent, err := path.Get(input, c.ValuePath)
		if err != nil {
			return false, err
		}
		if !rpresent {
			return false, nil
		}
		rhs = rv
		cmp = strings.TrimSuffix(cmp, "Path")
	}

	switch {
	case strings.HasPrefix(cmp, "String"):
		return compareStrings(cmp, val, rhs)
	case strings.HasPrefix(cmp, "Numeric"):
		return compareNumerics(cmp, val, rhs)
	case strings.HasPrefix(cmp, "Boolean"):
		return compareBooleans(cmp, val, rhs)
	case strings.HasPrefix(cmp, "Timestamp"):
		return compareTimestamps(cmp, val, rhs)
	}
	return false, fmt.Errorf("choice: unknown comparator %q", c.Comparator)
}

func compareStrings(cmp string, val, rhs jsonvalue.Value) (bool, error) {
	if cmp == "StringMatches" {
		if !val.IsString() || !rhs.IsString() {
			return false, nil
		}
		return matchStringGlob(rhs.Str(), val.Str()), nil
	}
	if !val.IsString() || !rhs.IsString() {
		return false, nil
	}
	a, b := val.Str(), rhs.Str()
	switch cmp {
	case "StringEquals":
		return a == b, nil
	case "StringLessThan":
		return a < b, nil
	case "StringGreaterThan":
		return a > b, nil
	case "StringLessThanEquals":
		return a <= b, nil
	case "StringGreaterThanEquals":
		return a >= b, nil
	}
	return false, fmt.Errorf("choice: unknown string comparator %q", cmp)
}

func compareNumerics(cmp string, val, rhs jsonvalue.Value) (bool, error) {
	if !val.IsNumber() || !rhs.IsNumber() {
		return false, nil
	}
	a, b := val.Number(), rhs.Number()
	switch cmp {
	case "NumericEquals":
		return a == b, nil
	case "NumericLessThan":
		return a < b, nil
	case "NumericGreaterThan":
		return a > b, nil
	case "NumericLessThanEquals":
		return a <= b, nil
	case "NumericGreaterThanEquals":
		return a >= b, nil
	}
	return false, fmt.Errorf("choice: unknown numeric comparator %q", cmp)
}

func compareBooleans(cmp string, val, rhs jsonvalue.Value) (bool, error) {
	if cmp != "BooleanEquals" {
		return false, fmt.Errorf("choice: unknown boolean comparator %q", cmp)
	}
	if !val.IsBool() || !rhs.IsBool() {
		return false, nil
	}
	return val.Bool() == rhs.Bool(), nil
}

func compareTimestamps(cmp string, val, rhs jsonvalue.Value) (bool, error) {
	if !val.IsString() || !rhs.IsString() {
		return false, nil
	}
	a, err := time.Parse(time.RFC3339, val.Str())
	if err != nil {
		return false, nil
	}
	b, err := time.Parse(time.RFC3339, rhs.Str())
	if err != nil {
		return false, nil
	}
	switch cmp {
	case "TimestampEquals":
		return a.Equal(b), nil
	case "TimestampLessThan":
		return a.Before(b), nil
	case "TimestampGreaterThan":
		return a.After(b), nil
	case "TimestampLessThanEquals":
		return a.Before(b) || a.Equal(b), nil
	case "TimestampGreaterThanEquals":
		return a.After(b) || a.Equal(b), nil
	}
	return false, fmt.Errorf("choice: unknown timestamp comparator %q", cmp)
}

func isTimestamp(s string) bool {
	_, err := time.Parse(time.RFC3339, s)
	return err == nil
}

// matchStringGlob implements StringMatches' single-character-class
// wildcard grammar: "*" matches any run of characters, "\*" matches a
// literal asterisk. No other metacharacters are special.
func matchStringGlob(pattern, s string) bool {
	segs, hasLeadingStar, hasTrailingStar := splitGlob(pattern)
	if len(segs) == 0 {
		return s == ""
	}

	pos := 0
	for i, seg := range segs {
		if seg == "" {
			continue
		}
		if i == 0 && !hasLeadingStar {
			if !strings.HasPrefix(s[pos:], seg) {
				return false
			}
			pos += len(seg)
			continue
		}
		if i == len(segs)-1 && !hasTrailingStar {
			return strings.HasSuffix(s[pos:], seg)
		}
		idx := strings.Index(s[pos:], seg)
		if idx < 0 {
			return false
		}
		pos += idx + len(seg)
	}
	return hasTrailingStar || pos == len(s)
}

// splitGlob splits pattern on unescaped '*' into literal segments,
// unescaping "\*" to "*" within each segment.
func splitGlob(pattern string) (segs []string, leadingStar, trailingStar bool) {
	var cur strings.Builder
	runes := []rune(pattern)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 < len(runes) && runes[i+1] == '*' {
				cur.WriteRune('*')
				i++
			} else {
				cur.WriteRune(runes[i])
			}
		case '*':
			segs = append(segs, cur.String())
			cur.Reset()
			trailingStar = i == len(runes)-1
		default:
			cur.WriteRune(runes[i])
		}
	}
	segs = append(segs, cur.String())
	leadingStar = len(pattern) > 0 && runes[0] == '*'
	return segs, leadingStar, trailingStar
}
