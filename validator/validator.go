// Package validator implements the mock/test file linter: shape and
// reference checks over a mock or test file against the state machine
// it targets, surfacing "did you mean" suggestions
// for misspelled state names the way a real linter's reference
// checker would.
package validator

import (
	"fmt"

	"github.com/agext/levenshtein"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/mock"
	"github.com/stepflow/stepflow/testfile"
)

// Level names the severity of an Issue.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Issue is one finding from validating a mock/test file against a
// state machine.
type Issue struct {
	Level      Level
	Message    string
	Suggestion string
}

const lambdaInvokeResource = "arn:aws:states:::lambda:invoke"

func isLambdaResource(resource string) bool {
	return resource == lambdaInvokeResource
}

// ValidateMocks checks a slice of mock.Mock definitions against sm,
// returning every Issue found. No single bad mock short-circuits the
// rest of the checks.
func ValidateMocks(sm *stepflow.StateMachine, mocks []*mock.Mock) []Issue {
	var issues []Issue
	stateNames := stateNameList(sm)
	seen := make(map[string]bool, len(mocks))

	for _, m := range mocks {
		if seen[m.State] {
			issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("duplicate mock for state %q", m.State)})
		}
		seen[m.State] = true

		st, ok := sm.States[m.State]
		if !ok {
			issues = append(issues, unknownStateIssue(m.State, stateNames))
			continue
		}

		if st.Type != stepflow.StateTypeTask {
			issues = append(issues, Issue{Level: LevelWarning, Message: fmt.Sprintf("state %q is mocked but is not a Task state (type %s)", m.State, st.Type)})
		}

		if isLambdaResource(st.Resource) && m.Type == mock.StrategyFixed {
			if !hasPayloadWrapper(m.Response) {
				issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("mock for Lambda-invoke state %q must wrap its response in \"Payload\"", m.State)})
			}
		}
		if isLambdaResource(st.Resource) && m.Type == mock.StrategyConditional {
			for i, c := range m.Conditions {
				if !hasPayloadWrapper(c.Response) {
					issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("mock for Lambda-invoke state %q, condition %d, must wrap its response in \"Payload\"", m.State, i)})
				}
			}
		}

		if (st.Type == stepflow.StateTypeMap || st.Type == stepflow.StateTypeDistributedMap) && st.ResultWriter == nil {
			if m.Type == mock.StrategyFixed && !m.Response.IsArray() {
				issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("mock for Map/DistributedMap state %q must return an array", m.State)})
			}
		}
	}

	return issues
}

// ValidateTestFile checks a parsed testfile.File against sm, covering
// every TestCase's expectedOutput/stateExpectations state references
// plus the outputMatching/hardcoded-timestamp/JSONata-Payload checks.
func ValidateTestFile(sm *stepflow.StateMachine, tf *testfile.File) []Issue {
	var issues []Issue
	stateNames := stateNameList(sm)

	for _, tc := range tf.TestCases {
		if tc.OutputMatching == testfile.MatchExact {
			issues = append(issues, Issue{Level: LevelWarning, Message: fmt.Sprintf("test case %q uses outputMatching: exact, which is brittle against ASL output shape changes", tc.Name)})
		}

		for _, name := range tc.ExpectedPath {
			if _, ok := sm.States[name]; !ok {
				issues = append(issues, unknownStateIssue(name, stateNames))
			}
		}

		for _, se := range tc.StateExpectations {
			if _, ok := sm.States[se.State]; !ok {
				issues = append(issues, unknownStateIssue(se.State, stateNames))
				continue
			}
			if se.HasOutput && containsHardcodedTimestamp(se.Output) {
				issues = append(issues, Issue{Level: LevelWarning, Message: fmt.Sprintf("state %q expectation contains a hardcoded timestamp-shaped string; prefer a looser assertion", se.State)})
			}
		}

		if tc.HasExpectedOutput {
			if containsHardcodedTimestamp(tc.ExpectedOutput) {
				issues = append(issues, Issue{Level: LevelWarning, Message: fmt.Sprintf("test case %q expectedOutput contains a hardcoded timestamp-shaped string", tc.Name)})
			}
			if sm.QueryLanguage == stepflow.QueryLanguageJSONata && hasPayloadWrapper(tc.ExpectedOutput) {
				issues = append(issues, Issue{Level: LevelError, Message: fmt.Sprintf("test case %q expects a \"Payload\" wrapper in JSONata Output, which unwraps $states.result.Payload itself", tc.Name)})
			}
		}
	}

	return issues
}

func unknownStateIssue(name string, stateNames []string) Issue {
	suggestion := bestSuggestion(name, stateNames)
	msg := fmt.Sprintf("unknown state %q", name)
	return Issue{Level: LevelError, Message: msg, Suggestion: suggestion}
}

// bestSuggestion returns the closest known state name to name by
// Levenshtein distance, or "" if nothing is close enough to be useful.
func bestSuggestion(name string, candidates []string) string {
	best := ""
	bestDist := -1
	for _, c := range candidates {
		d := levenshtein.Distance(name, c, nil)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = c
		}
	}
	if bestDist < 0 || bestDist > len(name)/2+2 {
		return ""
	}
	return best
}

func stateNameList(sm *stepflow.StateMachine) []string {
	names := make([]string, 0, len(sm.States))
	for n := range sm.States {
		names = append(names, n)
	}
	return names
}

func hasPayloadWrapper(v jsonvalue.Value) bool {
	if !v.IsObject() {
		return false
	}
	_, ok := v.Object().Get("Payload")
	return ok
}

// containsHardcodedTimestamp reports whether v contains a string value
// shaped like an RFC3339 timestamp anywhere in its tree, a loose
// heuristic ("YYYY-MM-DDTHH:MM" prefix shape") good enough to flag
// obviously-brittle fixtures without a full timestamp grammar.
func containsHardcodedTimestamp(v jsonvalue.Value) bool {
	switch v.Kind() {
	case jsonvalue.KindString:
		return looksLikeTimestamp(v.Str())
	case jsonvalue.KindArray:
		for _, e := range v.Array() {
			if containsHardcodedTimestamp(e) {
				return true
			}
		}
	case jsonvalue.KindObject:
		for _, k := range v.Object().Keys() {
			e, _ := v.Object().Get(k)
			if containsHardcodedTimestamp(e) {
				return true
			}
		}
	}
	return false
}

func looksLikeTimestamp(s string) bool {
	if len(s) < len("2006-01-02T15:04") {
		return false
	}
	return s[4] == '-' && s[7] == '-' && s[10] == 'T' && s[13] == ':'
}
