// Package construct parses plain parsed JSON into a validated
// stepflow.StateMachine. Every mode-mismatch and reference rule is
// checked here, once, at construction time, so executors never need to
// re-check shape.
package construct

import (
	"fmt"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// Build parses raw ASL JSON bytes into a validated StateMachine,
// returning a descriptive error naming the offending field and mode on
// any violation.
func Build(raw []byte) (*stepflow.StateMachine, error) {
	doc, err := jsonvalue.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("construct: parsing state machine: %w", err)
	}
	if !doc.IsObject() {
		return nil, fmt.Errorf("construct: state machine document must be a JSON object")
	}
	return buildMachine(doc, stepflow.QueryLanguageJSONPath)
}

// MustBuild is Build's panicking counterpart, for call sites (tests,
// CLI bootstrapping) that treat a malformed state machine as a
// programmer error rather than recoverable input.
func MustBuild(raw []byte) *stepflow.StateMachine {
	sm, err := Build(raw)
	if err != nil {
		panic(err)
	}
	return sm
}

func buildMachine(doc jsonvalue.Value, inheritedLang stepflow.QueryLanguage) (*stepflow.StateMachine, error) {
	obj := doc.Object()

	lang := inheritedLang
	if qlv, ok := obj.Get("QueryLanguage"); ok && qlv.IsString() {
		lang = stepflow.QueryLanguage(qlv.Str())
	}

	startAtV, ok := obj.Get("StartAt")
	if !ok || !startAtV.IsString() {
		return nil, fmt.Errorf("construct: StartAt is required and must be a string")
	}
	startAt := startAtV.Str()

	statesV, ok := obj.Get("States")
	if !ok || !statesV.IsObject() {
		return nil, fmt.Errorf("construct: States is required and must be an object")
	}

	sm := &stepflow.StateMachine{
		QueryLanguage: lang,
		StartAt:       startAt,
		States:        make(map[string]*stepflow.State, statesV.Object().Len()),
	}
	if c, ok := obj.Get("Comment"); ok && c.IsString() {
		sm.Comment = c.Str()
	}

	for _, name := range statesV.Object().Keys() {
		sv, _ := statesV.Object().Get(name)
		st, err := buildState(name, sv, lang)
		if err != nil {
			return nil, err
		}
		sm.States[name] = st
	}

	if _, ok := sm.States[sm.StartAt]; !ok {
		return nil, fmt.Errorf("construct: StartAt %q does not reference an existing state", sm.StartAt)
	}

	if err := validateReferences(sm); err != nil {
		return nil, err
	}

	return sm, nil
}

// validateReferences checks every Next/Default/Catch.Next resolves to
// a declared state. Unreachable states are not rejected here — an
// unreachable state is a warning, not a construction error — see
// Reachable for callers that want to surface that separately.
func validateReferences(sm *stepflow.StateMachine) error {
	for name, st := range sm.States {
		for _, n := range collectNextRefs(st) {
			if _, ok := sm.States[n]; !ok {
				return fmt.Errorf("construct: state %q references undefined next state %q", name, n)
			}
		}
	}
	return nil
}

func collectNextRefs(st *stepflow.State) []string {
	var refs []string
	if st.Next != "" {
		refs = append(refs, st.Next)
	}
	if st.Type == stepflow.StateTypeChoice {
		if st.Default != "" {
			refs = append(refs, st.Default)
		}
		refs = append(refs, collectChoiceRefs(st.Choices)...)
	}
	for _, c := range st.Catch {
		if c.Next != "" {
			refs = append(refs, c.Next)
		}
	}
	return refs
}

func collectChoiceRefs(choices []stepflow.Choice) []string {
	var refs []string
	for _, c := range choices {
		if c.Next != "" {
			refs = append(refs, c.Next)
		}
		refs = append(refs, collectChoiceRefs(c.And)...)
		refs = append(refs, collectChoiceRefs(c.Or)...)
		if c.Not != nil {
			refs = append(refs, collectChoiceRefs([]stepflow.Choice{*c.Not})...)
		}
	}
	return refs
}

// Reachable reports every state name in sm reachable from StartAt, for
// callers (e.g. the validator) that want to surface the spec's
// non-fatal reachability warning themselves.
func Reachable(sm *stepflow.StateMachine) map[string]bool {
	reached := make(map[string]bool)
	var visit func(string)
	visit = func(name string) {
		if reached[name] {
			return
		}
		st, ok := sm.States[name]
		if !ok {
			return
		}
		reached[name] = true
		for _, n := range collectNextRefs(st) {
			visit(n)
		}
	}
	visit(sm.StartAt)
	return reached
}
