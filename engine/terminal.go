package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// succeedHook passes its input through unchanged; Succeed's terminal
// status comes from StateType.IsTerminal() in executeState, not from
// anything the hook returns.
type succeedHook struct{}

func (succeedHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	return hookOutcome{value: taskInput, hasValue: true}
}

// failHook always raises an error, built from the state's Error/Cause
// fields taken as literal strings in both query languages (JSONata
// expressions in them are not evaluated), defaulting to States.Failed
// and "State failed" — Fail has no Resource, no Retry, no Catch of its own,
// but reuses the same executeState plumbing a Task failure would.
type failHook struct{}

func (failHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	name := st.ErrorString
	if name == "" {
		name = stepflow.ErrStatesFailed
	}
	cause := st.Cause
	if cause == "" {
		cause = "State failed"
	}
	return hookOutcome{err: stepflow.NewASLError(name, cause)}
}
