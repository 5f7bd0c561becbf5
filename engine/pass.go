package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// passHook returns its static Result when one is configured, otherwise
// passes taskInput through untouched.
type passHook struct{}

func (passHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	if hasTemplate(st.Result) {
		return hookOutcome{value: st.Result, hasValue: true}
	}
	return hookOutcome{value: taskInput, hasValue: true}
}
