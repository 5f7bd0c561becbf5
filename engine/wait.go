package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// waitHook simulates Wait without ever actually sleeping for
// Seconds/SecondsPath/Timestamp/TimestampPath: it is a recorded no-op so
// test suites stay fast and deterministic, passing its input straight
// through.
type waitHook struct{}

func (waitHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	return hookOutcome{value: taskInput, hasValue: true}
}
