package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// parallelHook runs every Branch state machine against the same input
// concurrently, returning their outputs as an array in declaration
// order — Parallel has no MaxConcurrency field, so every branch is
// launched at once.
type parallelHook struct{}

func (parallelHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	jobs := make([]childJob, len(st.Branches))
	for i, branch := range st.Branches {
		jobs[i] = childJob{sm: branch, input: taskInput, index: i}
	}

	outputs, histories, aerr := rc.drv.runChildren(rc.ec, jobs, len(jobs))
	if aerr != nil {
		return hookOutcome{err: aerr, branches: histories}
	}
	return hookOutcome{value: jsonvalue.Array(outputs), hasValue: true, branches: histories}
}
