package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// taskHook is the only hook that ever leaves the process: it dispatches
// through the driver's mock.Engine instead of making a real service
// call, the simulator's substitute for the teacher's HTTP/queue-backed
// step execution in engine/executor.go.
type taskHook struct{}

func (taskHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	stepflow.LogMockInvoked(rc.drv.logger, st.Resource, "task")
	result, aslErr := rc.drv.mocks.Invoke(st.Name, st.Resource, taskInput)
	if aslErr != nil {
		return hookOutcome{err: aslErr}
	}
	return hookOutcome{value: result, hasValue: true}
}
