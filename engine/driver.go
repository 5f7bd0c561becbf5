package engine

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/mock"
)

// driver is the execution-wide state every state evaluation shares: the
// mock dispatch engine, the resolved step/concurrency limits, a logger,
// the snapshot of the whole execution's original input ($$.Execution.Input
// never changes once a run starts), and a mutex-guarded step counter so
// concurrent Map/Parallel children can't race past the max-step guard —
// the direct generalization of the teacher's Engine (engine/engine.go),
// minus the WorkflowStore seam this simulator has no use for.
type driver struct {
	mocks         *mock.Engine
	config        stepflow.ExecutionConfig
	logger        zerolog.Logger
	originalInput jsonvalue.Value

	stepsMu sync.Mutex
	steps   int
}

// defaultLogger mirrors the teacher's NewEngine default: pretty console
// output at Info level. RunWithConfig always uses this logger; there is
// no option to pass a different one.
func defaultLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
}

// incrStep bumps the shared step counter and reports whether the run is
// still within its MaxSteps ceiling (<=0 means unbounded).
func (drv *driver) incrStep() (int, bool) {
	drv.stepsMu.Lock()
	defer drv.stepsMu.Unlock()
	drv.steps++
	return drv.steps, drv.config.MaxSteps <= 0 || drv.steps <= drv.config.MaxSteps
}

// Run executes sm against input using mocks, with stepflow.DefaultExecutionConfig.
func Run(sm *stepflow.StateMachine, input jsonvalue.Value, mocks *mock.Engine, opts ...stepflow.RunOption) (*stepflow.RunResult, error) {
	return RunWithConfig(sm, input, mocks, stepflow.DefaultExecutionConfig, opts...)
}

// RunWithConfig executes sm against input using mocks and the given
// ExecutionConfig, returning the full result envelope for the run.
func RunWithConfig(sm *stepflow.StateMachine, input jsonvalue.Value, mocks *mock.Engine, config stepflow.ExecutionConfig, opts ...stepflow.RunOption) (*stepflow.RunResult, error) {
	ro := &stepflow.RunOptions{}
	for _, o := range opts {
		o(ro)
	}
	if mocks == nil {
		if m, ok := ro.Mocks.(*mock.Engine); ok {
			mocks = m
		}
	}
	if mocks == nil {
		mocks = mock.NewEngine(nil, nil)
	}

	ec := stepflow.NewExecutionContext(ro.ExecutionName, "", opts...)
	drv := &driver{mocks: mocks, config: config, logger: defaultLogger(), originalInput: input}

	started := time.Now()
	stepflow.LogExecutionStarted(drv.logger, ec.ExecutionID, ec.StateMachine.Name)

	output, history, aslErr := drv.runMachine(sm, ec, input)

	result := &stepflow.RunResult{
		ExecutionID: ec.ExecutionID,
		StartedAt:   started,
		FinishedAt:  time.Now(),
		History:     history,
	}
	if aslErr != nil {
		result.Outcome = stepflow.RunOutcomeFailed
		result.Error = aslErr
		stepflow.LogExecutionFailed(drv.logger, ec.ExecutionID, aslErr)
	} else {
		result.Outcome = stepflow.RunOutcomeSucceeded
		result.Output = output
		stepflow.LogExecutionSucceeded(drv.logger, ec.ExecutionID, result.FinishedAt.Sub(started))
	}
	return result, nil
}

// runMachine is the core transition loop: look up the
// current state, run it through executeState, append to the history,
// follow Next until a terminal state or an uncaught error. It is used
// both for the top-level run and, recursively with a cloned
// ExecutionContext, for every Map iteration / Parallel branch /
// DistributedMap item, which is why it takes sm and ec as parameters
// instead of reading them off the driver.
func (drv *driver) runMachine(sm *stepflow.StateMachine, ec *stepflow.ExecutionContext, input jsonvalue.Value) (jsonvalue.Value, []stepflow.StateHistoryEntry, *stepflow.ASLError) {
	current := sm.StartAt
	value := input
	var history []stepflow.StateHistoryEntry

	for {
		n, ok := drv.incrStep()
		if !ok {
			return jsonvalue.Value{}, history, stepflow.NewASLError(stepflow.ErrStatesRuntime,
				fmt.Sprintf("execution exceeded max steps (%d) at step %d", drv.config.MaxSteps, n))
		}

		st, ok := sm.States[current]
		if !ok {
			return jsonvalue.Value{}, history, stepflow.NewASLError(stepflow.ErrStatesRuntime,
				fmt.Sprintf("state %q not found in state machine", current))
		}
		stepflow.LogStateEntered(drv.logger, st.Name)

		entered := time.Now()
		output, next, hasNext, outcome, aslErr, branches, attempts := drv.executeState(st, ec, value)
		exited := time.Now()

		history = append(history, stepflow.StateHistoryEntry{
			StateName:      st.Name,
			Outcome:        outcome,
			Input:          value,
			Output:         output,
			Error:          aslErr,
			EnteredAt:      entered,
			ExitedAt:       exited,
			Attempt:        attempts,
			VariablesAfter: jsonvalue.Obj(ec.Variables.Clone()),
			MapBranches:    branches,
		})

		if aslErr != nil {
			return jsonvalue.Value{}, history, aslErr
		}
		if !hasNext {
			return output, history, nil
		}
		current = next
		value = output
	}
}
