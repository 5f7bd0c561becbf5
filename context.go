package stepflow

import (
	"time"

	"github.com/google/uuid"

	"github.com/stepflow/stepflow/jsonvalue"
)

// ExecutionContext is the simulator's analog of Step Functions' $$
// context object. One instance is created per top-level Run and cloned
// (with isolated Variables) for every Map/Parallel child so that Assign
// writes inside one branch never leak into a sibling.
type ExecutionContext struct {
	ExecutionID   string
	ExecutionName string
	StateMachine  StateMachineMeta
	StartTime     time.Time
	TraceHeader   string

	// CurrentState is refreshed by the driver before every state
	// evaluation so $$.State.* and $$.Map.Item.* reflect the state
	// currently executing.
	CurrentState StateExecutionRecord

	// Variables holds the Assign-scoped variable set ($varName
	// references resolve here). A fresh copy is evaluated in full
	// before being installed, per the "Assign evaluates against the
	// pre-Assign variable set" invariant.
	Variables *jsonvalue.Object
}

// StateMachineMeta identifies the running state machine for $$.StateMachine.
type StateMachineMeta struct {
	ID   string
	Name string
}

// StateExecutionRecord tracks the currently executing state's metadata
// and, when inside a Map iteration, the current item/index.
type StateExecutionRecord struct {
	Name        string
	EnteredTime time.Time
	RetryCount  int

	InMapIteration bool
	MapItemIndex   int
	MapItemValue   jsonvalue.Value
}

// NewExecutionContext creates a root execution context with a fresh
// execution id, matching the teacher's run-id generation convention.
func NewExecutionContext(name, smName string, opts ...RunOption) *ExecutionContext {
	ro := &RunOptions{ExecutionName: name}
	for _, opt := range opts {
		opt(ro)
	}
	traceHeader := ro.TraceHeader
	if traceHeader == "" {
		traceHeader = uuid.NewString()
	}
	return &ExecutionContext{
		ExecutionID:   uuid.NewString(),
		ExecutionName: ro.ExecutionName,
		StateMachine:  StateMachineMeta{Name: smName},
		StartTime:     time.Now(),
		TraceHeader:   traceHeader,
		Variables:     jsonvalue.NewObject(),
	}
}

// CloneForBranch returns a copy of ec with an independently-mutable
// Variables object, for handing to a single Map/Parallel child. The
// clone's CurrentState is reset; the driver fills it in as the branch
// executes its own states.
func (ec *ExecutionContext) CloneForBranch() *ExecutionContext {
	clone := *ec
	clone.Variables = ec.Variables.Clone()
	clone.CurrentState = StateExecutionRecord{}
	return &clone
}

// ToValue renders the context object (Execution, StateMachine, State)
// as a jsonvalue.Value. The engine does not call it: JSONata bindings
// build their own $states.context, and JSONPath "$$" references are
// not resolved.
func (ec *ExecutionContext) ToValue() jsonvalue.Value {
	root := jsonvalue.NewObject()

	exec := jsonvalue.NewObject()
	exec.Set("Id", jsonvalue.String(ec.TraceHeader))
	exec.Set("Name", jsonvalue.String(ec.ExecutionName))
	exec.Set("StartTime", jsonvalue.String(ec.StartTime.UTC().Format(time.RFC3339Nano)))
	root.Set("Execution", jsonvalue.Obj(exec))

	sm := jsonvalue.NewObject()
	sm.Set("Id", jsonvalue.String(ec.StateMachine.ID))
	sm.Set("Name", jsonvalue.String(ec.StateMachine.Name))
	root.Set("StateMachine", jsonvalue.Obj(sm))

	st := jsonvalue.NewObject()
	st.Set("Name", jsonvalue.String(ec.CurrentState.Name))
	st.Set("EnteredTime", jsonvalue.String(ec.CurrentState.EnteredTime.UTC().Format(time.RFC3339Nano)))
	st.Set("RetryCount", jsonvalue.Number(float64(ec.CurrentState.RetryCount)))
	root.Set("State", jsonvalue.Obj(st))

	if ec.CurrentState.InMapIteration {
		m := jsonvalue.NewObject()
		item := jsonvalue.NewObject()
		item.Set("Index", jsonvalue.Number(float64(ec.CurrentState.MapItemIndex)))
		item.Set("Value", ec.CurrentState.MapItemValue)
		m.Set("Item", jsonvalue.Obj(item))
		root.Set("Map", jsonvalue.Obj(m))
	}

	return jsonvalue.Obj(root)
}
