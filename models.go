package stepflow

import (
	"time"

	"github.com/stepflow/stepflow/jsonvalue"
)

// RunOutcome is the terminal disposition of an execution, named after
// Step Functions' own execution status values.
type RunOutcome string

const (
	RunOutcomeRunning   RunOutcome = "RUNNING"
	RunOutcomeSucceeded RunOutcome = "SUCCEEDED"
	RunOutcomeFailed    RunOutcome = "FAILED"
	RunOutcomeAborted   RunOutcome = "ABORTED"
	RunOutcomeTimedOut  RunOutcome = "TIMED_OUT"
)

// IsTerminal reports whether o is a final disposition.
func (o RunOutcome) IsTerminal() bool {
	return o != RunOutcomeRunning
}

func (o RunOutcome) String() string { return string(o) }

// StateOutcome is the per-state disposition recorded in a state
// execution's history entry.
type StateOutcome string

const (
	StateOutcomeSucceeded StateOutcome = "SUCCEEDED"
	StateOutcomeFailed    StateOutcome = "FAILED"
	StateOutcomeRetrying  StateOutcome = "RETRYING"
	StateOutcomeCaught    StateOutcome = "CAUGHT"
)

func (s StateOutcome) IsTerminal() bool {
	return s == StateOutcomeSucceeded || s == StateOutcomeFailed
}

func (s StateOutcome) String() string { return string(s) }

// RunResult is returned by the driver at the end of Run: the full
// state transition history plus the final disposition and output (or
// error, on failure).
type RunResult struct {
	ExecutionID string
	Outcome     RunOutcome
	Output      jsonvalue.Value
	Error       *ASLError

	StartedAt  time.Time
	FinishedAt time.Time

	History []StateHistoryEntry
}

// StateHistoryEntry is one entry in a run's audit trail: the state that
// ran, what it saw and produced, and how long it took. MapBranches is
// populated only for Map/Parallel/DistributedMap states, one nested
// history per child execution.
type StateHistoryEntry struct {
	StateName string
	Outcome   StateOutcome

	Input  jsonvalue.Value
	Output jsonvalue.Value
	Error  *ASLError

	EnteredAt time.Time
	ExitedAt  time.Time
	Attempt   int

	// VariablesAfter is a snapshot of the execution context's Assign-scoped
	// variables as they stood immediately after this state ran.
	VariablesAfter jsonvalue.Value

	MapBranches [][]StateHistoryEntry
}

// Duration returns the wall-clock time spent in this state.
func (e StateHistoryEntry) Duration() time.Duration {
	return e.ExitedAt.Sub(e.EnteredAt)
}
