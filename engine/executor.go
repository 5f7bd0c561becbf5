package engine

import (
	"time"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// hookOutcome is what a per-state-type hook hands back to the shared
// pipeline: either a task result (to flow through Assign/ResultSelector/
// ResultPath/Output) or an error (to flow through Retry/Catch), plus an
// optional override of the next state (used only by Choice) and, for
// Map/DistributedMap/Parallel, the nested per-child execution histories.
type hookOutcome struct {
	value    jsonvalue.Value
	hasValue bool
	err      *stepflow.ASLError

	nextOverride    string
	hasNextOverride bool

	branches [][]stepflow.StateHistoryEntry
}

// runContext is what a hook needs to do its work: the driver (mocks,
// config, logger, original input) and the live execution context
// (variables, current-state metadata for $$).
type runContext struct {
	drv *driver
	ec  *stepflow.ExecutionContext
}

// stateHook is the variant-specific piece of a state's execution, the
// "executeState" hook invoked once the shared pipeline has prepared
// the task input. The shared pipeline around it
// (InputPath/Parameters/Arguments before, Assign/ResultSelector/
// ResultPath/OutputPath/Output after, Retry/Catch wrapping the whole
// attempt) lives in executeState below and is identical for every
// variant, matching the base-class/executeStep split the teacher's
// engine.executor.go uses for its own per-step retry loop.
type stateHook interface {
	invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome
}

// newHook is the factory dispatching on the state's Type tag.
func newHook(t stepflow.StateType) stateHook {
	switch t {
	case stepflow.StateTypeTask:
		return taskHook{}
	case stepflow.StateTypeChoice:
		return choiceHook{}
	case stepflow.StateTypePass:
		return passHook{}
	case stepflow.StateTypeWait:
		return waitHook{}
	case stepflow.StateTypeSucceed:
		return succeedHook{}
	case stepflow.StateTypeFail:
		return failHook{}
	case stepflow.StateTypeMap:
		return mapHook{}
	case stepflow.StateTypeDistributedMap:
		return distributedMapHook{}
	case stepflow.StateTypeParallel:
		return parallelHook{}
	default:
		return unknownHook{t}
	}
}

type unknownHook struct{ t stepflow.StateType }

func (h unknownHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	return hookOutcome{err: stepflow.NewASLError(stepflow.ErrStatesRuntime, "unknown state type "+string(h.t))}
}

// matchRetrier returns the first Retry entry whose ErrorEquals matches
// err, or nil if none does.
func matchRetrier(retries []stepflow.Retrier, err *stepflow.ASLError) *stepflow.Retrier {
	for i := range retries {
		if stepflow.MatchesErrorEquals(err, retries[i].ErrorEquals) {
			return &retries[i]
		}
	}
	return nil
}

// matchCatcher returns the first Catch entry whose ErrorEquals matches
// err, or nil if none does.
func matchCatcher(catches []stepflow.Catcher, err *stepflow.ASLError) *stepflow.Catcher {
	for i := range catches {
		if stepflow.MatchesErrorEquals(err, catches[i].ErrorEquals) {
			return &catches[i]
		}
	}
	return nil
}

// attempt runs one try of a state: Parameters/Arguments, the variant
// hook, Assign, and ResultSelector+ResultPath+OutputPath (or Output).
// Any failure along the way — task failure, a bad path expression, a
// broken JSONata expression — surfaces as a single *ASLError so the
// caller's Retry/Catch loop treats them uniformly: a bad Parameters or
// ResultSelector expression fails with States.Runtime and is just as
// retriable/catchable as a task failure.
func (drv *driver) attempt(hook stateHook, st *stepflow.State, ec *stepflow.ExecutionContext, rawInput, postInput jsonvalue.Value) (jsonvalue.Value, string, bool, [][]stepflow.StateHistoryEntry, *stepflow.ASLError) {
	isJSONata := st.QueryLanguage == stepflow.QueryLanguageJSONata

	var taskInput jsonvalue.Value
	var aerr *stepflow.ASLError
	if isJSONata {
		bindings := jsonataBindings(rawInput, jsonvalue.Value{}, false, ec, drv.originalInput)
		taskInput, aerr = applyArguments(st, rawInput, bindings)
	} else {
		taskInput, aerr = applyParameters(st, postInput, ec.Variables)
	}
	if aerr != nil {
		return jsonvalue.Value{}, "", false, nil, aerr
	}

	outcome := hook.invoke(&runContext{drv: drv, ec: ec}, st, taskInput)
	if outcome.err != nil {
		return jsonvalue.Value{}, "", false, outcome.branches, outcome.err
	}

	assigned, aerr := applyAssign(st, taskInput, outcome.value, outcome.hasValue, ec, drv.originalInput)
	if aerr != nil {
		return jsonvalue.Value{}, "", false, outcome.branches, aerr
	}
	commitAssign(ec, assigned)

	var output jsonvalue.Value
	if isJSONata {
		bindings := jsonataBindings(rawInput, outcome.value, true, ec, drv.originalInput)
		output, aerr = applyOutput(st, outcome.value, bindings)
	} else {
		var selected, merged jsonvalue.Value
		selected, aerr = applyResultSelector(st, outcome.value, ec.Variables)
		if aerr == nil {
			merged, aerr = applyResultPath(st, postInput, selected)
		}
		if aerr == nil {
			output, aerr = applyOutputPath(st, merged)
		}
	}
	if aerr != nil {
		return jsonvalue.Value{}, "", false, outcome.branches, aerr
	}

	return output, outcome.nextOverride, outcome.hasNextOverride, outcome.branches, nil
}

// executeState is the shared per-state pipeline: InputPath, the
// Retry-wrapped attempt, Catch on exhaustion, and next-state selection.
// It returns enough detail for the driver to build a StateHistoryEntry.
func (drv *driver) executeState(st *stepflow.State, ec *stepflow.ExecutionContext, rawInput jsonvalue.Value) (jsonvalue.Value, string, bool, stepflow.StateOutcome, *stepflow.ASLError, [][]stepflow.StateHistoryEntry, int) {
	entered := time.Now()
	ec.CurrentState = stepflow.StateExecutionRecord{Name: st.Name, EnteredTime: entered}

	postInput := rawInput
	if st.QueryLanguage != stepflow.QueryLanguageJSONata {
		var aerr *stepflow.ASLError
		postInput, aerr = applyInputPath(st, rawInput)
		if aerr != nil {
			return jsonvalue.Value{}, "", false, stepflow.StateOutcomeFailed, aerr, nil, 0
		}
	}

	hook := newHook(st.Type)

	var (
		output          jsonvalue.Value
		nextOverride    string
		hasNextOverride bool
		branches        [][]stepflow.StateHistoryEntry
		lastErr         *stepflow.ASLError
		attempts        int
	)

	for {
		attempts++
		ec.CurrentState.RetryCount = attempts - 1
		output, nextOverride, hasNextOverride, branches, lastErr = drv.attempt(hook, st, ec, rawInput, postInput)
		if lastErr == nil {
			break
		}
		r := matchRetrier(st.Retry, lastErr)
		if r == nil || attempts > r.MaxAttempts {
			break
		}
		delay := stepflow.CalculateBackoff(time.Duration(r.IntervalSeconds*float64(time.Second)), attempts, r.BackoffRate, stepflow.BackoffExponential, drv.config.RetryMaxDelay)
		stepflow.LogStateRetrying(drv.logger, st.Name, attempts, delay, lastErr.ASLErrorName)
		if delay > 0 {
			time.Sleep(delay)
		}
	}

	if lastErr != nil {
		c := matchCatcher(st.Catch, lastErr)
		if c == nil {
			stepflow.LogStateFailed(drv.logger, st.Name, lastErr)
			return jsonvalue.Value{}, "", false, stepflow.StateOutcomeFailed, lastErr, branches, attempts
		}
		stepflow.LogStateCaught(drv.logger, st.Name, lastErr.ASLErrorName, c.Next)
		errObj := errorPayload(lastErr)
		var caughtOutput jsonvalue.Value
		var aerr *stepflow.ASLError
		if st.QueryLanguage == stepflow.QueryLanguageJSONata {
			caughtOutput = errObj
		} else {
			caughtOutput, aerr = applyCatchResultPath(*c, postInput, errObj)
			if aerr == nil {
				caughtOutput, aerr = applyOutputPath(st, caughtOutput)
			}
		}
		if aerr != nil {
			return jsonvalue.Value{}, "", false, stepflow.StateOutcomeFailed, aerr, branches, attempts
		}
		return caughtOutput, c.Next, true, stepflow.StateOutcomeCaught, nil, branches, attempts
	}

	next := nextOverride
	hasNext := hasNextOverride
	if !hasNextOverride {
		if st.End || st.Type.IsTerminal() {
			hasNext = false
		} else {
			next = st.Next
			hasNext = true
		}
	}
	stepflow.LogStateSucceeded(drv.logger, st.Name, time.Since(entered))
	return output, next, hasNext, stepflow.StateOutcomeSucceeded, nil, branches, attempts
}
