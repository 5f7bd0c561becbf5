package engine

import (
	"sync"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// childJob describes one sub-machine invocation spawned by Map (many
// jobs over one ItemProcessor, one per item/batch), DistributedMap
// (same, plus possible ItemReader-sourced items), or Parallel (one job
// per Branch, same input repeated across branches).
type childJob struct {
	sm      *stepflow.StateMachine
	input   jsonvalue.Value
	index   int
	mapItem bool
}

// launchChildren runs every job through runMachine, each against an
// isolated clone of parentEC's Variables so a child's Assign writes
// never leak into the parent or a sibling branch, bounded to at most
// maxConcurrency in-flight at once. Jobs are handed a semaphore token
// in slice order before their goroutine is spawned, so launch order
// always matches declaration order; the order in which running
// children reach the mock engine is not fixed when more than one runs
// at once, so a shared stateful mock counter can hand its responses to
// them in any order. Results land at outputs[job.index]/
// histories[job.index] regardless of completion order, which is what
// gives Map and Parallel their declaration/index-ordered output arrays.
func (drv *driver) launchChildren(parentEC *stepflow.ExecutionContext, jobs []childJob, maxConcurrency int) ([]jsonvalue.Value, [][]stepflow.StateHistoryEntry, []*stepflow.ASLError) {
	n := len(jobs)
	outputs := make([]jsonvalue.Value, n)
	histories := make([][]stepflow.StateHistoryEntry, n)
	errs := make([]*stepflow.ASLError, n)

	limit := maxConcurrency
	if limit <= 0 || limit > n {
		limit = n
	}
	if limit <= 0 {
		limit = 1
	}
	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup

	for _, job := range jobs {
		job := job
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			childEC := parentEC.CloneForBranch()
			if job.mapItem {
				childEC.CurrentState.InMapIteration = true
				childEC.CurrentState.MapItemIndex = job.index
				childEC.CurrentState.MapItemValue = job.input
			}

			out, hist, aerr := drv.runMachine(job.sm, childEC, job.input)
			outputs[job.index] = out
			histories[job.index] = hist
			errs[job.index] = aerr
		}()
	}
	wg.Wait()

	return outputs, histories, errs
}

// runChildren is the all-or-nothing fan-out used by Map and Parallel:
// the first uncaught child error (by index, for determinism) fails the
// whole state.
func (drv *driver) runChildren(parentEC *stepflow.ExecutionContext, jobs []childJob, maxConcurrency int) ([]jsonvalue.Value, [][]stepflow.StateHistoryEntry, *stepflow.ASLError) {
	outputs, histories, errs := drv.launchChildren(parentEC, jobs, maxConcurrency)
	for _, e := range errs {
		if e != nil {
			return outputs, histories, e
		}
	}
	return outputs, histories, nil
}

// runChildrenTolerant is DistributedMap's fan-out: up to
// ToleratedFailurePercentage/ToleratedFailureCount child failures are
// absorbed, dropping the failed items' outputs from the result and
// reporting how many failed; exceeding the tolerance fails the whole
// state with the first (by index) offending error.
func (drv *driver) runChildrenTolerant(parentEC *stepflow.ExecutionContext, jobs []childJob, maxConcurrency int, tolerancePercent float64, toleranceCount int) ([]jsonvalue.Value, [][]stepflow.StateHistoryEntry, int, *stepflow.ASLError) {
	outputs, histories, errs := drv.launchChildren(parentEC, jobs, maxConcurrency)

	failCount := 0
	for _, e := range errs {
		if e != nil {
			failCount++
		}
	}

	tolerated := toleranceCount
	if tolerancePercent > 0 {
		if pctAllowed := int(float64(len(jobs)) * tolerancePercent / 100.0); pctAllowed > tolerated {
			tolerated = pctAllowed
		}
	}

	if failCount > tolerated {
		for _, e := range errs {
			if e != nil {
				return outputs, histories, failCount, e
			}
		}
	}

	succeeded := make([]jsonvalue.Value, 0, len(jobs)-failCount)
	for i, e := range errs {
		if e == nil {
			succeeded = append(succeeded, outputs[i])
		}
	}
	return succeeded, histories, failCount, nil
}
