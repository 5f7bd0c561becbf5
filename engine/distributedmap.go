package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// distributedMapHook is Map plus three extra capabilities: an
// ItemReader sourcing items from a mock data file instead of the
// state's own input, ItemBatcher grouping items into {Items, BatchInput}
// batches before they reach ItemProcessor, and
// ToleratedFailurePercentage/Count letting a bounded
// number of failed items not fail the whole state. When ResultWriter is
// configured, the hook returns the {ProcessedItemCount, FailedItemCount,
// ResultWriterDetails} summary object instead of the raw output array,
// matching real Step Functions' "large result" mode.
type distributedMapHook struct{}

func (distributedMapHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	items, aerr := resolveDistributedMapItems(rc, st, taskInput)
	if aerr != nil {
		return hookOutcome{err: aerr}
	}

	batches := batchItems(st, items)

	selected := make([]jsonvalue.Value, len(batches))
	for i, b := range batches {
		v, aerr := applyItemSelector(rc, st, b)
		if aerr != nil {
			return hookOutcome{err: aerr}
		}
		selected[i] = v
	}

	jobs := make([]childJob, len(selected))
	for i, v := range selected {
		jobs[i] = childJob{sm: st.ItemProcessor, input: v, index: i, mapItem: true}
	}

	maxConcurrency := rc.drv.config.MaxConcurrency
	if st.HasMaxConcurrency {
		maxConcurrency = st.MaxConcurrency
	}

	outputs, histories, failCount, aerr := rc.drv.runChildrenTolerant(rc.ec, jobs, maxConcurrency, st.ToleratedFailurePercentage, st.ToleratedFailureCount)
	if aerr != nil {
		return hookOutcome{err: aerr, branches: histories}
	}

	if st.ResultWriter != nil {
		summary := jsonvalue.NewObject()
		summary.Set("ProcessedItemCount", jsonvalue.Number(float64(len(outputs))))
		summary.Set("FailedItemCount", jsonvalue.Number(float64(failCount)))
		details := jsonvalue.NewObject()
		details.Set("Bucket", jsonvalue.String(st.ResultWriter.Bucket))
		details.Set("Key", jsonvalue.String(st.ResultWriter.Prefix))
		summary.Set("ResultWriterDetails", jsonvalue.Obj(details))
		return hookOutcome{value: jsonvalue.Obj(summary), hasValue: true, branches: histories}
	}

	return hookOutcome{value: jsonvalue.Array(outputs), hasValue: true, branches: histories}
}

// resolveDistributedMapItems sources items from the mock engine's
// itemReader strategy when an ItemReader is configured, otherwise falls
// back to Map's own resolution (ItemsPath or direct array input).
func resolveDistributedMapItems(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) ([]jsonvalue.Value, *stepflow.ASLError) {
	if st.ItemReader != nil {
		return rc.drv.mocks.ReadItems(st.Name)
	}
	return resolveMapItems(st, taskInput)
}

// batchItems groups items into ItemBatcher-sized batches, each wrapped
// as {Items, BatchInput}; with no ItemBatcher configured, each item is
// its own one-item "batch" passed through unwrapped, same as Map.
func batchItems(st *stepflow.State, items []jsonvalue.Value) []jsonvalue.Value {
	if st.ItemBatcher == nil || st.ItemBatcher.MaxItemsPerBatch <= 0 {
		return items
	}
	size := st.ItemBatcher.MaxItemsPerBatch
	batches := make([]jsonvalue.Value, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		obj := jsonvalue.NewObject()
		obj.Set("Items", jsonvalue.Array(items[i:end]))
		if hasTemplate(st.ItemBatcher.BatchInput) {
			obj.Set("BatchInput", st.ItemBatcher.BatchInput)
		}
		batches = append(batches, jsonvalue.Obj(obj))
	}
	return batches
}
