package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/path"
)

// mapHook fans out ItemProcessor over every (possibly ItemSelector-
// transformed) element of the resolved items array, bounded by
// MaxConcurrency, and collects outputs back into declaration order —
// the local, in-process stand-in for a real Map state's per-item Lambda
// fan-out.
type mapHook struct{}

func (mapHook) invoke(rc *runContext, st *stepflow.State, taskInput jsonvalue.Value) hookOutcome {
	items, aerr := resolveMapItems(st, taskInput)
	if aerr != nil {
		return hookOutcome{err: aerr}
	}

	selected := make([]jsonvalue.Value, len(items))
	for i, item := range items {
		v, aerr := applyItemSelector(rc, st, item)
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

	outputs, histories, aerr := rc.drv.runChildren(rc.ec, jobs, maxConcurrency)
	if aerr != nil {
		return hookOutcome{err: aerr, branches: histories}
	}
	return hookOutcome{value: jsonvalue.Array(outputs), hasValue: true, branches: histories}
}

// resolveMapItems reads the array Map/DistributedMap iterates over:
// ItemsPath when set, otherwise the whole input, which must itself be
// an array.
func resolveMapItems(st *stepflow.State, taskInput jsonvalue.Value) ([]jsonvalue.Value, *stepflow.ASLError) {
	src := taskInput
	if st.ItemsPath != "" {
		v, present, err := path.Get(taskInput, st.ItemsPath)
		if err != nil {
			return nil, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
		}
		if !present {
			return nil, stepflow.NewASLError(stepflow.ErrStatesRuntime, "ItemsPath "+st.ItemsPath+" is not present in the input")
		}
		src = v
	}
	if !src.IsArray() {
		return nil, stepflow.NewASLError(stepflow.ErrStatesRuntime, "Map/DistributedMap input must resolve to an array")
	}
	return src.Array(), nil
}

// applyItemSelector transforms one item before it is handed to
// ItemProcessor. Only the item value itself is bound; the item's index
// (Map.Item.Index) is not exposed to ItemSelector expressions.
func applyItemSelector(rc *runContext, st *stepflow.State, item jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if !hasTemplate(st.ItemSelector) {
		return item, nil
	}
	if st.QueryLanguage == stepflow.QueryLanguageJSONata {
		bindings := jsonataBindings(item, jsonvalue.Value{}, false, rc.ec, rc.drv.originalInput)
		v, err := evalJSONataTemplate(st.ItemSelector, item, bindings)
		if err != nil {
			return jsonvalue.Value{}, stepflow.ToASLError(err)
		}
		return v, nil
	}
	v, err := evalJSONPathTemplate(st.ItemSelector, item, rc.ec.Variables)
	if err != nil {
		return jsonvalue.Value{}, stepflow.ToASLError(err)
	}
	return v, nil
}
