package engine

import (
	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/path"
)

// hasTemplate reports whether a Parameters/ResultSelector/Arguments/
// Assign field was actually present on the state. construct never sets
// these fields to anything but a JSON-null zero Value when absent, so
// presence is "not the null kind" — a state that legitimately wants to
// pass `null` through one of these templates is indistinguishable from
// "unset" here, which matches every real ASL document (none sets them
// to a literal null; it would be pointless).
func hasTemplate(v jsonvalue.Value) bool {
	return v.Kind() != jsonvalue.KindNull
}

// applyInputPath resolves a state's effective input under JSONPath
// mode: InputPath unset defaults to "$" (pass through); an explicit
// null discards the input entirely (replaced by {}); otherwise it
// reads the configured path out of rawInput.
func applyInputPath(st *stepflow.State, rawInput jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if !st.HasInputPath {
		return rawInput, nil
	}
	if st.InputPathIsNull {
		return jsonvalue.Obj(jsonvalue.NewObject()), nil
	}
	v, present, err := path.Get(rawInput, st.InputPath)
	if err != nil {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
	}
	if !present {
		return jsonvalue.Null(), nil
	}
	return v, nil
}

// applyOutputPath resolves a JSONPath state's final output out of the
// post-ResultPath merged value.
func applyOutputPath(st *stepflow.State, merged jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if !st.HasOutputPath {
		return merged, nil
	}
	if st.OutputPathIsNull {
		return jsonvalue.Obj(jsonvalue.NewObject()), nil
	}
	v, present, err := path.Get(merged, st.OutputPath)
	if err != nil {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
	}
	if !present {
		return jsonvalue.Null(), nil
	}
	return v, nil
}

// applyParameters evaluates a JSONPath-mode Parameters template against
// postInput, falling back to passthrough when Parameters is unset.
func applyParameters(st *stepflow.State, postInput jsonvalue.Value, variables *jsonvalue.Object) (jsonvalue.Value, *stepflow.ASLError) {
	if !hasTemplate(st.Parameters) {
		return postInput, nil
	}
	v, err := evalJSONPathTemplate(st.Parameters, postInput, variables)
	if err != nil {
		return jsonvalue.Value{}, stepflow.ToASLError(err)
	}
	return v, nil
}

// applyResultSelector evaluates a JSONPath-mode ResultSelector template
// against the task result, falling back to passthrough when unset.
func applyResultSelector(st *stepflow.State, result jsonvalue.Value, variables *jsonvalue.Object) (jsonvalue.Value, *stepflow.ASLError) {
	if !hasTemplate(st.ResultSelector) {
		return result, nil
	}
	v, err := evalJSONPathTemplate(st.ResultSelector, result, variables)
	if err != nil {
		return jsonvalue.Value{}, stepflow.ToASLError(err)
	}
	return v, nil
}

// applyResultPath merges selected into postInput per ResultPath's three
// shapes: unset ("$", full replace), explicit null (discard selected,
// keep postInput untouched), or a concrete path (merge at that path).
func applyResultPath(st *stepflow.State, postInput, selected jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if !st.HasResultPath {
		return selected, nil
	}
	if st.ResultPath == "" {
		return postInput, nil
	}
	merged, err := path.Set(postInput, st.ResultPath, selected)
	if err != nil {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
	}
	return merged, nil
}

// applyCatchResultPath writes an error payload at a Catcher's ResultPath
// (JSONPath mode only). An empty ResultPath, whether unset or null,
// means "$": the error payload replaces the input. Unlike
// applyResultPath, there is no discard case.
func applyCatchResultPath(c stepflow.Catcher, postInput, errPayload jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if c.ResultPath == "" {
		return errPayload, nil
	}
	merged, err := path.Set(postInput, c.ResultPath, errPayload)
	if err != nil {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
	}
	return merged, nil
}

// applyArguments evaluates a JSONata-mode Arguments template against
// rawInput, falling back to passthrough when Arguments is unset.
func applyArguments(st *stepflow.State, rawInput jsonvalue.Value, bindings map[string]jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if !hasTemplate(st.Arguments) {
		return rawInput, nil
	}
	v, err := evalJSONataTemplate(st.Arguments, rawInput, bindings)
	if err != nil {
		return jsonvalue.Value{}, stepflow.ToASLError(err)
	}
	return v, nil
}

// applyOutput evaluates a JSONata-mode Output expression against the
// task result, passing the raw result through unchanged when Output is
// unset.
func applyOutput(st *stepflow.State, result jsonvalue.Value, bindings map[string]jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	if st.Output == "" {
		return result, nil
	}
	v, err := evalJSONataExpr(st.Output, result, bindings)
	if err != nil {
		return jsonvalue.Value{}, stepflow.ToASLError(err)
	}
	return v, nil
}

// errorPayload renders an ASLError as the {Error, Cause} object ASL
// writes at a Catcher's ResultPath.
func errorPayload(err *stepflow.ASLError) jsonvalue.Value {
	obj := jsonvalue.NewObject()
	obj.Set("Error", jsonvalue.String(err.ASLErrorName))
	obj.Set("Cause", jsonvalue.String(err.Cause))
	return jsonvalue.Obj(obj)
}

// applyAssign evaluates a state's Assign template against a snapshot of
// (stateInput, result, variables) and returns the fully-resolved set of
// new bindings — the caller commits them into ExecutionContext.Variables
// only after every right-hand side has been evaluated, so that
// "Assign: {x.$: $a, nextX.$: $x}" observes the pre-assignment value of
// x for nextX.
func applyAssign(st *stepflow.State, stateInput, result jsonvalue.Value, hasResult bool, ec *stepflow.ExecutionContext, originalInput jsonvalue.Value) (*jsonvalue.Object, *stepflow.ASLError) {
	if !hasTemplate(st.Assign) || !st.Assign.IsObject() {
		return jsonvalue.NewObject(), nil
	}
	if st.QueryLanguage == stepflow.QueryLanguageJSONata {
		bindings := jsonataBindings(stateInput, result, hasResult, ec, originalInput)
		v, err := evalJSONataTemplate(st.Assign, stateInput, bindings)
		if err != nil {
			return nil, stepflow.ToASLError(err)
		}
		if !v.IsObject() {
			return jsonvalue.NewObject(), nil
		}
		return v.Object(), nil
	}
	v, err := evalJSONPathTemplate(st.Assign, stateInput, ec.Variables)
	if err != nil {
		return nil, stepflow.ToASLError(err)
	}
	if !v.IsObject() {
		return jsonvalue.NewObject(), nil
	}
	return v.Object(), nil
}

// commitAssign merges freshly-resolved bindings into the execution
// context's live variable set.
func commitAssign(ec *stepflow.ExecutionContext, assigned *jsonvalue.Object) {
	for _, k := range assigned.Keys() {
		v, _ := assigned.Get(k)
		ec.Variables.Set(k, v)
	}
}
