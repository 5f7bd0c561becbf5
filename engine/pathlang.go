// Package engine implements the per-state executors, the data-flow
// pipeline, retry/catch, Assign, and the top-level execution driver.
package engine

import (
	"fmt"
	"strings"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonata"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/path"
)

// evalJSONPathTemplate evaluates a Parameters/ResultSelector-style
// template object against input: keys ending in ".$" are JSONPath
// expressions (or "$<name>" variable references) evaluated against
// input, stripped of the suffix on the output key; all other keys pass
// their literal value through unchanged, recursing into nested
// objects/arrays so templates can nest freely.
func evalJSONPathTemplate(tmpl jsonvalue.Value, input jsonvalue.Value, variables *jsonvalue.Object) (jsonvalue.Value, error) {
	switch tmpl.Kind() {
	case jsonvalue.KindObject:
		out := jsonvalue.NewObject()
		for _, k := range tmpl.Object().Keys() {
			v, _ := tmpl.Object().Get(k)
			if strings.HasSuffix(k, ".$") {
				resolved, err := evalPathOrVariable(v, input, variables)
				if err != nil {
					return jsonvalue.Value{}, err
				}
				out.Set(strings.TrimSuffix(k, ".$"), resolved)
				continue
			}
			nested, err := evalJSONPathTemplate(v, input, variables)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			out.Set(k, nested)
		}
		return jsonvalue.Obj(out), nil
	case jsonvalue.KindArray:
		items := make([]jsonvalue.Value, len(tmpl.Array()))
		for i, v := range tmpl.Array() {
			nested, err := evalJSONPathTemplate(v, input, variables)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			items[i] = nested
		}
		return jsonvalue.Array(items), nil
	default:
		return tmpl, nil
	}
}

// evalPathOrVariable resolves a ".$"-suffixed template value: either a
// "$name" variable reference or a JSONPath expression over input.
func evalPathOrVariable(v jsonvalue.Value, input jsonvalue.Value, variables *jsonvalue.Object) (jsonvalue.Value, error) {
	if !v.IsString() {
		return jsonvalue.Value{}, fmt.Errorf("jsonpath template: %w", stepflow.NewASLError(stepflow.ErrStatesRuntime, ".$ fields must hold a string path"))
	}
	expr := v.Str()
	if strings.HasPrefix(expr, "$$") {
		// Context object reference ($$.Execution.Id etc.) — not supported
		// in JSONPath mode: any path starting with "$$" is reported as a
		// States.Runtime error.
		return jsonvalue.Value{}, fmt.Errorf("jsonpath template: %w", stepflow.NewASLError(stepflow.ErrStatesRuntime, "$$ context references are resolved by the caller"))
	}
	if strings.HasPrefix(expr, "$") && !strings.HasPrefix(expr, "$.") && expr != "$" {
		name := strings.TrimPrefix(expr, "$")
		if variables != nil {
			if val, ok := variables.Get(name); ok {
				return val, nil
			}
		}
		return jsonvalue.Value{}, fmt.Errorf("jsonpath template: %w", stepflow.NewASLError(stepflow.ErrStatesRuntime, fmt.Sprintf("undefined variable %q", name)))
	}
	val, present, err := path.Get(input, expr)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("jsonpath template: %w", stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error()))
	}
	if !present {
		return jsonvalue.Null(), nil
	}
	return val, nil
}

// jsonataBindings builds the $states/$<variable> binding map used for
// every JSONata evaluation in a state.
func jsonataBindings(stateInput, result jsonvalue.Value, hasResult bool, execCtx *stepflow.ExecutionContext, originalInput jsonvalue.Value) map[string]jsonvalue.Value {
	statesObj := jsonvalue.NewObject()
	statesObj.Set("input", stateInput)
	if hasResult {
		statesObj.Set("result", result)
	}
	ctxObj := jsonvalue.NewObject()
	execObj := jsonvalue.NewObject()
	execObj.Set("Input", originalInput)
	ctxObj.Set("Execution", jsonvalue.Obj(execObj))
	statesObj.Set("context", jsonvalue.Obj(ctxObj))

	bindings := map[string]jsonvalue.Value{"states": jsonvalue.Obj(statesObj)}
	if execCtx != nil && execCtx.Variables != nil {
		for _, k := range execCtx.Variables.Keys() {
			v, _ := execCtx.Variables.Get(k)
			bindings[k] = v
		}
	}
	return bindings
}

// evalJSONataExpr compiles (with caching) and evaluates a {% ... %}
// wrapped expression, or a plain literal string when it isn't one.
func evalJSONataExpr(raw string, ctx jsonvalue.Value, bindings map[string]jsonvalue.Value) (jsonvalue.Value, error) {
	inner, ok := jsonata.IsExpression(raw)
	if !ok {
		return jsonvalue.String(raw), nil
	}
	expr, err := jsonata.CompileCached(inner)
	if err != nil {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
	}
	v, err := expr.Eval(ctx, bindings)
	if err != nil {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesRuntime, err.Error())
	}
	return v, nil
}

// evalJSONataTemplate evaluates an Arguments-style template: an object
// whose string leaves may themselves be JSONata expressions, applied
// recursively.
func evalJSONataTemplate(tmpl jsonvalue.Value, ctx jsonvalue.Value, bindings map[string]jsonvalue.Value) (jsonvalue.Value, error) {
	switch tmpl.Kind() {
	case jsonvalue.KindString:
		return evalJSONataExpr(tmpl.Str(), ctx, bindings)
	case jsonvalue.KindObject:
		out := jsonvalue.NewObject()
		for _, k := range tmpl.Object().Keys() {
			v, _ := tmpl.Object().Get(k)
			nested, err := evalJSONataTemplate(v, ctx, bindings)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			out.Set(k, nested)
		}
		return jsonvalue.Obj(out), nil
	case jsonvalue.KindArray:
		items := make([]jsonvalue.Value, len(tmpl.Array()))
		for i, v := range tmpl.Array() {
			nested, err := evalJSONataTemplate(v, ctx, bindings)
			if err != nil {
				return jsonvalue.Value{}, err
			}
			items[i] = nested
		}
		return jsonvalue.Array(items), nil
	default:
		return tmpl, nil
	}
}
