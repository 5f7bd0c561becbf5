package jsonata

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/stepflow/stepflow/jsonvalue"
)

// Expression is a compiled JSONata expression, safe for concurrent
// reuse across evaluations — mirroring the "compile once, evaluate
// many times" shape of the connector this package is grounded on.
type Expression struct {
	src string
	ast *node
}

// Compile parses src (the text between {% and %}, not including the
// delimiters) into a reusable Expression.
func Compile(src string) (*Expression, error) {
	ast, err := parse(strings.TrimSpace(src))
	if err != nil {
		return nil, fmt.Errorf("jsonata: compiling %q: %w", src, err)
	}
	return &Expression{src: src, ast: ast}, nil
}

var compileCache sync.Map // string -> *Expression

// CompileCached is Compile with a process-wide cache keyed by source
// text, since the same field template is typically re-evaluated once
// per Map/Parallel iteration.
func CompileCached(src string) (*Expression, error) {
	if cached, ok := compileCache.Load(src); ok {
		return cached.(*Expression), nil
	}
	expr, err := Compile(src)
	if err != nil {
		return nil, err
	}
	compileCache.Store(src, expr)
	return expr, nil
}

// IsExpression reports whether s is a JSONata expression wrapped in
// {% ... %}, and returns the inner text when it is.
func IsExpression(s string) (inner string, ok bool) {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "{%") && strings.HasSuffix(t, "%}") {
		return strings.TrimSpace(t[2 : len(t)-2]), true
	}
	return "", false
}

// Eval evaluates the expression against ctx (the "$" context value,
// usually the state's effective input) with the given variable
// bindings (populated by the caller with $states and any $-prefixed
// user variables).
func (e *Expression) Eval(ctx jsonvalue.Value, bindings map[string]jsonvalue.Value) (jsonvalue.Value, error) {
	v, _, err := evalNode(e.ast, ctx, bindings)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return v, nil
}

func evalNode(n *node, ctx jsonvalue.Value, vars map[string]jsonvalue.Value) (jsonvalue.Value, bool, error) {
	switch n.kind {
	case nodeNumber:
		return jsonvalue.Number(n.num), true, nil
	case nodeString:
		return jsonvalue.String(n.str), true, nil
	case nodeBool:
		return jsonvalue.Bool(n.num == 1), true, nil
	case nodeNull:
		return jsonvalue.Null(), true, nil
	case nodeContext:
		return ctx, true, nil
	case nodeVariable:
		v, ok := vars[n.name]
		if !ok {
			return jsonvalue.Value{}, false, nil
		}
		return v, true, nil
	case nodeField:
		return navigate(ctx, n.field)
	case nodePath:
		baseVal, present, err := evalNode(n.base, ctx, vars)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if !present {
			return jsonvalue.Value{}, false, nil
		}
		if n.index != nil {
			idxVal, idxPresent, err := evalNode(n.index, ctx, vars)
			if err != nil {
				return jsonvalue.Value{}, false, err
			}
			if !idxPresent || !baseVal.IsArray() {
				return jsonvalue.Value{}, false, nil
			}
			i := int(idxVal.Number())
			arr := baseVal.Array()
			if i < 0 || i >= len(arr) {
				return jsonvalue.Value{}, false, nil
			}
			return arr[i], true, nil
		}
		return navigate(baseVal, n.field)
	case nodeUnary:
		return evalUnary(n, ctx, vars)
	case nodeBinary:
		return evalBinary(n, ctx, vars)
	case nodeCall:
		return evalCall(n, ctx, vars)
	case nodeObject:
		obj := jsonvalue.NewObject()
		for _, e := range n.entries {
			kv, kp, err := evalNode(e.key, ctx, vars)
			if err != nil {
				return jsonvalue.Value{}, false, err
			}
			if !kp {
				continue
			}
			key := kv.Str()
			if !kv.IsString() {
				key = renderString(kv)
			}
			vv, vp, err := evalNode(e.value, ctx, vars)
			if err != nil {
				return jsonvalue.Value{}, false, err
			}
			if !vp {
				vv = jsonvalue.Null()
			}
			obj.Set(key, vv)
		}
		return jsonvalue.Obj(obj), true, nil
	case nodeArray:
		items := make([]jsonvalue.Value, 0, len(n.items))
		for _, item := range n.items {
			v, present, err := evalNode(item, ctx, vars)
			if err != nil {
				return jsonvalue.Value{}, false, err
			}
			if !present {
				v = jsonvalue.Null()
			}
			items = append(items, v)
		}
		return jsonvalue.Array(items), true, nil
	}
	return jsonvalue.Value{}, false, fmt.Errorf("jsonata: unhandled node kind %d", n.kind)
}

func navigate(v jsonvalue.Value, field string) (jsonvalue.Value, bool, error) {
	if !v.IsObject() {
		return jsonvalue.Value{}, false, nil
	}
	return v.Object().Get(field)
	// Get already returns (Value, bool); error is always nil here.
}

func evalUnary(n *node, ctx jsonvalue.Value, vars map[string]jsonvalue.Value) (jsonvalue.Value, bool, error) {
	v, present, err := evalNode(n.left, ctx, vars)
	if err != nil {
		return jsonvalue.Value{}, false, err
	}
	switch n.op {
	case "-":
		if !present {
			return jsonvalue.Value{}, false, nil
		}
		f, err := asNumber(v)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Number(-f), true, nil
	case "not":
		return jsonvalue.Bool(!truthy(v, present)), true, nil
	}
	return jsonvalue.Value{}, false, fmt.Errorf("jsonata: unknown unary operator %q", n.op)
}

func evalBinary(n *node, ctx jsonvalue.Value, vars map[string]jsonvalue.Value) (jsonvalue.Value, bool, error) {
	if n.op == "and" {
		l, lp, err := evalNode(n.left, ctx, vars)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if !truthy(l, lp) {
			return jsonvalue.Bool(false), true, nil
		}
		r, rp, err := evalNode(n.right, ctx, vars)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Bool(truthy(r, rp)), true, nil
	}
	if n.op == "or" {
		l, lp, err := evalNode(n.left, ctx, vars)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if truthy(l, lp) {
			return jsonvalue.Bool(true), true, nil
		}
		r, rp, err := evalNode(n.right, ctx, vars)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Bool(truthy(r, rp)), true, nil
	}

	l, lp, err := evalNode(n.left, ctx, vars)
	if err != nil {
		return jsonvalue.Value{}, false, err
	}
	r, rp, err := evalNode(n.right, ctx, vars)
	if err != nil {
		return jsonvalue.Value{}, false, err
	}

	switch n.op {
	case "=":
		return jsonvalue.Bool(lp == rp && (!lp || jsonvalue.Equal(l, r))), true, nil
	case "!=":
		return jsonvalue.Bool(!(lp == rp && (!lp || jsonvalue.Equal(l, r)))), true, nil
	case "&":
		return jsonvalue.String(renderStringPresent(l, lp) + renderStringPresent(r, rp)), true, nil
	}

	if !lp || !rp {
		return jsonvalue.Value{}, false, fmt.Errorf("jsonata: operand to %q is undefined", n.op)
	}
	lf, err := asNumber(l)
	if err != nil {
		return jsonvalue.Value{}, false, err
	}
	rf, err := asNumber(r)
	if err != nil {
		return jsonvalue.Value{}, false, err
	}
	switch n.op {
	case "+":
		return jsonvalue.Number(lf + rf), true, nil
	case "-":
		return jsonvalue.Number(lf - rf), true, nil
	case "*":
		return jsonvalue.Number(lf * rf), true, nil
	case "/":
		return jsonvalue.Number(lf / rf), true, nil
	case "%":
		return jsonvalue.Number(float64(int64(lf) % int64(rf))), true, nil
	case "<":
		return jsonvalue.Bool(lf < rf), true, nil
	case "<=":
		return jsonvalue.Bool(lf <= rf), true, nil
	case ">":
		return jsonvalue.Bool(lf > rf), true, nil
	case ">=":
		return jsonvalue.Bool(lf >= rf), true, nil
	}
	return jsonvalue.Value{}, false, fmt.Errorf("jsonata: unknown binary operator %q", n.op)
}

func evalCall(n *node, ctx jsonvalue.Value, vars map[string]jsonvalue.Value) (jsonvalue.Value, bool, error) {
	arg := func(i int) (jsonvalue.Value, bool, error) {
		if i >= len(n.args) {
			return jsonvalue.Value{}, false, nil
		}
		return evalNode(n.args[i], ctx, vars)
	}
	switch n.fn {
	case "exists":
		_, present, err := arg(0)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Bool(present), true, nil
	case "boolean":
		v, present, err := arg(0)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Bool(truthy(v, present)), true, nil
	case "number":
		v, present, err := arg(0)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if !present {
			return jsonvalue.Value{}, false, nil
		}
		f, err := asNumber(v)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		return jsonvalue.Number(f), true, nil
	case "count":
		v, present, err := arg(0)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if !present || !v.IsArray() {
			return jsonvalue.Number(0), true, nil
		}
		return jsonvalue.Number(float64(len(v.Array()))), true, nil
	case "sum":
		v, present, err := arg(0)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if !present || !v.IsArray() {
			return jsonvalue.Number(0), true, nil
		}
		var total float64
		for _, item := range v.Array() {
			total += item.Number()
		}
		return jsonvalue.Number(total), true, nil
	case "merge":
		v, present, err := arg(0)
		if err != nil {
			return jsonvalue.Value{}, false, err
		}
		if !present || !v.IsArray() {
			return jsonvalue.Value{}, false, fmt.Errorf("jsonata: $merge requires an array argument")
		}
		merged := jsonvalue.NewObject()
		for _, item := range v.Array() {
			if !item.IsObject() {
				continue
			}
			for _, k := range item.Object().Keys() {
				val, _ := item.Object().Get(k)
				merged.Set(k, val)
			}
		}
		return jsonvalue.Obj(merged), true, nil
	}
	return jsonvalue.Value{}, false, fmt.Errorf("jsonata: unknown function $%s", n.fn)
}

func truthy(v jsonvalue.Value, present bool) bool {
	if !present {
		return false
	}
	switch v.Kind() {
	case jsonvalue.KindNull:
		return false
	case jsonvalue.KindBool:
		return v.Bool()
	case jsonvalue.KindNumber:
		return v.Number() != 0
	case jsonvalue.KindString:
		return v.Str() != ""
	case jsonvalue.KindArray:
		return len(v.Array()) > 0
	case jsonvalue.KindObject:
		return v.Object().Len() > 0
	}
	return false
}

func asNumber(v jsonvalue.Value) (float64, error) {
	switch v.Kind() {
	case jsonvalue.KindNumber:
		return v.Number(), nil
	case jsonvalue.KindString:
		f, err := strconv.ParseFloat(v.Str(), 64)
		if err != nil {
			return 0, fmt.Errorf("jsonata: cannot cast %q to number", v.Str())
		}
		return f, nil
	case jsonvalue.KindBool:
		if v.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("jsonata: cannot cast value to number")
}

func renderStringPresent(v jsonvalue.Value, present bool) string {
	if !present {
		return ""
	}
	return renderString(v)
}

func renderString(v jsonvalue.Value) string {
	switch v.Kind() {
	case jsonvalue.KindString:
		return v.Str()
	case jsonvalue.KindNumber:
		return strconv.FormatFloat(v.Number(), 'g', -1, 64)
	case jsonvalue.KindBool:
		if v.Bool() {
			return "true"
		}
		return "false"
	case jsonvalue.KindNull:
		return "null"
	default:
		return string(v.Bytes())
	}
}
