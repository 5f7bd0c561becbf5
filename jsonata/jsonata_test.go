package jsonata

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/jsonvalue"
)

func mustEval(t *testing.T, src string, ctx jsonvalue.Value, bindings map[string]jsonvalue.Value) jsonvalue.Value {
	t.Helper()
	expr, err := Compile(src)
	require.NoError(t, err)
	v, err := expr.Eval(ctx, bindings)
	require.NoError(t, err)
	return v
}

func TestEval_Arithmetic(t *testing.T) {
	v := mustEval(t, "1 + 2 * 3", jsonvalue.Null(), nil)
	assert.Equal(t, float64(7), v.Number())
}

func TestEval_ConcatAndFieldAccess(t *testing.T) {
	ctx, _ := jsonvalue.Parse([]byte(`{"first":"a","second":"b"}`))
	v := mustEval(t, `first & second`, ctx, nil)
	assert.Equal(t, "ab", v.Str())
}

func TestEval_ComparisonOnVariable(t *testing.T) {
	bindings := map[string]jsonvalue.Value{"orderTotal": jsonvalue.Number(1300)}
	v := mustEval(t, "$orderTotal > 1000", jsonvalue.Null(), bindings)
	assert.True(t, v.Bool())

	bindings["orderTotal"] = jsonvalue.Number(500)
	v = mustEval(t, "$orderTotal > 1000", jsonvalue.Null(), bindings)
	assert.False(t, v.Bool())
}

func TestEval_StatesResultPayload(t *testing.T) {
	result, _ := jsonvalue.Parse([]byte(`{"Payload":{"a":1},"StatusCode":200}`))
	statesObj := jsonvalue.NewObject()
	statesObj.Set("result", result)
	bindings := map[string]jsonvalue.Value{"states": jsonvalue.Obj(statesObj)}

	v := mustEval(t, "$states.result.Payload", jsonvalue.Null(), bindings)
	assert.JSONEq(t, `{"a":1}`, string(v.Bytes()))
}

func TestEval_ExistsAndBoolean(t *testing.T) {
	ctx, _ := jsonvalue.Parse([]byte(`{"a":1}`))
	v := mustEval(t, "$exists(a)", ctx, nil)
	assert.True(t, v.Bool())

	v = mustEval(t, "$exists(missing)", ctx, nil)
	assert.False(t, v.Bool())

	v = mustEval(t, "$boolean(a)", ctx, nil)
	assert.True(t, v.Bool())
}

func TestEval_CountSumMerge(t *testing.T) {
	ctx, _ := jsonvalue.Parse([]byte(`{"items":[1,2,3]}`))
	v := mustEval(t, "$count(items)", ctx, nil)
	assert.Equal(t, float64(3), v.Number())

	v = mustEval(t, "$sum(items)", ctx, nil)
	assert.Equal(t, float64(6), v.Number())

	ctx2, _ := jsonvalue.Parse([]byte(`{"objs":[{"a":1},{"b":2}]}`))
	v = mustEval(t, "$merge(objs)", ctx2, nil)
	assert.JSONEq(t, `{"a":1,"b":2}`, string(v.Bytes()))
}

func TestEval_AndOrNot(t *testing.T) {
	v := mustEval(t, "true and false", jsonvalue.Null(), nil)
	assert.False(t, v.Bool())

	v = mustEval(t, "true or false", jsonvalue.Null(), nil)
	assert.True(t, v.Bool())

	v = mustEval(t, "not false", jsonvalue.Null(), nil)
	assert.True(t, v.Bool())
}

func TestEval_ObjectAndArrayConstructors(t *testing.T) {
	ctx, _ := jsonvalue.Parse([]byte(`{"id":5}`))
	v := mustEval(t, `{"orderId": id, "tags": ["x", "y"]}`, ctx, nil)
	assert.JSONEq(t, `{"orderId":5,"tags":["x","y"]}`, string(v.Bytes()))
}

func TestIsExpression(t *testing.T) {
	inner, ok := IsExpression("{% $states.result.Payload %}")
	assert.True(t, ok)
	assert.Equal(t, "$states.result.Payload", inner)

	_, ok = IsExpression("plain string")
	assert.False(t, ok)
}
