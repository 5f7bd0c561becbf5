package path

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/jsonvalue"
)

func mustParse(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestGet_RootAndField(t *testing.T) {
	root := mustParse(t, `{"a":{"b":2},"c":[10,20,30]}`)

	v, ok, err := Get(root, "$")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"a":{"b":2},"c":[10,20,30]}`, string(v.Bytes()))

	v, ok, err = Get(root, "$.a.b")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(2), v.Number())

	v, ok, err = Get(root, "$.c[1]")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(20), v.Number())
}

func TestGet_Wildcard(t *testing.T) {
	root := mustParse(t, `{"items":[{"x":1},{"x":2},{"x":3}]}`)

	v, ok, err := Get(root, "$.items[*].x")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[1,2,3]`, string(v.Bytes()))
}

func TestGet_NotPresent(t *testing.T) {
	root := mustParse(t, `{"a":1}`)

	_, ok, err := Get(root, "$.missing.deep")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGet_PresentNullIsNotMissing(t *testing.T) {
	root := mustParse(t, `{"a":null}`)

	v, ok, err := Get(root, "$.a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.IsNull())
}

func TestSet_ReplaceRoot(t *testing.T) {
	root := mustParse(t, `{"a":1}`)
	newVal := mustParse(t, `{"b":2}`)

	out, err := Set(root, "$", newVal)
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(out.Bytes()))
}

func TestSet_CreatesIntermediateObjects(t *testing.T) {
	root := mustParse(t, `{"original":"data"}`)
	result := mustParse(t, `{"computed":"v"}`)

	out, err := Set(root, "$.result", result)
	require.NoError(t, err)
	assert.JSONEq(t, `{"original":"data","result":{"computed":"v"}}`, string(out.Bytes()))
}

func TestSet_NestedPathCreatesAllLevels(t *testing.T) {
	root := mustParse(t, `{}`)
	out, err := Set(root, "$.a.b.c", jsonvalue.String("x"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":{"b":{"c":"x"}}}`, string(out.Bytes()))
}

func TestSet_EmptyPathNoOp(t *testing.T) {
	root := mustParse(t, `{"a":1}`)
	out, err := Set(root, "", jsonvalue.String("ignored"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(out.Bytes()))
}

func TestSet_WildcardRejected(t *testing.T) {
	root := mustParse(t, `{"items":[1,2,3]}`)
	_, err := Set(root, "$.items[*]", jsonvalue.Number(0))
	assert.Error(t, err)
}
