package jsonvalue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_RoundTripPreservesKeyOrder(t *testing.T) {
	src := []byte(`{"z":1,"a":2,"m":{"y":3,"b":4}}`)

	v, err := Parse(src)
	require.NoError(t, err)

	assert.Equal(t, []string{"z", "a", "m"}, v.Object().Keys())

	out := v.Bytes()
	assert.JSONEq(t, string(src), string(out))
	assert.Equal(t, `{"z":1,"a":2,"m":{"y":3,"b":4}}`, string(out))
}

func TestValue_IntegerExactness(t *testing.T) {
	v, err := Parse([]byte(`9007199254740992`))
	require.NoError(t, err)
	assert.Equal(t, "9007199254740992", string(v.Bytes()))
}

func TestEqual(t *testing.T) {
	a, _ := Parse([]byte(`{"a":1,"b":[1,2,3]}`))
	b, _ := Parse([]byte(`{"b":[1,2,3],"a":1}`))
	assert.True(t, Equal(a, b))

	c, _ := Parse([]byte(`{"a":1,"b":[1,2,4]}`))
	assert.False(t, Equal(a, c))
}

func TestSubset(t *testing.T) {
	pattern, _ := Parse([]byte(`{"status":"ok"}`))
	input, _ := Parse([]byte(`{"status":"ok","extra":true}`))
	assert.True(t, Subset(pattern, input))

	mismatched, _ := Parse([]byte(`{"status":"fail"}`))
	assert.False(t, Subset(pattern, mismatched))

	missing, _ := Parse([]byte(`{"other":1}`))
	assert.False(t, Subset(pattern, missing))
}

func TestClone_DoesNotAliasArraysOrObjects(t *testing.T) {
	v, _ := Parse([]byte(`{"arr":[1,2,3]}`))
	clone := v.Clone()

	// Mutating the clone's nested array must not affect the original.
	obj, _ := clone.Object().Get("arr")
	obj.arr[0] = Number(99)

	orig, _ := v.Object().Get("arr")
	assert.Equal(t, float64(1), orig.arr[0].Number())
}

func TestFromNative(t *testing.T) {
	v := FromNative(map[string]interface{}{"b": 1, "a": "x"})
	assert.Equal(t, []string{"a", "b"}, v.Object().Keys())
}

func TestValue_Native(t *testing.T) {
	v, _ := Parse([]byte(`{"a":[1,"x",true,null]}`))
	native := v.Native()
	m, ok := native.(map[string]interface{})
	require.True(t, ok)
	arr, ok := m["a"].([]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), arr[0])
	assert.Equal(t, "x", arr[1])
	assert.Equal(t, true, arr[2])
	assert.Nil(t, arr[3])
}
