package mock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/jsonvalue"
)

func jv(t *testing.T, s string) jsonvalue.Value {
	t.Helper()
	v, err := jsonvalue.Parse([]byte(s))
	require.NoError(t, err)
	return v
}

func TestEngine_Fixed(t *testing.T) {
	m := &Mock{State: "A", Type: StrategyFixed, Response: jv(t, `{"ok":true}`)}
	e := NewEngine([]*Mock{m}, nil)
	resp, err := e.Invoke("A", "", jsonvalue.Null())
	require.Nil(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Bytes()))
}

func TestEngine_Conditional_SubsetMatch(t *testing.T) {
	m := &Mock{
		State: "A",
		Type:  StrategyConditional,
		Conditions: []Condition{
			{WhenInput: jv(t, `{"status":"ok"}`), Response: jv(t, `"matched"`)},
			{Response: jv(t, `"fallback"`), IsDefault: true},
		},
	}
	e := NewEngine([]*Mock{m}, nil)

	resp, err := e.Invoke("A", "", jv(t, `{"status":"ok","extra":1}`))
	require.Nil(t, err)
	assert.Equal(t, "matched", resp.Str())

	resp, err = e.Invoke("A", "", jv(t, `{"status":"fail"}`))
	require.Nil(t, err)
	assert.Equal(t, "fallback", resp.Str())
}

func TestEngine_Stateful_ClampsAtEnd(t *testing.T) {
	m := &Mock{
		State: "A",
		Type:  StrategyStateful,
		Responses: []jsonvalue.Value{
			jv(t, `"first"`),
			jv(t, `"second"`),
		},
	}
	e := NewEngine([]*Mock{m}, nil)

	r1, _ := e.Invoke("A", "", jsonvalue.Null())
	r2, _ := e.Invoke("A", "", jsonvalue.Null())
	r3, _ := e.Invoke("A", "", jsonvalue.Null())
	assert.Equal(t, "first", r1.Str())
	assert.Equal(t, "second", r2.Str())
	assert.Equal(t, "second", r3.Str())
}

func TestEngine_Stateful_ErrorElement(t *testing.T) {
	m := &Mock{
		State: "A",
		Type:  StrategyStateful,
		Responses: []jsonvalue.Value{
			jv(t, `{"error":{"type":"States.TaskFailed"}}`),
			jv(t, `{"Payload":{"ok":true},"StatusCode":200}`),
		},
	}
	e := NewEngine([]*Mock{m}, nil)

	_, err := e.Invoke("A", "", jsonvalue.Null())
	require.NotNil(t, err)
	assert.Equal(t, "States.TaskFailed", err.ASLErrorName)

	resp, err := e.Invoke("A", "", jsonvalue.Null())
	require.Nil(t, err)
	assert.True(t, resp.Object().Len() > 0)
}

func TestEngine_Error(t *testing.T) {
	m := &Mock{State: "A", Type: StrategyError, Error: &ErrorSpec{Type: "States.TaskFailed", Cause: "boom"}}
	e := NewEngine([]*Mock{m}, nil)
	_, err := e.Invoke("A", "", jsonvalue.Null())
	require.NotNil(t, err)
	assert.Equal(t, "States.TaskFailed", err.ASLErrorName)
	assert.Equal(t, "boom", err.Cause)
}

func TestEngine_LambdaEnvelopeAutoWrap(t *testing.T) {
	m := &Mock{State: "A", Type: StrategyFixed, Response: jv(t, `{"a":1}`)}
	e := NewEngine([]*Mock{m}, nil)
	resp, err := e.Invoke("A", "arn:aws:states:::lambda:invoke", jsonvalue.Null())
	require.Nil(t, err)
	payload, ok := resp.Object().Get("Payload")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(payload.Bytes()))
	sc, ok := resp.Object().Get("StatusCode")
	require.True(t, ok)
	assert.Equal(t, float64(200), sc.Number())
}

func TestEngine_LambdaEnvelopeNotDoubledWhenAlreadyPresent(t *testing.T) {
	m := &Mock{State: "A", Type: StrategyFixed, Response: jv(t, `{"Payload":{"a":1},"StatusCode":200}`)}
	e := NewEngine([]*Mock{m}, nil)
	resp, err := e.Invoke("A", "arn:aws:states:::lambda:invoke", jsonvalue.Null())
	require.Nil(t, err)
	assert.JSONEq(t, `{"Payload":{"a":1},"StatusCode":200}`, string(resp.Bytes()))
}

func TestEngine_LambdaEnvelopeWrapsWaitForTaskTokenVariant(t *testing.T) {
	m := &Mock{State: "A", Type: StrategyFixed, Response: jv(t, `{"a":1}`)}
	e := NewEngine([]*Mock{m}, nil)
	resp, err := e.Invoke("A", "arn:aws:states:::lambda:invoke.waitForTaskToken", jsonvalue.Null())
	require.Nil(t, err)
	payload, ok := resp.Object().Get("Payload")
	require.True(t, ok)
	assert.JSONEq(t, `{"a":1}`, string(payload.Bytes()))
}

func TestEngine_DirectLambdaARNNotWrapped(t *testing.T) {
	m := &Mock{State: "A", Type: StrategyFixed, Response: jv(t, `{"a":1}`)}
	e := NewEngine([]*Mock{m}, nil)
	resp, err := e.Invoke("A", "arn:aws:lambda:us-east-1:123:function:f", jsonvalue.Null())
	require.Nil(t, err)
	assert.JSONEq(t, `{"a":1}`, string(resp.Bytes()))
}

func TestLoadFile(t *testing.T) {
	data := []byte(`
version: "1.0"
mocks:
  - state: A
    type: fixed
    response: {a: 1}
  - state: B
    type: error
    error: {type: "States.TaskFailed", cause: "boom"}
`)
	mocks, err := LoadFile(data)
	require.NoError(t, err)
	require.Len(t, mocks, 2)
	assert.Equal(t, StrategyFixed, mocks[0].Type)
	assert.Equal(t, StrategyError, mocks[1].Type)
}
