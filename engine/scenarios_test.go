package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/construct"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/mock"
)

func obj(pairs ...interface{}) jsonvalue.Value {
	o := jsonvalue.NewObject()
	for i := 0; i+1 < len(pairs); i += 2 {
		o.Set(pairs[i].(string), pairs[i+1].(jsonvalue.Value))
	}
	return jsonvalue.Obj(o)
}

// Pass with a static Result merges it into the input at ResultPath.
func TestPassResultMergedAtResultPath(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Step1",
		"States": {
			"Step1": {"Type": "Pass", "Result": {"computed": "v"}, "ResultPath": "$.result", "End": true}
		}
	}`))

	input := obj("original", jsonvalue.String("data"))
	res, err := Run(sm, input, mock.NewEngine(nil, nil))
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)

	want := obj("original", jsonvalue.String("data"), "result", obj("computed", jsonvalue.String("v")))
	assert.True(t, jsonvalue.Equal(want, res.Output), "got %s", res.Output.GoString())
}

// A Lambda-invoke Task's {Payload, StatusCode} envelope survives
// untouched through JSONPath ResultPath when no ResultSelector strips it.
func TestLambdaInvokeEnvelopePreserved(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Invoke",
		"States": {
			"Invoke": {"Type": "Task", "Resource": "arn:aws:states:::lambda:invoke", "ResultPath": "$.r", "End": true}
		}
	}`))

	respPayload := obj("a", jsonvalue.Number(1))
	resp := obj("Payload", respPayload, "StatusCode", jsonvalue.Number(200))
	m := &mock.Mock{State: "Invoke", Type: mock.StrategyFixed, Response: resp}
	eng := mock.NewEngine([]*mock.Mock{m}, nil)

	input := obj("x", jsonvalue.Number(1))
	res, err := Run(sm, input, eng)
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)

	want := obj("x", jsonvalue.Number(1), "r", resp)
	assert.True(t, jsonvalue.Equal(want, res.Output), "got %s", res.Output.GoString())
}

// A JSONata Output expression can reach into $states.result.Payload and
// discard the rest of the Lambda-invoke envelope.
func TestJSONataOutputExtractsPayload(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"QueryLanguage": "JSONata",
		"StartAt": "Invoke",
		"States": {
			"Invoke": {
				"Type": "Task",
				"QueryLanguage": "JSONata",
				"Resource": "arn:aws:states:::lambda:invoke",
				"Output": "{% $states.result.Payload %}",
				"End": true
			}
		}
	}`))

	respPayload := obj("a", jsonvalue.Number(1))
	resp := obj("Payload", respPayload, "StatusCode", jsonvalue.Number(200))
	m := &mock.Mock{State: "Invoke", Type: mock.StrategyFixed, Response: resp}
	eng := mock.NewEngine([]*mock.Mock{m}, nil)

	res, err := Run(sm, obj("x", jsonvalue.Number(1)), eng)
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)
	assert.True(t, jsonvalue.Equal(respPayload, res.Output), "got %s", res.Output.GoString())
}

// A Task that fails once and succeeds on retry reports the successful
// attempt's output and the attempt count it took to get there.
func TestRetrySucceedsOnSecondAttempt(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Flaky",
		"States": {
			"Flaky": {
				"Type": "Task",
				"Resource": "arn:aws:states:::lambda:invoke",
				"Retry": [{"ErrorEquals": ["States.TaskFailed"], "MaxAttempts": 2, "IntervalSeconds": 0}],
				"End": true
			}
		}
	}`))

	okResp := obj("Payload", obj("ok", jsonvalue.Bool(true)), "StatusCode", jsonvalue.Number(200))
	failResp := obj("error", obj("type", jsonvalue.String("States.TaskFailed")))
	m := &mock.Mock{
		State:     "Flaky",
		Type:      mock.StrategyStateful,
		Responses: []jsonvalue.Value{failResp, okResp},
	}
	eng := mock.NewEngine([]*mock.Mock{m}, nil)

	res, err := Run(sm, obj(), eng)
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)
	assert.True(t, jsonvalue.Equal(okResp, res.Output), "got %s", res.Output.GoString())
	require.Len(t, res.History, 1)
	assert.Equal(t, 2, res.History[0].Attempt)
}

// An uncaught-by-Retry Task error routes to its Catch handler with the
// {Error, Cause} payload written at the Catcher's ResultPath.
func TestCatchRoutesToHandler(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Flaky",
		"States": {
			"Flaky": {
				"Type": "Task",
				"Resource": "arn:aws:states:::lambda:invoke",
				"Catch": [{"ErrorEquals": ["States.TaskFailed"], "Next": "H", "ResultPath": "$.error"}]
			},
			"H": {"Type": "Pass", "End": true}
		}
	}`))

	m := &mock.Mock{
		State: "Flaky",
		Type:  mock.StrategyError,
		Error: &mock.ErrorSpec{Type: "States.TaskFailed", Cause: "boom"},
	}
	eng := mock.NewEngine([]*mock.Mock{m}, nil)

	res, err := Run(sm, obj("d", jsonvalue.String("t")), eng)
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)
	require.Len(t, res.History, 2)
	assert.Equal(t, stepflow.StateOutcomeCaught, res.History[0].Outcome)
	assert.Equal(t, "H", res.History[1].StateName)

	want := obj("d", jsonvalue.String("t"), "error", obj(
		"Error", jsonvalue.String("States.TaskFailed"),
		"Cause", jsonvalue.String("boom"),
	))
	assert.True(t, jsonvalue.Equal(want, res.Output), "got %s", res.Output.GoString())
}

// A JSONata Choice Condition can reference an Assign-bound variable.
// Variables have no public seeding hook on Run, so an initial Assign
// state sets $orderTotal the way a real machine would before a Choice
// ever inspects it.
func TestChoiceJSONataVariableCondition(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"QueryLanguage": "JSONata",
		"StartAt": "Init",
		"States": {
			"Init": {
				"Type": "Pass",
				"QueryLanguage": "JSONata",
				"Assign": {"orderTotal": 1300},
				"Next": "Decide"
			},
			"Decide": {
				"Type": "Choice",
				"QueryLanguage": "JSONata",
				"Choices": [{"Condition": "{% $orderTotal > 1000 %}", "Next": "H"}],
				"Default": "L"
			},
			"H": {"Type": "Succeed"},
			"L": {"Type": "Succeed"}
		}
	}`))

	res, err := Run(sm, obj(), mock.NewEngine(nil, nil))
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)
	require.NotEmpty(t, res.History)
	assert.Equal(t, "H", res.History[len(res.History)-1].StateName)
}

// Assign evaluates every right-hand side against the pre-assignment
// variable set, not the in-progress one. Step1 seeds x/a, Step2 performs
// the parallel-assignment under test, and Check reads the resulting
// variables back out into its output via ".$" Parameters so the test
// can assert on them without a package-internal seam.
func TestAssignEvaluatesAgainstPreAssignmentVariables(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Step1",
		"States": {
			"Step1": {"Type": "Pass", "Assign": {"x": 3, "a": 6}, "Next": "Step2"},
			"Step2": {"Type": "Pass", "Assign": {"x.$": "$a", "nextX.$": "$x"}, "Next": "Check"},
			"Check": {
				"Type": "Pass",
				"Parameters": {"x.$": "$x", "nextX.$": "$nextX", "a.$": "$a"},
				"End": true
			}
		}
	}`))

	res, err := Run(sm, obj(), mock.NewEngine(nil, nil))
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)

	want := obj("x", jsonvalue.Number(6), "nextX", jsonvalue.Number(3), "a", jsonvalue.Number(6))
	assert.True(t, jsonvalue.Equal(want, res.Output), "got %s", res.Output.GoString())
}

// An explicit "MaxConcurrency": 0 on a Map state means unbounded
// fan-out, not "use the driver's default cap" — it must still run
// every item and preserve index ordering in the output.
func TestMapExplicitZeroMaxConcurrencyRunsUnbounded(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Fan",
		"States": {
			"Fan": {
				"Type": "Map",
				"MaxConcurrency": 0,
				"ItemProcessor": {
					"StartAt": "Double",
					"States": {
						"Double": {"Type": "Task", "Resource": "arn:aws:states:::lambda:invoke", "End": true}
					}
				},
				"End": true
			}
		}
	}`))
	require.True(t, sm.States["Fan"].HasMaxConcurrency)
	require.Equal(t, 0, sm.States["Fan"].MaxConcurrency)

	m := &mock.Mock{State: "Double", Type: mock.StrategyFixed, Response: obj("Payload", jsonvalue.Number(9), "StatusCode", jsonvalue.Number(200))}
	eng := mock.NewEngine([]*mock.Mock{m}, nil)

	input := jsonvalue.Array([]jsonvalue.Value{jsonvalue.Number(1), jsonvalue.Number(2), jsonvalue.Number(3)})
	res, err := Run(sm, input, eng)
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)
	require.True(t, res.Output.IsArray())
	assert.Len(t, res.Output.Array(), 3)
}

// Parallel's output array follows branch declaration order regardless
// of which branch actually finishes first.
func TestParallelOrderingDeterministic(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Fork",
		"States": {
			"Fork": {
				"Type": "Parallel",
				"End": true,
				"Branches": [
					{"StartAt": "B1", "States": {"B1": {"Type": "Task", "Resource": "arn:aws:states:::lambda:invoke", "End": true}}},
					{"StartAt": "B2", "States": {"B2": {"Type": "Task", "Resource": "arn:aws:states:::lambda:invoke", "End": true}}}
				]
			}
		}
	}`))

	m1 := &mock.Mock{State: "B1", Type: mock.StrategyFixed, Response: obj("Payload", jsonvalue.Number(1), "StatusCode", jsonvalue.Number(200))}
	m2 := &mock.Mock{State: "B2", Type: mock.StrategyFixed, Response: obj("Payload", jsonvalue.Number(2), "StatusCode", jsonvalue.Number(200))}
	eng := mock.NewEngine([]*mock.Mock{m1, m2}, nil)

	res, err := Run(sm, obj(), eng)
	require.NoError(t, err)
	require.Equal(t, stepflow.RunOutcomeSucceeded, res.Outcome)
	require.True(t, res.Output.IsArray())
	out := res.Output.Array()
	require.Len(t, out, 2)
	p0, _ := out[0].Object().Get("Payload")
	p1, _ := out[1].Object().Get("Payload")
	assert.Equal(t, float64(1), p0.Number())
	assert.Equal(t, float64(2), p1.Number())
}
