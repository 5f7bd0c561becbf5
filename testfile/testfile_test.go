package testfile_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/construct"
	"github.com/stepflow/stepflow/engine"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/mock"
	"github.com/stepflow/stepflow/testfile"
)

func runner(sm *stepflow.StateMachine, input jsonvalue.Value, mocks *mock.Engine) (*stepflow.RunResult, error) {
	return engine.Run(sm, input, mocks)
}

func TestRunTestCase_VariablesExpectationChecksAssignOutcome(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Step1",
		"States": {
			"Step1": {"Type": "Pass", "Assign": {"x": 3, "a": 6}, "End": true}
		}
	}`))

	vars := jsonvalue.NewObject()
	vars.Set("x", jsonvalue.Number(3))
	vars.Set("a", jsonvalue.Number(6))
	tc := testfile.TestCase{
		Name: "assign seeds variables",
		StateExpectations: []testfile.StateExpectation{
			{State: "Step1", Variables: jsonvalue.Obj(vars), HasVariables: true},
		},
	}

	res := testfile.RunTestCase(runner, sm, mock.NewEngine(nil, nil), tc)
	assert.True(t, res.Success, "unexpected failures: %v", res.Failures)
}

func TestRunTestCase_VariablesExpectationMismatchFails(t *testing.T) {
	sm := construct.MustBuild([]byte(`{
		"StartAt": "Step1",
		"States": {
			"Step1": {"Type": "Pass", "Assign": {"x": 3}, "End": true}
		}
	}`))

	vars := jsonvalue.NewObject()
	vars.Set("x", jsonvalue.Number(99))
	tc := testfile.TestCase{
		Name: "wrong expected variable",
		StateExpectations: []testfile.StateExpectation{
			{State: "Step1", Variables: jsonvalue.Obj(vars), HasVariables: true},
		},
	}

	res := testfile.RunTestCase(runner, sm, mock.NewEngine(nil, nil), tc)
	require.False(t, res.Success)
	assert.Len(t, res.Failures, 1)
}
