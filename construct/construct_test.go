package construct

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_SimplePass(t *testing.T) {
	sm, err := Build([]byte(`{
		"StartAt": "Step1",
		"States": {
			"Step1": {"Type": "Pass", "Result": {"computed": "v"}, "ResultPath": "$.result", "End": true}
		}
	}`))
	require.NoError(t, err)
	assert.Equal(t, "Step1", sm.StartAt)
	st := sm.States["Step1"]
	require.NotNil(t, st)
	assert.True(t, st.HasResultPath)
	assert.Equal(t, "$.result", st.ResultPath)
	assert.True(t, st.End)
}

func TestBuild_UnknownStartAt(t *testing.T) {
	_, err := Build([]byte(`{"StartAt": "Missing", "States": {"A": {"Type": "Pass", "End": true}}}`))
	assert.Error(t, err)
}

func TestBuild_DanglingNext(t *testing.T) {
	_, err := Build([]byte(`{"StartAt": "A", "States": {"A": {"Type": "Pass", "Next": "Ghost"}}}`))
	assert.Error(t, err)
}

func TestBuild_JSONataForbidsInputPath(t *testing.T) {
	_, err := Build([]byte(`{
		"QueryLanguage": "JSONata",
		"StartAt": "A",
		"States": {"A": {"Type": "Pass", "InputPath": "$.x", "End": true}}
	}`))
	assert.Error(t, err)
}

func TestBuild_JSONPathForbidsArguments(t *testing.T) {
	_, err := Build([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Task", "Resource": "x", "Arguments": {}, "End": true}}
	}`))
	assert.Error(t, err)
}

func TestBuild_PassForbidsArguments(t *testing.T) {
	_, err := Build([]byte(`{
		"QueryLanguage": "JSONata",
		"StartAt": "A",
		"States": {"A": {"Type": "Pass", "Arguments": {}, "End": true}}
	}`))
	assert.Error(t, err)
}

func TestBuild_TaskForbidsResult(t *testing.T) {
	_, err := Build([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Task", "Resource": "x", "Result": {}, "End": true}}
	}`))
	assert.Error(t, err)
}

func TestBuild_ChoiceRequiresDefault(t *testing.T) {
	_, err := Build([]byte(`{
		"StartAt": "A",
		"States": {
			"A": {"Type": "Choice", "Choices": [{"Variable": "$.x", "IsPresent": true, "Next": "B"}]},
			"B": {"Type": "Succeed"}
		}
	}`))
	assert.Error(t, err)
}

func TestBuild_ChoiceWithComparator(t *testing.T) {
	sm, err := Build([]byte(`{
		"StartAt": "A",
		"States": {
			"A": {"Type": "Choice", "Choices": [{"Variable": "$.x", "NumericGreaterThan": 10, "Next": "B"}], "Default": "C"},
			"B": {"Type": "Succeed"},
			"C": {"Type": "Succeed"}
		}
	}`))
	require.NoError(t, err)
	st := sm.States["A"]
	require.Len(t, st.Choices, 1)
	assert.Equal(t, "NumericGreaterThan", st.Choices[0].Comparator)
	assert.Equal(t, float64(10), st.Choices[0].Value.Number())
}

func TestBuild_MapRequiresItemProcessor(t *testing.T) {
	_, err := Build([]byte(`{
		"StartAt": "A",
		"States": {"A": {"Type": "Map", "End": true}}
	}`))
	assert.Error(t, err)
}

func TestBuild_ParallelBranches(t *testing.T) {
	sm, err := Build([]byte(`{
		"StartAt": "A",
		"States": {
			"A": {
				"Type": "Parallel",
				"End": true,
				"Branches": [
					{"StartAt": "B1", "States": {"B1": {"Type": "Pass", "End": true}}},
					{"StartAt": "B2", "States": {"B2": {"Type": "Pass", "End": true}}}
				]
			}
		}
	}`))
	require.NoError(t, err)
	assert.Len(t, sm.States["A"].Branches, 2)
}

func TestBuild_MaxConcurrencyUnsetVsExplicitZero(t *testing.T) {
	sm, err := Build([]byte(`{
		"StartAt": "A",
		"States": {
			"A": {
				"Type": "Map",
				"ItemProcessor": {"StartAt": "B", "States": {"B": {"Type": "Pass", "End": true}}},
				"End": true
			}
		}
	}`))
	require.NoError(t, err)
	assert.False(t, sm.States["A"].HasMaxConcurrency)

	sm, err = Build([]byte(`{
		"StartAt": "A",
		"States": {
			"A": {
				"Type": "Map",
				"MaxConcurrency": 0,
				"ItemProcessor": {"StartAt": "B", "States": {"B": {"Type": "Pass", "End": true}}},
				"End": true
			}
		}
	}`))
	require.NoError(t, err)
	assert.True(t, sm.States["A"].HasMaxConcurrency)
	assert.Equal(t, 0, sm.States["A"].MaxConcurrency)
}

func TestReachable_WarnsNotErrors(t *testing.T) {
	sm, err := Build([]byte(`{
		"StartAt": "A",
		"States": {
			"A": {"Type": "Succeed"},
			"Orphan": {"Type": "Succeed"}
		}
	}`))
	require.NoError(t, err)
	reached := Reachable(sm)
	assert.True(t, reached["A"])
	assert.False(t, reached["Orphan"])
}
