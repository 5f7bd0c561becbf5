// Package testfile implements the test file model, driving a state
// machine through stepflow/engine and checking the result against each
// test case's assertions — the simulator's analog of the
// teacher's own integration-test helpers, generalized into a reusable,
// non-test-only runner.
package testfile

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/mock"
)

// OutputMatching selects how strictly a TestCase's ExpectedOutput is
// compared against the actual run output.
type OutputMatching string

const (
	MatchPartial OutputMatching = "partial"
	MatchExact   OutputMatching = "exact"
)

// File is a parsed test file: a named state machine + base mock
// reference plus a list of test cases to run against it.
type File struct {
	Version      string
	Name         string
	StateMachine string
	BaseMock     string
	TestCases    []TestCase
}

// TestCase is one scenario to run and the assertions to check against
// its result.
type TestCase struct {
	Name              string
	Input             jsonvalue.Value
	ExpectedOutput    jsonvalue.Value
	HasExpectedOutput bool
	ExpectedPath      []string
	OutputMatching    OutputMatching
	StateExpectations []StateExpectation
}

// StateExpectation asserts on one named state's observed input/output/
// variables within a run's history.
type StateExpectation struct {
	State        string
	Input        jsonvalue.Value
	HasInput     bool
	Output       jsonvalue.Value
	HasOutput    bool
	Variables    jsonvalue.Value
	HasVariables bool
}

// Result is the result envelope for a single run —
// {success, output, path, stateExecutions, error?} — plus the list of
// assertion failures a TestCase's checks produced (empty on success).
type Result struct {
	Success         bool
	Output          jsonvalue.Value
	Path            []string
	StateExecutions []stepflow.StateHistoryEntry
	Error           *stepflow.ASLError
	Failures        []string
}

// --- YAML parsing ---

type yamlFile struct {
	Version      string        `yaml:"version"`
	Name         string        `yaml:"name"`
	StateMachine string        `yaml:"stateMachine"`
	BaseMock     string        `yaml:"baseMock"`
	TestCases    []yamlTestCase `yaml:"testCases"`
}

type yamlTestCase struct {
	Name              string                `yaml:"name"`
	Input             interface{}           `yaml:"input"`
	ExpectedOutput    interface{}           `yaml:"expectedOutput"`
	ExpectedPath      []string              `yaml:"expectedPath"`
	OutputMatching    string                `yaml:"outputMatching"`
	StateExpectations []yamlStateExpectation `yaml:"stateExpectations"`
}

type yamlStateExpectation struct {
	State     string      `yaml:"state"`
	Input     interface{} `yaml:"input"`
	Output    interface{} `yaml:"output"`
	Variables interface{} `yaml:"variables"`
}

// Load parses a test file's raw YAML bytes.
func Load(data []byte) (*File, error) {
	var yf yamlFile
	if err := yaml.Unmarshal(data, &yf); err != nil {
		return nil, fmt.Errorf("testfile: parsing test file: %w", err)
	}

	f := &File{
		Version:      yf.Version,
		Name:         yf.Name,
		StateMachine: yf.StateMachine,
		BaseMock:     yf.BaseMock,
	}

	for _, ytc := range yf.TestCases {
		tc := TestCase{
			Name:           ytc.Name,
			ExpectedPath:   ytc.ExpectedPath,
			OutputMatching: MatchPartial,
		}
		if ytc.OutputMatching == string(MatchExact) {
			tc.OutputMatching = MatchExact
		}

		input, err := toJSONValue(ytc.Input)
		if err != nil {
			return nil, fmt.Errorf("testfile: case %q: input: %w", ytc.Name, err)
		}
		tc.Input = input

		if ytc.ExpectedOutput != nil {
			out, err := toJSONValue(ytc.ExpectedOutput)
			if err != nil {
				return nil, fmt.Errorf("testfile: case %q: expectedOutput: %w", ytc.Name, err)
			}
			tc.ExpectedOutput = out
			tc.HasExpectedOutput = true
		}

		for _, yse := range ytc.StateExpectations {
			se := StateExpectation{State: yse.State}
			if yse.Input != nil {
				v, err := toJSONValue(yse.Input)
				if err != nil {
					return nil, err
				}
				se.Input, se.HasInput = v, true
			}
			if yse.Output != nil {
				v, err := toJSONValue(yse.Output)
				if err != nil {
					return nil, err
				}
				se.Output, se.HasOutput = v, true
			}
			if yse.Variables != nil {
				v, err := toJSONValue(yse.Variables)
				if err != nil {
					return nil, err
				}
				se.Variables, se.HasVariables = v, true
			}
			tc.StateExpectations = append(tc.StateExpectations, se)
		}

		f.TestCases = append(f.TestCases, tc)
	}

	return f, nil
}

// LoadPath reads and parses a test file from disk.
func LoadPath(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("testfile: reading test file %q: %w", path, err)
	}
	return Load(data)
}

func toJSONValue(v interface{}) (jsonvalue.Value, error) {
	return jsonvalue.FromNative(v), nil
}

// Runner is the function signature RunTestCase drives a state machine
// through; satisfied by engine.Run, so stepflow/testfile does not
// import stepflow/engine itself; this package's tests pass a closure
// over engine.Run.
type Runner func(sm *stepflow.StateMachine, input jsonvalue.Value, mocks *mock.Engine) (*stepflow.RunResult, error)

// RunTestCase drives one TestCase through run and checks every
// configured assertion, returning a Result whose Failures list is empty
// iff every assertion held.
func RunTestCase(run Runner, sm *stepflow.StateMachine, mocks *mock.Engine, tc TestCase) Result {
	rr, err := run(sm, tc.Input, mocks)
	if err != nil {
		return Result{Success: false, Failures: []string{fmt.Sprintf("run error: %v", err)}}
	}

	res := Result{
		Output:          rr.Output,
		StateExecutions: rr.History,
		Error:           rr.Error,
	}
	for _, h := range rr.History {
		res.Path = append(res.Path, h.StateName)
	}

	var failures []string

	if rr.Outcome == stepflow.RunOutcomeFailed {
		failures = append(failures, fmt.Sprintf("execution failed: %s", rr.Error.Error()))
	} else if tc.HasExpectedOutput {
		ok := false
		switch tc.OutputMatching {
		case MatchExact:
			ok = jsonvalue.Equal(tc.ExpectedOutput, rr.Output)
		default:
			ok = jsonvalue.Subset(tc.ExpectedOutput, rr.Output)
		}
		if !ok {
			failures = append(failures, fmt.Sprintf("output mismatch: expected %s, got %s", tc.ExpectedOutput.GoString(), rr.Output.GoString()))
		}
	}

	if len(tc.ExpectedPath) > 0 {
		if !pathsEqual(tc.ExpectedPath, res.Path) {
			failures = append(failures, fmt.Sprintf("path mismatch: expected %v, got %v", tc.ExpectedPath, res.Path))
		}
	}

	for _, se := range tc.StateExpectations {
		entry, ok := findStateEntry(rr.History, se.State)
		if !ok {
			failures = append(failures, fmt.Sprintf("state %q did not execute", se.State))
			continue
		}
		if se.HasInput && !jsonvalue.Subset(se.Input, entry.Input) {
			failures = append(failures, fmt.Sprintf("state %q input mismatch: expected %s, got %s", se.State, se.Input.GoString(), entry.Input.GoString()))
		}
		if se.HasOutput && !jsonvalue.Subset(se.Output, entry.Output) {
			failures = append(failures, fmt.Sprintf("state %q output mismatch: expected %s, got %s", se.State, se.Output.GoString(), entry.Output.GoString()))
		}
		if se.HasVariables && !jsonvalue.Subset(se.Variables, entry.VariablesAfter) {
			failures = append(failures, fmt.Sprintf("state %q variables mismatch: expected %s, got %s", se.State, se.Variables.GoString(), entry.VariablesAfter.GoString()))
		}
	}

	res.Failures = failures
	res.Success = len(failures) == 0
	return res
}

func pathsEqual(expected, actual []string) bool {
	if len(expected) != len(actual) {
		return false
	}
	for i := range expected {
		if expected[i] != actual[i] {
			return false
		}
	}
	return true
}

func findStateEntry(history []stepflow.StateHistoryEntry, name string) (stepflow.StateHistoryEntry, bool) {
	for _, h := range history {
		if h.StateName == name {
			return h, true
		}
	}
	return stepflow.StateHistoryEntry{}, false
}
