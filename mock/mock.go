// Package mock implements the substitute for every external service
// call a Task state would otherwise make: a dispatch engine keyed by
// state name, backed by one of five strategies (fixed, conditional,
// stateful, error, itemReader), with Lambda-invoke envelope wrapping.
package mock

import (
	"fmt"
	"strings"
	"sync"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

// StrategyType names one of the five mock dispatch strategies.
type StrategyType string

const (
	StrategyFixed       StrategyType = "fixed"
	StrategyConditional StrategyType = "conditional"
	StrategyStateful    StrategyType = "stateful"
	StrategyError       StrategyType = "error"
	StrategyItemReader  StrategyType = "itemReader"
)

// Condition is one entry of a conditional mock's conditions list.
type Condition struct {
	WhenInput jsonvalue.Value
	Response  jsonvalue.Value
	IsDefault bool
}

// ErrorSpec describes an "error" strategy mock's raised failure.
type ErrorSpec struct {
	Type    string
	Cause   string
	Message string
}

// ItemReaderSpec points an "itemReader" strategy mock at a data file.
type ItemReaderSpec struct {
	DataFile   string
	DataFormat string // json | jsonl | csv | yaml
}

// Mock is the tagged union over the five strategies: Type selects
// which of the following fields is populated, mirroring a mock
// definition's YAML shape one-for-one.
type Mock struct {
	State string
	Type  StrategyType

	Response   jsonvalue.Value   // fixed
	Conditions []Condition       // conditional
	Responses  []jsonvalue.Value // stateful
	Error      *ErrorSpec        // error
	ItemReader *ItemReaderSpec   // itemReader
}

// Engine is the single seam every Task executor calls through instead
// of making a real service call. It owns the per-state "stateful"
// counters for its own lifetime: they start at zero in NewEngine and
// are never reset, so a second run on the same Engine continues where
// the first stopped. Access is serialized so each concurrent call gets
// its own counter value.
type Engine struct {
	mu       sync.Mutex
	mocks    map[string]*Mock
	counters map[string]int
	loader   DataFileLoader
}

// DataFileLoader loads the items backing an itemReader mock. Swappable
// so tests can substitute an in-memory loader instead of touching disk.
type DataFileLoader func(path, format string) ([]jsonvalue.Value, error)

// NewEngine creates a mock engine over the given mocks, indexed by
// state name (last one wins on duplicate names — the validator flags
// duplicates separately).
func NewEngine(mocks []*Mock, loader DataFileLoader) *Engine {
	e := &Engine{
		mocks:    make(map[string]*Mock, len(mocks)),
		counters: make(map[string]int),
		loader:   loader,
	}
	for _, m := range mocks {
		e.mocks[m.State] = m
	}
	if e.loader == nil {
		e.loader = LoadDataFile
	}
	return e
}

// Invoke dispatches a Task's (stateName, input) pair to the configured
// mock and returns either the simulated response or a structured ASL
// error. resource is the state's Resource field, used to decide Lambda
// envelope wrapping.
func (e *Engine) Invoke(stateName, resource string, input jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	m, ok := e.mocks[stateName]
	if !ok {
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesTaskFailed,
			fmt.Sprintf("no mock configured for state %q", stateName))
	}

	resp, aslErr := e.dispatch(m, input)
	if aslErr != nil {
		return jsonvalue.Value{}, aslErr
	}

	return wrapLambdaEnvelope(resource, resp), nil
}

func (e *Engine) dispatch(m *Mock, input jsonvalue.Value) (jsonvalue.Value, *stepflow.ASLError) {
	switch m.Type {
	case StrategyFixed:
		return m.Response, nil

	case StrategyConditional:
		var def *Condition
		for i := range m.Conditions {
			c := &m.Conditions[i]
			if c.IsDefault {
				def = c
				continue
			}
			if jsonvalue.Subset(c.WhenInput, input) {
				return c.Response, nil
			}
		}
		if def != nil {
			return def.Response, nil
		}
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesTaskFailed,
			fmt.Sprintf("no condition matched for state %q and no default given", m.State))

	case StrategyStateful:
		if len(m.Responses) == 0 {
			return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesTaskFailed,
				fmt.Sprintf("stateful mock for %q has no responses", m.State))
		}
		e.mu.Lock()
		idx := e.counters[m.State]
		if idx >= len(m.Responses) {
			idx = len(m.Responses) - 1
		}
		e.counters[m.State] = idx + 1
		e.mu.Unlock()
		resp := m.Responses[idx]
		if errVal, isErr := asStatefulError(resp); isErr {
			return jsonvalue.Value{}, errVal
		}
		return resp, nil

	case StrategyError:
		if m.Error == nil {
			return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesTaskFailed, "error mock missing error spec")
		}
		cause := m.Error.Cause
		if cause == "" {
			cause = m.Error.Message
		}
		return jsonvalue.Value{}, stepflow.NewASLError(m.Error.Type, cause)

	case StrategyItemReader:
		return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesTaskFailed,
			"itemReader mocks are read via ReadItems, not Invoke")
	}

	return jsonvalue.Value{}, stepflow.NewASLError(stepflow.ErrStatesTaskFailed,
		fmt.Sprintf("unknown mock strategy %q for state %q", m.Type, m.State))
}

// asStatefulError detects a stateful response element that is itself an
// error payload (`{"error": {"type": ..., "cause": ...}}`), per S4's
// "stateful response can itself fail" scenario.
func asStatefulError(v jsonvalue.Value) (*stepflow.ASLError, bool) {
	if !v.IsObject() {
		return nil, false
	}
	errVal, ok := v.Object().Get("error")
	if !ok || !errVal.IsObject() {
		return nil, false
	}
	typeVal, ok := errVal.Object().Get("type")
	if !ok || !typeVal.IsString() {
		return nil, false
	}
	cause := ""
	if c, ok := errVal.Object().Get("cause"); ok && c.IsString() {
		cause = c.Str()
	}
	return stepflow.NewASLError(typeVal.Str(), cause), true
}

// ReadItems returns the items an itemReader mock would yield,
// exclusively used by DistributedMap.
func (e *Engine) ReadItems(stateName string) ([]jsonvalue.Value, *stepflow.ASLError) {
	m, ok := e.mocks[stateName]
	if !ok || m.Type != StrategyItemReader || m.ItemReader == nil {
		return nil, stepflow.NewASLError(stepflow.ErrStatesItemReaderFailed,
			fmt.Sprintf("no itemReader mock configured for state %q", stateName))
	}
	items, err := e.loader(m.ItemReader.DataFile, m.ItemReader.DataFormat)
	if err != nil {
		return nil, stepflow.NewASLError(stepflow.ErrStatesItemReaderFailed, err.Error())
	}
	return items, nil
}

// isDirectLambdaARN reports whether resource addresses a Lambda
// function directly (arn:aws:lambda:...) rather than through the
// lambda:invoke service-integration resource; direct ARNs are never
// envelope-wrapped.
func isDirectLambdaARN(resource string) bool {
	return strings.HasPrefix(resource, "arn:aws:lambda:")
}

func wrapLambdaEnvelope(resource string, resp jsonvalue.Value) jsonvalue.Value {
	if !strings.Contains(resource, "lambda:invoke") || isDirectLambdaARN(resource) {
		return resp
	}
	if resp.IsObject() {
		if _, hasPayload := resp.Object().Get("Payload"); hasPayload {
			return resp
		}
	}
	wrapped := jsonvalue.NewObject()
	wrapped.Set("Payload", resp)
	wrapped.Set("StatusCode", jsonvalue.Number(200))
	return jsonvalue.Obj(wrapped)
}
