package mock

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/stepflow/stepflow/jsonvalue"
)

// file is the YAML shape of a mock file on disk: version + an ordered
// list of per-state mock definitions.
type file struct {
	Version string     `yaml:"version"`
	Mocks   []fileMock `yaml:"mocks"`
}

type fileMock struct {
	State      string              `yaml:"state"`
	Type       string              `yaml:"type"`
	Response   interface{}         `yaml:"response"`
	Conditions []fileCondition     `yaml:"conditions"`
	Responses  []interface{}       `yaml:"responses"`
	Error      *fileError          `yaml:"error"`
	DataFile   string              `yaml:"dataFile"`
	DataFormat string              `yaml:"dataFormat"`
}

type fileCondition struct {
	When     *fileWhen   `yaml:"when"`
	Response interface{} `yaml:"response"`
	Default  interface{} `yaml:"default"`
}

type fileWhen struct {
	Input interface{} `yaml:"input"`
}

type fileError struct {
	Type    string `yaml:"type"`
	Cause   string `yaml:"cause"`
	Message string `yaml:"message"`
}

// LoadFile parses a mock YAML file's raw bytes into a slice of Mock
// definitions ready to hand to NewEngine.
func LoadFile(data []byte) ([]*Mock, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("mock: parsing mock file: %w", err)
	}

	mocks := make([]*Mock, 0, len(f.Mocks))
	for _, fm := range f.Mocks {
		m, err := fm.toMock()
		if err != nil {
			return nil, err
		}
		mocks = append(mocks, m)
	}
	return mocks, nil
}

// LoadFilePath reads and parses a mock file from disk.
func LoadFilePath(path string) ([]*Mock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mock: reading mock file %q: %w", path, err)
	}
	return LoadFile(data)
}

func toJSONValue(v interface{}) (jsonvalue.Value, error) {
	if v == nil {
		return jsonvalue.Null(), nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return jsonvalue.Value{}, err
	}
	return jsonvalue.Parse(b)
}

func (fm fileMock) toMock() (*Mock, error) {
	m := &Mock{State: fm.State, Type: StrategyType(fm.Type)}

	switch m.Type {
	case StrategyFixed:
		v, err := toJSONValue(fm.Response)
		if err != nil {
			return nil, fmt.Errorf("mock: state %q: %w", fm.State, err)
		}
		m.Response = v

	case StrategyConditional:
		for _, fc := range fm.Conditions {
			if fc.When != nil {
				whenV, err := toJSONValue(fc.When.Input)
				if err != nil {
					return nil, err
				}
				respV, err := toJSONValue(fc.Response)
				if err != nil {
					return nil, err
				}
				m.Conditions = append(m.Conditions, Condition{WhenInput: whenV, Response: respV})
				continue
			}
			defV, err := toJSONValue(fc.Default)
			if err != nil {
				return nil, err
			}
			m.Conditions = append(m.Conditions, Condition{Response: defV, IsDefault: true})
		}

	case StrategyStateful:
		for _, r := range fm.Responses {
			v, err := toJSONValue(r)
			if err != nil {
				return nil, err
			}
			m.Responses = append(m.Responses, v)
		}

	case StrategyError:
		if fm.Error == nil {
			return nil, fmt.Errorf("mock: state %q: type error requires an error block", fm.State)
		}
		m.Error = &ErrorSpec{Type: fm.Error.Type, Cause: fm.Error.Cause, Message: fm.Error.Message}

	case StrategyItemReader:
		m.ItemReader = &ItemReaderSpec{DataFile: fm.DataFile, DataFormat: fm.DataFormat}

	default:
		return nil, fmt.Errorf("mock: state %q: unknown mock type %q", fm.State, fm.Type)
	}

	return m, nil
}
