package mock

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/stepflow/stepflow/jsonvalue"
)

// LoadDataFile reads the items backing an itemReader mock from disk in
// one of four formats. It is the default DataFileLoader; tests
// substitute their own to avoid touching the filesystem.
func LoadDataFile(path, format string) ([]jsonvalue.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("mock: reading data file %q: %w", path, err)
	}

	switch strings.ToLower(format) {
	case "json":
		return loadJSONArray(data)
	case "jsonl":
		return loadJSONLines(data)
	case "csv":
		return loadCSV(data)
	case "yaml", "yml":
		return loadYAMLArray(data)
	default:
		return nil, fmt.Errorf("mock: unsupported itemReader dataFormat %q", format)
	}
}

func loadJSONArray(data []byte) ([]jsonvalue.Value, error) {
	v, err := jsonvalue.Parse(data)
	if err != nil {
		return nil, err
	}
	if !v.IsArray() {
		return nil, fmt.Errorf("mock: json data file must contain a top-level array")
	}
	return v.Array(), nil
}

func loadJSONLines(data []byte) ([]jsonvalue.Value, error) {
	var items []jsonvalue.Value
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		v, err := jsonvalue.Parse([]byte(line))
		if err != nil {
			return nil, fmt.Errorf("mock: parsing jsonl line: %w", err)
		}
		items = append(items, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func loadCSV(data []byte) ([]jsonvalue.Value, error) {
	r := csv.NewReader(strings.NewReader(string(data)))
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("mock: parsing csv data file: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	header := records[0]
	items := make([]jsonvalue.Value, 0, len(records)-1)
	for _, row := range records[1:] {
		obj := jsonvalue.NewObject()
		for i, col := range header {
			if i < len(row) {
				obj.Set(col, jsonvalue.String(row[i]))
			}
		}
		items = append(items, jsonvalue.Obj(obj))
	}
	return items, nil
}

func loadYAMLArray(data []byte) ([]jsonvalue.Value, error) {
	var raw []interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("mock: parsing yaml data file: %w", err)
	}
	items := make([]jsonvalue.Value, len(raw))
	for i, r := range raw {
		items[i] = jsonvalue.FromNative(yamlToJSONNative(r))
	}
	return items, nil
}

// yamlToJSONNative recursively converts yaml.v3's map[string]interface{}
// decoding (which in practice yields map[string]interface{} for mapping
// nodes when unmarshaled into interface{}) into the plain
// map[string]interface{}/[]interface{} shape jsonvalue.FromNative expects.
func yamlToJSONNative(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[k] = yamlToJSONNative(vv)
		}
		return out
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			out[fmt.Sprintf("%v", k)] = yamlToJSONNative(vv)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = yamlToJSONNative(vv)
		}
		return out
	default:
		return t
	}
}
