package construct

import (
	"fmt"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/jsonvalue"
)

func str(obj *jsonvalue.Object, key string) (string, bool) {
	v, ok := obj.Get(key)
	if !ok || !v.IsString() {
		return "", false
	}
	return v.Str(), true
}

func num(obj *jsonvalue.Object, key string) (float64, bool) {
	v, ok := obj.Get(key)
	if !ok || !v.IsNumber() {
		return 0, false
	}
	return v.Number(), true
}

func buildState(name string, v jsonvalue.Value, inheritedLang stepflow.QueryLanguage) (*stepflow.State, error) {
	if !v.IsObject() {
		return nil, fmt.Errorf("construct: state %q must be a JSON object", name)
	}
	obj := v.Object()

	typeStr, ok := str(obj, "Type")
	if !ok {
		return nil, fmt.Errorf("construct: state %q missing required Type", name)
	}
	st := &stepflow.State{
		Name:          name,
		Type:          stepflow.StateType(typeStr),
		QueryLanguage: inheritedLang,
	}
	if ql, ok := str(obj, "QueryLanguage"); ok {
		st.QueryLanguage = stepflow.QueryLanguage(ql)
	}
	if c, ok := str(obj, "Comment"); ok {
		st.Comment = c
	}
	if n, ok := str(obj, "Next"); ok {
		st.Next = n
	}
	if e, ok := obj.Get("End"); ok && e.IsBool() {
		st.End = e.Bool()
	}

	fieldErr := func(field string) error {
		return fmt.Errorf("construct: state %q: field %q is not permitted in %s mode", name, field, st.QueryLanguage)
	}

	isJSONata := st.QueryLanguage == stepflow.QueryLanguageJSONata

	// Mode-mismatch checks shared by most variants.
	if isJSONata {
		for _, forbidden := range []string{"InputPath", "OutputPath", "Parameters", "ResultSelector", "ResultPath"} {
			if _, ok := obj.Get(forbidden); ok {
				return nil, fieldErr(forbidden)
			}
		}
	} else {
		for _, forbidden := range []string{"Arguments", "Output"} {
			if _, ok := obj.Get(forbidden); ok {
				return nil, fieldErr(forbidden)
			}
		}
	}

	if !isJSONata {
		if p, ok := obj.Get("InputPath"); ok {
			st.HasInputPath = true
			if p.IsNull() {
				st.InputPathIsNull = true
			} else if p.IsString() {
				st.InputPath = p.Str()
			} else {
				return nil, fmt.Errorf("construct: state %q: InputPath must be a string or null", name)
			}
		}
		if p, ok := obj.Get("OutputPath"); ok {
			st.HasOutputPath = true
			if p.IsNull() {
				st.OutputPathIsNull = true
			} else if p.IsString() {
				st.OutputPath = p.Str()
			} else {
				return nil, fmt.Errorf("construct: state %q: OutputPath must be a string or null", name)
			}
		}
		if p, ok := obj.Get("Parameters"); ok {
			st.Parameters = p
		}
		if p, ok := obj.Get("ResultSelector"); ok {
			st.ResultSelector = p
		}
		if p, ok := obj.Get("ResultPath"); ok {
			st.HasResultPath = true
			if p.IsNull() {
				st.ResultPath = "" // handled as "discard" by the data-flow pipeline
			} else if p.IsString() {
				st.ResultPath = p.Str()
			} else {
				return nil, fmt.Errorf("construct: state %q: ResultPath must be a string or null", name)
			}
		}
	} else {
		if a, ok := obj.Get("Arguments"); ok {
			st.Arguments = a
		}
		if o, ok := str(obj, "Output"); ok {
			st.Output = o
		}
	}

	if a, ok := obj.Get("Assign"); ok {
		st.Assign = a
	}

	if r, ok := obj.Get("Retry"); ok {
		retries, err := buildRetries(name, r)
		if err != nil {
			return nil, err
		}
		st.Retry = retries
	}
	if c, ok := obj.Get("Catch"); ok {
		catches, err := buildCatches(name, c, isJSONata)
		if err != nil {
			return nil, err
		}
		st.Catch = catches
	}

	switch st.Type {
	case stepflow.StateTypePass:
		if _, ok := obj.Get("Arguments"); ok {
			return nil, fmt.Errorf("construct: state %q: Pass never accepts Arguments", name)
		}
		if r, ok := obj.Get("Result"); ok {
			st.Result = r
		}
	case stepflow.StateTypeTask:
		if _, ok := obj.Get("Result"); ok {
			return nil, fmt.Errorf("construct: state %q: Task forbids Result (Pass-only)", name)
		}
		if r, ok := str(obj, "Resource"); ok {
			st.Resource = r
		}
		if t, ok := num(obj, "TimeoutSeconds"); ok {
			st.Timeout = int(t)
		}
	case stepflow.StateTypeChoice:
		choicesV, ok := obj.Get("Choices")
		if !ok || !choicesV.IsArray() {
			return nil, fmt.Errorf("construct: state %q: Choice requires a Choices array", name)
		}
		choices, err := buildChoices(name, choicesV.Array(), isJSONata)
		if err != nil {
			return nil, err
		}
		st.Choices = choices
		def, ok := str(obj, "Default")
		if !ok {
			return nil, fmt.Errorf("construct: state %q: Choice requires Default", name)
		}
		st.Default = def
	case stepflow.StateTypeWait:
		if s, ok := num(obj, "Seconds"); ok {
			st.Seconds = s
		}
		if s, ok := str(obj, "SecondsPath"); ok {
			st.SecondsPath = s
		}
		if s, ok := str(obj, "Timestamp"); ok {
			st.Timestamp = s
		}
		if s, ok := str(obj, "TimestampPath"); ok {
			st.TimestampPath = s
		}
	case stepflow.StateTypeFail:
		if e, ok := str(obj, "Error"); ok {
			st.ErrorString = e
		}
		if c, ok := str(obj, "Cause"); ok {
			st.Cause = c
		}
	case stepflow.StateTypeMap:
		if err := buildMapFields(name, obj, st); err != nil {
			return nil, err
		}
		if _, ok := obj.Get("Result"); ok {
			return nil, fmt.Errorf("construct: state %q: Map forbids Result (Pass-only)", name)
		}
	case stepflow.StateTypeDistributedMap:
		if err := buildMapFields(name, obj, st); err != nil {
			return nil, err
		}
		if err := buildDistributedMapFields(name, obj, st); err != nil {
			return nil, err
		}
		if _, ok := obj.Get("Result"); ok {
			return nil, fmt.Errorf("construct: state %q: Map forbids Result (Pass-only)", name)
		}
	case stepflow.StateTypeParallel:
		branchesV, ok := obj.Get("Branches")
		if !ok || !branchesV.IsArray() {
			return nil, fmt.Errorf("construct: state %q: Parallel requires a Branches array", name)
		}
		for _, bv := range branchesV.Array() {
			branch, err := buildMachine(bv, st.QueryLanguage)
			if err != nil {
				return nil, fmt.Errorf("construct: state %q: branch: %w", name, err)
			}
			st.Branches = append(st.Branches, branch)
		}
	case stepflow.StateTypeSucceed:
		// No variant-specific fields.
	default:
		return nil, fmt.Errorf("construct: state %q: unknown Type %q", name, typeStr)
	}

	return st, nil
}

func buildMapFields(name string, obj *jsonvalue.Object, st *stepflow.State) error {
	if p, ok := str(obj, "ItemsPath"); ok {
		st.ItemsPath = p
	}
	if s, ok := obj.Get("ItemSelector"); ok {
		st.ItemSelector = s
	}
	if c, ok := num(obj, "MaxConcurrency"); ok {
		st.MaxConcurrency = int(c)
		st.HasMaxConcurrency = true
	}
	procV, ok := obj.Get("ItemProcessor")
	if !ok {
		procV, ok = obj.Get("Iterator") // legacy field name accepted, per AWS compatibility
	}
	if !ok {
		return fmt.Errorf("construct: state %q: Map/DistributedMap requires ItemProcessor", name)
	}
	proc, err := buildMachine(procV, st.QueryLanguage)
	if err != nil {
		return fmt.Errorf("construct: state %q: ItemProcessor: %w", name, err)
	}
	st.ItemProcessor = proc
	return nil
}

func buildDistributedMapFields(name string, obj *jsonvalue.Object, st *stepflow.State) error {
	if irV, ok := obj.Get("ItemReader"); ok {
		irObj := irV.Object()
		ir := &stepflow.ItemReaderSpec{}
		if r, ok := str(irObj, "Resource"); ok {
			ir.Resource = r
		}
		if p, ok := irObj.Get("Parameters"); ok {
			ir.Parameters = p
		}
		st.ItemReader = ir
	}
	if ibV, ok := obj.Get("ItemBatcher"); ok {
		ibObj := ibV.Object()
		ib := &stepflow.ItemBatcher{}
		if n, ok := num(ibObj, "MaxItemsPerBatch"); ok {
			ib.MaxItemsPerBatch = int(n)
		}
		if n, ok := num(ibObj, "MaxInputBytesPerBatch"); ok {
			ib.MaxInputBytesPerBatch = int(n)
		}
		if b, ok := ibObj.Get("BatchInput"); ok {
			ib.BatchInput = b
		}
		st.ItemBatcher = ib
	}
	if rwV, ok := obj.Get("ResultWriter"); ok {
		rwObj := rwV.Object()
		rw := &stepflow.ResultWriterSpec{}
		if r, ok := str(rwObj, "Resource"); ok {
			rw.Resource = r
		}
		if b, ok := str(rwObj, "Bucket"); ok {
			rw.Bucket = b
		}
		if p, ok := str(rwObj, "Prefix"); ok {
			rw.Prefix = p
		}
		st.ResultWriter = rw
	}
	if n, ok := num(obj, "ToleratedFailurePercentage"); ok {
		st.ToleratedFailurePercentage = n
	}
	if n, ok := num(obj, "ToleratedFailureCount"); ok {
		st.ToleratedFailureCount = int(n)
	}
	return nil
}

func buildRetries(stateName string, v jsonvalue.Value) ([]stepflow.Retrier, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("construct: state %q: Retry must be an array", stateName)
	}
	var out []stepflow.Retrier
	for _, rv := range v.Array() {
		robj := rv.Object()
		r := stepflow.Retrier{MaxAttempts: 3, IntervalSeconds: 1, BackoffRate: 2.0}
		eeV, ok := robj.Get("ErrorEquals")
		if !ok || !eeV.IsArray() {
			return nil, fmt.Errorf("construct: state %q: Retry entry requires ErrorEquals array", stateName)
		}
		for _, e := range eeV.Array() {
			r.ErrorEquals = append(r.ErrorEquals, e.Str())
		}
		if n, ok := num(robj, "IntervalSeconds"); ok {
			r.IntervalSeconds = n
		}
		if n, ok := num(robj, "MaxAttempts"); ok {
			r.MaxAttempts = int(n)
		}
		if n, ok := num(robj, "BackoffRate"); ok {
			r.BackoffRate = n
		}
		out = append(out, r)
	}
	return out, nil
}

func buildCatches(stateName string, v jsonvalue.Value, isJSONata bool) ([]stepflow.Catcher, error) {
	if !v.IsArray() {
		return nil, fmt.Errorf("construct: state %q: Catch must be an array", stateName)
	}
	var out []stepflow.Catcher
	for _, cv := range v.Array() {
		cobj := cv.Object()
		c := stepflow.Catcher{}
		eeV, ok := cobj.Get("ErrorEquals")
		if !ok || !eeV.IsArray() {
			return nil, fmt.Errorf("construct: state %q: Catch entry requires ErrorEquals array", stateName)
		}
		for _, e := range eeV.Array() {
			c.ErrorEquals = append(c.ErrorEquals, e.Str())
		}
		next, ok := str(cobj, "Next")
		if !ok {
			return nil, fmt.Errorf("construct: state %q: Catch entry requires Next", stateName)
		}
		c.Next = next
		if !isJSONata {
			if rp, ok := str(cobj, "ResultPath"); ok {
				c.ResultPath = rp
			}
		} else if _, ok := cobj.Get("ResultPath"); ok {
			return nil, fmt.Errorf("construct: state %q: Catch.ResultPath is not permitted in JSONata mode", stateName)
		}
		out = append(out, c)
	}
	return out, nil
}

func buildChoices(stateName string, items []jsonvalue.Value, isJSONata bool) ([]stepflow.Choice, error) {
	var out []stepflow.Choice
	for _, cv := range items {
		c, err := buildChoice(stateName, cv, isJSONata)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

var choiceComparators = []string{
	"StringEquals", "StringEqualsPath", "StringLessThan", "StringLessThanPath",
	"StringGreaterThan", "StringGreaterThanPath", "StringLessThanEquals", "StringLessThanEqualsPath",
	"StringGreaterThanEquals", "StringGreaterThanEqualsPath", "StringMatches",
	"NumericEquals", "NumericEqualsPath", "NumericLessThan", "NumericLessThanPath",
	"NumericGreaterThan", "NumericGreaterThanPath", "NumericLessThanEquals", "NumericLessThanEqualsPath",
	"NumericGreaterThanEquals", "NumericGreaterThanEqualsPath",
	"BooleanEquals", "BooleanEqualsPath",
	"TimestampEquals", "TimestampEqualsPath", "TimestampLessThan", "TimestampLessThanPath",
	"TimestampGreaterThan", "TimestampGreaterThanPath", "TimestampLessThanEquals", "TimestampLessThanEqualsPath",
	"TimestampGreaterThanEquals", "TimestampGreaterThanEqualsPath",
	"IsPresent", "IsNull", "IsNumeric", "IsString", "IsBoolean", "IsTimestamp",
}

func buildChoice(stateName string, v jsonvalue.Value, isJSONata bool) (stepflow.Choice, error) {
	c := stepflow.Choice{}
	obj := v.Object()

	if n, ok := str(obj, "Next"); ok {
		c.Next = n
	}

	if isJSONata {
		cond, ok := str(obj, "Condition")
		if !ok {
			return c, fmt.Errorf("construct: state %q: JSONata Choice entry requires Condition", stateName)
		}
		c.Condition = cond
		return c, nil
	}

	if av, ok := obj.Get("And"); ok && av.IsArray() {
		sub, err := buildChoices(stateName, av.Array(), false)
		if err != nil {
			return c, err
		}
		c.And = sub
		return c, nil
	}
	if ov, ok := obj.Get("Or"); ok && ov.IsArray() {
		sub, err := buildChoices(stateName, ov.Array(), false)
		if err != nil {
			return c, err
		}
		c.Or = sub
		return c, nil
	}
	if nv, ok := obj.Get("Not"); ok {
		sub, err := buildChoice(stateName, nv, false)
		if err != nil {
			return c, err
		}
		c.Not = &sub
		return c, nil
	}

	variable, ok := str(obj, "Variable")
	if !ok {
		return c, fmt.Errorf("construct: state %q: JSONPath Choice entry requires Variable, And, Or, or Not", stateName)
	}
	c.Variable = variable

	for _, comparator := range choiceComparators {
		val, ok := obj.Get(comparator)
		if !ok {
			continue
		}
		c.Comparator = comparator
		if val.IsString() && len(comparator) > 4 && comparator[len(comparator)-4:] == "Path" {
			c.ValuePath = val.Str()
		} else {
			c.Value = val
		}
		return c, nil
	}
	return c, fmt.Errorf("construct: state %q: Choice entry for Variable %q has no recognized comparator", stateName, variable)
}
