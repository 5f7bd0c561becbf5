package stepflow

import "github.com/stepflow/stepflow/jsonvalue"

// QueryLanguage selects the expression language a state machine or
// state evaluates its path/transformation fields in.
type QueryLanguage string

const (
	QueryLanguageJSONPath QueryLanguage = "JSONPath"
	QueryLanguageJSONata  QueryLanguage = "JSONata"
)

// StateType is the discriminator tag of the nine ASL state variants.
type StateType string

const (
	StateTypeTask           StateType = "Task"
	StateTypeChoice         StateType = "Choice"
	StateTypePass           StateType = "Pass"
	StateTypeWait           StateType = "Wait"
	StateTypeSucceed        StateType = "Succeed"
	StateTypeFail           StateType = "Fail"
	StateTypeMap            StateType = "Map"
	StateTypeDistributedMap StateType = "DistributedMap"
	StateTypeParallel       StateType = "Parallel"
)

// StateMachine is an immutable, already-validated ASL document. Build
// it through stepflow/construct; nothing downstream re-checks shape.
type StateMachine struct {
	QueryLanguage QueryLanguage
	StartAt       string
	States        map[string]*State
	Comment       string
}

// Retrier is one entry of a state's Retry list.
type Retrier struct {
	ErrorEquals     []string
	IntervalSeconds float64
	MaxAttempts     int
	BackoffRate     float64
}

// Catcher is one entry of a state's Catch list.
type Catcher struct {
	ErrorEquals []string
	Next        string
	ResultPath  string // JSONPath mode only; empty means "$"
}

// Choice is one entry of a Choice state's Choices list. Exactly one of
// the JSONPath comparator form or the JSONata Condition form is
// populated, matching the owning state machine's QueryLanguage.
type Choice struct {
	// JSONPath form.
	Variable   string
	Comparator string // e.g. "StringEquals", "NumericGreaterThanPath", ...
	Value      jsonvalue.Value
	ValuePath  string // set when Comparator has a "Path" suffix

	// Boolean combinators (JSONPath form), each holding nested Choices.
	And []Choice
	Or  []Choice
	Not *Choice

	// JSONata form.
	Condition string

	Next string
}

// ItemBatcher configures DistributedMap batch grouping: items are
// gathered into fixed-size groups before each is handed to ItemProcessor.
type ItemBatcher struct {
	MaxItemsPerBatch      int
	MaxInputBytesPerBatch int
	BatchInput            jsonvalue.Value
}

// ItemReaderSpec describes a DistributedMap ItemReader: a mock-engine
// itemReader strategy keyed by the owning state's name.
type ItemReaderSpec struct {
	Resource string
	// Parameters is carried for shape-completeness; the local simulator
	// resolves items via the mock engine's itemReader strategy rather
	// than contacting Resource.
	Parameters jsonvalue.Value
}

// ResultWriterSpec describes where a DistributedMap's per-item results
// would be written in real Step Functions; the simulator never writes
// to it but surfaces the configured destination in the summary object.
type ResultWriterSpec struct {
	Resource string
	Bucket   string
	Prefix   string
}

// State is the tagged union over the nine ASL state variants. Shared
// fields appear at top level; variant-specific fields are grouped by
// comment. construct.Build is the only place that decides which fields
// are legal for a given Type/QueryLanguage combination.
type State struct {
	Name          string
	Type          StateType
	QueryLanguage QueryLanguage
	Comment       string

	Next string
	End  bool

	InputPath       string // JSONPath only; default "$" when HasInputPath is false
	HasInputPath    bool
	InputPathIsNull bool // explicit `"InputPath": null` means "discard input"

	OutputPath       string // JSONPath only; default "$" when HasOutputPath is false
	HasOutputPath    bool
	OutputPathIsNull bool // explicit `"OutputPath": null` means "discard output"

	Parameters     jsonvalue.Value // JSONPath only
	Arguments      jsonvalue.Value // JSONata only
	ResultSelector jsonvalue.Value // JSONPath only
	ResultPath     string          // JSONPath only; "" with HasResultPath false means unset ("$"), with HasResultPath true an explicit null (discard)
	HasResultPath  bool
	Output         string // JSONata only; raw expression text incl. {% %} or template

	Retry []Retrier
	Catch []Catcher

	Assign jsonvalue.Value // object whose values are JSONPath/"$name" or JSONata exprs

	// Task
	Resource string
	Timeout  int

	// Pass
	Result jsonvalue.Value

	// Choice
	Choices []Choice
	Default string

	// Wait
	Seconds     float64
	SecondsPath string
	Timestamp   string
	TimestampPath string

	// Fail
	ErrorString string
	Cause       string

	// Map / DistributedMap
	ItemsPath         string
	ItemSelector      jsonvalue.Value
	ItemProcessor     *StateMachine
	MaxConcurrency    int // meaningful only when HasMaxConcurrency is true; 0 means unbounded
	HasMaxConcurrency bool

	// DistributedMap-only
	ItemReader                 *ItemReaderSpec
	ItemBatcher                *ItemBatcher
	ResultWriter               *ResultWriterSpec
	ToleratedFailurePercentage float64
	ToleratedFailureCount      int

	// Parallel
	Branches []*StateMachine
}

// IsTerminal reports whether this state type ends the machine outright
// (Succeed/Fail never have a Next).
func (t StateType) IsTerminal() bool {
	return t == StateTypeSucceed || t == StateTypeFail
}
