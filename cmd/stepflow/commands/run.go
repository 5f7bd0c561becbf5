package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/construct"
	"github.com/stepflow/stepflow/engine"
	"github.com/stepflow/stepflow/jsonvalue"
	"github.com/stepflow/stepflow/mock"
)

var (
	runMockPath  string
	runInputPath string
)

var runCmd = &cobra.Command{
	Use:   "run <statemachine.json>",
	Short: "Run a state machine against a mock file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := loadStateMachine(args[0])
		if err != nil {
			return err
		}

		mocks, err := loadMocks(runMockPath)
		if err != nil {
			return err
		}

		input, err := loadInput(runInputPath)
		if err != nil {
			return err
		}

		result, err := engine.Run(sm, input, mocks)
		if err != nil {
			return fmt.Errorf("run: %w", err)
		}

		return printJSON(result)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runMockPath, "mock", "", "path to a mock YAML file")
	runCmd.Flags().StringVar(&runInputPath, "input", "", "path to a JSON input file (defaults to {})")
}

func loadStateMachine(path string) (*stepflow.StateMachine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading state machine %q: %w", path, err)
	}
	sm, err := construct.Build(data)
	if err != nil {
		return nil, fmt.Errorf("building state machine %q: %w", path, err)
	}
	return sm, nil
}

func loadMocks(path string) (*mock.Engine, error) {
	if path == "" {
		return mock.NewEngine(nil, nil), nil
	}
	mocks, err := mock.LoadFilePath(path)
	if err != nil {
		return nil, fmt.Errorf("loading mocks %q: %w", path, err)
	}
	return mock.NewEngine(mocks, nil), nil
}

func loadInput(path string) (jsonvalue.Value, error) {
	if path == "" {
		return jsonvalue.Obj(jsonvalue.NewObject()), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return jsonvalue.Value{}, fmt.Errorf("reading input %q: %w", path, err)
	}
	return jsonvalue.Parse(data)
}

func printJSON(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}
	fmt.Println(string(b))
	return nil
}
