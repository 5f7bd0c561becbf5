package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stepflow/stepflow/mock"
	"github.com/stepflow/stepflow/testfile"
	"github.com/stepflow/stepflow/validator"
)

var (
	validateMockPath string
	validateTestPath string
)

var validateCmd = &cobra.Command{
	Use:   "validate <statemachine.json>",
	Short: "Lint a mock or test file against a state machine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sm, err := loadStateMachine(args[0])
		if err != nil {
			return err
		}

		var issues []validator.Issue

		if validateMockPath != "" {
			mocks, err := mock.LoadFilePath(validateMockPath)
			if err != nil {
				return fmt.Errorf("loading mocks %q: %w", validateMockPath, err)
			}
			issues = append(issues, validator.ValidateMocks(sm, mocks)...)
		}

		if validateTestPath != "" {
			tf, err := testfile.LoadPath(validateTestPath)
			if err != nil {
				return fmt.Errorf("loading test file %q: %w", validateTestPath, err)
			}
			issues = append(issues, validator.ValidateTestFile(sm, tf)...)
		}

		if validateMockPath == "" && validateTestPath == "" {
			return fmt.Errorf("validate: pass --mock and/or --test")
		}

		if outputJSON {
			return printJSON(issues)
		}
		printIssues(issues)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateMockPath, "mock", "", "path to a mock YAML file")
	validateCmd.Flags().StringVar(&validateTestPath, "test", "", "path to a test YAML file")
}

func printIssues(issues []validator.Issue) {
	if len(issues) == 0 {
		fmt.Println("no issues found")
		return
	}
	for _, i := range issues {
		if i.Suggestion != "" {
			fmt.Printf("[%s] %s (did you mean %q?)\n", i.Level, i.Message, i.Suggestion)
			continue
		}
		fmt.Printf("[%s] %s\n", i.Level, i.Message)
	}
}
