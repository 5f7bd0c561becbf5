package commands

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/stepflow/stepflow/generator"
	"github.com/stepflow/stepflow/mock"
	"github.com/stepflow/stepflow/validator"
)

var (
	generatePrompt      string
	generateCommand     string
	generateMaxAttempts int
)

var generateCmd = &cobra.Command{
	Use:   "generate <statemachine.json>",
	Short: "Drive an external generator command against the mock/test validator",
	Long: `generate pipes a prompt to --command on stdin, expecting a mock YAML
document on stdout. If validation finds errors, the issue list is appended
to the prompt as VALIDATION FEEDBACK and --command is invoked again, up to
--max-attempts times.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if generateCommand == "" {
			return fmt.Errorf("generate: --command is required")
		}

		sm, err := loadStateMachine(args[0])
		if err != nil {
			return err
		}

		gen := func(ctx context.Context, prompt string) (string, error) {
			c := exec.CommandContext(ctx, "sh", "-c", generateCommand)
			c.Stdin = bytes.NewBufferString(prompt)
			var out bytes.Buffer
			c.Stdout = &out
			if err := c.Run(); err != nil {
				return "", fmt.Errorf("generator command failed: %w", err)
			}
			return out.String(), nil
		}

		validate := func(content string) []validator.Issue {
			mocks, err := mock.LoadFile([]byte(content))
			if err != nil {
				return []validator.Issue{{Level: validator.LevelError, Message: fmt.Sprintf("generated content is not a valid mock file: %v", err)}}
			}
			return validator.ValidateMocks(sm, mocks)
		}

		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
		res := generator.Run(cmd.Context(), gen, validate, generatePrompt, generator.Options{
			MaxAttempts: generateMaxAttempts,
			Logger:      logger,
		})

		if outputJSON {
			return printJSON(res)
		}
		if res.Success {
			fmt.Println(res.Content)
			return nil
		}
		printIssues(res.Issues)
		return fmt.Errorf("generate: %v", res.Error)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVar(&generatePrompt, "prompt", "", "initial generator prompt")
	generateCmd.Flags().StringVar(&generateCommand, "command", "", "shell command invoked with the prompt on stdin, mock YAML expected on stdout")
	generateCmd.Flags().IntVar(&generateMaxAttempts, "max-attempts", 3, "maximum generator attempts before giving up")
}
