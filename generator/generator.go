// Package generator implements the generator retry manager: it drives
// an external content-generating callback against the validator,
// retrying when validation finds errors with the latest attempt's
// issues appended to the original prompt. Retries follow each other
// immediately, with no delay between attempts.
package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/stepflow/stepflow"
	"github.com/stepflow/stepflow/validator"
)

// Func is the external generator callback: given a prompt, produces raw
// mock/test file content (or an error, e.g. a timeout).
type Func func(ctx context.Context, prompt string) (string, error)

// ValidateFunc runs validator checks over generated content, returning
// the issues found. Callers typically close over a parsed state
// machine and wrap validator.ValidateMocks/ValidateTestFile plus
// whatever parsing the raw content needs first.
type ValidateFunc func(content string) []validator.Issue

// Options configures a Run.
type Options struct {
	MaxAttempts    int
	RetryOnTimeout bool
	Logger         zerolog.Logger
}

// Result is the outcome of a generate-validate-retry run:
// {success, attempts, content, issues, error?}.
type Result struct {
	Success  bool
	Attempts int
	Content  string
	Issues   []validator.Issue
	Error    error
}

const feedbackHeading = "VALIDATION FEEDBACK"

// Run drives gen against validate, retrying up to opts.MaxAttempts
// times. A generator error is retried only when opts.RetryOnTimeout is
// set and the error looks like a timeout; validation errors (not mere
// warnings) always trigger a retry with feedback appended to prompt;
// warnings alone succeed immediately.
func Run(ctx context.Context, gen Func, validate ValidateFunc, prompt string, opts Options) Result {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 1
	}

	currentPrompt := prompt
	var lastIssues []validator.Issue

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		opts.Logger.Info().
			Str("event", "generator_attempt").
			Int("attempt", attempt).
			Msg("generator attempt")

		content, err := gen(ctx, currentPrompt)
		if err != nil {
			if opts.RetryOnTimeout && stepflow.IsTimeoutError(err) && attempt < opts.MaxAttempts {
				opts.Logger.Warn().
					Str("event", "generator_timeout_retry").
					Int("attempt", attempt).
					Msg("generator call timed out, retrying")
				continue
			}
			return Result{Success: false, Attempts: attempt, Error: err}
		}

		issues := validate(content)
		lastIssues = issues
		if !hasErrors(issues) {
			return Result{Success: true, Attempts: attempt, Content: content, Issues: issues}
		}

		opts.Logger.Warn().
			Str("event", "generator_validation_failed").
			Int("attempt", attempt).
			Int("issue_count", len(issues)).
			Msg("generated content failed validation")

		if attempt == opts.MaxAttempts {
			return Result{Success: false, Attempts: attempt, Content: content, Issues: issues,
				Error: fmt.Errorf("generator: validation failed after %d attempts", attempt)}
		}

		currentPrompt = composeFeedbackPrompt(prompt, issues)
	}

	return Result{Success: false, Attempts: opts.MaxAttempts, Issues: lastIssues,
		Error: fmt.Errorf("generator: exhausted %d attempts", opts.MaxAttempts)}
}

func hasErrors(issues []validator.Issue) bool {
	for _, i := range issues {
		if i.Level == validator.LevelError {
			return true
		}
	}
	return false
}

// composeFeedbackPrompt appends a VALIDATION FEEDBACK section listing
// every issue, whatever its level (with suggestions when present), and a
// canned reminder, so the next generator call sees what to fix.
func composeFeedbackPrompt(original string, issues []validator.Issue) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\n\n")
	b.WriteString(feedbackHeading)
	b.WriteString(":\n")
	for _, i := range issues {
		b.WriteString(fmt.Sprintf("- [%s] %s", i.Level, i.Message))
		if i.Suggestion != "" {
			b.WriteString(fmt.Sprintf(" (did you mean %q?)", i.Suggestion))
		}
		b.WriteString("\n")
	}
	b.WriteString("Fix every error above and resubmit the complete corrected file.\n")
	return b.String()
}
