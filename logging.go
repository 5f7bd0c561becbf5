package stepflow

import (
	"time"

	"github.com/rs/zerolog"
)

// Log event names, surfaced as the "event" field on every structured
// log line so they can be grepped/filtered independent of the message.
const (
	EventExecutionStarted   = "execution_started"
	EventExecutionSucceeded = "execution_succeeded"
	EventExecutionFailed    = "execution_failed"
	EventExecutionAborted   = "execution_aborted"
	EventExecutionTimedOut  = "execution_timed_out"

	EventStateEntered   = "state_entered"
	EventStateRetrying  = "state_retrying"
	EventStateCaught    = "state_caught"
	EventStateSucceeded = "state_succeeded"
	EventStateFailed    = "state_failed"

	EventMockInvoked = "mock_invoked"
)

// LogExecutionStarted logs the start of a run.
func LogExecutionStarted(logger zerolog.Logger, executionID, stateMachineName string) {
	logger.Info().
		Str("event", EventExecutionStarted).
		Str("execution_id", executionID).
		Str("state_machine", stateMachineName).
		Msg("execution started")
}

// LogExecutionSucceeded logs a successful run completion.
func LogExecutionSucceeded(logger zerolog.Logger, executionID string, duration time.Duration) {
	logger.Info().
		Str("event", EventExecutionSucceeded).
		Str("execution_id", executionID).
		Dur("duration", duration).
		Msg("execution succeeded")
}

// LogExecutionFailed logs an uncaught failure terminating a run.
func LogExecutionFailed(logger zerolog.Logger, executionID string, err error) {
	logger.Error().
		Str("event", EventExecutionFailed).
		Str("execution_id", executionID).
		Err(err).
		Msg("execution failed")
}

// LogExecutionTimedOut logs a run exceeding its overall timeout.
func LogExecutionTimedOut(logger zerolog.Logger, executionID string) {
	logger.Warn().
		Str("event", EventExecutionTimedOut).
		Str("execution_id", executionID).
		Msg("execution timed out")
}

// LogStateEntered logs a state beginning execution.
func LogStateEntered(logger zerolog.Logger, stateName string) {
	logger.Debug().
		Str("event", EventStateEntered).
		Str("state", stateName).
		Msg("state entered")
}

// LogStateRetrying logs a Retry attempt being scheduled.
func LogStateRetrying(logger zerolog.Logger, stateName string, attempt int, delay time.Duration, errorName string) {
	logger.Warn().
		Str("event", EventStateRetrying).
		Str("state", stateName).
		Int("attempt", attempt).
		Dur("delay", delay).
		Str("error", errorName).
		Msg("state retrying")
}

// LogStateCaught logs a Catch clause intercepting a state's failure.
func LogStateCaught(logger zerolog.Logger, stateName, errorName, next string) {
	logger.Info().
		Str("event", EventStateCaught).
		Str("state", stateName).
		Str("error", errorName).
		Str("next", next).
		Msg("state error caught")
}

// LogStateSucceeded logs a state finishing without error.
func LogStateSucceeded(logger zerolog.Logger, stateName string, duration time.Duration) {
	logger.Debug().
		Str("event", EventStateSucceeded).
		Str("state", stateName).
		Dur("duration", duration).
		Msg("state succeeded")
}

// LogStateFailed logs a state's terminal (uncaught, unretried) failure.
func LogStateFailed(logger zerolog.Logger, stateName string, err error) {
	logger.Error().
		Str("event", EventStateFailed).
		Str("state", stateName).
		Err(err).
		Msg("state failed")
}

// LogMockInvoked logs a Task state being dispatched through the mock engine.
func LogMockInvoked(logger zerolog.Logger, resource, strategy string) {
	logger.Debug().
		Str("event", EventMockInvoked).
		Str("resource", resource).
		Str("strategy", strategy).
		Msg("mock invoked")
}

// ExecutionLogger returns a logger enriched with execution-scoped fields.
func ExecutionLogger(base zerolog.Logger, executionID, stateMachineName string) zerolog.Logger {
	return base.With().
		Str("execution_id", executionID).
		Str("state_machine", stateMachineName).
		Logger()
}

// StateLogger returns a logger enriched with state-scoped fields.
func StateLogger(execLogger zerolog.Logger, stateName string, attempt int) zerolog.Logger {
	return execLogger.With().
		Str("state", stateName).
		Int("attempt", attempt).
		Logger()
}
