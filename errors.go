package stepflow

import (
	"errors"
	"fmt"
	"strings"
)

// ASL error-name strings (spec §7). These are matched as plain strings
// inside Retry/Catch ErrorEquals lists, never wrapped in a typed Go
// error hierarchy, because ASL's own error taxonomy is just strings.
const (
	ErrStatesTaskFailed        = "States.TaskFailed"
	ErrStatesTimeout           = "States.Timeout"
	ErrStatesRuntime           = "States.Runtime"
	ErrStatesItemReaderFailed  = "States.ItemReaderFailed"
	ErrStatesDataLimitExceeded = "States.DataLimitExceeded"
	ErrStatesFailed            = "States.Failed"
	ErrStatesAll               = "States.ALL"
)

// ASLError is the structural analog of the teacher's WorkflowError: a
// typed error carrying the ASL {Error, Cause} pair that Retry/Catch
// match against and that the driver surfaces verbatim on an uncaught
// failure.
type ASLError struct {
	ASLErrorName string `json:"Error"`
	Cause        string `json:"Cause,omitempty"`
}

// Error implements the error interface.
func (e *ASLError) Error() string {
	if e.Cause != "" {
		return fmt.Sprintf("%s: %s", e.ASLErrorName, e.Cause)
	}
	return e.ASLErrorName
}

// NewASLError creates an ASLError.
func NewASLError(name, cause string) *ASLError {
	return &ASLError{ASLErrorName: name, Cause: cause}
}

// ToASLError coerces any Go error into an ASLError, tagging unrecognized
// errors as States.TaskFailed so Retry/Catch rules always have an
// Error field to match against.
func ToASLError(err error) *ASLError {
	if err == nil {
		return nil
	}
	var ae *ASLError
	if errors.As(err, &ae) {
		return ae
	}
	return &ASLError{ASLErrorName: ErrStatesTaskFailed, Cause: err.Error()}
}

// MatchesErrorEquals reports whether err's ASL error name is present in
// errorEquals, honoring the States.ALL wildcard.
func MatchesErrorEquals(err *ASLError, errorEquals []string) bool {
	if err == nil {
		return false
	}
	for _, candidate := range errorEquals {
		if candidate == ErrStatesAll || candidate == err.ASLErrorName {
			return true
		}
	}
	return false
}

// IsTimeoutError reports whether err represents a States.Timeout or a
// Go context-deadline error.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	var ae *ASLError
	if errors.As(err, &ae) {
		return ae.ASLErrorName == ErrStatesTimeout
	}
	return strings.Contains(err.Error(), "context deadline exceeded")
}
