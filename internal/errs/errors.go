// Package errs holds the error taxonomy shared by the task, render, runner and
// orchestrator packages. Every error carries a sentinel usable with errors.Is.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrTypeMismatch             = errors.New("type mismatch")
	ErrMissingRequiredParameter = errors.New("missing required parameter")
	ErrUnknownParameter         = errors.New("unknown parameter")
	ErrInvalidKeySpec           = errors.New("invalid key specification")
	ErrInvalidSchema            = errors.New("invalid schema")
	ErrUnsupportedVersion       = errors.New("unsupported engine version")
	ErrAmbiguousTaskSpec        = errors.New("ambiguous task spec")
	ErrUnknownTask              = errors.New("unknown task")
	ErrEngineExecutionFailure   = errors.New("engine execution failure")
)

// ParameterError reports a problem with a single task parameter.
type ParameterError struct {
	Kind      error
	Task      string
	Parameter string
	Detail    string
}

func (e *ParameterError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.Task != "" {
		fmt.Fprintf(&sb, " in task %s", e.Task)
	}
	fmt.Fprintf(&sb, ": parameter %q", e.Parameter)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func (e *ParameterError) Unwrap() error { return e.Kind }

// TypeMismatch builds a ParameterError for a value that does not satisfy its type.
func TypeMismatch(parameter, expected string, value any) *ParameterError {
	return &ParameterError{
		Kind:      ErrTypeMismatch,
		Parameter: parameter,
		Detail:    fmt.Sprintf("expected %s, got %T (%v)", expected, value, value),
	}
}

// MissingParameter builds a ParameterError for an absent or empty required value.
func MissingParameter(task, parameter string) *ParameterError {
	return &ParameterError{Kind: ErrMissingRequiredParameter, Task: task, Parameter: parameter}
}

// KeySpecError reports a key variable that cannot key the target dictionary.
type KeySpecError struct {
	Dictionary string
	Variable   string
	Reason     string
}

func (e *KeySpecError) Error() string {
	return fmt.Sprintf("%s: key variable %q of dictionary %q %s",
		ErrInvalidKeySpec, e.Variable, e.Dictionary, e.Reason)
}

func (e *KeySpecError) Unwrap() error { return ErrInvalidKeySpec }

// SchemaError reports a dictionary that cannot serve the requested operation.
type SchemaError struct {
	Dictionary string
	Reason     string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: dictionary %q %s", ErrInvalidSchema, e.Dictionary, e.Reason)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidSchema }

// VersionError reports a registry resolution failure.
type VersionError struct {
	Kind      error
	Task      string
	Installed string
	Detail    string
}

func (e *VersionError) Error() string {
	msg := fmt.Sprintf("%s: task %s at engine version %s", e.Kind, e.Task, e.Installed)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *VersionError) Unwrap() error { return e.Kind }

// ExecutionError reports a failed engine invocation. Log holds the engine log
// verbatim.
type ExecutionError struct {
	Task     string
	ExitCode int
	Log      string
	Cause    error
}

func (e *ExecutionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: task %s", ErrEngineExecutionFailure, e.Task)
	if e.ExitCode != 0 {
		fmt.Fprintf(&sb, " exited with code %d", e.ExitCode)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	if log := strings.TrimSpace(e.Log); log != "" {
		sb.WriteString("\nengine log:\n")
		sb.WriteString(log)
	}
	return sb.String()
}

func (e *ExecutionError) Is(target error) bool { return target == ErrEngineExecutionFailure }

func (e *ExecutionError) Unwrap() error { return e.Cause }
