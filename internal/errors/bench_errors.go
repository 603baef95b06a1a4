package errors

import (
	"errors"
	"fmt"
	"strings"
)

// MalformedInvocationError is returned when a command line cannot be
// normalized into a command, its options and its targets.
type MalformedInvocationError struct {
	Source string // "build event log" or "command line"
	Reason string
}

// Error implements the error interface
func (e *MalformedInvocationError) Error() string {
	return fmt.Sprintf("malformed invocation in %s: %s", e.Source, e.Reason)
}

// NewMalformedInvocation creates a new MalformedInvocationError.
func NewMalformedInvocation(source, reason string) *MalformedInvocationError {
	return &MalformedInvocationError{Source: source, Reason: reason}
}

// LaunchError is returned when the external binary could not be started at
// all. A process that starts and exits non-zero is not a LaunchError.
type LaunchError struct {
	Binary string
	Args   []string
	Err    error
}

// Error implements the error interface
func (e *LaunchError) Error() string {
	return fmt.Sprintf("failed to launch %s %s: %v", e.Binary, strings.Join(e.Args, " "), e.Err)
}

// Unwrap returns the underlying OS error.
func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NewLaunchError creates a new LaunchError.
func NewLaunchError(binary string, args []string, err error) *LaunchError {
	return &LaunchError{Binary: binary, Args: args, Err: err}
}

// ConfigError collects every problem found while validating a benchmark
// configuration or unit.
type ConfigError struct {
	Problems []string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if len(e.Problems) == 1 {
		return "configuration validation failed: " + e.Problems[0]
	}
	return "configuration validation failed:\n  " + strings.Join(e.Problems, "\n  ")
}

// NewConfigError creates a new ConfigError from one or more problems.
func NewConfigError(problems ...string) *ConfigError {
	return &ConfigError{Problems: problems}
}

// IsMalformedInvocation reports whether err wraps a MalformedInvocationError.
func IsMalformedInvocation(err error) bool {
	var target *MalformedInvocationError
	return errors.As(err, &target)
}

// IsLaunchFailure reports whether err wraps a LaunchError.
func IsLaunchFailure(err error) bool {
	var target *LaunchError
	return errors.As(err, &target)
}

// IsConfigError reports whether err wraps a ConfigError.
func IsConfigError(err error) bool {
	var target *ConfigError
	return errors.As(err, &target)
}
