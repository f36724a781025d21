// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package exitcode

import (
	"errors"
	"fmt"
)

// Exit codes for envstress
const (
	// Success indicates the run passed
	Success = 0

	// Violations indicates consistency violations were observed
	Violations = 1

	// RunError indicates the accessor or harness failed
	RunError = 2

	// ConfigError indicates a configuration error
	ConfigError = 3
)

// CodedError wraps an error with an exit code.
type CodedError struct {
	err  error
	code int
}

// Error implements the error interface.
func (e *CodedError) Error() string {
	return e.err.Error()
}

// Unwrap returns the underlying error for errors.Is() and errors.As() compatibility.
func (e *CodedError) Unwrap() error {
	return e.err
}

// ExitCode returns the exit code associated with this error.
func (e *CodedError) ExitCode() int {
	return e.code
}

// WithCode wraps an error with an exit code. If err is nil, WithCode returns nil.
func WithCode(err error, code int) error {
	if err == nil {
		return nil
	}
	return &CodedError{err: err, code: code}
}

// Errorf formats an error and attaches code to it.
func Errorf(code int, format string, args ...any) error {
	return &CodedError{err: fmt.Errorf(format, args...), code: code}
}

// Code extracts the exit code from an error chain.
func Code(err error) int {
	if err == nil {
		return Success
	}

	var coded *CodedError
	if errors.As(err, &coded) {
		return coded.code
	}

	return RunError
}
