// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"errors"
	"fmt"
)

// Sentinel errors for environment operations.
var (
	// ErrNotFound is returned by Get when no variable is bound to the name.
	ErrNotFound = errors.New("environment variable not found")

	// ErrInvalidName is returned when a name is empty or contains '=' or a null byte.
	ErrInvalidName = errors.New("invalid environment variable name")

	// ErrInvalidValue is returned when a value contains a null byte.
	ErrInvalidValue = errors.New("invalid environment variable value")

	// ErrLockPoisoned is returned once a previous holder panicked inside a
	// write critical section. The table may be inconsistent and the process
	// should not continue to rely on it.
	ErrLockPoisoned = errors.New("environment lock poisoned")
)

// VarError records a failed environment operation together with the variable
// name it was applied to. Values are never recorded.
type VarError struct {
	Op   Op
	Name string
	Err  error
}

// Error implements the error interface.
func (e *VarError) Error() string {
	if e.Name == "" {
		return "env " + string(e.Op) + ": " + e.Err.Error()
	}
	return fmt.Sprintf("env %s %q: %v", e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying error for errors.Is() and errors.As() compatibility.
func (e *VarError) Unwrap() error {
	return e.Err
}

// IsPoisoned reports whether err signals a poisoned guard.
func IsPoisoned(err error) bool {
	return errors.Is(err, ErrLockPoisoned)
}

func newVarError(op Op, name string, err error) error {
	return &VarError{Op: op, Name: name, Err: err}
}
