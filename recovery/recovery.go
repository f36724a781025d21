// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package recovery

import (
	"fmt"
	"runtime/debug"

	"github.com/stacklok/syncenv/logger"
)

// PanicError is a panic recovered by [Func].
type PanicError struct {
	Name  string
	Value any
	Stack []byte
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("%s panicked: %v", e.Name, e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// Func wraps fn so that a panic is recovered and returned as a *PanicError.
// The panic value is logged at error level and the stack at debug level.
func Func(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if v := recover(); v != nil {
				perr := &PanicError{Name: name, Value: v, Stack: debug.Stack()}
				logger.Errorw("recovered panic", "goroutine", name, "panic", fmt.Sprint(v))
				logger.Debugw("panic stack", "goroutine", name, "stack", string(perr.Stack))
				err = perr
			}
		}()
		return fn()
	}
}
