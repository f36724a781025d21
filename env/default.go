// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"iter"
	"sync"
)

var defaultAccessor = sync.OnceValue(func() *Accessor {
	return New()
})

// Default returns the process-wide Accessor over the real process
// environment. It is created on first use and lives until the process exits.
func Default() *Accessor {
	return defaultAccessor()
}

// Get returns the value of the process environment variable name.
func Get(name string) (string, error) {
	return Default().Get(name)
}

// Lookup returns the value of the process environment variable name and
// whether it is present. It panics if the guard is poisoned.
func Lookup(name string) (string, bool) {
	return Default().Lookup(name)
}

// Set binds name to value in the process environment.
func Set(name, value string) error {
	return Default().Set(name, value)
}

// Remove unbinds name from the process environment.
func Remove(name string) error {
	return Default().Remove(name)
}

// Vars returns a sorted snapshot of the process environment. It panics if
// the guard is poisoned.
func Vars() iter.Seq2[string, string] {
	return Default().Vars()
}

// Snapshot returns a copy of the process environment.
func Snapshot() (map[string]string, error) {
	return Default().Snapshot()
}

// Environ returns the process environment as sorted NAME=value entries.
func Environ() ([]string, error) {
	return Default().Environ()
}

// Fill binds every pair in the process environment.
func Fill(pairs iter.Seq2[string, string]) error {
	return Default().Fill(pairs)
}
