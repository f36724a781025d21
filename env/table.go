// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"os"
	"strings"
)

// OSTable implements Table using the raw primitives of the os package.
// It performs no locking of its own.
type OSTable struct{}

// Lookup returns the value bound to name in the process environment.
func (OSTable) Lookup(name string) (string, bool) {
	return os.LookupEnv(name)
}

// Set binds name to value in the process environment.
func (OSTable) Set(name, value string) error {
	return os.Setenv(name, value)
}

// Unset removes name from the process environment.
func (OSTable) Unset(name string) error {
	return os.Unsetenv(name)
}

// Environ returns the process environment as NAME=value entries.
func (OSTable) Environ() []string {
	return os.Environ()
}

// MapTable implements Table with a private in-memory map, leaving the real
// process environment untouched. It is not synchronized; share it only
// through an Accessor.
type MapTable struct {
	vars map[string]string
}

// NewMapTable returns a MapTable seeded with a copy of initial.
func NewMapTable(initial map[string]string) *MapTable {
	vars := make(map[string]string, len(initial))
	for k, v := range initial {
		vars[k] = v
	}
	return &MapTable{vars: vars}
}

// Lookup returns the value bound to name.
func (t *MapTable) Lookup(name string) (string, bool) {
	v, ok := t.vars[name]
	return v, ok
}

// Set binds name to value.
func (t *MapTable) Set(name, value string) error {
	if t.vars == nil {
		t.vars = make(map[string]string)
	}
	t.vars[name] = value
	return nil
}

// Unset removes name. Removing an absent name is a no-op.
func (t *MapTable) Unset(name string) error {
	delete(t.vars, name)
	return nil
}

// Environ returns the table as NAME=value entries in no particular order.
func (t *MapTable) Environ() []string {
	entries := make([]string, 0, len(t.vars))
	for k, v := range t.vars {
		entries = append(entries, k+"="+v)
	}
	return entries
}

// splitEntry splits a NAME=value entry on the first '=' after the first byte,
// so Windows drive entries such as "=C:=C:\dir" keep their leading '='.
func splitEntry(entry string) (name, value string, ok bool) {
	if entry == "" {
		return "", "", false
	}
	i := strings.IndexByte(entry[1:], '=')
	if i < 0 {
		return entry, "", true
	}
	return entry[:i+1], entry[i+2:], true
}
