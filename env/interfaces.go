// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

//go:generate mockgen -copyright_file=../.github/license-header.txt -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks Reader,Table,Observer

import "time"

// Reader defines an interface for environment variable access
type Reader interface {
	Getenv(key string) string
}

// Table is the raw, unsynchronized environment table an Accessor guards.
// Implementations must not be called except from inside an Accessor's
// critical section.
type Table interface {
	// Lookup returns the value bound to name and whether it is present.
	Lookup(name string) (string, bool)
	// Set binds name to value, creating or overwriting it.
	Set(name, value string) error
	// Unset removes name. Removing an absent name must succeed.
	Unset(name string) error
	// Environ returns every binding as a NAME=value entry.
	Environ() []string
}

// Observer receives one notification per completed operation, after the
// guard has been released. held is the time spent inside the critical
// section; it is zero when the operation failed before acquiring the guard.
type Observer interface {
	ObserveOp(op Op, held time.Duration, err error)
}
