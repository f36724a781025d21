// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package env provides synchronized access to the process environment.

The environment table is process-wide mutable state. Every operation in this
package goes through a single guard: reads share it, writes hold it
exclusively, and it is only held around the table access itself, never
around caller code.

# Basic Usage

The package-level functions operate on the process-wide [Default] accessor:

	if err := env.Set("MY_VAR", "value"); err != nil {
		return err
	}

	value, err := env.Get("MY_VAR")
	if errors.Is(err, env.ErrNotFound) {
		// not set
	}

	_ = env.Remove("MY_VAR") // succeeds even when absent

# Enumeration

[Vars] copies every binding while the guard is held and returns a sequence
over that copy, ordered by name. Iterating takes no lock, so the loop body
may call back into the package:

	for name, value := range env.Vars() {
		fmt.Println(name, value)
	}

[Environ] returns the same snapshot as NAME=value entries for exec.Cmd.Env.

# Errors

Every error is a [*VarError] wrapping one of [ErrNotFound], [ErrInvalidName],
[ErrInvalidValue] or [ErrLockPoisoned]. Names must be non-empty and free of
'=' and null bytes; values must be free of null bytes.

A panic inside a write critical section poisons the guard. Every later
operation returns [ErrLockPoisoned]; the table can no longer be trusted and
the process should shut down. [Accessor.Vars], [Accessor.Lookup] and
[Accessor.Getenv] have no error result and panic with that error instead,
so a poisoned environment never reads as an empty one.

# Private Tables

[New] with [WithTable] and a [MapTable] guards an in-memory table instead of
the process environment, with its own guard and [Mode]. [Accessor.Inherit]
seeds such a table from the process environment.

All accessors over [OSTable] share one process-wide guard. Code that calls
os.Setenv or os.Unsetenv directly bypasses it.

# Testing

[Accessor] implements [Reader], so components that read configuration through
a Reader can be handed the synchronized accessor in production and a mock in
tests. Generated mocks of Reader, Table and Observer live in the mocks
sub-package:

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	table.EXPECT().Lookup("MY_VAR").Return("test-value", true)

	acc := env.New(env.WithTable(table))
*/
package env
