// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package exitcode provides error types that carry a process exit code.

Commands return ordinary errors; the outermost layer asks [Code] which exit
status the error maps to. The CodedError type implements the standard error
interface and supports errors.Is() and errors.As().

# Basic Usage

	if err := cfg.Validate(); err != nil {
		return exitcode.WithCode(err, exitcode.ConfigError)
	}

	os.Exit(exitcode.Code(cmd.Execute()))

[Code] returns [Success] for a nil error and [RunError] for an error without a
code anywhere in its chain.
*/
package exitcode
