// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package envvar provides validation functions for environment variable names
and values.

Passing a malformed name to the operating system's environment primitives has
implementation-defined results, so names and values are checked before any
table is touched.

# Name Validation

	if err := envvar.ValidateName("HOME"); err != nil {
		// Handle invalid name
	}

Valid names must:
  - Be non-empty
  - Not contain the '=' separator
  - Not contain null bytes

# Value Validation

	if err := envvar.ValidateValue(value); err != nil {
		// Handle invalid value
	}

Values may be empty but must not contain null bytes.

# Examples

Valid names:

	"PATH"
	"my_var"
	"lower-case.with.dots"

Invalid names:

	""          // empty
	"A=B"       // separator
	"A\x00B"    // null byte
*/
package envvar
