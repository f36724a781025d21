// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package envvar

import (
	"fmt"
	"strings"
)

// ValidateName validates that an environment variable name can be handed to
// the operating system: non-empty, and free of '=' and null bytes.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	// Check for null bytes explicitly
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("name cannot contain null bytes: %q", name)
	}

	if strings.ContainsRune(name, '=') {
		return fmt.Errorf("name cannot contain '=': %q", name)
	}

	return nil
}

// ValidateValue validates that an environment variable value contains no null
// bytes. The value itself is never included in the returned error.
func ValidateValue(value string) error {
	if i := strings.IndexByte(value, 0); i >= 0 {
		return fmt.Errorf("value cannot contain null bytes (offset %d)", i)
	}
	return nil
}

// Bindable reports whether name could ever be present in an environment table.
func Bindable(name string) bool {
	return ValidateName(name) == nil
}
