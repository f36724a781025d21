// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package app implements the envstress command tree.

	envstress run     concurrent set/get/remove/vars consistency check
	envstress bench   inherit and fill timings against the process environment
	envstress version build information

# Configuration

The run command layers its settings: built-in defaults, then the YAML file
(--config, or stress.yaml under the XDG config home when present), then
ENVSTRESS_* variables, then explicit flags.

# Exit Codes

	0  run passed
	1  consistency violations were observed
	2  the run itself failed
	3  configuration error
*/
package app
