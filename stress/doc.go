// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package stress verifies the environment accessor under concurrent load.

Each worker owns one variable and repeatedly sets it to a self-checking
payload, reads it back, removes it and confirms it is gone. Reader goroutines
snapshot the table at the same time and check every payload they see. A run
passes when no update is lost, no removed variable is still visible and no
value is torn.

# Configuration

Settings are layered: [DefaultConfig], then the YAML file at
[DefaultConfigPath] (validated against an embedded JSON schema), then
ENVSTRESS_* variables read through the synchronized accessor:

	workers: 16
	readers: 2
	iterations: 5000
	duration: 30s
	rate: 0
	backend: os
	mode: rw
	value_size: 64

# Usage

	cfg := stress.DefaultConfig()
	res, err := stress.Run(ctx, cfg.NewAccessor(), cfg)
	if err != nil {
		return err
	}
	stress.NewReporter(os.Stdout, true).Result(res)
*/
package stress
