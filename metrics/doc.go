// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

/*
Package metrics exports environment accessor activity to Prometheus.

	obs, err := metrics.NewObserver("syncenv", prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	acc := env.New(env.WithObserver(obs))

Exported series:

	syncenv_operations_total{op, result}
	syncenv_guard_held_seconds{op}
	syncenv_guard_poisoned
*/
package metrics
