// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package stress

import (
	"fmt"
	"maps"
	"time"

	"github.com/stacklok/syncenv/env"
	"github.com/stacklok/syncenv/validation/envvar"
)

// BenchResult is the timing of one benchmark.
type BenchResult struct {
	Name   string
	Rounds int
	Vars   int
	Total  time.Duration
}

// PerRound returns the mean time of one round.
func (b BenchResult) PerRound() time.Duration {
	if b.Rounds == 0 {
		return 0
	}
	return b.Total / time.Duration(b.Rounds)
}

// Bench times copying the process environment into a private table, once by
// Inherit and once by Fill over a snapshot taken through the process guard.
func Bench(rounds int) ([]BenchResult, error) {
	if rounds < 1 {
		return nil, fmt.Errorf("rounds must be positive")
	}

	snap, err := env.Snapshot()
	if err != nil {
		return nil, err
	}
	maps.DeleteFunc(snap, func(name, _ string) bool {
		return !envvar.Bindable(name)
	})

	inherit := BenchResult{Name: "inherit", Rounds: rounds, Vars: len(snap)}
	acc := env.New(env.WithTable(env.NewMapTable(nil)))
	start := time.Now()
	for range rounds {
		if err := acc.Inherit(); err != nil {
			return nil, err
		}
	}
	inherit.Total = time.Since(start)

	fill := BenchResult{Name: "fill", Rounds: rounds, Vars: len(snap)}
	acc = env.New(env.WithTable(env.NewMapTable(nil)))
	start = time.Now()
	for range rounds {
		if err := acc.Fill(maps.All(snap)); err != nil {
			return nil, err
		}
	}
	fill.Total = time.Since(start)

	return []BenchResult{inherit, fill}, nil
}
