// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package stress

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/fatih/color"

	"github.com/stacklok/syncenv/env"
)

var reportOrder = []env.Op{env.OpSet, env.OpGet, env.OpRemove, env.OpVars}

// Reporter writes human-readable run summaries.
type Reporter struct {
	w      io.Writer
	header *color.Color
	pass   *color.Color
	fail   *color.Color
	dim    *color.Color
}

// NewReporter creates a Reporter writing to w. Colors are emitted only when
// useColor is set.
func NewReporter(w io.Writer, useColor bool) *Reporter {
	r := &Reporter{
		w:      w,
		header: color.New(color.Bold),
		pass:   color.New(color.FgGreen, color.Bold),
		fail:   color.New(color.FgRed, color.Bold),
		dim:    color.New(color.Faint),
	}
	for _, c := range []*color.Color{r.header, r.pass, r.fail, r.dim} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

// Result prints the summary of a stress run.
func (r *Reporter) Result(res *Result) {
	_, _ = r.header.Fprintf(r.w, "envstress run %s\n", res.RunID)
	_, _ = r.dim.Fprintf(r.w, "  backend=%s mode=%s workers=%d readers=%d iterations=%d\n",
		res.Config.Backend, res.Config.Mode, res.Config.Workers, res.Config.Readers, res.Config.Iterations)
	fmt.Fprintf(r.w, "  %d ops in %s (%.0f ops/s)\n\n", res.Ops, res.Elapsed.Round(time.Millisecond), res.OpsPerSecond())

	fmt.Fprintf(r.w, "  %-8s %10s %10s %10s %10s %10s\n", "op", "count", "p50", "p95", "p99", "max")
	for _, op := range orderedOps(res.Latency) {
		p := res.Latency[op]
		fmt.Fprintf(r.w, "  %-8s %10d %10s %10s %10s %10s\n", op, p.Count, p.P50, p.P95, p.P99, p.Max)
	}
	fmt.Fprintln(r.w)

	if res.Passed() {
		_, _ = r.pass.Fprintln(r.w, "PASS no lost updates, stale reads or torn values")
		return
	}
	_, _ = r.fail.Fprintf(r.w, "FAIL %d violation(s)\n", res.Violations)
	for _, s := range res.Samples {
		fmt.Fprintf(r.w, "  - %s\n", s)
	}
}

// Bench prints benchmark timings.
func (r *Reporter) Bench(results []BenchResult) {
	_, _ = r.header.Fprintln(r.w, "envstress bench")
	for _, b := range results {
		fmt.Fprintf(r.w, "  %-8s %6d rounds x %4d vars  %12s/round\n", b.Name, b.Rounds, b.Vars, b.PerRound())
	}
}

func orderedOps(latency map[env.Op]Percentiles) []env.Op {
	ops := make([]env.Op, 0, len(latency))
	for _, op := range reportOrder {
		if _, ok := latency[op]; ok {
			ops = append(ops, op)
		}
	}
	for op := range latency {
		if !slices.Contains(ops, op) {
			ops = append(ops, op)
		}
	}
	return ops
}
