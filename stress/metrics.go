// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package stress

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/stacklok/syncenv/env"
)

const (
	// latencies are recorded in nanoseconds, 1ns to 10s
	minLatency = 1
	maxLatency = int64(10 * time.Second)
	sigFigs    = 3

	maxSamples = 20
)

// Metrics collects per-operation latencies and violations of a run.
type Metrics struct {
	mu         sync.Mutex
	histograms map[env.Op]*hdrhistogram.Histogram

	ops        atomic.Int64
	violations atomic.Int64
	samples    []string

	startTime time.Time
	endTime   time.Time
}

// Percentiles summarizes one operation's latency distribution.
type Percentiles struct {
	Count int64
	P50   time.Duration
	P95   time.Duration
	P99   time.Duration
	Max   time.Duration
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		histograms: make(map[env.Op]*hdrhistogram.Histogram),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.startTime = time.Now()
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.endTime = time.Now()
}

// Elapsed returns the wall-clock time between Start and Stop.
func (m *Metrics) Elapsed() time.Duration {
	if m.endTime.IsZero() {
		return time.Since(m.startTime)
	}
	return m.endTime.Sub(m.startTime)
}

// Record records the latency of one operation.
func (m *Metrics) Record(op env.Op, d time.Duration) {
	m.ops.Add(1)

	v := min(max(d.Nanoseconds(), minLatency), maxLatency)

	m.mu.Lock()
	h, ok := m.histograms[op]
	if !ok {
		h = hdrhistogram.New(minLatency, maxLatency, sigFigs)
		m.histograms[op] = h
	}
	_ = h.RecordValue(v)
	m.mu.Unlock()
}

// Violation records a consistency violation. The first few messages are kept.
func (m *Metrics) Violation(msg string) {
	m.violations.Add(1)
	m.mu.Lock()
	if len(m.samples) < maxSamples {
		m.samples = append(m.samples, msg)
	}
	m.mu.Unlock()
}

// Ops returns the number of recorded operations.
func (m *Metrics) Ops() int64 {
	return m.ops.Load()
}

// Violations returns the number of recorded violations.
func (m *Metrics) Violations() int64 {
	return m.violations.Load()
}

// Samples returns the retained violation messages.
func (m *Metrics) Samples() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.samples)
}

// Latency returns the percentiles for every recorded operation.
func (m *Metrics) Latency() map[env.Op]Percentiles {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[env.Op]Percentiles, len(m.histograms))
	for op, h := range m.histograms {
		out[op] = Percentiles{
			Count: h.TotalCount(),
			P50:   time.Duration(h.ValueAtQuantile(50)),
			P95:   time.Duration(h.ValueAtQuantile(95)),
			P99:   time.Duration(h.ValueAtQuantile(99)),
			Max:   time.Duration(h.Max()),
		}
	}
	return out
}
