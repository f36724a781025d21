// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package stress

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/stacklok/syncenv/env"
	"github.com/stacklok/syncenv/recovery"
)

// Result is the outcome of a stress run.
type Result struct {
	RunID      string
	Config     Config
	Ops        int64
	Elapsed    time.Duration
	Violations int64
	Samples    []string
	Latency    map[env.Op]Percentiles
}

// Passed reports whether the run observed no violations.
func (r *Result) Passed() bool {
	return r.Violations == 0
}

// OpsPerSecond returns the achieved throughput.
func (r *Result) OpsPerSecond() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Ops) / r.Elapsed.Seconds()
}

// NewRunID returns a short identifier that is valid inside a variable name.
func NewRunID() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// Run drives cfg.Workers goroutines, each owning one variable name, through
// set, get, remove, get cycles while cfg.Readers goroutines enumerate the
// table. It returns an error only when the accessor itself fails, including a
// worker panic; consistency problems are reported as violations in the Result.
func Run(ctx context.Context, acc *env.Accessor, cfg *Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := NewRunID()
	prefix := "ENVSTRESS_" + runID + "_"
	names := make([]string, cfg.Workers)
	for i := range names {
		names[i] = prefix + strconv.Itoa(i)
	}
	defer func() {
		for _, name := range names {
			_ = acc.Remove(name)
		}
	}()

	runCtx := ctx
	if cfg.Duration > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cfg.Duration)
		defer cancel()
	}

	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}

	m := NewMetrics()
	m.Start()

	writers, wctx := errgroup.WithContext(runCtx)
	for _, name := range names {
		writers.Go(recovery.Func("writer "+name, func() error {
			return writer(wctx, acc, limiter, m, name, cfg)
		}))
	}

	readCtx, stopReaders := context.WithCancel(wctx)
	readers, rctx := errgroup.WithContext(readCtx)
	for range cfg.Readers {
		readers.Go(recovery.Func("reader", func() error {
			return reader(rctx, acc, m, prefix)
		}))
	}

	werr := writers.Wait()
	stopReaders()
	rerr := readers.Wait()
	m.Stop()

	if err := errors.Join(werr, rerr); err != nil {
		return nil, err
	}

	return &Result{
		RunID:      runID,
		Config:     *cfg,
		Ops:        m.Ops(),
		Elapsed:    m.Elapsed(),
		Violations: m.Violations(),
		Samples:    m.Samples(),
		Latency:    m.Latency(),
	}, nil
}

func writer(ctx context.Context, acc *env.Accessor, limiter *rate.Limiter, m *Metrics, name string, cfg *Config) error {
	pad := strings.Repeat("x", cfg.ValueSize)

	for i := range cfg.Iterations {
		if ctx.Err() != nil {
			return nil
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				// deadline or cancellation ends the run
				return nil
			}
		}

		want := Payload(name, i, pad)

		start := time.Now()
		err := acc.Set(name, want)
		m.Record(env.OpSet, time.Since(start))
		if err != nil {
			return err
		}

		start = time.Now()
		got, err := acc.Get(name)
		m.Record(env.OpGet, time.Since(start))
		switch {
		case errors.Is(err, env.ErrNotFound):
			m.Violation(fmt.Sprintf("%s: lost update at iteration %d: variable missing", name, i))
		case err != nil:
			return err
		case got != want:
			m.Violation(fmt.Sprintf("%s: lost update at iteration %d: got %.40q", name, i, got))
		}

		start = time.Now()
		err = acc.Remove(name)
		m.Record(env.OpRemove, time.Since(start))
		if err != nil {
			return err
		}

		start = time.Now()
		_, err = acc.Get(name)
		m.Record(env.OpGet, time.Since(start))
		switch {
		case err == nil:
			m.Violation(fmt.Sprintf("%s: stale read after remove at iteration %d", name, i))
		case !errors.Is(err, env.ErrNotFound):
			return err
		}
	}
	return nil
}

func reader(ctx context.Context, acc *env.Accessor, m *Metrics, prefix string) error {
	for ctx.Err() == nil {
		start := time.Now()
		snap, err := acc.Snapshot()
		m.Record(env.OpVars, time.Since(start))
		if err != nil {
			return err
		}
		for name, value := range snap {
			if !strings.HasPrefix(name, prefix) {
				continue
			}
			if !VerifyPayload(name, value) {
				m.Violation(fmt.Sprintf("%s: torn value %.40q", name, value))
			}
		}
	}
	return nil
}

// Payload builds a self-checking value for name: name|iteration|padding|crc.
func Payload(name string, iteration int, pad string) string {
	body := name + "|" + strconv.Itoa(iteration) + "|" + pad
	return body + "|" + fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(body)))
}

// VerifyPayload reports whether value is an intact Payload written for name.
func VerifyPayload(name, value string) bool {
	i := strings.LastIndexByte(value, '|')
	if i < 0 {
		return false
	}
	body, sum := value[:i], value[i+1:]
	if !strings.HasPrefix(body, name+"|") {
		return false
	}
	return sum == fmt.Sprintf("%08x", crc32.ChecksumIEEE([]byte(body)))
}
