// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stacklok/syncenv/env"
)

// Result label values.
const (
	ResultOK           = "ok"
	ResultNotFound     = "not_found"
	ResultInvalidName  = "invalid_name"
	ResultInvalidValue = "invalid_value"
	ResultPoisoned     = "poisoned"
	ResultError        = "error"
)

// Observer exports accessor operations to Prometheus. It implements env.Observer.
type Observer struct {
	operations *prometheus.CounterVec
	held       *prometheus.HistogramVec
	poisoned   prometheus.Gauge
}

var _ env.Observer = (*Observer)(nil)

// NewObserver registers the accessor metrics under namespace with reg.
// Collectors that are already registered are reused.
func NewObserver(namespace string, reg prometheus.Registerer) (*Observer, error) {
	if namespace == "" {
		namespace = "syncenv"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	o := &Observer{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Environment operations by operation and result.",
		}, []string{"op", "result"}),
		held: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "guard_held_seconds",
			Help:      "Time spent inside the environment guard per operation.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 12),
		}, []string{"op"}),
		poisoned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "guard_poisoned",
			Help:      "1 once an operation observed a poisoned environment guard.",
		}),
	}

	if err := register(reg, &o.operations); err != nil {
		return nil, err
	}
	if err := register(reg, &o.held); err != nil {
		return nil, err
	}
	if err := register(reg, &o.poisoned); err != nil {
		return nil, err
	}
	return o, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				*c = existing
				return nil
			}
		}
		return fmt.Errorf("register environment metric: %w", err)
	}
	return nil
}

// ObserveOp records one operation.
func (o *Observer) ObserveOp(op env.Op, held time.Duration, err error) {
	if o == nil {
		return
	}
	result := Result(err)
	o.operations.WithLabelValues(string(op), result).Inc()
	if held > 0 {
		o.held.WithLabelValues(string(op)).Observe(held.Seconds())
	}
	if result == ResultPoisoned {
		o.poisoned.Set(1)
	}
}

// Result maps an accessor error to its result label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, env.ErrLockPoisoned):
		return ResultPoisoned
	case errors.Is(err, env.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, env.ErrInvalidName):
		return ResultInvalidName
	case errors.Is(err, env.ErrInvalidValue):
		return ResultInvalidValue
	default:
		return ResultError
	}
}
