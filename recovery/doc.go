// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package recovery turns panics in worker goroutines into errors.
//
// A goroutine started by an errgroup that panics takes the whole process
// down. Wrapping its body with [Func] recovers the panic, logs the value and
// stack through the zap singleton and returns a [*PanicError] instead, so the
// group fails like any other error.
//
// # Basic Usage
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(recovery.Func("writer", func() error {
//		return work(ctx)
//	}))
//	if err := g.Wait(); err != nil {
//		var perr *recovery.PanicError
//		if errors.As(err, &perr) {
//			// a worker panicked
//		}
//	}
package recovery
