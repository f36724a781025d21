// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package stress

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/syncenv/env"
	"github.com/stacklok/syncenv/env/mocks"
	"github.com/stacklok/syncenv/recovery"
	"github.com/stacklok/syncenv/validation/envvar"
)

func TestRun_MapBackend(t *testing.T) {
	t.Parallel()

	for _, mode := range []env.Mode{env.ModeReadWrite, env.ModeExclusive} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()

			cfg := DefaultConfig()
			cfg.Workers = 6
			cfg.Readers = 2
			cfg.Iterations = 200
			cfg.Mode = mode
			acc := cfg.NewAccessor()

			res, err := Run(context.Background(), acc, cfg)
			require.NoError(t, err)

			assert.True(t, res.Passed(), "violations: %v", res.Samples)
			assert.Len(t, res.RunID, 8)
			assert.Equal(t, mode, res.Config.Mode)

			// four operations per cycle from writers, plus reader snapshots
			assert.GreaterOrEqual(t, res.Ops, int64(6*200*4))
			assert.Equal(t, int64(6*200), res.Latency[env.OpSet].Count)
			assert.Equal(t, int64(6*200*2), res.Latency[env.OpGet].Count)
			assert.Equal(t, int64(6*200), res.Latency[env.OpRemove].Count)

			snap, err := acc.Snapshot()
			require.NoError(t, err)
			assert.Empty(t, snap, "stress variables must be removed after the run")
		})
	}
}

//nolint:paralleltest // exercises the process environment
func TestRun_OSBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendOS
	cfg.Workers = 4
	cfg.Iterations = 50

	res, err := Run(context.Background(), cfg.NewAccessor(), cfg)
	require.NoError(t, err)
	assert.True(t, res.Passed(), "violations: %v", res.Samples)

	prefix := "ENVSTRESS_" + res.RunID + "_"
	for _, kv := range os.Environ() {
		assert.False(t, strings.HasPrefix(kv, prefix), "leftover %s", kv)
	}
}

func TestRun_Limits(t *testing.T) {
	t.Parallel()

	t.Run("duration stops the run", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Workers = 2
		cfg.Iterations = 1 << 30
		cfg.Duration = 50 * time.Millisecond
		cfg.Rate = 2000

		res, err := Run(context.Background(), cfg.NewAccessor(), cfg)
		require.NoError(t, err)
		assert.True(t, res.Passed())
		assert.Positive(t, res.Ops)
		assert.Less(t, res.Elapsed, 5*time.Second)
	})

	t.Run("rate paces cycles", func(t *testing.T) {
		t.Parallel()
		cfg := DefaultConfig()
		cfg.Workers = 2
		cfg.Readers = 0
		cfg.Iterations = 5
		cfg.Rate = 200

		res, err := Run(context.Background(), cfg.NewAccessor(), cfg)
		require.NoError(t, err)
		assert.True(t, res.Passed())
		// ten cycles with a burst of one need at least nine refills of 5ms
		assert.GreaterOrEqual(t, res.Elapsed, 30*time.Millisecond)
		assert.Equal(t, int64(10), res.Latency[env.OpSet].Count)
	})

	t.Run("canceled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		cfg := DefaultConfig()
		res, err := Run(ctx, cfg.NewAccessor(), cfg)
		require.NoError(t, err)
		assert.Zero(t, res.Ops)
		assert.True(t, res.Passed())
	})
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Workers = 0
	_, err := Run(context.Background(), cfg.NewAccessor(), cfg)
	assert.ErrorContains(t, err, "workers must be positive")
}

func TestRun_BackendFailure(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	table.EXPECT().Set(gomock.Any(), gomock.Any()).Return(errors.New("read-only")).AnyTimes()
	table.EXPECT().Unset(gomock.Any()).Return(nil).AnyTimes()

	cfg := DefaultConfig()
	cfg.Readers = 0
	_, err := Run(context.Background(), env.New(env.WithTable(table)), cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "read-only")
}

func TestRun_BackendPanic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	table.EXPECT().Set(gomock.Any(), gomock.Any()).DoAndReturn(func(string, string) error {
		panic("table corrupted")
	}).AnyTimes()

	acc := env.New(env.WithTable(table))
	cfg := DefaultConfig()
	cfg.Workers = 1
	cfg.Readers = 0

	_, err := Run(context.Background(), acc, cfg)

	var perr *recovery.PanicError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "table corrupted", perr.Value)
	assert.True(t, acc.Poisoned())
}

func TestNewRunID(t *testing.T) {
	t.Parallel()

	id := NewRunID()
	assert.Len(t, id, 8)
	assert.Equal(t, strings.ToUpper(id), id)
	assert.True(t, envvar.Bindable("ENVSTRESS_"+id+"_0"))
	assert.NotEqual(t, id, NewRunID())
}

func TestPayload(t *testing.T) {
	t.Parallel()

	value := Payload("ENVSTRESS_AB_1", 7, "xxxx")
	assert.True(t, strings.HasPrefix(value, "ENVSTRESS_AB_1|7|xxxx|"))

	tests := []struct {
		name  string
		owner string
		value string
		want  bool
	}{
		{"intact", "ENVSTRESS_AB_1", value, true},
		{"empty padding", "N", Payload("N", 0, ""), true},
		{"flipped byte", "ENVSTRESS_AB_1", strings.Replace(value, "|7|", "|8|", 1), false},
		{"truncated", "ENVSTRESS_AB_1", value[:len(value)-1], false},
		{"other owner", "ENVSTRESS_AB_10", value, false},
		{"owner is a prefix", "ENVSTRESS_AB_1", Payload("ENVSTRESS_AB_10", 7, ""), false},
		{"no separator", "N", "garbage", false},
		{"empty", "N", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, VerifyPayload(tt.owner, tt.value))
		})
	}
}

func TestResult_OpsPerSecond(t *testing.T) {
	t.Parallel()

	assert.Zero(t, (&Result{Ops: 10}).OpsPerSecond())
	assert.InDelta(t, 50.0, (&Result{Ops: 100, Elapsed: 2 * time.Second}).OpsPerSecond(), 1e-9)
}
