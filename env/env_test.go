// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env_test

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/syncenv/env"
	"github.com/stacklok/syncenv/env/mocks"
)

func newMapAccessor(opts ...env.Option) *env.Accessor {
	return env.New(append([]env.Option{env.WithTable(env.NewMapTable(nil))}, opts...)...)
}

func TestAccessor_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "simple", key: "KEY", value: "VALUE"},
		{name: "empty value", key: "EMPTY", value: ""},
		{name: "value with separator", key: "URL", value: "a=b&c=d"},
		{name: "unicode", key: "GRÜSSE", value: "grüße 👋"},
		{name: "multiline", key: "PEM", value: "line1\nline2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			acc := newMapAccessor()

			require.NoError(t, acc.Set(tt.key, tt.value))
			got, err := acc.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.value, got)

			require.NoError(t, acc.Set(tt.key, "overwritten"))
			got, err = acc.Get(tt.key)
			require.NoError(t, err)
			assert.Equal(t, "overwritten", got)
		})
	}
}

func TestAccessor_GetNotFound(t *testing.T) {
	t.Parallel()

	acc := newMapAccessor()

	_, err := acc.Get("NEVER_SET")
	require.ErrorIs(t, err, env.ErrNotFound)

	var ve *env.VarError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, env.OpGet, ve.Op)
	assert.Equal(t, "NEVER_SET", ve.Name)

	require.NoError(t, acc.Set("GONE", "1"))
	require.NoError(t, acc.Remove("GONE"))
	_, err = acc.Get("GONE")
	assert.ErrorIs(t, err, env.ErrNotFound)

	v, ok := acc.Lookup("GONE")
	assert.False(t, ok)
	assert.Empty(t, v)
	assert.Empty(t, acc.Getenv("GONE"))
}

func TestAccessor_GetUnbindableName(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	// No expectations: the table must not be consulted.
	acc := env.New(env.WithTable(table))

	for _, name := range []string{"", "a=b", "a\x00b"} {
		_, err := acc.Get(name)
		assert.ErrorIs(t, err, env.ErrNotFound, "name %q", name)
		assert.NotErrorIs(t, err, env.ErrInvalidName)
	}
}

func TestAccessor_RemoveIsIdempotent(t *testing.T) {
	t.Parallel()

	acc := newMapAccessor()
	assert.NoError(t, acc.Remove("ABSENT"))
	assert.NoError(t, acc.Remove("ABSENT"))

	require.NoError(t, acc.Set("PRESENT", "1"))
	assert.NoError(t, acc.Remove("PRESENT"))
	assert.NoError(t, acc.Remove("PRESENT"))
}

func TestAccessor_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		call    func(a *env.Accessor) error
		wantErr error
		notErr  []error
	}{
		{
			name:    "set empty name",
			call:    func(a *env.Accessor) error { return a.Set("", "x") },
			wantErr: env.ErrInvalidName,
			notErr:  []error{env.ErrInvalidValue, env.ErrNotFound},
		},
		{
			name:    "set name with separator",
			call:    func(a *env.Accessor) error { return a.Set("a=b", "x") },
			wantErr: env.ErrInvalidName,
			notErr:  []error{env.ErrInvalidValue, env.ErrNotFound},
		},
		{
			name:    "set name with null byte",
			call:    func(a *env.Accessor) error { return a.Set("a\x00b", "x") },
			wantErr: env.ErrInvalidName,
		},
		{
			name:    "set value with null byte",
			call:    func(a *env.Accessor) error { return a.Set("K", "has\x00null") },
			wantErr: env.ErrInvalidValue,
			notErr:  []error{env.ErrInvalidName, env.ErrNotFound},
		},
		{
			name:    "remove empty name",
			call:    func(a *env.Accessor) error { return a.Remove("") },
			wantErr: env.ErrInvalidName,
		},
		{
			name:    "remove name with separator",
			call:    func(a *env.Accessor) error { return a.Remove("a=b") },
			wantErr: env.ErrInvalidName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ctrl := gomock.NewController(t)
			// Invalid input is rejected before the table is touched.
			acc := env.New(env.WithTable(mocks.NewMockTable(ctrl)))

			err := tt.call(acc)
			require.ErrorIs(t, err, tt.wantErr)
			for _, other := range tt.notErr {
				assert.NotErrorIs(t, err, other)
			}
			assert.False(t, env.IsPoisoned(err))
			assert.NotContains(t, err.Error(), "has\x00null")
		})
	}
}

func TestAccessor_Vars(t *testing.T) {
	t.Parallel()

	acc := newMapAccessor()
	require.NoError(t, acc.Set("B", "2"))
	require.NoError(t, acc.Set("A", "1"))
	require.NoError(t, acc.Set("STALE", "x"))
	require.NoError(t, acc.Set("A", "1"))
	require.NoError(t, acc.Remove("STALE"))

	var names, values []string
	for name, value := range acc.Vars() {
		names = append(names, name)
		values = append(values, value)
	}
	assert.Equal(t, []string{"A", "B"}, names)
	assert.Equal(t, []string{"1", "2"}, values)

	snap, err := acc.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, snap)

	entries, err := acc.Environ()
	require.NoError(t, err)
	assert.Equal(t, []string{"A=1", "B=2"}, entries)
}

func TestAccessor_VarsSkipsUnbindableNames(t *testing.T) {
	t.Parallel()

	acc := env.New(env.WithTable(env.NewMapTable(map[string]string{
		"=C:":  `C:\dir`,
		"PATH": "/bin",
	})))

	got := maps.Collect(acc.Vars())
	assert.Equal(t, map[string]string{"PATH": "/bin"}, got)

	// Every name Vars yields can be read back with Get.
	for name, value := range got {
		v, err := acc.Get(name)
		require.NoError(t, err)
		assert.Equal(t, value, v)
	}
}

func TestAccessor_VarsIsASnapshot(t *testing.T) {
	t.Parallel()

	acc := newMapAccessor()
	require.NoError(t, acc.Set("A", "1"))
	require.NoError(t, acc.Set("B", "2"))

	seq := acc.Vars()
	require.NoError(t, acc.Set("C", "3"))
	require.NoError(t, acc.Set("A", "changed"))

	// The body calls back into the accessor; holding the guard here would deadlock.
	got := map[string]string{}
	for name, value := range seq {
		require.NoError(t, acc.Set(name+"_COPY", value))
		got[name] = value
	}
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, got)

	v, err := acc.Get("A_COPY")
	require.NoError(t, err)
	assert.Equal(t, "1", v)
}

func TestAccessor_VarsEarlyBreak(t *testing.T) {
	t.Parallel()

	acc := newMapAccessor()
	require.NoError(t, acc.Fill(maps.All(map[string]string{"A": "1", "B": "2", "C": "3"})))

	var seen []string
	for name := range acc.Vars() {
		seen = append(seen, name)
		if len(seen) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A", "B"}, seen)
}

func TestAccessor_Fill(t *testing.T) {
	t.Parallel()

	t.Run("applies every pair", func(t *testing.T) {
		t.Parallel()
		acc := newMapAccessor()
		require.NoError(t, acc.Fill(maps.All(map[string]string{"KEY": "VALUE", "OTHER": ""})))

		v, err := acc.Get("KEY")
		require.NoError(t, err)
		assert.Equal(t, "VALUE", v)
		_, ok := acc.Lookup("OTHER")
		assert.True(t, ok)
	})

	t.Run("invalid pair leaves the table untouched", func(t *testing.T) {
		t.Parallel()
		acc := newMapAccessor()
		err := acc.Fill(func(yield func(string, string) bool) {
			if !yield("GOOD", "1") {
				return
			}
			yield("BAD=NAME", "2")
		})
		require.ErrorIs(t, err, env.ErrInvalidName)

		var ve *env.VarError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, env.OpFill, ve.Op)
		assert.Equal(t, "BAD=NAME", ve.Name)

		_, ok := acc.Lookup("GOOD")
		assert.False(t, ok)
	})

	t.Run("backend error names the failing variable", func(t *testing.T) {
		t.Parallel()
		ctrl := gomock.NewController(t)
		table := mocks.NewMockTable(ctrl)
		backendErr := errors.New("table full")
		gomock.InOrder(
			table.EXPECT().Set("A", "1").Return(nil),
			table.EXPECT().Set("B", "2").Return(backendErr),
		)
		acc := env.New(env.WithTable(table))

		err := acc.Fill(func(yield func(string, string) bool) {
			_ = yield("A", "1") && yield("B", "2")
		})
		require.ErrorIs(t, err, backendErr)
		var ve *env.VarError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "B", ve.Name)
		assert.False(t, acc.Poisoned())
	})
}

func TestAccessor_BackendErrors(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	backendErr := errors.New("setenv: invalid argument")
	table.EXPECT().Set("K", "v").Return(backendErr)
	table.EXPECT().Unset("K").Return(backendErr)
	table.EXPECT().Lookup("K").Return("", false)

	acc := env.New(env.WithTable(table))

	err := acc.Set("K", "v")
	require.ErrorIs(t, err, backendErr)
	assert.Equal(t, `env set "K": setenv: invalid argument`, err.Error())

	err = acc.Remove("K")
	require.ErrorIs(t, err, backendErr)

	// A failed write releases the guard and does not poison it.
	assert.False(t, acc.Poisoned())
	_, err = acc.Get("K")
	assert.ErrorIs(t, err, env.ErrNotFound)
}

func TestAccessor_Poisoning(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	table.EXPECT().Set("K", "v").DoAndReturn(func(string, string) error {
		panic("table corrupted")
	})

	var logs bytes.Buffer
	acc := env.New(
		env.WithTable(table),
		env.WithLogger(slog.New(slog.NewJSONHandler(&logs, nil))),
	)

	assert.PanicsWithValue(t, "table corrupted", func() {
		_ = acc.Set("K", "v")
	})
	assert.True(t, acc.Poisoned())
	assert.Contains(t, logs.String(), "environment lock poisoned")

	// Every later operation fails without reaching the table.
	_, err := acc.Get("K")
	assert.True(t, env.IsPoisoned(err))
	assert.ErrorIs(t, acc.Set("K", "v"), env.ErrLockPoisoned)
	assert.ErrorIs(t, acc.Remove("K"), env.ErrLockPoisoned)
	assert.ErrorIs(t, acc.Fill(maps.All(map[string]string{"A": "1"})), env.ErrLockPoisoned)

	_, err = acc.Snapshot()
	assert.ErrorIs(t, err, env.ErrLockPoisoned)
	_, err = acc.Environ()
	assert.ErrorIs(t, err, env.ErrLockPoisoned)

	// A name that can never be bound still reports the poisoned guard.
	_, err = acc.Get("")
	assert.ErrorIs(t, err, env.ErrLockPoisoned)

	// Validation errors still take precedence over the poisoned guard.
	assert.ErrorIs(t, acc.Set("", "v"), env.ErrInvalidName)
}

func TestAccessor_PoisonedReadsPanic(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	table.EXPECT().Set("K", "v").DoAndReturn(func(string, string) error {
		panic("table corrupted")
	})
	acc := env.New(env.WithTable(table))
	require.Panics(t, func() { _ = acc.Set("K", "v") })

	tests := []struct {
		name string
		call func()
	}{
		{"vars", func() {
			for range acc.Vars() {
			}
		}},
		{"lookup", func() { _, _ = acc.Lookup("K") }},
		{"getenv", func() { _ = acc.Getenv("K") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var recovered any
			func() {
				defer func() { recovered = recover() }()
				tt.call()
			}()

			err, ok := recovered.(error)
			require.True(t, ok, "expected a panic with an error, got %v", recovered)
			assert.True(t, env.IsPoisoned(err))
			var ve *env.VarError
			require.ErrorAs(t, err, &ve)
		})
	}
}

func TestAccessor_ReadPanicDoesNotPoison(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	table := mocks.NewMockTable(ctrl)
	gomock.InOrder(
		table.EXPECT().Lookup("K").DoAndReturn(func(string) (string, bool) {
			panic("lookup failed")
		}),
		table.EXPECT().Lookup("K").Return("v", true),
	)
	acc := env.New(env.WithTable(table))

	assert.Panics(t, func() { _, _ = acc.Get("K") })
	assert.False(t, acc.Poisoned())

	v, err := acc.Get("K")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestAccessor_Observer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	obs := mocks.NewMockObserver(ctrl)
	acc := newMapAccessor(env.WithObserver(obs))

	isNotFound := gomock.Cond(func(err error) bool { return errors.Is(err, env.ErrNotFound) })
	isInvalidName := gomock.Cond(func(err error) bool { return errors.Is(err, env.ErrInvalidName) })

	gomock.InOrder(
		obs.EXPECT().ObserveOp(env.OpSet, gomock.Any(), gomock.Nil()),
		obs.EXPECT().ObserveOp(env.OpGet, gomock.Any(), gomock.Nil()),
		obs.EXPECT().ObserveOp(env.OpRemove, gomock.Any(), gomock.Nil()),
		obs.EXPECT().ObserveOp(env.OpGet, gomock.Any(), isNotFound),
		obs.EXPECT().ObserveOp(env.OpSet, gomock.Any(), isInvalidName),
		obs.EXPECT().ObserveOp(env.OpVars, gomock.Any(), gomock.Nil()),
		obs.EXPECT().ObserveOp(env.OpFill, gomock.Any(), gomock.Nil()),
	)

	require.NoError(t, acc.Set("K", "v"))
	_, _ = acc.Get("K")
	require.NoError(t, acc.Remove("K"))
	_, _ = acc.Get("K")
	_ = acc.Set("", "v")
	for range acc.Vars() {
	}
	require.NoError(t, acc.Fill(maps.All(map[string]string{"A": "1"})))
}

// observerFunc lets the observer call back into the accessor it observes.
type observerFunc func(env.Op)

func (f observerFunc) ObserveOp(op env.Op, _ time.Duration, _ error) { f(op) }

func TestAccessor_ObserverRunsOutsideGuard(t *testing.T) {
	t.Parallel()

	var acc *env.Accessor
	calls := 0
	acc = newMapAccessor(env.WithObserver(observerFunc(func(op env.Op) {
		calls++
		if op == env.OpSet && calls == 1 {
			// Re-entering would deadlock if the guard were still held.
			_, _ = acc.Get("K")
		}
	})))

	require.NoError(t, acc.Set("K", "v"))
	assert.Equal(t, 2, calls)
}

func TestAccessor_LogsNamesNotValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	acc := newMapAccessor(env.WithLogger(logger))

	require.NoError(t, acc.Set("API_TOKEN", "s3cr3t-value"))
	require.NoError(t, acc.Remove("API_TOKEN"))

	out := buf.String()
	assert.Contains(t, out, "API_TOKEN")
	assert.Contains(t, out, "environment variable set")
	assert.Contains(t, out, "environment variable removed")
	assert.NotContains(t, out, "s3cr3t-value")
}

func TestAccessor_ConcurrentDistinctNames(t *testing.T) {
	t.Parallel()

	const (
		workers    = 16
		iterations = 500
	)

	for _, mode := range []env.Mode{env.ModeReadWrite, env.ModeExclusive} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			acc := newMapAccessor(env.WithMode(mode))
			runConcurrent(t, acc, "W", workers, iterations)
		})
	}
}

func TestAccessor_ConcurrentProcessEnvironment(t *testing.T) { //nolint:paralleltest // Modifies environment variables
	runConcurrent(t, env.Default(), "SYNCENV_TEST_CONC_", 8, 200)
}

// runConcurrent has each worker own one name and repeatedly set, read back and
// remove it while a reader enumerates. Every observed value for a name must be
// one its owner wrote.
func runConcurrent(t *testing.T, acc *env.Accessor, prefix string, workers, iterations int) {
	t.Helper()

	errs := make(chan error, workers+1)
	done := make(chan struct{})
	var wg sync.WaitGroup

	for w := range workers {
		name := fmt.Sprintf("%s%d", prefix, w)
		t.Cleanup(func() { _ = acc.Remove(name) })

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range iterations {
				want := fmt.Sprintf("%s-%d-payload", name, i)
				if err := acc.Set(name, want); err != nil {
					errs <- err
					return
				}
				got, err := acc.Get(name)
				if err != nil || got != want {
					errs <- fmt.Errorf("%s: lost update: got %q (%v), want %q", name, got, err, want)
					return
				}
				if err := acc.Remove(name); err != nil {
					errs <- err
					return
				}
				if _, err := acc.Get(name); !errors.Is(err, env.ErrNotFound) {
					errs <- fmt.Errorf("%s: expected not found after remove, got %v", name, err)
					return
				}
			}
		}()
	}

	var readers sync.WaitGroup
	readers.Add(1)
	go func() {
		defer readers.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			for name, value := range acc.Vars() {
				if !strings.HasPrefix(name, prefix) {
					continue
				}
				if !strings.HasPrefix(value, name+"-") || !strings.HasSuffix(value, "-payload") {
					errs <- fmt.Errorf("%s: torn value %q", name, value)
					return
				}
			}
		}
	}()

	wg.Wait()
	close(done)
	readers.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestAccessor_ProcessEnvironment(t *testing.T) { //nolint:paralleltest // Modifies environment variables
	const key = "SYNCENV_TEST_PROCESS_VAR"
	t.Cleanup(func() { _ = env.Remove(key) })

	require.NoError(t, env.Set(key, "from-accessor"))
	got, ok := os.LookupEnv(key)
	require.True(t, ok)
	assert.Equal(t, "from-accessor", got)

	v, err := env.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "from-accessor", v)

	v, ok = env.Lookup(key)
	assert.True(t, ok)
	assert.Equal(t, "from-accessor", v)

	snap, err := env.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, "from-accessor", snap[key])

	entries, err := env.Environ()
	require.NoError(t, err)
	assert.Contains(t, entries, key+"=from-accessor")

	found := false
	for name, value := range env.Vars() {
		if name == key {
			found = true
			assert.Equal(t, "from-accessor", value)
		}
	}
	assert.True(t, found)

	require.NoError(t, env.Fill(maps.All(map[string]string{key: "filled"})))
	assert.Equal(t, "filled", os.Getenv(key))

	require.NoError(t, env.Remove(key))
	_, ok = os.LookupEnv(key)
	assert.False(t, ok)
	_, err = env.Get(key)
	assert.ErrorIs(t, err, env.ErrNotFound)

	// Inherit is a no-op when the table is the process environment.
	assert.NoError(t, env.Default().Inherit())
}

func TestAccessor_Inherit(t *testing.T) { //nolint:paralleltest // Modifies environment variables
	const key = "SYNCENV_TEST_INHERIT"
	require.NoError(t, env.Set(key, "inherited"))
	t.Cleanup(func() { _ = env.Remove(key) })

	acc := newMapAccessor()
	_, ok := acc.Lookup(key)
	require.False(t, ok)

	require.NoError(t, acc.Inherit())
	v, err := acc.Get(key)
	require.NoError(t, err)
	assert.Equal(t, "inherited", v)

	// The private table is independent from the process environment afterwards.
	require.NoError(t, acc.Set(key, "private"))
	assert.Equal(t, "inherited", os.Getenv(key))
}

func TestDefault(t *testing.T) {
	t.Parallel()
	assert.Same(t, env.Default(), env.Default())
	assert.Equal(t, env.ModeReadWrite, env.Default().Mode())
}

func TestVarError_Format(t *testing.T) {
	t.Parallel()

	err := &env.VarError{Op: env.OpVars, Err: env.ErrLockPoisoned}
	assert.Equal(t, "env vars: environment lock poisoned", err.Error())

	err = &env.VarError{Op: env.OpSet, Name: "a=b", Err: env.ErrInvalidName}
	assert.Equal(t, `env set "a=b": invalid environment variable name`, err.Error())
}

// TestReader_InterfaceCompliance ensures Accessor implements the Reader interface
func TestReader_InterfaceCompliance(t *testing.T) {
	t.Parallel()
	var _ env.Reader = env.New()
	var _ env.Table = env.OSTable{}
	var _ env.Table = env.NewMapTable(nil)
	// If this compiles, the test passes
}

func BenchmarkInherit(b *testing.B) {
	acc := newMapAccessor()
	for b.Loop() {
		if err := acc.Inherit(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkFill(b *testing.B) {
	pairs := make(map[string]string, 64)
	for i := range 64 {
		pairs[fmt.Sprintf("BENCH_%d", i)] = strings.Repeat("v", 32)
	}
	acc := newMapAccessor()
	for b.Loop() {
		if err := acc.Fill(maps.All(pairs)); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGetParallel(b *testing.B) {
	for _, mode := range []env.Mode{env.ModeReadWrite, env.ModeExclusive} {
		b.Run(mode.String(), func(b *testing.B) {
			acc := newMapAccessor(env.WithMode(mode))
			if err := acc.Set("BENCH", "value"); err != nil {
				b.Fatal(err)
			}
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					_, _ = acc.Get("BENCH")
				}
			})
		})
	}
}
