// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/stacklok/syncenv/validation/envvar"
)

// Op names an environment operation in errors, logs and observations.
type Op string

// Operations reported by an Accessor.
const (
	OpGet     Op = "get"
	OpSet     Op = "set"
	OpRemove  Op = "remove"
	OpVars    Op = "vars"
	OpFill    Op = "fill"
	OpInherit Op = "inherit"
)

// Accessor serializes access to one environment Table. All Accessors backed
// by OSTable share the single process-wide guard.
type Accessor struct {
	guard    *guard
	table    Table
	logger   *slog.Logger
	observer Observer
}

type options struct {
	table    Table
	mode     Mode
	logger   *slog.Logger
	observer Observer
}

// Option configures an Accessor created by New.
type Option func(*options)

// WithTable sets the table the Accessor guards. The default is OSTable.
func WithTable(t Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithMode sets the lock granularity for a private table. It has no effect
// on OSTable, which is always guarded by the process-wide read-write guard.
func WithMode(m Mode) Option {
	return func(o *options) {
		o.mode = m
	}
}

// WithLogger sets the logger used for mutation and poisoning events.
// Values are never logged. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithObserver registers an Observer notified after every operation.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}

// New creates an Accessor.
func New(opts ...Option) *Accessor {
	o := &options{
		table: OSTable{},
		mode:  ModeReadWrite,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}

	a := &Accessor{
		table:    o.table,
		logger:   o.logger,
		observer: o.observer,
	}
	if isOSTable(o.table) {
		a.guard = processGuard()
	} else {
		a.guard = newGuard(o.mode)
	}
	return a
}

func isOSTable(t Table) bool {
	switch t.(type) {
	case OSTable, *OSTable:
		return true
	}
	return false
}

// Mode reports the lock granularity actually in use.
func (a *Accessor) Mode() Mode {
	return a.guard.mode
}

// Poisoned reports whether a previous writer panicked while holding the guard.
func (a *Accessor) Poisoned() bool {
	return a.guard.poisoned.Load()
}

// Get returns the value bound to name, or an error wrapping ErrNotFound.
// Names that can never be bound yield ErrNotFound without touching the table.
func (a *Accessor) Get(name string) (string, error) {
	value, found, held, err := a.lookup(name)
	if err == nil && !found {
		err = newVarError(OpGet, name, ErrNotFound)
	}
	a.observe(OpGet, held, err)
	if err != nil {
		return "", err
	}
	return value, nil
}

// Lookup returns the value bound to name and whether it is present.
// Lookup has no error result, so a poisoned guard panics with a *VarError
// wrapping ErrLockPoisoned. Use Get to receive it as an error.
func (a *Accessor) Lookup(name string) (string, bool) {
	value, found, held, err := a.lookup(name)
	a.observe(OpGet, held, err)
	if err != nil {
		panic(err)
	}
	return value, found
}

// Getenv returns the value bound to key, or "" when absent. It lets an
// Accessor serve as a Reader and panics on a poisoned guard like Lookup.
func (a *Accessor) Getenv(key string) string {
	v, _ := a.Lookup(key)
	return v
}

func (a *Accessor) lookup(name string) (value string, found bool, held time.Duration, err error) {
	bindable := envvar.Bindable(name)
	held, err = a.guard.read(func() {
		if bindable {
			value, found = a.table.Lookup(name)
		}
	})
	if err != nil {
		return "", false, held, newVarError(OpGet, name, err)
	}
	return value, found, held, nil
}

// Set binds name to value, creating or overwriting it.
func (a *Accessor) Set(name, value string) error {
	if err := validate(OpSet, name, value); err != nil {
		a.observe(OpSet, 0, err)
		return err
	}

	held, err := a.write(OpSet, name, func() error {
		return a.table.Set(name, value)
	})
	err = wrap(OpSet, name, err)
	a.observe(OpSet, held, err)
	if err != nil {
		return err
	}
	a.logger.Debug("environment variable set", "name", name)
	return nil
}

// Remove unbinds name. Removing an absent name succeeds.
func (a *Accessor) Remove(name string) error {
	if err := envvar.ValidateName(name); err != nil {
		err = newVarError(OpRemove, name, fmt.Errorf("%w: %w", ErrInvalidName, err))
		a.observe(OpRemove, 0, err)
		return err
	}

	held, err := a.write(OpRemove, name, func() error {
		return a.table.Unset(name)
	})
	err = wrap(OpRemove, name, err)
	a.observe(OpRemove, held, err)
	if err != nil {
		return err
	}
	a.logger.Debug("environment variable removed", "name", name)
	return nil
}

// Vars returns a sequence over a snapshot of every binding, ordered by name.
// The snapshot is copied while the guard is held; iterating it takes no lock
// and never reflects later changes. Vars has no error result, so a poisoned
// guard panics with a *VarError wrapping ErrLockPoisoned. Use Snapshot to
// receive it as an error.
func (a *Accessor) Vars() iter.Seq2[string, string] {
	pairs, err := a.pairs(OpVars)
	if err != nil {
		panic(err)
	}
	return func(yield func(string, string) bool) {
		for _, p := range pairs {
			if !yield(p.name, p.value) {
				return
			}
		}
	}
}

// Snapshot returns a copy of every binding.
func (a *Accessor) Snapshot() (map[string]string, error) {
	pairs, err := a.pairs(OpVars)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.name] = p.value
	}
	return out, nil
}

// Environ returns a snapshot as sorted NAME=value entries, suitable for
// exec.Cmd.Env.
func (a *Accessor) Environ() ([]string, error) {
	pairs, err := a.pairs(OpVars)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.name+"="+p.value)
	}
	return out, nil
}

// Fill binds every pair produced by pairs. All pairs are validated before the
// guard is taken and then written in a single critical section, so an invalid
// pair leaves the table untouched.
func (a *Accessor) Fill(pairs iter.Seq2[string, string]) error {
	return a.fill(OpFill, pairs)
}

// Inherit copies the real process environment into the Accessor's table.
// It is a no-op for OSTable, whose table already is the process environment.
func (a *Accessor) Inherit() error {
	if isOSTable(a.table) {
		return nil
	}

	var entries []string
	if _, err := processGuard().read(func() {
		entries = OSTable{}.Environ()
	}); err != nil {
		err = newVarError(OpInherit, "", err)
		a.observe(OpInherit, 0, err)
		return err
	}

	return a.fill(OpInherit, func(yield func(string, string) bool) {
		for _, p := range parseEntries(entries) {
			if !yield(p.name, p.value) {
				return
			}
		}
	})
}

func (a *Accessor) fill(op Op, pairs iter.Seq2[string, string]) error {
	var batch []pair
	for name, value := range pairs {
		if err := validate(op, name, value); err != nil {
			a.observe(op, 0, err)
			return err
		}
		batch = append(batch, pair{name: name, value: value})
	}

	held, err := a.write(op, "", func() error {
		for _, p := range batch {
			if err := a.table.Set(p.name, p.value); err != nil {
				return newVarError(op, p.name, err)
			}
		}
		return nil
	})
	err = wrap(op, "", err)
	a.observe(op, held, err)
	if err != nil {
		return err
	}
	a.logger.Debug("environment filled", "op", string(op), "count", len(batch))
	return nil
}

// write wraps guard.write so that a panicking table is logged once the guard
// has been released.
func (a *Accessor) write(op Op, name string, fn func() error) (time.Duration, error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("environment lock poisoned", "op", string(op), "name", name, "panic", r)
			panic(r)
		}
	}()
	return a.guard.write(fn)
}

type pair struct {
	name  string
	value string
}

// pairs takes a snapshot under the guard and parses it after release.
func (a *Accessor) pairs(op Op) ([]pair, error) {
	var entries []string
	held, err := a.guard.read(func() {
		entries = a.table.Environ()
	})
	if err != nil {
		err = newVarError(op, "", err)
		a.observe(op, held, err)
		return nil, err
	}
	a.observe(op, held, nil)
	return parseEntries(entries), nil
}

// parseEntries converts NAME=value entries into pairs sorted by name. Names
// that Get could never find, such as the "=C:" entries on Windows, are
// dropped. When a name occurs more than once the first occurrence wins,
// matching lookup.
func parseEntries(entries []string) []pair {
	seen := make(map[string]struct{}, len(entries))
	out := make([]pair, 0, len(entries))
	for _, e := range entries {
		name, value, ok := splitEntry(e)
		if !ok || !envvar.Bindable(name) {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, pair{name: name, value: value})
	}
	slices.SortFunc(out, func(x, y pair) int {
		return strings.Compare(x.name, y.name)
	})
	return out
}

func validate(op Op, name, value string) error {
	if err := envvar.ValidateName(name); err != nil {
		return newVarError(op, name, fmt.Errorf("%w: %w", ErrInvalidName, err))
	}
	if err := envvar.ValidateValue(value); err != nil {
		return newVarError(op, name, fmt.Errorf("%w: %w", ErrInvalidValue, err))
	}
	return nil
}

func wrap(op Op, name string, err error) error {
	if err == nil {
		return nil
	}
	var ve *VarError
	if errors.As(err, &ve) {
		return err
	}
	return newVarError(op, name, err)
}

func (a *Accessor) observe(op Op, held time.Duration, err error) {
	if a.observer != nil {
		a.observer.ObserveOp(op, held, err)
	}
}
