// Package store holds the live values of a settings schema.
//
// The Store is the only mutation boundary: every write goes through Set,
// Unset, Replace or Apply. A write runs a change pipeline that first lets
// change hooks (the visibility engine) react and then hands the change to the
// dispatcher (the listener bus). Writes issued while the pipeline is running,
// for example from inside a listener, are queued and processed after the
// current change instead of recursing.
package store

import (
	"errors"
	"maps"
	"slices"

	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/logging"
)

// Change is one value transition produced by a store write.
type Change struct {
	Key string
	Old any
	New any
}

// Semantic reports whether the write actually changed the resolved value.
// Writing an equal value still produces a Change.
func (c Change) Semantic() bool {
	return !schema.Equal(c.Old, c.New)
}

// ChangeHook reacts to a key changing before listeners are notified.
type ChangeHook interface {
	OnChanged(key string)
}

// Dispatcher delivers a change to listeners.
type Dispatcher interface {
	Dispatch(key string, oldValue, newValue any)
}

// Store maps field keys to their current values.
//
// Store is not safe for concurrent use. All calls happen on the goroutine
// that owns the settings session.
type Store struct {
	schema     *schema.Schema
	values     map[string]any
	hooks      []ChangeHook
	dispatcher Dispatcher

	pending  []Change
	flushing bool

	strict bool
	logger *logging.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithStrict logs unknown-key access at error level instead of debug.
func WithStrict(strict bool) Option {
	return func(s *Store) {
		s.strict = strict
	}
}

// WithDispatcher sets the listener dispatcher.
func WithDispatcher(d Dispatcher) Option {
	return func(s *Store) {
		s.dispatcher = d
	}
}

// New creates an empty store for sch.
func New(sch *schema.Schema, opts ...Option) *Store {
	s := &Store{
		schema: sch,
		values: make(map[string]any),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).WithComponent("store")
	return s
}

// Schema returns the schema the store is bound to.
func (s *Store) Schema() *schema.Schema {
	return s.schema
}

// AddHook registers a hook that runs for every change, before dispatch.
func (s *Store) AddHook(h ChangeHook) {
	s.hooks = append(s.hooks, h)
}

// SetDispatcher replaces the listener dispatcher.
func (s *Store) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Resolve returns the effective value of key: the stored value, else the
// field's initial value, else its placeholder (text inputs), else the type
// default.
func (s *Store) Resolve(key string) (any, error) {
	f, err := s.field(key)
	if err != nil {
		return nil, err
	}
	return s.resolve(f), nil
}

// Get resolves key and returns nil for unknown keys.
func (s *Store) Get(key string) any {
	v, _ := s.Resolve(key)
	return v
}

// Set writes value under key and runs the change pipeline. The value is
// normalized to the field kind's canonical type first; values that cannot
// be converted are rejected without a write.
func (s *Store) Set(key string, value any) error {
	f, err := s.field(key)
	if err != nil {
		return err
	}
	v, err := schema.Normalize(f, value)
	if err != nil {
		s.logger.Warn("rejected value", "key", key, "error", err)
		return err
	}

	old := s.resolve(f)
	s.values[key] = v
	s.enqueue(Change{Key: key, Old: old, New: v})
	return nil
}

// Unset removes the stored value so key falls back to default resolution.
// A change is produced only if a value was stored.
func (s *Store) Unset(key string) error {
	f, err := s.field(key)
	if err != nil {
		return err
	}
	if _, ok := s.values[key]; !ok {
		return nil
	}
	old := s.resolve(f)
	delete(s.values, key)
	s.enqueue(Change{Key: key, Old: old, New: s.resolve(f)})
	return nil
}

// Replace seeds the store with values without running the change pipeline.
// Unknown keys and unconvertible values are dropped; the returned error
// joins one error per dropped entry.
func (s *Store) Replace(values map[string]any) error {
	next, err := s.normalizeAll(values)
	s.values = next
	return err
}

// Apply replaces all stored values and produces a change for every key
// whose resolved value differs afterwards. Used when the document is
// reloaded from disk during a session.
func (s *Store) Apply(values map[string]any) error {
	next, err := s.normalizeAll(values)

	before := make(map[string]any)
	for _, key := range s.schema.Keys() {
		before[key] = s.Get(key)
	}
	s.values = next

	var changes []Change
	for _, key := range s.schema.Keys() {
		after := s.Get(key)
		if !schema.Equal(before[key], after) {
			changes = append(changes, Change{Key: key, Old: before[key], New: after})
		}
	}
	s.enqueue(changes...)
	return err
}

// IsSet reports whether key has an explicitly stored value.
func (s *Store) IsSet(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Values returns a copy of the explicitly stored values.
func (s *Store) Values() map[string]any {
	return maps.Clone(s.values)
}

// Snapshot returns the resolved value of every stateful field.
func (s *Store) Snapshot() schema.Snapshot {
	out := make(map[string]any)
	for _, key := range s.schema.Keys() {
		out[key] = s.Get(key)
	}
	return schema.NewSnapshot(out)
}

// Settings returns a read-only typed view for application code.
func (s *Store) Settings() *Settings {
	return &Settings{store: s}
}

func (s *Store) field(key string) (*schema.Field, error) {
	f, ok := s.schema.Field(key)
	if !ok {
		if s.strict {
			s.logger.Error("unknown setting key", "key", key)
		} else {
			s.logger.Debug("unknown setting key", "key", key)
		}
		return nil, &UnknownKeyError{Key: key}
	}
	return f, nil
}

func (s *Store) resolve(f *schema.Field) any {
	if v, ok := s.values[f.Key]; ok {
		return v
	}
	if f.InitialValue != nil {
		return f.InitialValue
	}
	if f.Kind == schema.KindTextInput && f.Placeholder != "" {
		return f.Placeholder
	}
	return schema.DefaultFor(f)
}

func (s *Store) normalizeAll(values map[string]any) (map[string]any, error) {
	next := make(map[string]any, len(values))
	var errs []error
	for _, key := range slices.Sorted(maps.Keys(values)) {
		f, ok := s.schema.Field(key)
		if !ok {
			s.logger.Debug("dropping value for unknown key", "key", key)
			errs = append(errs, &UnknownKeyError{Key: key})
			continue
		}
		if !f.Stateful() {
			continue
		}
		v, err := schema.Normalize(f, values[key])
		if err != nil {
			s.logger.Warn("dropping invalid value", "key", key, "error", err)
			errs = append(errs, err)
			continue
		}
		next[key] = v
	}
	return next, errors.Join(errs...)
}

// enqueue appends changes and drains the queue unless a drain is already
// in progress further up the stack.
func (s *Store) enqueue(changes ...Change) {
	s.pending = append(s.pending, changes...)
	if s.flushing {
		return
	}

	s.flushing = true
	defer func() { s.flushing = false }()

	for len(s.pending) > 0 {
		c := s.pending[0]
		s.pending = s.pending[1:]

		for _, h := range s.hooks {
			h.OnChanged(c.Key)
		}
		if s.dispatcher != nil {
			s.dispatcher.Dispatch(c.Key, c.Old, c.New)
		}
	}
}
