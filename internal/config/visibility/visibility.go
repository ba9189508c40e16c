// Package visibility decides which fields of a schema are currently shown.
//
// A field without a visibility rule is always visible. A field with a rule
// is re-evaluated only when one of the keys in its DependsOn list changes;
// the engine learns about changes by registering itself as a store hook.
//
// When a Switch or Dropdown field becomes hidden its stored value is
// dropped, so the key resolves to the field's initial value or type
// default again and no stale choice leaks out of a hidden section.
package visibility

import (
	"fmt"
	"maps"
	"slices"

	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/config/store"
	"github.com/sinmod/sinconfig/internal/logging"
)

// Listener is told when a field flips between shown and hidden.
type Listener func(field *schema.Field, visible bool)

type listenerEntry struct {
	id uint64
	fn Listener
}

// Subscription represents a registered visibility listener.
type Subscription struct {
	id     uint64
	engine *Engine
}

// Unsubscribe removes the listener.
func (s *Subscription) Unsubscribe() {
	if s.engine == nil {
		return
	}
	s.engine.listeners = slices.DeleteFunc(s.engine.listeners, func(e listenerEntry) bool {
		return e.id == s.id
	})
	s.engine = nil
}

// Engine tracks visibility of rule-bearing fields.
//
// Engine is not safe for concurrent use.
type Engine struct {
	schema *schema.Schema
	store  *store.Store

	cache     map[*schema.Field]bool
	listeners []listenerEntry
	nextID    uint64

	logger *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over st and registers it as a change hook.
// The visibility of every rule field is computed immediately, without
// touching stored values; call Refresh to also apply hide resets.
func New(st *store.Store, opts ...Option) *Engine {
	e := &Engine{
		schema: st.Schema(),
		store:  st,
		cache:  make(map[*schema.Field]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.OrNop(e.logger).WithComponent("visibility")

	snap := st.Snapshot()
	for _, f := range e.schema.AllFields() {
		if f.VisibilityRule != nil {
			e.cache[f] = e.evaluate(f, snap)
		}
	}

	st.AddHook(e)
	return e
}

// IsVisible evaluates the field's rule against the current values. It has
// no side effects; repeated calls with unchanged values agree.
func (e *Engine) IsVisible(f *schema.Field) bool {
	if f.VisibilityRule == nil {
		return true
	}
	return e.evaluate(f, e.store.Snapshot())
}

// OnChanged re-evaluates the fields that depend on key. It implements
// store.ChangeHook.
func (e *Engine) OnChanged(key string) {
	deps := e.schema.Dependents(key)
	if len(deps) == 0 {
		return
	}
	snap := e.store.Snapshot()
	for _, f := range deps {
		e.update(f, e.evaluate(f, snap))
	}
}

// Refresh re-evaluates every rule field. Used when a session opens and
// after values are reloaded from disk; hidden Switch and Dropdown fields
// are reset even when their visibility did not flip.
func (e *Engine) Refresh() {
	snap := e.store.Snapshot()
	for _, f := range e.schema.AllFields() {
		if f.VisibilityRule == nil {
			continue
		}
		visible := e.evaluate(f, snap)
		e.update(f, visible)
		if !visible {
			e.reset(f)
		}
	}
}

// OnVisibilityChange registers fn for visibility flips.
func (e *Engine) OnVisibilityChange(fn Listener) *Subscription {
	e.nextID++
	e.listeners = append(e.listeners, listenerEntry{id: e.nextID, fn: fn})
	return &Subscription{id: e.nextID, engine: e}
}

// Clear drops every visibility listener.
func (e *Engine) Clear() {
	e.listeners = nil
}

func (e *Engine) update(f *schema.Field, visible bool) {
	prev, known := e.cache[f]
	e.cache[f] = visible
	if known && prev == visible {
		return
	}

	e.logger.Debug("visibility changed", "key", f.Key, "visible", visible)
	for _, l := range slices.Clone(e.listeners) {
		e.call(l, f, visible)
	}
	if !visible {
		e.reset(f)
	}
}

func (e *Engine) call(l listenerEntry, f *schema.Field, visible bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("visibility listener panicked", "key", f.Key, "panic", fmt.Sprint(r))
		}
	}()
	l.fn(f, visible)
}

// Prune returns a copy of values without the entries that would be reset
// on hide once values are in place. Hiding one field can hide others, so
// rules are re-evaluated until nothing more is dropped. Applying the pruned
// map avoids dispatching values that a reset would immediately undo.
func (e *Engine) Prune(values map[string]any) map[string]any {
	out := maps.Clone(values)
	for {
		scratch := store.New(e.schema)
		_ = scratch.Replace(out) // invalid entries are reported by the real apply
		snap := scratch.Snapshot()

		dropped := false
		for _, f := range e.schema.AllFields() {
			if f.VisibilityRule == nil || !e.resettable(f) {
				continue
			}
			if _, ok := out[f.Key]; !ok {
				continue
			}
			if !e.evaluate(f, snap) {
				delete(out, f.Key)
				dropped = true
			}
		}
		if !dropped {
			return out
		}
	}
}

// resettable reports whether f loses its stored value when hidden. Fields
// shadowed by a later registration of the same key are left alone.
func (e *Engine) resettable(f *schema.Field) bool {
	if f.Kind != schema.KindSwitch && f.Kind != schema.KindDropdown {
		return false
	}
	cur, ok := e.schema.Field(f.Key)
	return ok && cur == f
}

// reset drops the stored value of a hidden Switch or Dropdown.
func (e *Engine) reset(f *schema.Field) {
	if !e.resettable(f) || !e.store.IsSet(f.Key) {
		return
	}
	if err := e.store.Unset(f.Key); err != nil {
		e.logger.Warn("reset hidden field", "key", f.Key, "error", err)
	}
}

func (e *Engine) evaluate(f *schema.Field, snap schema.Snapshot) bool {
	visible, err := f.VisibilityRule.Evaluate(snap)
	if err != nil {
		e.logger.Warn("visibility rule failed, showing field", "key", f.Key, "error", err)
		return true
	}
	return visible
}
