package schema

import (
	"maps"
	"math"
	"slices"
)

// Snapshot is a point-in-time, read-only copy of every resolved setting.
// Visibility rules and button actions receive one; mutating the store
// afterwards does not affect it.
type Snapshot struct {
	values map[string]any
}

// NewSnapshot copies values into a snapshot. Canonical setting values are
// scalars or Color arrays, so a shallow copy is a full copy.
func NewSnapshot(values map[string]any) Snapshot {
	return Snapshot{values: maps.Clone(values)}
}

// Get returns the value for key.
func (s Snapshot) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Bool returns the value for key, or false if absent or not a bool.
func (s Snapshot) Bool(key string) bool {
	b, _ := s.values[key].(bool)
	return b
}

// Float returns the numeric value for key, or 0.
func (s Snapshot) Float(key string) float64 {
	f, _ := toFloat(s.values[key])
	return f
}

// Int returns the numeric value for key truncated to int, or 0. Values
// beyond the int range saturate.
func (s Snapshot) Int(key string) int {
	f, _ := toFloat(s.values[key])
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt:
		return math.MaxInt
	case f <= math.MinInt:
		return math.MinInt
	}
	return int(f)
}

// String returns the value for key, or "" if absent or not a string.
func (s Snapshot) String(key string) string {
	str, _ := s.values[key].(string)
	return str
}

// Len returns the number of settings.
func (s Snapshot) Len() int {
	return len(s.values)
}

// Keys returns all keys sorted.
func (s Snapshot) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Map returns a copy of the underlying values.
func (s Snapshot) Map() map[string]any {
	return maps.Clone(s.values)
}
