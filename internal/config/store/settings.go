package store

import (
	"fmt"

	"github.com/sinmod/sinconfig/internal/config/schema"
)

// Settings provides type-safe, read-only access to resolved values for
// application code. Unlike Snapshot it reads through to the live store.
type Settings struct {
	store *Store
}

// Get returns the resolved value for key.
func (s *Settings) Get(key string) (any, error) {
	return s.store.Resolve(key)
}

// Bool returns a Switch value.
func (s *Settings) Bool(key string) (bool, error) {
	val, err := s.Get(key)
	if err != nil {
		return false, err
	}
	b, ok := val.(bool)
	if !ok {
		return false, typeError(key, "bool", val)
	}
	return b, nil
}

// Float returns a Slider value.
func (s *Settings) Float(key string) (float64, error) {
	val, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	default:
		return 0, typeError(key, "float64", val)
	}
}

// Int returns a Dropdown index, or a Slider value truncated toward zero.
func (s *Settings) Int(key string) (int, error) {
	val, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	switch v := val.(type) {
	case int:
		return v, nil
	case float64:
		return int(v), nil
	default:
		return 0, typeError(key, "int", val)
	}
}

// String returns a TextInput or Keybind value.
func (s *Settings) String(key string) (string, error) {
	val, err := s.Get(key)
	if err != nil {
		return "", err
	}
	str, ok := val.(string)
	if !ok {
		return "", typeError(key, "string", val)
	}
	return str, nil
}

// Color returns a ColorPicker value.
func (s *Settings) Color(key string) (schema.Color, error) {
	val, err := s.Get(key)
	if err != nil {
		return schema.Color{}, err
	}
	c, ok := val.(schema.Color)
	if !ok {
		return schema.Color{}, typeError(key, "color", val)
	}
	return c, nil
}

// Option returns the label of the selected Dropdown option.
func (s *Settings) Option(key string) (string, error) {
	idx, err := s.Int(key)
	if err != nil {
		return "", err
	}
	f, _ := s.store.schema.Field(key)
	if f.Kind != schema.KindDropdown {
		return "", &TypeError{Key: key, Expected: "dropdown", Actual: f.Kind.String()}
	}
	if idx < 0 || idx >= len(f.Options) {
		return "", nil
	}
	return f.Options[idx], nil
}

// Keys returns every stateful key in schema order.
func (s *Settings) Keys() []string {
	return s.store.schema.Keys()
}

// Map returns every resolved value keyed by field key.
func (s *Settings) Map() map[string]any {
	return s.store.Snapshot().Map()
}

func typeError(key, expected string, val any) error {
	actual := "nil"
	if val != nil {
		actual = fmt.Sprintf("%T", val)
	}
	return &TypeError{Key: key, Expected: expected, Actual: actual}
}
