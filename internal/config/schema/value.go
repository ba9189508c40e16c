package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

// DefaultFor returns the type default of a field. It depends only on the
// field's kind and static options, never on stored values.
func DefaultFor(f *Field) any {
	switch f.Kind {
	case KindSwitch:
		return false
	case KindTextInput:
		return f.Placeholder
	case KindSlider:
		if f.Range == nil {
			return 0.0
		}
		return f.Range.Min
	case KindDropdown:
		return 0
	case KindColorPicker:
		return White
	case KindKeybind:
		return NoKey
	default:
		return nil
	}
}

// Normalize converts v to the canonical Go type for the field's kind:
// bool, string, float64 (clamped), int (dropdown index), Color, or a key
// name. It accepts both Go-native values and values decoded from JSON,
// so documents written by Save and read back by Decode compare equal.
func Normalize(f *Field, v any) (any, error) {
	mismatch := func(reason string) error {
		return &ValueError{Key: f.Key, Kind: f.Kind, Value: v, Err: fmt.Errorf("%w: %s", ErrTypeMismatch, reason)}
	}

	switch f.Kind {
	case KindButton, KindTextParagraph:
		return nil, &ValueError{Key: f.Key, Kind: f.Kind, Value: v, Err: ErrStatelessField}

	case KindSwitch:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch("expected boolean")
		}
		return b, nil

	case KindTextInput:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch("expected string")
		}
		return s, nil

	case KindSlider:
		n, ok := toFloat(v)
		if !ok || math.IsNaN(n) {
			return nil, mismatch("expected number")
		}
		if f.Range != nil {
			n = f.Range.Clamp(n)
		}
		return n, nil

	case KindDropdown:
		// Older documents stored the selected label instead of its index.
		if s, ok := v.(string); ok {
			if i := slices.Index(f.Options, s); i >= 0 {
				return i, nil
			}
			return nil, mismatch(fmt.Sprintf("%q is not an option", s))
		}
		n, ok := toFloat(v)
		if !ok || n != math.Trunc(n) {
			return nil, mismatch("expected integer index")
		}
		// Clamp before converting; out of range floats do not convert portably.
		n = max(n, 0)
		if len(f.Options) > 0 {
			n = min(n, float64(len(f.Options)-1))
		} else {
			n = min(n, math.MaxInt32)
		}
		return int(n), nil

	case KindColorPicker:
		c, err := toColor(v)
		if err != nil {
			return nil, mismatch(err.Error())
		}
		return c, nil

	case KindKeybind:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch("expected key name")
		}
		if s == "" {
			return NoKey, nil
		}
		return s, nil
	}
	return nil, mismatch("unknown kind")
}

// ParseValue parses textual input (command line, environment) for a field
// and normalizes it.
func ParseValue(f *Field, s string) (any, error) {
	s = strings.TrimSpace(s)
	var v any = s

	switch f.Kind {
	case KindSwitch:
		switch strings.ToLower(s) {
		case "true", "yes", "on", "1":
			v = true
		case "false", "no", "off", "0":
			v = false
		}
	case KindSlider:
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			v = n
		}
	case KindDropdown:
		if n, err := strconv.Atoi(s); err == nil {
			v = n
		}
	case KindColorPicker:
		if c, err := parseColor(s); err == nil {
			v = c
		}
	case KindKeybind:
		v = strings.ToUpper(s)
	}
	return Normalize(f, v)
}

// Equal reports whether two setting values are semantically equal.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toColor(v any) (Color, error) {
	var parts []any
	switch val := v.(type) {
	case Color:
		parts = []any{val[0], val[1], val[2], val[3]}
	case [4]int:
		parts = []any{val[0], val[1], val[2], val[3]}
	case []any:
		parts = val
	case []int:
		for _, n := range val {
			parts = append(parts, n)
		}
	case []float64:
		for _, n := range val {
			parts = append(parts, n)
		}
	case string:
		return parseColor(val)
	default:
		return Color{}, fmt.Errorf("expected [r,g,b] or [r,g,b,a]")
	}

	if len(parts) != 3 && len(parts) != 4 {
		return Color{}, fmt.Errorf("expected 3 or 4 components, got %d", len(parts))
	}
	c := Color{0, 0, 0, 255}
	for i, p := range parts {
		n, ok := toFloat(p)
		if !ok || n != math.Trunc(n) || n < 0 || n > 255 {
			return Color{}, fmt.Errorf("component %d (%v) is not an integer in [0, 255]", i, p)
		}
		c[i] = int(n)
	}
	return c, nil
}

// parseColor accepts "#RRGGBB", "#RRGGBBAA" or "r,g,b[,a]".
func parseColor(s string) (Color, error) {
	if hex, ok := strings.CutPrefix(s, "#"); ok {
		if len(hex) != 6 && len(hex) != 8 {
			return Color{}, fmt.Errorf("hex color must have 6 or 8 digits")
		}
		c := Color{0, 0, 0, 255}
		for i := 0; i < len(hex)/2; i++ {
			n, err := strconv.ParseUint(hex[i*2:i*2+2], 16, 8)
			if err != nil {
				return Color{}, fmt.Errorf("invalid hex color %q", s)
			}
			c[i] = int(n)
		}
		return c, nil
	}

	fields := strings.Split(s, ",")
	parts := make([]any, 0, len(fields))
	for _, p := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Color{}, fmt.Errorf("invalid color component %q", p)
		}
		parts = append(parts, n)
	}
	return toColor(parts)
}
