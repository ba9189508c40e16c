package schema

import (
	"errors"
	"math"
	"testing"
)

func TestDefaultFor(t *testing.T) {
	tests := []struct {
		name  string
		field Field
		want  any
	}{
		{"switch", Field{Kind: KindSwitch}, false},
		{"textinput", Field{Kind: KindTextInput}, ""},
		{"textinput placeholder", Field{Kind: KindTextInput, Placeholder: "name"}, "name"},
		{"slider", Field{Kind: KindSlider, Range: &Range{Min: 3, Max: 9}}, 3.0},
		{"dropdown", Field{Kind: KindDropdown, Options: []string{"a", "b"}}, 0},
		{"colorpicker", Field{Kind: KindColorPicker}, White},
		{"keybind", Field{Kind: KindKeybind}, NoKey},
		{"button", Field{Kind: KindButton}, nil},
		{"textparagraph", Field{Kind: KindTextParagraph}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DefaultFor(&tt.field); !Equal(got, tt.want) {
				t.Errorf("DefaultFor() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	slider := &Field{Key: "s", Kind: KindSlider, Range: &Range{Min: 0, Max: 100}}
	dropdown := &Field{Key: "d", Kind: KindDropdown, Options: []string{"low", "mid", "high"}}
	color := &Field{Key: "c", Kind: KindColorPicker}
	keybind := &Field{Key: "k", Kind: KindKeybind}

	tests := []struct {
		name  string
		field *Field
		in    any
		want  any
	}{
		{"slider int", slider, 42, 42.0},
		{"slider json float", slider, float64(42), 42.0},
		{"slider clamps high", slider, 250, 100.0},
		{"slider clamps low", slider, -1.5, 0.0},
		{"dropdown int", dropdown, 2, 2},
		{"dropdown json float", dropdown, float64(1), 1},
		{"dropdown label", dropdown, "high", 2},
		{"dropdown clamps", dropdown, 7, 2},
		{"dropdown clamps negative", dropdown, -4, 0},
		{"dropdown clamps huge", dropdown, 1e20, 2},
		{"dropdown clamps max int", dropdown, float64(math.MaxInt64), 2},
		{"dropdown clamps infinity", dropdown, math.Inf(1), 2},
		{"dropdown clamps negative infinity", dropdown, math.Inf(-1), 0},
		{"color slice any", color, []any{float64(10), float64(20), float64(30), float64(255)}, Color{10, 20, 30, 255}},
		{"color rgb gets alpha", color, []int{1, 2, 3}, Color{1, 2, 3, 255}},
		{"color array", color, Color{9, 8, 7, 6}, Color{9, 8, 7, 6}},
		{"keybind", keybind, "KEY_A", "KEY_A"},
		{"keybind empty", keybind, "", NoKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Normalize(tt.field, tt.in)
			if err != nil {
				t.Fatalf("Normalize error: %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("Normalize(%#v) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	tests := []struct {
		name  string
		field *Field
		in    any
		want  error
	}{
		{"switch string", &Field{Key: "s", Kind: KindSwitch}, "true", ErrTypeMismatch},
		{"text number", &Field{Key: "t", Kind: KindTextInput}, 3, ErrTypeMismatch},
		{"dropdown fraction", &Field{Key: "d", Kind: KindDropdown}, 1.5, ErrTypeMismatch},
		{"dropdown unknown label", &Field{Key: "d", Kind: KindDropdown, Options: []string{"a"}}, "b", ErrTypeMismatch},
		{"color short", &Field{Key: "c", Kind: KindColorPicker}, []int{1, 2}, ErrTypeMismatch},
		{"color out of range", &Field{Key: "c", Kind: KindColorPicker}, []int{1, 2, 300}, ErrTypeMismatch},
		{"button", &Field{Kind: KindButton}, true, ErrStatelessField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.field, tt.in)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			var ve *ValueError
			if !errors.As(err, &ve) {
				t.Errorf("expected *ValueError, got %T", err)
			}
		})
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		name  string
		field *Field
		in    string
		want  any
	}{
		{"switch on", &Field{Key: "s", Kind: KindSwitch}, "on", true},
		{"switch false", &Field{Key: "s", Kind: KindSwitch}, "false", false},
		{"slider", &Field{Key: "s", Kind: KindSlider, Range: &Range{Max: 10}}, "7.5", 7.5},
		{"dropdown index", &Field{Key: "d", Kind: KindDropdown, Options: []string{"a", "b"}}, "1", 1},
		{"dropdown label", &Field{Key: "d", Kind: KindDropdown, Options: []string{"a", "b"}}, "b", 1},
		{"color csv", &Field{Key: "c", Kind: KindColorPicker}, "10, 20, 30", Color{10, 20, 30, 255}},
		{"color hex", &Field{Key: "c", Kind: KindColorPicker}, "#0a141e80", Color{10, 20, 30, 128}},
		{"text", &Field{Key: "t", Kind: KindTextInput}, " hello ", "hello"},
		{"keybind", &Field{Key: "k", Kind: KindKeybind}, "key_b", "KEY_B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseValue(tt.field, tt.in)
			if err != nil {
				t.Fatalf("ParseValue error: %v", err)
			}
			if !Equal(got, tt.want) {
				t.Errorf("ParseValue(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseValue(&Field{Key: "s", Kind: KindSwitch}, "maybe"); err == nil {
		t.Error("expected error for unparseable switch value")
	}
}

func TestEqual(t *testing.T) {
	if !Equal(42, 42.0) {
		t.Error("int and float of same value should be equal")
	}
	if Equal(true, false) {
		t.Error("true != false")
	}
	if !Equal(Color{1, 2, 3, 4}, Color{1, 2, 3, 4}) {
		t.Error("equal colors")
	}
	if Equal("1", 1) {
		t.Error("string and number differ")
	}
}

func TestSnapshot_IntSaturates(t *testing.T) {
	snap := NewSnapshot(map[string]any{"big": 1e20, "small": math.Inf(-1), "nan": math.NaN(), "n": 7.9})

	if got := snap.Int("big"); got != math.MaxInt {
		t.Errorf("Int(big) = %d, want MaxInt", got)
	}
	if got := snap.Int("small"); got != math.MinInt {
		t.Errorf("Int(small) = %d, want MinInt", got)
	}
	if got := snap.Int("nan"); got != 0 {
		t.Errorf("Int(nan) = %d, want 0", got)
	}
	if got := snap.Int("n"); got != 7 {
		t.Errorf("Int(n) = %d, want 7", got)
	}
}

func TestSnapshot_IsACopy(t *testing.T) {
	src := map[string]any{"debug": true, "volume": 42.0, "name": "x", "mode": 2}
	snap := NewSnapshot(src)
	src["debug"] = false

	if !snap.Bool("debug") {
		t.Error("snapshot must not observe later writes to the source map")
	}
	if snap.Float("volume") != 42 || snap.Int("mode") != 2 || snap.String("name") != "x" {
		t.Error("typed readers returned wrong values")
	}
	if snap.Bool("missing") || snap.String("volume") != "" {
		t.Error("mismatched reads should return zero values")
	}

	m := snap.Map()
	m["debug"] = false
	if !snap.Bool("debug") {
		t.Error("Map() must return a copy")
	}
	if keys := snap.Keys(); len(keys) != 4 || keys[0] != "debug" {
		t.Errorf("Keys() = %v", keys)
	}
}
