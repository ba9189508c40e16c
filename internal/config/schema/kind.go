package schema

import (
	"fmt"
	"strings"
)

// Kind is the widget type of a field. It decides the field's default value
// and the canonical Go type of its stored value.
type Kind uint8

const (
	// KindButton is a stateless clickable action.
	KindButton Kind = iota
	// KindSwitch holds a bool.
	KindSwitch
	// KindTextInput holds a string.
	KindTextInput
	// KindSlider holds a float64 clamped to the field's Range.
	KindSlider
	// KindDropdown holds the int index of the selected option.
	KindDropdown
	// KindColorPicker holds an RGBA Color.
	KindColorPicker
	// KindKeybind holds a key name, "NONE" when unbound.
	KindKeybind
	// KindTextParagraph is stateless descriptive text.
	KindTextParagraph
)

var kindNames = [...]string{
	KindButton:        "button",
	KindSwitch:        "switch",
	KindTextInput:     "textinput",
	KindSlider:        "slider",
	KindDropdown:      "dropdown",
	KindColorPicker:   "colorpicker",
	KindKeybind:       "keybind",
	KindTextParagraph: "textparagraph",
}

// String returns the lower-case kind name used in manifests.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Stateless reports whether fields of this kind never hold a value.
func (k Kind) Stateless() bool {
	return k == KindButton || k == KindTextParagraph
}

// ParseKind parses a kind name. Matching is case-insensitive and ignores
// "-" and "_" so "color_picker" and "ColorPicker" both work.
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s))
	for i, name := range kindNames {
		if name == norm {
			return Kind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown field kind %q", s)
}
