package schema

import (
	"fmt"
	"slices"
)

// NoKey is the sentinel value of an unbound Keybind field.
const NoKey = "NONE"

// Range bounds a Slider field.
type Range struct {
	Min float64
	Max float64
}

// Clamp limits v to [Min, Max].
func (r Range) Clamp(v float64) float64 {
	return max(r.Min, min(r.Max, v))
}

// Color is an RGBA color with components in [0, 255].
type Color [4]int

// White is the default ColorPicker value.
var White = Color{255, 255, 255, 255}

// Action is run when a Button field is pressed. It receives the settings
// as they were at the moment of the press.
type Action func(values Snapshot)

// Rule decides whether a field is currently shown. Implementations must
// be pure: the same snapshot always yields the same answer.
type Rule interface {
	Evaluate(values Snapshot) (bool, error)
}

// RuleFunc adapts a plain predicate to Rule.
type RuleFunc func(values Snapshot) bool

// Evaluate implements Rule.
func (f RuleFunc) Evaluate(values Snapshot) (bool, error) {
	return f(values), nil
}

// Field is one configurable unit of the schema.
type Field struct {
	// Key identifies the field in the store and in saved documents. It must
	// be unique across the whole schema. Buttons and paragraphs may omit it.
	Key string

	// Kind is the widget type.
	Kind Kind

	Title       string
	Description string
	Icon        string

	// Range bounds Slider values.
	Range *Range

	// Options are the Dropdown labels, selected by index.
	Options []string

	// InitialValue is the author-supplied seed, used before any explicit set.
	InitialValue any

	// Placeholder is shown by an empty TextInput and doubles as its default.
	Placeholder string

	// VisibilityRule hides the field when it evaluates to false.
	VisibilityRule Rule

	// DependsOn lists the keys VisibilityRule reads. The rule is only
	// re-evaluated when one of these keys changes.
	DependsOn []string

	// Centered lays out a TextParagraph centered.
	Centered bool

	// OnClick runs when a Button is pressed.
	OnClick Action
}

// ShowWhen returns a copy of f whose visibility is governed by rule, which
// reads the given keys.
func (f Field) ShowWhen(rule Rule, dependsOn ...string) Field {
	f.VisibilityRule = rule
	f.DependsOn = slices.Clone(dependsOn)
	return f
}

// HasKey reports whether the field is addressable in the store.
func (f *Field) HasKey() bool {
	return f.Key != ""
}

// Stateful reports whether the field holds a persisted value.
func (f *Field) Stateful() bool {
	return f.HasKey() && !f.Kind.Stateless()
}

// DependsOnKey reports whether the field's visibility rule reads key.
func (f *Field) DependsOnKey(key string) bool {
	return slices.Contains(f.DependsOn, key)
}

// validate checks the structural requirements of each kind.
func (f *Field) validate() error {
	if int(f.Kind) >= len(kindNames) {
		return &FieldError{Key: f.Key, Message: fmt.Sprintf("invalid kind %d", f.Kind)}
	}
	if !f.Kind.Stateless() && f.Key == "" {
		return &FieldError{Key: f.Key, Message: fmt.Sprintf("%s field requires a key", f.Kind)}
	}
	if f.Kind == KindSlider {
		if f.Range == nil {
			return &FieldError{Key: f.Key, Message: "slider requires a range"}
		}
		if f.Range.Min > f.Range.Max {
			return &FieldError{Key: f.Key, Message: fmt.Sprintf("slider range [%v, %v] is inverted", f.Range.Min, f.Range.Max)}
		}
	}
	if f.VisibilityRule != nil && len(f.DependsOn) == 0 {
		return &FieldError{Key: f.Key, Message: "visibility rule without dependsOn keys is never re-evaluated"}
	}
	if f.InitialValue != nil && f.Stateful() {
		v, err := Normalize(f, f.InitialValue)
		if err != nil {
			return &FieldError{Key: f.Key, Message: "invalid initial value", Err: err}
		}
		f.InitialValue = v
	}
	return nil
}
