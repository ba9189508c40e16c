package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/sinmod/sinconfig/internal/config/rule"
	"github.com/sinmod/sinconfig/internal/config/schema"
)

const sample = `
module: sin
document: config/settings.json
categories:
  - name: General
    icon: "⚙"
    subcategories:
      - name: Debug
        fields:
          - key: debug
            kind: switch
            title: Debug mode
          - key: verbose
            kind: switch
            visible_when: "debug == true"
            depends_on: [debug]
          - kind: button
            title: Reset
            action: reset
      - name: Audio
        fields:
          - key: volume
            kind: slider
            range: [0, 100]
            initial: 50
          - key: quality
            kind: dropdown
            options: [low, mid, high]
            initial: mid
  - name: Visuals
    subcategories:
      - name: Colors
        fields:
          - kind: text_paragraph
            description: Pick your colors
            centered: true
          - key: accent
            kind: color-picker
            initial: [10, 20, 30]
          - key: name
            kind: textinput
            placeholder: player
          - key: toggle
            kind: keybind
`

func TestParse(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if m.Module != "sin" || m.Document != "config/settings.json" {
		t.Errorf("header = %q %q", m.Module, m.Document)
	}
	if len(m.Categories) != 2 {
		t.Fatalf("categories = %d", len(m.Categories))
	}
	if got := m.Categories[0].Subcategories[0].Fields[1].VisibleWhen; got != "debug == true" {
		t.Errorf("visible_when = %q", got)
	}
}

func TestBuild(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	rules := rule.NewEngine()
	defer rules.Close()

	var pressed bool
	sch, err := m.Build(BuildOptions{
		Rules:   rules,
		Actions: map[string]schema.Action{"reset": func(schema.Snapshot) { pressed = true }},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantKeys := []string{"debug", "verbose", "volume", "quality", "accent", "name", "toggle"}
	keys := sch.Keys()
	if len(keys) != len(wantKeys) {
		t.Fatalf("Keys() = %v", keys)
	}
	for i := range wantKeys {
		if keys[i] != wantKeys[i] {
			t.Errorf("Keys()[%d] = %q, want %q", i, keys[i], wantKeys[i])
		}
	}
	if len(sch.AllFields()) != 9 {
		t.Errorf("AllFields() = %d, want 9", len(sch.AllFields()))
	}
	if sch.Category("General").Icon != "⚙" {
		t.Error("category icon not applied")
	}

	volume, _ := sch.Field("volume")
	if volume.Range == nil || volume.Range.Max != 100 || volume.InitialValue != 50.0 {
		t.Errorf("volume = %+v", volume)
	}
	quality, _ := sch.Field("quality")
	if quality.InitialValue != 1 {
		t.Errorf("quality initial = %#v, want index 1", quality.InitialValue)
	}
	accent, _ := sch.Field("accent")
	if accent.InitialValue != (schema.Color{10, 20, 30, 255}) {
		t.Errorf("accent initial = %#v", accent.InitialValue)
	}

	verbose, _ := sch.Field("verbose")
	if verbose.VisibilityRule == nil || !verbose.DependsOnKey("debug") {
		t.Fatal("verbose rule not wired")
	}
	shown, err := verbose.VisibilityRule.Evaluate(schema.NewSnapshot(map[string]any{"debug": true}))
	if err != nil || !shown {
		t.Errorf("rule = %v, %v", shown, err)
	}

	button := sch.Category("General").Subcategory("Debug").Fields()[2]
	if button.OnClick == nil {
		t.Fatal("button action not wired")
	}
	button.OnClick(schema.NewSnapshot(nil))
	if !pressed {
		t.Error("action did not run")
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"empty", "", ErrEmptyManifest},
		{"no categories", "module: x\n", ErrNoCategories},
		{"missing category name", "categories:\n  - icon: x\n", ErrMissingName},
		{"missing kind", "categories:\n  - name: A\n    subcategories:\n      - name: B\n        fields:\n          - key: x\n", ErrMissingKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestParse_UnknownField(t *testing.T) {
	data := `
categories:
  - name: A
    subcategories:
      - name: B
        fields:
          - key: x
            kind: switch
            visibile_when: "debug"
`
	if _, err := Parse([]byte(data)); err == nil {
		t.Error("misspelled keys must be rejected")
	}
}

func build(t *testing.T, data string, opts BuildOptions) (*schema.Schema, error) {
	t.Helper()
	m, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if opts.Rules == nil {
		opts.Rules = rule.NewEngine()
		t.Cleanup(opts.Rules.Close)
	}
	return m.Build(opts)
}

func TestBuild_Errors(t *testing.T) {
	const header = "categories:\n  - name: A\n    subcategories:\n      - name: B\n        fields:\n"

	tests := []struct {
		name   string
		fields string
		strict bool
		want   error
	}{
		{"bad kind", "          - {key: x, kind: checkbox}\n", false, nil},
		{"bad range", "          - {key: x, kind: slider, range: [1]}\n", false, ErrInvalidRange},
		{"rule does not compile", "          - {key: x, kind: switch, visible_when: 'debug ==', depends_on: [x]}\n", false, nil},
		{"rule without depends_on", "          - {key: x, kind: switch, visible_when: 'true'}\n", false, schema.ErrInvalidField},
		{"unknown dependency strict", "          - {key: x, kind: switch, visible_when: 'y', depends_on: [y]}\n", true, ErrUnknownDependency},
		{"unknown action strict", "          - {kind: button, action: nope}\n", true, ErrUnknownAction},
		{"duplicate strict", "          - {key: x, kind: switch}\n          - {key: x, kind: switch}\n", true, schema.ErrDuplicateKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := build(t, header+tt.fields, BuildOptions{Strict: tt.strict})
			if err == nil {
				t.Fatal("expected error")
			}
			var me *Error
			if !errors.As(err, &me) {
				t.Errorf("expected *Error, got %T", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestBuild_LenientWarnings(t *testing.T) {
	const data = "categories:\n  - name: A\n    subcategories:\n      - name: B\n        fields:\n" +
		"          - {key: x, kind: switch, visible_when: 'y', depends_on: [y]}\n" +
		"          - {kind: button, action: nope}\n" +
		"          - {key: x, kind: slider, range: [0, 1]}\n"

	sch, err := build(t, data, BuildOptions{})
	if err != nil {
		t.Fatalf("non-strict build should succeed: %v", err)
	}
	f, _ := sch.Field("x")
	if f.Kind != schema.KindSlider {
		t.Error("last registration should win")
	}
}

func TestBuild_RequiresRuleEngine(t *testing.T) {
	m, err := Parse([]byte(sample))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Build(BuildOptions{}); !errors.Is(err, ErrNoRuleEngine) {
		t.Errorf("expected ErrNoRuleEngine, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if m.Module != "sin" {
		t.Errorf("Module = %q", m.Module)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
