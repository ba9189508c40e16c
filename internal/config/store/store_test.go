package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sinmod/sinconfig/internal/config/schema"
)

type recorder struct {
	events []string
	onKey  map[string]func()
}

func (r *recorder) OnChanged(key string) {
	r.events = append(r.events, "hook:"+key)
}

func (r *recorder) Dispatch(key string, oldValue, newValue any) {
	r.events = append(r.events, fmt.Sprintf("dispatch:%s:%v->%v", key, oldValue, newValue))
	if fn := r.onKey[key]; fn != nil {
		fn()
	}
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := schema.New()
	s.MustRegisterField("General", "Main", schema.Field{Key: "debug", Kind: schema.KindSwitch})
	s.MustRegisterField("General", "Main", schema.Field{Key: "verbose", Kind: schema.KindSwitch, InitialValue: true})
	s.MustRegisterField("General", "Main", schema.Field{Key: "name", Kind: schema.KindTextInput, Placeholder: "player"})
	s.MustRegisterField("General", "Main", schema.Field{Key: "title", Kind: schema.KindTextInput, Placeholder: "p", InitialValue: "boss"})
	s.MustRegisterField("General", "Audio", schema.Field{Key: "volume", Kind: schema.KindSlider, Range: &schema.Range{Min: 10, Max: 100}})
	s.MustRegisterField("General", "Audio", schema.Field{Key: "mode", Kind: schema.KindDropdown, Options: []string{"low", "mid", "high"}})
	s.MustRegisterField("Visuals", "Colors", schema.Field{Key: "accent", Kind: schema.KindColorPicker})
	s.MustRegisterField("Visuals", "Keys", schema.Field{Key: "toggle", Kind: schema.KindKeybind})
	s.MustRegisterField("Visuals", "Keys", schema.Field{Key: "reset", Kind: schema.KindButton})
	return s
}

func TestStore_Resolve_Precedence(t *testing.T) {
	st := New(testSchema(t))

	tests := []struct {
		key  string
		want any
	}{
		{"debug", false},
		{"verbose", true},
		{"name", "player"},
		{"title", "boss"},
		{"volume", 10.0},
		{"mode", 0},
		{"accent", schema.White},
		{"toggle", schema.NoKey},
	}
	for _, tt := range tests {
		got, err := st.Resolve(tt.key)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.key, err)
		}
		if !schema.Equal(got, tt.want) {
			t.Errorf("Resolve(%q) = %#v, want %#v", tt.key, got, tt.want)
		}
	}

	if err := st.Set("verbose", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if st.Get("verbose") != false {
		t.Error("stored value must win over initial value")
	}
	if err := st.Set("name", ""); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if st.Get("name") != "" {
		t.Error("stored empty string must win over placeholder")
	}
}

func TestStore_UnknownKey(t *testing.T) {
	st := New(testSchema(t), WithStrict(true))

	if _, err := st.Resolve("missing"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Resolve: expected ErrUnknownKey, got %v", err)
	}
	if err := st.Set("missing", true); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("Set: expected ErrUnknownKey, got %v", err)
	}
	if st.Get("missing") != nil {
		t.Error("Get of unknown key should be nil")
	}
	if st.IsSet("missing") {
		t.Error("unknown key must not be stored")
	}
}

func TestStore_Set_Normalizes(t *testing.T) {
	st := New(testSchema(t))

	if err := st.Set("volume", 250); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := st.Get("volume"); got != 100.0 {
		t.Errorf("volume = %#v, want 100.0", got)
	}
	if err := st.Set("mode", "high"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := st.Get("mode"); got != 2 {
		t.Errorf("mode = %#v, want 2", got)
	}

	if err := st.Set("debug", "yes"); !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("expected ErrTypeMismatch, got %v", err)
	}
	if st.IsSet("debug") {
		t.Error("rejected value must not be written")
	}
	if err := st.Set("reset", true); !errors.Is(err, schema.ErrStatelessField) {
		t.Errorf("expected ErrStatelessField, got %v", err)
	}
}

func TestStore_Pipeline_HooksBeforeDispatch(t *testing.T) {
	rec := &recorder{}
	st := New(testSchema(t), WithDispatcher(rec))
	st.AddHook(rec)

	if err := st.Set("debug", true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := []string{"hook:debug", "dispatch:debug:false->true"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestStore_Pipeline_ReentrantSetIsQueued(t *testing.T) {
	rec := &recorder{onKey: map[string]func(){}}
	st := New(testSchema(t), WithDispatcher(rec))
	st.AddHook(rec)

	rec.onKey["debug"] = func() {
		if err := st.Set("verbose", false); err != nil {
			t.Errorf("nested Set: %v", err)
		}
		rec.events = append(rec.events, "debug-listener-done")
	}

	if err := st.Set("debug", true); err != nil {
		t.Fatalf("Set: %v", err)
	}

	want := []string{
		"hook:debug",
		"dispatch:debug:false->true",
		"debug-listener-done",
		"hook:verbose",
		"dispatch:verbose:true->false",
	}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %v\nwant     %v", rec.events, want)
	}
}

func TestStore_EqualWriteStillDispatches(t *testing.T) {
	var changes []Change
	st := New(testSchema(t))
	st.SetDispatcher(dispatchFunc(func(key string, o, n any) {
		changes = append(changes, Change{Key: key, Old: o, New: n})
	}))

	if err := st.Set("debug", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].Semantic() {
		t.Error("false -> false is not a semantic change")
	}
	if !st.IsSet("debug") {
		t.Error("equal write must still be stored")
	}
}

func TestStore_Unset(t *testing.T) {
	rec := &recorder{}
	st := New(testSchema(t), WithDispatcher(rec))

	if err := st.Unset("verbose"); err != nil {
		t.Fatalf("Unset: %v", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("unset of unstored key dispatched %v", rec.events)
	}

	if err := st.Set("verbose", false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := st.Unset("verbose"); err != nil {
		t.Fatalf("Unset: %v", err)
	}
	if st.Get("verbose") != true {
		t.Error("unset must fall back to the initial value")
	}
	if last := rec.events[len(rec.events)-1]; last != "dispatch:verbose:false->true" {
		t.Errorf("last event = %q", last)
	}
}

func TestStore_Replace(t *testing.T) {
	rec := &recorder{}
	st := New(testSchema(t), WithDispatcher(rec))

	err := st.Replace(map[string]any{
		"debug":   true,
		"volume":  float64(42),
		"mode":    float64(1),
		"accent":  []any{float64(1), float64(2), float64(3)},
		"ghost":   1,
		"verbose": "nope",
	})
	if !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected joined ErrUnknownKey, got %v", err)
	}
	if !errors.Is(err, schema.ErrTypeMismatch) {
		t.Errorf("expected joined ErrTypeMismatch, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Errorf("Replace must not dispatch, got %v", rec.events)
	}

	if st.Get("debug") != true || st.Get("volume") != 42.0 || st.Get("mode") != 1 {
		t.Errorf("values = %v", st.Values())
	}
	if st.Get("accent") != (schema.Color{1, 2, 3, 255}) {
		t.Errorf("accent = %v", st.Get("accent"))
	}
	if st.IsSet("ghost") || st.IsSet("verbose") {
		t.Error("dropped entries must not be stored")
	}
}

func TestStore_Apply_DispatchesOnlyDifferences(t *testing.T) {
	rec := &recorder{}
	st := New(testSchema(t), WithDispatcher(rec))
	if err := st.Replace(map[string]any{"debug": true, "volume": 50.0}); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	if err := st.Apply(map[string]any{"debug": true, "volume": 60.0}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	want := []string{"dispatch:volume:50->60"}
	if fmt.Sprint(rec.events) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", rec.events, want)
	}
}

func TestStore_Snapshot(t *testing.T) {
	st := New(testSchema(t))
	snap := st.Snapshot()

	if _, ok := snap.Get("reset"); ok {
		t.Error("stateless fields must not appear in snapshots")
	}
	if snap.Len() != 8 {
		t.Errorf("snapshot has %d keys, want 8", snap.Len())
	}

	if err := st.Set("debug", true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if snap.Bool("debug") {
		t.Error("snapshot must not observe later writes")
	}
}

func TestSettings_TypedReaders(t *testing.T) {
	st := New(testSchema(t))
	if err := st.Replace(map[string]any{"mode": 2, "volume": 33.5}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	cfg := st.Settings()

	if b, err := cfg.Bool("verbose"); err != nil || !b {
		t.Errorf("Bool(verbose) = %v, %v", b, err)
	}
	if f, err := cfg.Float("volume"); err != nil || f != 33.5 {
		t.Errorf("Float(volume) = %v, %v", f, err)
	}
	if i, err := cfg.Int("mode"); err != nil || i != 2 {
		t.Errorf("Int(mode) = %v, %v", i, err)
	}
	if o, err := cfg.Option("mode"); err != nil || o != "high" {
		t.Errorf("Option(mode) = %q, %v", o, err)
	}
	if s, err := cfg.String("toggle"); err != nil || s != schema.NoKey {
		t.Errorf("String(toggle) = %q, %v", s, err)
	}
	if c, err := cfg.Color("accent"); err != nil || c != schema.White {
		t.Errorf("Color(accent) = %v, %v", c, err)
	}

	_, err := cfg.Bool("name")
	var te *TypeError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TypeError, got %v", err)
	}
	if te.Expected != "bool" || te.Actual != "string" {
		t.Errorf("TypeError = %+v", te)
	}
	if !errors.Is(err, schema.ErrTypeMismatch) {
		t.Error("TypeError should match ErrTypeMismatch")
	}

	if _, err := cfg.String("missing"); !errors.Is(err, ErrUnknownKey) {
		t.Errorf("expected ErrUnknownKey, got %v", err)
	}
	if len(cfg.Keys()) != 8 {
		t.Errorf("Keys() = %v", cfg.Keys())
	}
}

type dispatchFunc func(key string, oldValue, newValue any)

func (f dispatchFunc) Dispatch(key string, oldValue, newValue any) {
	f(key, oldValue, newValue)
}
