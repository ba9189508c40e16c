// Package session assembles a settings panel from its parts.
//
// A Session owns one schema together with the store, visibility engine,
// listener bus and document file that serve it. It follows the panel
// lifecycle: Open seeds the store from disk and evaluates visibility, user
// interaction flows back through Set, and Close saves the document.
//
// The session draws nothing. A Renderer is told about value and visibility
// changes, and a KeyCapturer supplies key codes for Keybind fields.
//
// A Session is not safe for concurrent use; every call must happen on the
// goroutine that owns the panel.
package session

import (
	"github.com/google/uuid"

	"github.com/sinmod/sinconfig/internal/config/notify"
	"github.com/sinmod/sinconfig/internal/config/persist"
	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/config/store"
	"github.com/sinmod/sinconfig/internal/config/visibility"
	"github.com/sinmod/sinconfig/internal/logging"
)

// FieldView is what a renderer needs to draw one field.
type FieldView struct {
	Field       *schema.Field
	Category    string
	Subcategory string
	// Value is the resolved value, nil for buttons and paragraphs.
	Value   any
	Visible bool
}

// Renderer is the widget layer. It receives changes and writes user input
// back through Session.Set.
type Renderer interface {
	FieldChanged(view FieldView)
	VisibilityChanged(field *schema.Field, visible bool)
}

// KeyCapturer delivers the next key pressed while armed. Arm returns a
// function that disarms it.
type KeyCapturer interface {
	Arm(deliver func(code string)) (cancel func())
}

// Config configures a Session.
type Config struct {
	Schema *schema.Schema

	// File is the settings document. Nil keeps values in memory only.
	File *persist.File

	Logger *logging.Logger

	// Strict makes unknown-key access loud.
	Strict bool

	// SaveOnChange writes the document after every change instead of only
	// on Close.
	SaveOnChange bool

	// ReadOnly never writes the document. Inspection tools set it so that
	// opening and closing a session leaves the file untouched.
	ReadOnly bool

	Renderer    Renderer
	KeyCapturer KeyCapturer
}

type subscription interface {
	Unsubscribe()
}

type capture struct {
	key    string
	done   bool
	cancel func()
}

// Session is one settings panel.
type Session struct {
	id     string
	cfg    Config
	schema *schema.Schema

	bus    *notify.Bus
	store  *store.Store
	engine *visibility.Engine

	open    bool
	owned   []subscription
	capture *capture

	onOpen  []func()
	onClose []func()

	logger *logging.Logger
}

// New creates a closed session for cfg.Schema.
func New(cfg Config) (*Session, error) {
	if cfg.Schema == nil {
		return nil, ErrNoSchema
	}

	id := uuid.NewString()
	logger := logging.OrNop(cfg.Logger).WithField("session", id)

	bus := notify.New(notify.WithLogger(logger))
	st := store.New(cfg.Schema,
		store.WithLogger(logger),
		store.WithStrict(cfg.Strict),
		store.WithDispatcher(bus),
	)

	return &Session{
		id:     id,
		cfg:    cfg,
		schema: cfg.Schema,
		bus:    bus,
		store:  st,
		engine: visibility.New(st, visibility.WithLogger(logger)),
		logger: logger.WithComponent("session"),
	}, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string {
	return s.id
}

// Schema returns the session schema.
func (s *Session) Schema() *schema.Schema {
	return s.schema
}

// Store returns the value store.
func (s *Session) Store() *store.Store {
	return s.store
}

// Visibility returns the visibility engine.
func (s *Session) Visibility() *visibility.Engine {
	return s.engine
}

// IsOpen reports whether the session is open.
func (s *Session) IsOpen() bool {
	return s.open
}

// OnOpen registers fn to run at the end of every Open.
func (s *Session) OnOpen(fn func()) *Session {
	s.onOpen = append(s.onOpen, fn)
	return s
}

// OnClose registers fn to run during every Close, after the save.
func (s *Session) OnClose(fn func()) *Session {
	s.onClose = append(s.onClose, fn)
	return s
}

// Open seeds the store from the document, applies visibility, connects
// the renderer and runs the open hooks. A missing or malformed document
// leaves every field at its default.
func (s *Session) Open() error {
	if s.open {
		return ErrAlreadyOpen
	}

	var saved map[string]any
	if s.cfg.File != nil {
		saved = s.cfg.File.Read()
	}
	if err := s.store.Replace(saved); err != nil {
		s.logger.Warn("dropped saved values", "error", err)
	}
	s.engine.Refresh()

	if r := s.cfg.Renderer; r != nil {
		s.owned = append(s.owned,
			s.bus.SubscribeGlobal(func(_, _ any, key string) {
				if v, ok := s.View(key); ok {
					r.FieldChanged(v)
				}
			}),
			s.engine.OnVisibilityChange(r.VisibilityChanged),
		)
	}
	if s.cfg.SaveOnChange && s.cfg.File != nil && !s.cfg.ReadOnly {
		s.owned = append(s.owned, s.bus.SubscribeGlobal(func(_, _ any, key string) {
			if err := s.Save(); err != nil {
				s.logger.Error("save after change failed", "key", key, "error", err)
			}
		}))
	}

	s.open = true
	s.logger.Info("session opened", "fields", len(s.schema.AllFields()))
	for _, fn := range s.onOpen {
		fn()
	}
	return nil
}

// Close cancels a pending key capture, disconnects the renderer, saves the
// document and runs the close hooks. Listeners registered through
// Subscribe stay attached so the session can be reopened. The save error,
// if any, is returned after the hooks have run.
func (s *Session) Close() error {
	if !s.open {
		return ErrNotOpen
	}

	s.CancelCapture()
	for _, sub := range s.owned {
		sub.Unsubscribe()
	}
	s.owned = nil

	err := s.Save()
	if err != nil {
		s.logger.Error("save on close failed", "error", err)
	}

	s.open = false
	for _, fn := range s.onClose {
		fn()
	}
	s.logger.Info("session closed")
	return err
}

// Dispose closes the session if needed and drops every listener.
func (s *Session) Dispose() error {
	var err error
	if s.open {
		err = s.Close()
	}
	s.bus.Clear()
	s.engine.Clear()
	return err
}

// Reload re-reads the document and applies it as a diff: listeners hear
// about every key whose resolved value changed. Values of Switch and
// Dropdown fields that would be hidden by the reloaded values are dropped
// before they are applied, so listeners never see them. Without a document
// file Reload does nothing.
func (s *Session) Reload() error {
	if s.cfg.File == nil {
		return nil
	}
	err := s.store.Apply(s.engine.Prune(s.cfg.File.Read()))
	s.engine.Refresh()
	s.logger.Debug("settings reloaded")
	return err
}

// Save writes the document. Without a document file, or in a read-only
// session, Save does nothing.
func (s *Session) Save() error {
	if s.cfg.File == nil || s.cfg.ReadOnly {
		return nil
	}
	return s.cfg.File.Write(persist.Save(s.schema, s.store))
}

// Get returns the resolved value of key, nil when unknown.
func (s *Session) Get(key string) any {
	return s.store.Get(key)
}

// Set writes a value from the renderer or application code.
func (s *Session) Set(key string, value any) error {
	return s.store.Set(key, value)
}

// SetString parses textual input for key and writes it.
func (s *Session) SetString(key, value string) error {
	f, ok := s.schema.Field(key)
	if !ok {
		return &store.UnknownKeyError{Key: key}
	}
	v, err := schema.ParseValue(f, value)
	if err != nil {
		return err
	}
	return s.store.Set(key, v)
}

// Unset drops the stored value of key.
func (s *Session) Unset(key string) error {
	return s.store.Unset(key)
}

// Settings returns the read-only typed view for application code.
func (s *Session) Settings() *store.Settings {
	return s.store.Settings()
}

// Subscribe registers a listener for every change.
func (s *Session) Subscribe(fn notify.GlobalListener) *notify.Subscription {
	return s.bus.SubscribeGlobal(fn)
}

// SubscribeKey registers a listener for changes to key.
func (s *Session) SubscribeKey(key string, fn notify.KeyListener) *notify.Subscription {
	return s.bus.SubscribeKey(key, fn)
}

// OnVisibilityChange registers a listener for visibility flips.
func (s *Session) OnVisibilityChange(fn visibility.Listener) *visibility.Subscription {
	return s.engine.OnVisibilityChange(fn)
}

// Views returns a view of every field in schema order.
func (s *Session) Views() []FieldView {
	var views []FieldView
	for _, c := range s.schema.Categories() {
		for _, sub := range c.Subcategories() {
			for _, f := range sub.Fields() {
				views = append(views, s.view(f, c.Name, sub.Name))
			}
		}
	}
	return views
}

// View returns the view of the field currently registered under key.
func (s *Session) View(key string) (FieldView, bool) {
	f, ok := s.schema.Field(key)
	if !ok {
		return FieldView{}, false
	}
	for _, c := range s.schema.Categories() {
		for _, sub := range c.Subcategories() {
			for _, g := range sub.Fields() {
				if g == f {
					return s.view(f, c.Name, sub.Name), true
				}
			}
		}
	}
	return FieldView{}, false
}

func (s *Session) view(f *schema.Field, category, subcategory string) FieldView {
	v := FieldView{
		Field:       f,
		Category:    category,
		Subcategory: subcategory,
		Visible:     s.engine.IsVisible(f),
	}
	if f.Stateful() {
		v.Value = s.store.Get(f.Key)
	}
	return v
}

// Press runs a button's action with the current settings.
func (s *Session) Press(f *schema.Field) error {
	if f.Kind != schema.KindButton {
		return &KindError{Op: "press", Key: f.Key, Want: schema.KindButton, Got: f.Kind}
	}
	if !s.engine.IsVisible(f) {
		return ErrHidden
	}
	if f.OnClick != nil {
		s.logger.Debug("button pressed", "title", f.Title)
		f.OnClick(s.store.Snapshot())
	}
	return nil
}

// CaptureKeybind arms the key capturer for a Keybind field. The next key
// delivered is stored under key. Starting a capture cancels any capture
// already in progress.
func (s *Session) CaptureKeybind(key string) error {
	f, ok := s.schema.Field(key)
	if !ok {
		return &store.UnknownKeyError{Key: key}
	}
	if f.Kind != schema.KindKeybind {
		return &KindError{Op: "capture", Key: key, Want: schema.KindKeybind, Got: f.Kind}
	}
	if s.cfg.KeyCapturer == nil {
		return ErrNoKeyCapturer
	}
	if !s.engine.IsVisible(f) {
		return ErrHidden
	}

	s.CancelCapture()
	c := &capture{key: key}
	s.capture = c

	cancel := s.cfg.KeyCapturer.Arm(func(code string) {
		if c.done {
			return
		}
		c.done = true
		if s.capture == c {
			s.capture = nil
		}
		if c.cancel != nil {
			c.cancel()
		}
		if err := s.store.Set(c.key, code); err != nil {
			s.logger.Warn("captured key rejected", "key", c.key, "error", err)
		}
	})

	if c.done {
		// Delivered synchronously from inside Arm.
		cancel()
	} else {
		c.cancel = cancel
	}
	return nil
}

// Capturing returns the key of the Keybind field awaiting input.
func (s *Session) Capturing() (string, bool) {
	if s.capture == nil {
		return "", false
	}
	return s.capture.key, true
}

// CancelCapture disarms a pending key capture.
func (s *Session) CancelCapture() {
	c := s.capture
	if c == nil {
		return
	}
	s.capture = nil
	c.done = true
	if c.cancel != nil {
		c.cancel()
	}
}
