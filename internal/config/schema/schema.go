// Package schema describes the settings tree of a settings panel.
//
// A Schema is an ordered tree of categories, subcategories and fields.
// Fields are registered additively, usually once at startup, and are looked
// up by their globally unique key. The package also owns the field-kind
// taxonomy: per-kind defaults (DefaultFor) and canonical value conversion
// (Normalize, ParseValue).
package schema

import (
	"slices"

	"github.com/sinmod/sinconfig/internal/logging"
)

// Subcategory is a named, ordered list of fields.
type Subcategory struct {
	Name   string
	fields []*Field
}

// Fields returns the fields in registration order.
func (s *Subcategory) Fields() []*Field {
	return slices.Clone(s.fields)
}

// Category is a named, ordered list of subcategories.
type Category struct {
	Name          string
	Icon          string
	subcategories []*Subcategory
}

// Subcategories returns the subcategories in creation order.
func (c *Category) Subcategories() []*Subcategory {
	return slices.Clone(c.subcategories)
}

// Subcategory returns the first subcategory with the given name, or nil.
func (c *Category) Subcategory(name string) *Subcategory {
	for _, s := range c.subcategories {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Fields returns every field of the category in display order.
func (c *Category) Fields() []*Field {
	var out []*Field
	for _, s := range c.subcategories {
		out = append(out, s.fields...)
	}
	return out
}

// Schema is the category -> subcategory -> field tree.
//
// Schema is not safe for concurrent use; it is built and read on the
// goroutine that owns the settings session.
type Schema struct {
	categories []*Category
	index      map[string]*Field
	location   map[string]string
	dependents map[string][]*Field
	strict     bool
	logger     *logging.Logger
}

// Option configures a Schema.
type Option func(*Schema)

// WithStrict rejects duplicate keys instead of letting the last one win.
// Debug builds enable it so authoring mistakes fail loudly.
func WithStrict(strict bool) Option {
	return func(s *Schema) {
		s.strict = strict
	}
}

// WithLogger sets the logger used for authoring diagnostics.
func WithLogger(l *logging.Logger) Option {
	return func(s *Schema) {
		s.logger = l
	}
}

// New creates an empty schema.
func New(opts ...Option) *Schema {
	s := &Schema{
		index:      make(map[string]*Field),
		location:   make(map[string]string),
		dependents: make(map[string][]*Field),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = logging.OrNop(s.logger).WithComponent("schema")
	return s
}

// Strict reports whether duplicate keys are rejected.
func (s *Schema) Strict() bool {
	return s.strict
}

// AddCategory creates the category if needed and sets its icon when it has
// none yet. Re-adding an existing name reuses it.
func (s *Schema) AddCategory(name, icon string) *Category {
	c := s.category(name)
	if c.Icon == "" {
		c.Icon = icon
	}
	return c
}

// RegisterField appends field to category/subcategory, creating both nodes on
// first reference. Names match case-sensitively.
//
// A duplicate key is an authoring error. In strict mode it is returned as a
// *DuplicateKeyError and the field is not registered; otherwise a warning is
// logged and lookups resolve to the latest registration.
func (s *Schema) RegisterField(category, subcategory string, field Field) (*Field, error) {
	if err := field.validate(); err != nil {
		return nil, err
	}

	loc := category + "/" + subcategory
	if field.HasKey() {
		if _, exists := s.index[field.Key]; exists {
			dup := &DuplicateKeyError{Key: field.Key, Existing: s.location[field.Key], Incoming: loc}
			if s.strict {
				return nil, dup
			}
			s.logger.Warn("duplicate field key, last registration wins",
				"key", field.Key, "existing", dup.Existing, "incoming", loc)
		}
	}

	f := &field
	f.DependsOn = slices.Clone(f.DependsOn)

	c := s.category(category)
	sub := c.Subcategory(subcategory)
	if sub == nil {
		sub = &Subcategory{Name: subcategory}
		c.subcategories = append(c.subcategories, sub)
	}
	sub.fields = append(sub.fields, f)

	if f.HasKey() {
		s.index[f.Key] = f
		s.location[f.Key] = loc
	}
	for _, dep := range f.DependsOn {
		s.dependents[dep] = append(s.dependents[dep], f)
	}
	return f, nil
}

// MustRegisterField registers a field and panics on error. Useful for
// built-in schemas declared in code.
func (s *Schema) MustRegisterField(category, subcategory string, field Field) *Field {
	f, err := s.RegisterField(category, subcategory, field)
	if err != nil {
		panic(err)
	}
	return f
}

// Field returns the field registered under key.
func (s *Schema) Field(key string) (*Field, bool) {
	f, ok := s.index[key]
	return f, ok
}

// Has reports whether key is registered.
func (s *Schema) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Categories returns the categories in creation order.
func (s *Schema) Categories() []*Category {
	return slices.Clone(s.categories)
}

// Category returns the first category with the given name, or nil.
func (s *Schema) Category(name string) *Category {
	for _, c := range s.categories {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// AllFields flattens the tree in category -> subcategory -> field order.
func (s *Schema) AllFields() []*Field {
	var out []*Field
	for _, c := range s.categories {
		out = append(out, c.Fields()...)
	}
	return out
}

// Keys returns the keys of all stateful fields in schema order, each once.
func (s *Schema) Keys() []string {
	seen := make(map[string]bool, len(s.index))
	var keys []string
	for _, f := range s.AllFields() {
		if f.Stateful() && !seen[f.Key] {
			seen[f.Key] = true
			keys = append(keys, f.Key)
		}
	}
	return keys
}

// Dependents returns the fields whose visibility rule reads key, in
// registration order.
func (s *Schema) Dependents(key string) []*Field {
	return slices.Clone(s.dependents[key])
}

// UnknownDependencies returns, per field key, dependsOn entries that name
// no registered field. Manifests use it to catch typos.
func (s *Schema) UnknownDependencies() map[string][]string {
	out := make(map[string][]string)
	for _, f := range s.AllFields() {
		for _, dep := range f.DependsOn {
			if !s.Has(dep) {
				out[f.Key] = append(out[f.Key], dep)
			}
		}
	}
	return out
}

func (s *Schema) category(name string) *Category {
	if c := s.Category(name); c != nil {
		return c
	}
	c := &Category{Name: name}
	s.categories = append(s.categories, c)
	return c
}
