// Package manifest builds a settings schema from a YAML file.
//
// A manifest lets a module declare its settings panel without Go code:
//
//	module: sin
//	document: config/settings.json
//	categories:
//	  - name: General
//	    icon: "⚙"
//	    subcategories:
//	      - name: Debug
//	        fields:
//	          - key: debug
//	            kind: switch
//	            title: Debug mode
//	          - key: verbose
//	            kind: switch
//	            visible_when: "debug == true"
//	            depends_on: [debug]
//
// Visibility rules are Lua expressions compiled by package rule. Button
// fields name an action that the embedding program registers in code.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sinmod/sinconfig/internal/config/rule"
	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/logging"
)

// Manifest is the root of a manifest file.
type Manifest struct {
	// Module names the owning module; it prefixes log lines.
	Module string `yaml:"module"`
	// Document is the default settings document path.
	Document   string         `yaml:"document"`
	Categories []CategorySpec `yaml:"categories"`
}

// CategorySpec declares a category.
type CategorySpec struct {
	Name          string            `yaml:"name"`
	Icon          string            `yaml:"icon"`
	Subcategories []SubcategorySpec `yaml:"subcategories"`
}

// SubcategorySpec declares a subcategory.
type SubcategorySpec struct {
	Name   string      `yaml:"name"`
	Fields []FieldSpec `yaml:"fields"`
}

// FieldSpec declares a field.
type FieldSpec struct {
	Key         string    `yaml:"key"`
	Kind        string    `yaml:"kind"`
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	Icon        string    `yaml:"icon"`
	Range       []float64 `yaml:"range"`
	Options     []string  `yaml:"options"`
	Initial     any       `yaml:"initial"`
	Placeholder string    `yaml:"placeholder"`
	VisibleWhen string    `yaml:"visible_when"`
	DependsOn   []string  `yaml:"depends_on"`
	Centered    bool      `yaml:"centered"`
	Action      string    `yaml:"action"`
}

// Parse decodes a manifest. Unknown YAML keys are rejected so typos such
// as "visibile_when" do not silently drop a rule.
func Parse(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyManifest
		}
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadFile reads and parses a manifest file.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Validate checks structure that does not need a schema.
func (m *Manifest) Validate() error {
	if len(m.Categories) == 0 {
		return ErrNoCategories
	}
	for ci, c := range m.Categories {
		if c.Name == "" {
			return &Error{Location: fmt.Sprintf("categories[%d]", ci), Err: ErrMissingName}
		}
		for si, s := range c.Subcategories {
			if s.Name == "" {
				return &Error{Location: fmt.Sprintf("%s/subcategories[%d]", c.Name, si), Err: ErrMissingName}
			}
			for fi, f := range s.Fields {
				if f.Kind == "" {
					return &Error{Location: fieldLocation(c.Name, s.Name, fi, f.Key), Err: ErrMissingKind}
				}
			}
		}
	}
	return nil
}

// BuildOptions configures Build.
type BuildOptions struct {
	// Strict rejects duplicate keys and unknown dependsOn entries.
	Strict bool
	// Rules compiles visible_when expressions. Required when any field
	// declares one.
	Rules *rule.Engine
	// Actions maps button action names to implementations.
	Actions map[string]schema.Action
	Logger  *logging.Logger
}

// Build registers every declared field into a new schema.
func (m *Manifest) Build(opts BuildOptions) (*schema.Schema, error) {
	logger := logging.OrNop(opts.Logger).WithComponent("manifest")
	if m.Module != "" {
		logger = logger.WithField("module", m.Module)
	}
	sch := schema.New(schema.WithStrict(opts.Strict), schema.WithLogger(opts.Logger))

	for _, c := range m.Categories {
		sch.AddCategory(c.Name, c.Icon)
		for _, s := range c.Subcategories {
			for fi, spec := range s.Fields {
				loc := fieldLocation(c.Name, s.Name, fi, spec.Key)
				f, err := m.field(spec, opts, logger.WithField("field", loc))
				if err != nil {
					return nil, &Error{Location: loc, Err: err}
				}
				if _, err := sch.RegisterField(c.Name, s.Name, f); err != nil {
					return nil, &Error{Location: loc, Err: err}
				}
			}
		}
	}

	for key, deps := range sch.UnknownDependencies() {
		if opts.Strict {
			return nil, &Error{Location: key, Err: fmt.Errorf("%w: %v", ErrUnknownDependency, deps)}
		}
		logger.Warn("depends_on names unknown keys", "key", key, "unknown", deps)
	}
	return sch, nil
}

func (m *Manifest) field(spec FieldSpec, opts BuildOptions, logger *logging.Logger) (schema.Field, error) {
	kind, err := schema.ParseKind(spec.Kind)
	if err != nil {
		return schema.Field{}, err
	}

	f := schema.Field{
		Key:          spec.Key,
		Kind:         kind,
		Title:        spec.Title,
		Description:  spec.Description,
		Icon:         spec.Icon,
		Options:      spec.Options,
		InitialValue: spec.Initial,
		Placeholder:  spec.Placeholder,
		Centered:     spec.Centered,
	}

	if spec.Range != nil {
		if len(spec.Range) != 2 {
			return schema.Field{}, fmt.Errorf("%w: want [min, max], got %v", ErrInvalidRange, spec.Range)
		}
		f.Range = &schema.Range{Min: spec.Range[0], Max: spec.Range[1]}
	}

	if spec.VisibleWhen != "" {
		if opts.Rules == nil {
			return schema.Field{}, ErrNoRuleEngine
		}
		expr, err := opts.Rules.Compile(spec.VisibleWhen)
		if err != nil {
			return schema.Field{}, err
		}
		f = f.ShowWhen(expr, spec.DependsOn...)
	}

	if spec.Action != "" {
		action, ok := opts.Actions[spec.Action]
		switch {
		case ok:
			f.OnClick = action
		case opts.Strict:
			return schema.Field{}, fmt.Errorf("%w: %q", ErrUnknownAction, spec.Action)
		default:
			logger.Warn("button action is not registered", "action", spec.Action)
		}
	}
	return f, nil
}

func fieldLocation(category, subcategory string, index int, key string) string {
	if key != "" {
		return fmt.Sprintf("%s/%s/%s", category, subcategory, key)
	}
	return fmt.Sprintf("%s/%s/fields[%d]", category, subcategory, index)
}
