// Package persist reads and writes the settings document.
//
// The document is a JSON array grouped by category for readability:
//
//	[
//	    {
//	        "category": "General",
//	        "settings": [
//	            {"name": "debug", "value": true}
//	        ]
//	    }
//	]
//
// Grouping is cosmetic. Decode flattens every category into one key/value
// map, so a setting moved between categories keeps its value.
package persist

import (
	"bytes"
	"encoding/json"

	"github.com/tidwall/gjson"

	"github.com/sinmod/sinconfig/internal/config/schema"
	"github.com/sinmod/sinconfig/internal/config/store"
	"github.com/sinmod/sinconfig/internal/logging"
)

// Setting is one persisted value.
type Setting struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// CategoryEntry groups the settings of one category.
type CategoryEntry struct {
	Category string    `json:"category"`
	Settings []Setting `json:"settings"`
}

// Document is the on-disk settings document.
type Document []CategoryEntry

// Resolver yields the resolved value of a key. *store.Store implements it.
type Resolver interface {
	Get(key string) any
}

// Save builds the document for every stateful field of sch, in schema
// order, writing each field's resolved value. Buttons, paragraphs and
// keyless fields are omitted.
func Save(sch *schema.Schema, r Resolver) Document {
	doc := make(Document, 0, len(sch.Categories()))
	for _, c := range sch.Categories() {
		entry := CategoryEntry{Category: c.Name, Settings: []Setting{}}
		for _, f := range c.Fields() {
			if !f.Stateful() {
				continue
			}
			entry.Settings = append(entry.Settings, Setting{Name: f.Key, Value: r.Get(f.Key)})
		}
		doc = append(doc, entry)
	}
	return doc
}

// Encode renders the document with four-space indentation.
func Encode(doc Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode flattens a document into a key/value map. Empty input yields an
// empty map. Entries without a name are skipped; when a name appears
// twice the later entry wins.
func Decode(data []byte) (map[string]any, error) {
	values := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return values, nil
	}
	if !gjson.ValidBytes(data) {
		return nil, &MalformedDocumentError{Reason: "invalid JSON"}
	}

	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, &MalformedDocumentError{Reason: "top level is not an array"}
	}

	var bad *MalformedDocumentError
	index := -1
	root.ForEach(func(_, category gjson.Result) bool {
		index++
		settings := category.Get("settings")
		if !category.IsObject() || !settings.IsArray() {
			bad = &MalformedDocumentError{Reason: "category entry without a settings array", Index: index}
			return false
		}
		settings.ForEach(func(_, s gjson.Result) bool {
			name := s.Get("name")
			if name.Type != gjson.String || name.Str == "" {
				return true
			}
			values[name.Str] = s.Get("value").Value()
			return true
		})
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return values, nil
}

// Load decodes data into a new store for sch. It never fails: a malformed
// document is logged once and yields an empty store, so every field
// resolves to its initial value or type default. Entries for unknown keys
// or with unconvertible values are dropped with a warning.
func Load(sch *schema.Schema, data []byte, logger *logging.Logger, opts ...store.Option) *store.Store {
	base := logging.OrNop(logger)
	logger = base.WithComponent("persist")
	st := store.New(sch, append([]store.Option{store.WithLogger(base)}, opts...)...)

	values, err := Decode(data)
	if err != nil {
		logger.Error("settings document is malformed, using defaults", "error", err)
		return st
	}
	if err := st.Replace(values); err != nil {
		logger.Warn("dropped settings while loading", "error", err)
	}
	return st
}
