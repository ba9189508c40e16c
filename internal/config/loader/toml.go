package loader

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/pelletier/go-toml/v2"
)

// loadTOML decodes the options file over opts. Keys absent from the file
// keep their current value; unknown keys are rejected.
func (l *Loader) loadTOML(path string, opts *Options) error {
	data, err := l.fs.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading options file %s: %w", path, err)
	}

	next := *opts
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&next); err != nil {
		return parseError(path, err)
	}

	// Only paths written in the file are relative to it.
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return parseError(path, err)
	}
	if _, ok := raw["schema"]; ok {
		next.SchemaPath = resolveRelative(path, next.SchemaPath)
	}
	if _, ok := raw["document"]; ok {
		next.DocumentPath = resolveRelative(path, next.DocumentPath)
		next.DocumentExplicit = true
	}

	*opts = next
	return nil
}

func parseError(path string, err error) error {
	pe := &ParseError{Path: path, Message: err.Error(), Err: err}

	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		pe.Line, pe.Column = derr.Position()
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		pe.Message = "unknown option: " + serr.String()
	}
	return pe
}
