package loader

import (
	"fmt"
	"strconv"
	"strings"
)

// applyEnv overrides opts from prefixed environment variables, e.g.
// SINCONFIG_LOG_LEVEL=debug. Empty values are treated as set.
func (l *Loader) applyEnv(opts *Options) error {
	str := func(name string, dst *string) {
		if v, ok := l.lookup(l.prefix + name); ok {
			*dst = v
		}
	}
	boolean := func(name string, dst *bool) error {
		v, ok := l.lookup(l.prefix + name)
		if !ok {
			return nil
		}
		b, err := parseBool(v)
		if err != nil {
			return &EnvError{Name: l.prefix + name, Value: v, Err: err}
		}
		*dst = b
		return nil
	}

	str("MODULE", &opts.ModuleName)
	str("SCHEMA", &opts.SchemaPath)
	if v, ok := l.lookup(l.prefix + "DOCUMENT"); ok {
		opts.DocumentPath = v
		opts.DocumentExplicit = true
	}
	str("LOG_LEVEL", &opts.LogLevel)
	str("LOG_FORMAT", &opts.LogFormat)

	for name, dst := range map[string]*bool{
		"DEBUG":          &opts.Debug,
		"SAVE_ON_CHANGE": &opts.SaveOnChange,
		"WATCH":          &opts.Watch,
	} {
		if err := boolean(name, dst); err != nil {
			return err
		}
	}

	if v, ok := l.lookup(l.prefix + "WATCH_DEBOUNCE_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &EnvError{Name: l.prefix + "WATCH_DEBOUNCE_MS", Value: v, Err: err}
		}
		opts.WatchDebounceMS = n
	}
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off", "":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean")
}
