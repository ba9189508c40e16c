// Package loader resolves the application options of sinconfig.
//
// Options are layered, later layers winning:
//
//  1. built-in defaults
//  2. the TOML options file (sinconfig.toml), if present
//  3. SINCONFIG_* environment variables
//
// Command-line flags are applied on top by the caller. Relative schema and
// document paths in the options file are resolved against the file's
// directory.
package loader

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

// DefaultFile is the options file looked up when none is given.
const DefaultFile = "sinconfig.toml"

// Options configures a settings session.
type Options struct {
	// ModuleName names the owning module in logs.
	ModuleName string `toml:"module"`
	// SchemaPath is the YAML manifest declaring the fields.
	SchemaPath string `toml:"schema"`
	// DocumentPath is the JSON settings document.
	DocumentPath string `toml:"document"`
	// DocumentExplicit records that DocumentPath was given by the options
	// file, the environment or a flag rather than left at its default.
	DocumentExplicit bool `toml:"-"`
	// Debug enables strict schema checks and debug logging.
	Debug bool `toml:"debug"`
	// LogLevel is debug, info, warn or error.
	LogLevel string `toml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `toml:"log_format"`
	// SaveOnChange writes the document after every change instead of
	// only when the session closes.
	SaveOnChange bool `toml:"save_on_change"`
	// Watch reloads the document when it changes on disk.
	Watch bool `toml:"watch"`
	// WatchDebounceMS coalesces bursts of file events.
	WatchDebounceMS int `toml:"watch_debounce_ms"`
}

// Defaults returns the built-in options.
func Defaults() Options {
	return Options{
		ModuleName:      "sinconfig",
		SchemaPath:      "settings.yaml",
		DocumentPath:    "settings.json",
		LogLevel:        "info",
		LogFormat:       "text",
		WatchDebounceMS: 100,
	}
}

// WatchDebounce returns the debounce interval.
func (o Options) WatchDebounce() time.Duration {
	return time.Duration(o.WatchDebounceMS) * time.Millisecond
}

// Validate checks enumerated and numeric options.
func (o Options) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "warning", "error"}, strings.ToLower(o.LogLevel)) {
		return fmt.Errorf("%w: log_level %q", ErrInvalidOption, o.LogLevel)
	}
	if o.LogFormat != "text" && o.LogFormat != "json" {
		return fmt.Errorf("%w: log_format %q", ErrInvalidOption, o.LogFormat)
	}
	if o.WatchDebounceMS < 0 {
		return fmt.Errorf("%w: watch_debounce_ms %d", ErrInvalidOption, o.WatchDebounceMS)
	}
	if o.DocumentPath == "" {
		return fmt.Errorf("%w: document path is empty", ErrInvalidOption)
	}
	return nil
}

// FileSystem is an abstraction for file system operations.
// This allows for easy testing with in-memory file systems.
type FileSystem interface {
	// ReadFile reads the entire file at path.
	ReadFile(path string) ([]byte, error)
	// Stat returns file info for path.
	Stat(path string) (fs.FileInfo, error)
}

// OSFS implements FileSystem using the real OS file system.
type OSFS struct{}

// ReadFile reads the entire file at path.
func (OSFS) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Stat returns file info for path.
func (OSFS) Stat(path string) (fs.FileInfo, error) {
	return os.Stat(path)
}

// Loader resolves Options.
type Loader struct {
	fs     FileSystem
	prefix string
	lookup func(string) (string, bool)
}

// Option configures a Loader.
type Option func(*Loader)

// WithFileSystem replaces the OS file system.
func WithFileSystem(fsys FileSystem) Option {
	return func(l *Loader) {
		l.fs = fsys
	}
}

// WithEnvPrefix changes the environment variable prefix. The prefix
// should include the trailing underscore.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.prefix = prefix
	}
}

// WithLookupEnv replaces os.LookupEnv.
func WithLookupEnv(fn func(string) (string, bool)) Option {
	return func(l *Loader) {
		l.lookup = fn
	}
}

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		fs:     OSFS{},
		prefix: "SINCONFIG_",
		lookup: os.LookupEnv,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load layers defaults, the options file at path and the environment. An
// empty path means DefaultFile. A missing file is not an error.
func (l *Loader) Load(path string) (Options, error) {
	if path == "" {
		path = DefaultFile
	}
	opts := Defaults()

	if _, err := l.fs.Stat(path); err == nil {
		if err := l.loadTOML(path, &opts); err != nil {
			return opts, err
		}
	} else if !os.IsNotExist(err) {
		return opts, fmt.Errorf("stat options file %s: %w", path, err)
	}

	if err := l.applyEnv(&opts); err != nil {
		return opts, err
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// resolveRelative makes p relative to the directory of the options file.
func resolveRelative(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(base), p)
}
