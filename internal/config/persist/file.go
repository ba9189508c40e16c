package persist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sinmod/sinconfig/internal/logging"
)

// FileSystem is the subset of file operations the persister needs.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm fs.FileMode) error
	Rename(oldPath, newPath string) error
	Remove(path string) error
	MkdirAll(path string, perm fs.FileMode) error
}

// OSFS implements FileSystem on the real file system.
type OSFS struct{}

// ReadFile implements FileSystem.
func (OSFS) ReadFile(path string) ([]byte, error) { return os.ReadFile(path) }

// WriteFile implements FileSystem.
func (OSFS) WriteFile(path string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(path, data, perm)
}

// Rename implements FileSystem.
func (OSFS) Rename(oldPath, newPath string) error { return os.Rename(oldPath, newPath) }

// Remove implements FileSystem.
func (OSFS) Remove(path string) error { return os.Remove(path) }

// MkdirAll implements FileSystem.
func (OSFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

// File persists a document at a fixed path.
type File struct {
	path   string
	fs     FileSystem
	logger *logging.Logger
}

// FileOption configures a File.
type FileOption func(*File)

// WithFileSystem replaces the OS file system, mainly for tests.
func WithFileSystem(fsys FileSystem) FileOption {
	return func(f *File) {
		f.fs = fsys
	}
}

// WithFileLogger sets the logger.
func WithFileLogger(l *logging.Logger) FileOption {
	return func(f *File) {
		f.logger = l
	}
}

// NewFile creates a persister for path.
func NewFile(path string, opts ...FileOption) *File {
	f := &File{path: path, fs: OSFS{}}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = logging.OrNop(f.logger).WithComponent("persist").WithField("path", path)
	return f
}

// Path returns the document path.
func (f *File) Path() string {
	return f.path
}

// ReadBytes returns the raw document. A missing file yields nil and no
// error.
func (f *File) ReadBytes() ([]byte, error) {
	data, err := f.fs.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}
	return data, nil
}

// Read decodes the document into a flat key/value map. It never fails:
// a missing, unreadable or malformed file is logged and yields an empty
// map.
func (f *File) Read() map[string]any {
	data, err := f.ReadBytes()
	if err != nil {
		f.logger.Error("cannot read settings, using defaults", "error", err)
		return map[string]any{}
	}
	values, err := Decode(data)
	if err != nil {
		var mde *MalformedDocumentError
		if errors.As(err, &mde) {
			mde.Path = f.path
		}
		f.logger.Error("settings document is malformed, using defaults", "error", err)
		return map[string]any{}
	}
	return values
}

// Write encodes doc and replaces the file atomically: the document is
// written to a temporary sibling and renamed over the target.
func (f *File) Write(doc Document) error {
	data, err := Encode(doc)
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := f.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create settings directory: %w", err)
		}
	}

	tmp := f.path + ".tmp"
	if err := f.fs.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := f.fs.Rename(tmp, f.path); err != nil {
		_ = f.fs.Remove(tmp)
		return fmt.Errorf("replace settings: %w", err)
	}
	f.logger.Debug("settings saved", "bytes", len(data))
	return nil
}
