// Package watcher reports changes to the settings document on disk.
//
// The watcher observes the document's directory rather than the file
// itself, because saves replace the file by renaming a temporary file over
// it. Events for other names in the directory are ignored. Bursts of events
// are coalesced: one Event is delivered once the file has been quiet for
// the debounce interval.
//
// The watcher never touches the store. The goroutine that owns the session
// receives from Events and reloads.
package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sinmod/sinconfig/internal/logging"
)

// Op is a set of file operations.
type Op uint8

// Operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
)

// Has reports whether op contains o.
func (op Op) Has(o Op) bool {
	return op&o != 0
}

// String returns the operation names joined by "|".
func (op Op) String() string {
	var s string
	for _, n := range []struct {
		op   Op
		name string
	}{{OpCreate, "create"}, {OpWrite, "write"}, {OpRemove, "remove"}, {OpRename, "rename"}} {
		if op.Has(n.op) {
			if s != "" {
				s += "|"
			}
			s += n.name
		}
	}
	if s == "" {
		return "none"
	}
	return s
}

// Event describes a settled change to the watched file.
type Event struct {
	Path string
	// Op accumulates every operation seen during the debounce window.
	Op   Op
	Time time.Time
}

// Removed reports whether the file is gone after the change.
func (e Event) Removed() bool {
	return (e.Op.Has(OpRemove) || e.Op.Has(OpRename)) && !e.Op.Has(OpCreate) && !e.Op.Has(OpWrite)
}

// Watcher watches one file.
type Watcher struct {
	fsw      *fsnotify.Watcher
	path     string
	debounce time.Duration
	logger   *logging.Logger

	events  chan Event
	errors  chan error
	closeCh chan struct{}
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before an event is delivered. Zero
// delivers every event immediately.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d >= 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the watcher logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Watcher) {
		w.logger = l
	}
}

// New starts watching path. The file does not need to exist yet, but its
// directory does.
func New(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     filepath.Clean(abs),
		debounce: 100 * time.Millisecond,
		events:   make(chan Event, 1),
		errors:   make(chan error, 8),
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.OrNop(w.logger).WithComponent("watcher").WithField("path", w.path)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	w.fsw = fsw

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Path returns the absolute watched path.
func (w *Watcher) Path() string {
	return w.path
}

// Events delivers settled changes. It is closed by Close.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors delivers watch errors. Errors are dropped when nobody reads.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	close(w.closeCh)
	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	defer close(w.events)

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending Op
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			op := convertOp(ev.Op)
			if op == 0 {
				continue
			}
			w.logger.Debug("file event", "op", op)
			pending |= op

			if w.debounce == 0 {
				w.send(pending)
				pending = 0
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			w.send(pending)
			pending = 0

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "error", err)
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

// send delivers an event, merging it into an undelivered one so a slow
// reader sees one event carrying every operation.
func (w *Watcher) send(op Op) {
	ev := Event{Path: w.path, Op: op, Time: time.Now()}
	for {
		select {
		case w.events <- ev:
			return
		case <-w.closeCh:
			return
		default:
		}
		select {
		case old := <-w.events:
			ev.Op |= old.Op
		default:
		}
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	return op
}
