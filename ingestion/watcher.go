package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is ingested.
const DefaultDebounce = 500 * time.Millisecond

// FileIngester ingests one publication file.
type FileIngester interface {
	IngestFile(ctx context.Context, path string) (Stats, error)
}

var _ FileIngester = (*Pipeline)(nil)

// Watcher ingests publication files that appear or change in a directory.
type Watcher struct {
	dir      string
	ingester FileIngester
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	closeOnce sync.Once
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher) error

// WithDebounce sets the quiet period before a changed file is ingested.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) error {
		if d < 0 {
			d = 0
		}
		w.debounce = d
		return nil
	}
}

// WithWatcherLogger sets a custom logger.
func WithWatcherLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		w.logger = logger
		return nil
	}
}

// NewWatcher starts watching dir. Events are only processed once Run is called,
// but changes made after NewWatcher returns are never missed.
func NewWatcher(ingester FileIngester, dir string, opts ...WatcherOption) (*Watcher, error) {
	if ingester == nil {
		return nil, ErrFileIngesterRequired
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, &os.PathError{Op: "watch", Path: dir, Err: errors.New("not a directory")}
	}

	w := &Watcher{
		dir:      dir,
		ingester: ingester,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	w.logger = w.logger.With("component", "watcher", "dir", dir)

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, err
	}
	w.watcher = fw
	return w, nil
}

// Run processes file events until ctx is cancelled or the watcher is closed.
// Ingestion failures are logged and do not stop the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	d := newDebouncer(w.debounce)
	defer d.stop()

	w.logger.Info("watching for publication files")
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return ErrWatcherClosed
			}
			if shouldIngest(event) {
				d.schedule(event.Name)
			}

		case f := <-d.ready:
			if !d.accept(f) {
				continue
			}
			stats, err := w.ingester.IngestFile(ctx, f.path)
			if err != nil {
				w.logger.Error("error ingesting file", "path", f.path, "err", err)
				continue
			}
			w.logger.Info("ingested file", "path", f.path, "chunks", stats.Chunks)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return ErrWatcherClosed
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

// readyFile is a path whose debounce window elapsed. gen identifies the
// schedule call that produced it.
type readyFile struct {
	path string
	gen  uint64
}

type pendingFile struct {
	timer *time.Timer
	gen   uint64
}

// debouncer coalesces bursts of events per path. It is owned by one goroutine;
// only the timer callbacks run elsewhere and they only send on ready.
type debouncer struct {
	delay   time.Duration
	ready   chan readyFile
	done    chan struct{}
	pending map[string]pendingFile
	gen     uint64
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{
		delay:   delay,
		ready:   make(chan readyFile),
		done:    make(chan struct{}),
		pending: make(map[string]pendingFile),
	}
}

// schedule (re)starts the window for path. A callback of an earlier window
// that already fired is left to send and is rejected by accept.
func (d *debouncer) schedule(path string) {
	if p, ok := d.pending[path]; ok {
		p.timer.Stop()
	}
	d.gen++
	f := readyFile{path: path, gen: d.gen}
	timer := time.AfterFunc(d.delay, func() {
		select {
		case d.ready <- f:
		case <-d.done:
		}
	})
	d.pending[path] = pendingFile{timer: timer, gen: f.gen}
}

// accept reports whether f belongs to the latest window for its path and
// clears that window.
func (d *debouncer) accept(f readyFile) bool {
	p, ok := d.pending[f.path]
	if !ok || p.gen != f.gen {
		return false
	}
	delete(d.pending, f.path)
	return true
}

func (d *debouncer) stop() {
	close(d.done)
	for _, p := range d.pending {
		p.timer.Stop()
	}
}

// Close stops watching the directory.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		err = w.watcher.Close()
	})
	return err
}

// shouldIngest reports whether an event names a visible JSON file that was
// created or written.
func shouldIngest(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".json") {
		return false
	}
	info, err := os.Stat(event.Name)
	return err == nil && info.Mode().IsRegular()
}
