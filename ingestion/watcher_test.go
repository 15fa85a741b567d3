package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingIngester struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingIngester) IngestFile(ctx context.Context, path string) (Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
	return Stats{Chunks: 1}, nil
}

func (r *recordingIngester) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestShouldIngest(t *testing.T) {
	dir := t.TempDir()
	jsonFile := filepath.Join(dir, "pubs.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte("[]"), 0o644))
	textFile := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("x"), 0o644))
	hidden := filepath.Join(dir, ".pubs.json")
	require.NoError(t, os.WriteFile(hidden, []byte("[]"), 0o644))
	subdir := filepath.Join(dir, "nested.json")
	require.NoError(t, os.Mkdir(subdir, 0o755))

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{name: "create json", event: fsnotify.Event{Name: jsonFile, Op: fsnotify.Create}, want: true},
		{name: "write json", event: fsnotify.Event{Name: jsonFile, Op: fsnotify.Write}, want: true},
		{name: "write and chmod", event: fsnotify.Event{Name: jsonFile, Op: fsnotify.Write | fsnotify.Chmod}, want: true},
		{name: "chmod only", event: fsnotify.Event{Name: jsonFile, Op: fsnotify.Chmod}, want: false},
		{name: "remove", event: fsnotify.Event{Name: jsonFile, Op: fsnotify.Remove}, want: false},
		{name: "other extension", event: fsnotify.Event{Name: textFile, Op: fsnotify.Create}, want: false},
		{name: "hidden file", event: fsnotify.Event{Name: hidden, Op: fsnotify.Create}, want: false},
		{name: "directory", event: fsnotify.Event{Name: subdir, Op: fsnotify.Create}, want: false},
		{name: "vanished file", event: fsnotify.Event{Name: filepath.Join(dir, "gone.json"), Op: fsnotify.Write}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldIngest(tt.event))
		})
	}
}

func TestNewWatcher(t *testing.T) {
	t.Run("requires ingester", func(t *testing.T) {
		_, err := NewWatcher(nil, t.TempDir())
		assert.ErrorIs(t, err, ErrFileIngesterRequired)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, err := NewWatcher(&recordingIngester{}, filepath.Join(t.TempDir(), "missing"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("file instead of directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.json")
		require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
		_, err := NewWatcher(&recordingIngester{}, path)
		assert.Error(t, err)
	})
}

func TestWatcher_IngestsNewFiles(t *testing.T) {
	dir := t.TempDir()
	ingester := &recordingIngester{}

	w, err := NewWatcher(ingester, dir, WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	path := filepath.Join(dir, "batch1.json")
	require.NoError(t, os.WriteFile(path, []byte("[]"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return len(ingester.seen()) > 0
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	seen := ingester.seen()
	assert.Len(t, seen, 1, "create and write of one file are debounced into one ingestion")
	assert.Equal(t, path, seen[0])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop after cancel")
	}
}

func TestDebouncer_StaleCallbackRejected(t *testing.T) {
	d := newDebouncer(time.Hour)
	defer d.stop()

	d.schedule("pubs.json")
	d.schedule("pubs.json")
	d.schedule("other.json")

	assert.False(t, d.accept(readyFile{path: "pubs.json", gen: 1}), "superseded window")
	assert.True(t, d.accept(readyFile{path: "pubs.json", gen: 2}))
	assert.False(t, d.accept(readyFile{path: "pubs.json", gen: 2}), "window already consumed")
	assert.False(t, d.accept(readyFile{path: "unknown.json", gen: 3}))
	assert.True(t, d.accept(readyFile{path: "other.json", gen: 3}))
}

func TestDebouncer_CoalescesBurst(t *testing.T) {
	d := newDebouncer(20 * time.Millisecond)
	defer d.stop()

	for range 5 {
		d.schedule("pubs.json")
	}

	var accepted int
	deadline := time.After(500 * time.Millisecond)
drain:
	for {
		select {
		case f := <-d.ready:
			if d.accept(f) {
				accepted++
			}
		case <-deadline:
			break drain
		}
	}
	assert.Equal(t, 1, accepted)
}

func TestWatcher_RunAfterClose(t *testing.T) {
	w, err := NewWatcher(&recordingIngester{}, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	err = w.Run(context.Background())
	assert.ErrorIs(t, err, ErrWatcherClosed)
}
