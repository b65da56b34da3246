package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects handled paths.
type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) handle(_ context.Context, path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func (r *recorder) has(suffix string) bool {
	for _, p := range r.snapshot() {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	return false
}

func startWatcher(t *testing.T, roots []string, rec *recorder, opts ...Option) *Watcher {
	t.Helper()
	opts = append([]Option{WithDebounce(50 * time.Millisecond)}, opts...)
	w := New(roots, []string{".csv", ".xlsx"}, rec.handle, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, w.Start(ctx))
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_HandlesDroppedFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	require.NoError(t, writeFile(filepath.Join(dir, "clients.csv"), "IdUnico\n1\n"))
	require.NoError(t, writeFile(filepath.Join(dir, "notes.txt"), "skip"))

	assert.Eventually(t, func() bool { return rec.has("clients.csv") }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.False(t, rec.has("notes.txt"))
}

func TestWatcher_DebounceCollapsesWrites(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec, WithDebounce(200*time.Millisecond))

	path := filepath.Join(dir, "clients.csv")
	for i := 0; i < 5; i++ {
		require.NoError(t, writeFile(path, strings.Repeat("x", i+1)))
		time.Sleep(20 * time.Millisecond)
	}
	assert.Eventually(t, func() bool { return rec.has("clients.csv") }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	assert.Len(t, rec.snapshot(), 1)
}

func TestWatcher_IgnoreAndTempFiles(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	ignore := func(path string) bool { return strings.Contains(filepath.Base(path), ".clustered.") }
	startWatcher(t, []string{dir}, rec, WithIgnore(ignore))

	require.NoError(t, writeFile(filepath.Join(dir, "a.clustered.csv"), "x"))
	require.NoError(t, writeFile(filepath.Join(dir, "~$b.xlsx"), "x"))
	require.NoError(t, writeFile(filepath.Join(dir, ".hidden.csv"), "x"))
	require.NoError(t, writeFile(filepath.Join(dir, "c.csv"), "x"))

	assert.Eventually(t, func() bool { return rec.has("c.csv") }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, len(rec.snapshot()), "only c.csv is handled: %v", rec.snapshot())
}

func TestWatcher_NewDirectoryRecursive(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, []string{dir}, rec)

	nested := filepath.Join(dir, "level1", "level2")
	require.NoError(t, mkdirAll(nested))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, writeFile(filepath.Join(nested, "deep.csv"), "x"))

	assert.Eventually(t, func() bool { return rec.has("deep.csv") }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_SyncExisting(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, writeFile(filepath.Join(dir, "a.csv"), "x"))
	require.NoError(t, writeFile(filepath.Join(dir, "ignore.xyz"), "x"))
	require.NoError(t, mkdirAll(filepath.Join(dir, "sub")))
	require.NoError(t, writeFile(filepath.Join(dir, "sub", "b.xlsx"), "x"))

	rec := &recorder{}
	w := startWatcher(t, []string{dir}, rec, WithRecursive(false))
	assert.Equal(t, 1, w.SyncExisting())
	assert.Eventually(t, func() bool { return rec.has("a.csv") }, 2*time.Second, 20*time.Millisecond)
	assert.False(t, rec.has("b.xlsx"))

	rec2 := &recorder{}
	w2 := startWatcher(t, []string{dir}, rec2)
	assert.Equal(t, 2, w2.SyncExisting())
	assert.Eventually(t, func() bool { return len(rec2.snapshot()) == 2 }, 2*time.Second, 20*time.Millisecond)
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "watch", "me")
	w := startWatcher(t, []string{root}, &recorder{})

	_, err := os.Stat(root)
	assert.NoError(t, err)
	dirs := w.Directories()
	require.Len(t, dirs, 1)
	assert.Equal(t, root, dirs[0])
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w := New([]string{t.TempDir()}, nil, nil)
	w.Stop()
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestMatchExtension(t *testing.T) {
	tests := []struct {
		path       string
		extensions []string
		want       bool
	}{
		{"/a/b.csv", []string{".csv"}, true},
		{"/a/b.CSV", []string{".csv"}, true},
		{"/a/b.xlsx", []string{"xlsx"}, true},
		{"/a/b.md", []string{".csv"}, false},
		{"/a/b", nil, true},
		{"/a/b", []string{}, true},
	}
	for _, tt := range tests {
		got := matchExtension(tt.path, tt.extensions)
		if got != tt.want {
			t.Errorf("matchExtension(%q, %v) = %v, want %v", tt.path, tt.extensions, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", true},
		{"/tmp/a", "/tmp/a/b.csv", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		got := inDir(tt.dir, tt.path)
		if got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}

func mkdirAll(path string) error {
	return os.MkdirAll(path, 0755)
}

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0600)
}
