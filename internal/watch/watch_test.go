package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a ConvertFunc that records its calls and fails the first n of
// them.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fails int
	done  chan struct{}
}

func newRecorder(fails int) *recorder {
	return &recorder{fails: fails, done: make(chan struct{}, 16)}
}

func (r *recorder) convert(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	if r.fails > 0 {
		r.fails--
		return fmt.Errorf("still locked")
	}
	r.done <- struct{}{}
	return nil
}

func (r *recorder) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func TestNewValidation(t *testing.T) {
	conv := func(context.Context, string) error { return nil }

	_, err := New(Config{}, conv, nil)
	assert.Error(t, err)

	_, err = New(Config{Dir: t.TempDir()}, nil, nil)
	assert.Error(t, err)

	w, err := New(Config{Dir: t.TempDir()}, conv, nil)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, w.cfg.Quiesce)
	assert.Equal(t, 100*time.Millisecond, w.cfg.Poll)
}

// runWatcher starts w.Run in the background and returns a stop function that
// cancels it and waits for exit.
func runWatcher(t *testing.T, w *Watcher) (stop func() error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- w.Run(ctx) }()
	// give the watcher a moment to register the directory
	time.Sleep(50 * time.Millisecond)
	return func() error {
		cancel()
		return <-errc
	}
}

func TestConvertsSettledSnapshot(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder(0)
	w, err := New(Config{Dir: dir, Quiesce: 50 * time.Millisecond, Poll: 10 * time.Millisecond}, rec.convert, nil)
	require.NoError(t, err)
	stop := runWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cyl300.h5"), []byte("data"), 0o644))

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not converted")
	}
	assert.Equal(t, []string{"cyl300"}, rec.calls)

	assert.ErrorIs(t, stop(), context.Canceled)
}

func TestIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder(0)
	w, err := New(Config{Dir: dir, Quiesce: 30 * time.Millisecond, Poll: 10 * time.Millisecond}, rec.convert, nil)
	require.NoError(t, err)
	stop := runWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Zero(t, rec.callCount())

	_ = stop()
}

func TestWaitsForQuiesce(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder(0)
	w, err := New(Config{Dir: dir, Quiesce: 100 * time.Millisecond, Poll: 10 * time.Millisecond}, rec.convert, nil)
	require.NoError(t, err)
	stop := runWatcher(t, w)

	// keep growing the file; no conversion may happen while it grows
	path := filepath.Join(dir, "grow.h5")
	fh, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = fh.WriteString("chunk")
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
		assert.Zero(t, rec.callCount())
	}
	require.NoError(t, fh.Close())

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("snapshot was not converted after settling")
	}
	assert.Equal(t, []string{"grow"}, rec.calls)

	_ = stop()
}

func TestRetriesFailedConversions(t *testing.T) {
	dir := t.TempDir()
	rec := newRecorder(2)
	w, err := New(Config{Dir: dir, Quiesce: 30 * time.Millisecond, Poll: 10 * time.Millisecond}, rec.convert, nil)
	require.NoError(t, err)
	stop := runWatcher(t, w)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "flaky.h5"), []byte("data"), 0o644))

	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatal("conversion never succeeded")
	}
	assert.Equal(t, 3, rec.callCount())

	_ = stop()
}

func TestConvertWithRetryGivesUp(t *testing.T) {
	w, err := New(
		Config{Dir: t.TempDir()},
		func(context.Context, string) error { return fmt.Errorf("permanent failure") },
		nil,
	)
	require.NoError(t, err)

	err = w.convertWithRetry(context.Background(), "doomed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permanent failure")
}

func TestConvertWithRetryHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, err := New(
		Config{Dir: t.TempDir()},
		func(context.Context, string) error { return fmt.Errorf("nope") },
		nil,
	)
	require.NoError(t, err)

	err = w.convertWithRetry(ctx, "canceled")
	assert.ErrorIs(t, err, context.Canceled)
}
