// Package watch monitors a snapshot directory and triggers a conversion for
// every HDF5 file that appears.  Solvers write snapshots incrementally, so a
// file is only handed to the converter once its size has stopped changing.
package watch

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConvertFunc converts the named snapshot.  The name is the file's base name
// without the .h5 extension.
type ConvertFunc func(ctx context.Context, name string) error

// Logger defines the required behavior for the watcher's logger.
type Logger interface {
	Info(msg string, kvs ...any)
	Debug(msg string, kvs ...any)
	Error(err error, msg string, kvs ...any)
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any) { /* no-op */ }

func (nopLogger) Debug(string, ...any) { /* no-op */ }

func (nopLogger) Error(error, string, ...any) { /* no-op */ }

// subsequent retry delays for failed conversions
// - use the first 5 Fibonacci numbers for semi-exponential growth
// - the extra 0 value is a sentinel so we don't do another wait after we've exhausted all 5 retries
var backoffDelays = []time.Duration{
	100 * time.Millisecond,
	200 * time.Millisecond,
	300 * time.Millisecond,
	500 * time.Millisecond,
	800 * time.Millisecond,
	0,
}

// Config tunes the watcher.
type Config struct {
	// Dir is the directory to monitor for .h5 files.
	Dir string
	// Quiesce is how long a file's size must stay unchanged before it is
	// considered complete.  Zero selects 500ms.
	Quiesce time.Duration
	// Poll is the interval between pending-file checks.  Zero selects
	// 100ms.
	Poll time.Duration
}

// Watcher converts snapshots as they appear in a directory.
type Watcher struct {
	cfg     Config
	convert ConvertFunc
	log     Logger

	// pending tracks files seen but not yet handed to the converter
	pending map[string]*pendingFile
}

type pendingFile struct {
	size     int64
	lastGrew time.Time
}

// New validates the configuration and constructs a Watcher.
func New(cfg Config, convert ConvertFunc, log Logger) (*Watcher, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("the directory to watch must be specified")
	}
	if convert == nil {
		return nil, fmt.Errorf("a converter callback must be specified")
	}
	if cfg.Quiesce <= 0 {
		cfg.Quiesce = 500 * time.Millisecond
	}
	if cfg.Poll <= 0 {
		cfg.Poll = 100 * time.Millisecond
	}
	if log == nil {
		log = nopLogger{}
	}
	return &Watcher{
		cfg:     cfg,
		convert: convert,
		log:     log,
		pending: make(map[string]*pendingFile),
	}, nil
}

// Run blocks, converting snapshots as they arrive, until the context is
// canceled or the underlying file watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("unable to create file watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("unable to watch %s: %w", w.cfg.Dir, err)
	}
	w.log.Info("watching for snapshots", "dir", w.cfg.Dir)

	tick := time.NewTicker(w.cfg.Poll)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-fw.Events:
			if !ok {
				return fmt.Errorf("file watcher closed unexpectedly")
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(ev.Name, ".h5") {
				continue
			}
			if _, seen := w.pending[ev.Name]; !seen {
				w.log.Debug("new snapshot detected", "file", ev.Name)
				w.pending[ev.Name] = &pendingFile{lastGrew: time.Now()}
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return fmt.Errorf("file watcher closed unexpectedly")
			}
			w.log.Error(err, "file watcher error")

		case <-tick.C:
			w.sweep(ctx)
		}
	}
}

// sweep hands every quiesced pending file to the converter.
func (w *Watcher) sweep(ctx context.Context) {
	now := time.Now()
	for path, pf := range w.pending {
		fi, err := os.Stat(path)
		if err != nil {
			// the file vanished before it settled
			w.log.Debug("dropping pending snapshot", "file", path, "error", err)
			delete(w.pending, path)
			continue
		}
		if fi.Size() != pf.size {
			pf.size = fi.Size()
			pf.lastGrew = now
			continue
		}
		if now.Sub(pf.lastGrew) < w.cfg.Quiesce {
			continue
		}

		delete(w.pending, path)
		name := strings.TrimSuffix(filepath.Base(path), ".h5")
		w.log.Info("converting snapshot", "name", name)
		if err := w.convertWithRetry(ctx, name); err != nil {
			w.log.Error(err, "conversion failed", "name", name)
		}
	}
}

// convertWithRetry retries failed conversions with Fibonacci backoff and up
// to 20% jitter, since the snapshot may still be locked by the writer.
func (w *Watcher) convertWithRetry(ctx context.Context, name string) (err error) {
	for _, wait := range backoffDelays {
		if err = w.convert(ctx, name); err == nil {
			return nil
		}
		if wait > 0 {
			w.log.Debug("retrying conversion", "name", name, "wait", wait, "error", err)
			// inject up to 20% jitter
			maxJitter := big.NewInt(int64(float64(int64(wait)) * 0.2))
			jitter, _ := rand.Int(rand.Reader, maxJitter)
			wait += time.Duration(jitter.Int64())
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	// if we get here, err is non-nil but we have exhausted all retries
	return err
}
