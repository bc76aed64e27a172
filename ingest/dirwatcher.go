package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/TomDLT/realtimefmri/errors"
	"github.com/TomDLT/realtimefmri/metric"
	"github.com/TomDLT/realtimefmri/volume"
)

// DirWatcher watches a spool directory the scanner export writes into.
// Files already present at start are processed first in lexical order, then
// arrivals in filesystem-notification order.
type DirWatcher struct {
	dir     string
	pattern string
	settle  time.Duration
	logger  *slog.Logger
	metrics *metric.Metrics

	seq  sequencer
	seen map[string]struct{}
}

// DirWatcherOption configures a DirWatcher.
type DirWatcherOption func(*DirWatcher)

// WithPattern filters file names (default "*.nii").
func WithPattern(pattern string) DirWatcherOption {
	return func(w *DirWatcher) {
		if pattern != "" {
			w.pattern = pattern
		}
	}
}

// WithSettleDelay sets how long a file's size must hold still before it is
// read (default 100ms). Scanner exports are written in one burst, but the
// create event fires on open, not close.
func WithSettleDelay(d time.Duration) DirWatcherOption {
	return func(w *DirWatcher) {
		if d > 0 {
			w.settle = d
		}
	}
}

// WithWatcherMetrics records ingestion error counts.
func WithWatcherMetrics(m *metric.Metrics) DirWatcherOption {
	return func(w *DirWatcher) {
		w.metrics = m
	}
}

// NewDirWatcher creates a watcher for the given directory.
func NewDirWatcher(dir string, logger *slog.Logger, opts ...DirWatcherOption) (*DirWatcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.WrapConfig(err, "DirWatcher", "NewDirWatcher", "stat "+dir)
	}
	if !info.IsDir() {
		return nil, errors.WrapConfig(
			fmt.Errorf("%w: %s is not a directory", errors.ErrInvalidConfig, dir),
			"DirWatcher", "NewDirWatcher", "directory validation")
	}
	if logger == nil {
		logger = slog.Default()
	}

	w := &DirWatcher{
		dir:     dir,
		pattern: "*.nii",
		settle:  100 * time.Millisecond,
		logger:  logger,
		seen:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run scans the directory, then follows filesystem notifications until the
// context is cancelled.
func (w *DirWatcher) Run(ctx context.Context, frames chan<- Frame) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.WrapIngestion(err, "DirWatcher", "Run", "create watcher")
	}
	defer watcher.Close()

	// Watch before the initial scan so files landing during the scan are
	// not lost; seen-tracking deduplicates the overlap.
	if err := watcher.Add(w.dir); err != nil {
		return errors.WrapIngestion(err, "DirWatcher", "Run", "watch "+w.dir)
	}

	if err := w.initialScan(ctx, frames); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return errors.WrapIngestion(
					fmt.Errorf("event stream closed"), "DirWatcher", "Run", "watch "+w.dir)
			}
			if event.Op&(fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := w.process(ctx, frames, event.Name); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return errors.WrapIngestion(
					fmt.Errorf("error stream closed"), "DirWatcher", "Run", "watch "+w.dir)
			}
			// Watcher errors are transient overflow conditions; the next
			// scan interval has no replay, so log and keep following.
			w.logger.Warn("directory watch error", "dir", w.dir, "error", err)
		}
	}
}

// initialScan processes files already spooled, in lexical name order.
func (w *DirWatcher) initialScan(ctx context.Context, frames chan<- Frame) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return errors.WrapIngestion(err, "DirWatcher", "initialScan", "read "+w.dir)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		if err := w.process(ctx, frames, filepath.Join(w.dir, name)); err != nil {
			return err
		}
	}
	return nil
}

// process decodes one candidate file and emits it. Decode failures drop the
// file without consuming a frame index.
func (w *DirWatcher) process(ctx context.Context, frames chan<- Frame, path string) error {
	match, err := filepath.Match(w.pattern, filepath.Base(path))
	if err != nil || !match {
		return nil
	}
	if _, dup := w.seen[path]; dup {
		return nil
	}
	w.seen[path] = struct{}{}

	if err := w.waitSettled(ctx, path); err != nil {
		if ctx.Err() != nil {
			return err
		}
		// Renamed out of the spool or deleted before it could be read.
		w.logger.Warn("dropping vanished volume", "path", path, "error", err)
		if w.metrics != nil {
			w.metrics.RecordIngestError()
		}
		return nil
	}

	vol, err := volume.Load(path)
	if err != nil {
		w.logger.Warn("dropping undecodable volume", "path", path, "error", err)
		if w.metrics != nil {
			w.metrics.RecordIngestError()
		}
		return nil
	}

	select {
	case frames <- w.seq.frame(vol, time.Now()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitSettled waits until the file size stops changing. Rename events carry
// the old path of a file moved away, so a path may never stat; two stat
// failures in a row report the file as gone rather than retrying forever.
func (w *DirWatcher) waitSettled(ctx context.Context, path string) error {
	var lastSize int64 = -1
	statFailed := false
	for {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.Size() == lastSize:
			// Empty files settle too; the decoder rejects them.
			return nil
		case err == nil:
			lastSize = info.Size()
			statFailed = false
		case statFailed:
			return err
		default:
			statFailed = true
		}

		select {
		case <-time.After(w.settle):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
