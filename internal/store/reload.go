package store

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// defaultReloadDebounce coalesces the burst of file events an index
// rebuild produces into a single reload.
const defaultReloadDebounce = 500 * time.Millisecond

// Reloader watches a data directory and republishes the snapshot when
// rebuilt artifacts land. In-flight requests keep the snapshot they
// loaded; the generation they replaced is closed one swap later, after
// its readers have drained.
type Reloader struct {
	holder   *SnapshotHolder
	open     func() (*Snapshot, error)
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger

	mu   sync.Mutex
	prev *Snapshot // replaced last swap, closed on the next one

	done chan struct{}
	wg   sync.WaitGroup
}

// NewReloader creates a reloader watching dataDir. open is called to
// build a fresh snapshot after changes settle.
func NewReloader(holder *SnapshotHolder, open func() (*Snapshot, error), dataDir string, logger *slog.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(dataDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dataDir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reloader{
		holder:   holder,
		open:     open,
		watcher:  watcher,
		debounce: defaultReloadDebounce,
		logger:   logger,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the watch loop.
func (r *Reloader) Start() {
	r.wg.Add(1)
	go r.loop()
}

func (r *Reloader) loop() {
	defer r.wg.Done()

	timer := time.NewTimer(r.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-r.done:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !isArtifactEvent(event) {
				continue
			}
			if pending {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
			}
			timer.Reset(r.debounce)
			pending = true

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.logger.Warn("index_watch_error", slog.String("error", err.Error()))

		case <-timer.C:
			pending = false
			r.reload()
		}
	}
}

// isArtifactEvent reports whether the event touches a known index
// artifact. Temp files from atomic saves are ignored; the rename onto
// the final name is what we react to.
func isArtifactEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasSuffix(name, ".tmp") {
		return false
	}
	return name == MetadataFile ||
		strings.HasPrefix(name, bm25BaseName+".") ||
		strings.HasPrefix(name, vecBaseName+".")
}

// reload opens a fresh snapshot and swaps it in. On failure the current
// snapshot stays published.
func (r *Reloader) reload() {
	snap, err := r.open()
	if err != nil {
		r.logger.Warn("index_reload_failed", slog.String("error", err.Error()))
		return
	}

	old := r.holder.Swap(snap)

	r.mu.Lock()
	drained := r.prev
	r.prev = old
	r.mu.Unlock()

	if drained != nil {
		if err := drained.Close(); err != nil {
			r.logger.Warn("snapshot_close_failed", slog.String("error", err.Error()))
		}
	}

	r.logger.Info("index_reloaded",
		slog.Int("chunks", snap.Vector.Count()),
		slog.Int("dimensions", snap.Dimensions))
}

// Close stops the watch loop. The published snapshot is left open for
// its readers; only the drained previous generation is closed.
func (r *Reloader) Close() error {
	close(r.done)
	err := r.watcher.Close()
	r.wg.Wait()

	r.mu.Lock()
	drained := r.prev
	r.prev = nil
	r.mu.Unlock()

	if drained != nil {
		_ = drained.Close()
	}
	return err
}
