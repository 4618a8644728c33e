//go:build linux || darwin

package p4dctl

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"vawter.tech/stopper"
)

// watchPIDFile notifies on the returned channel whenever the PID file at path
// is created, written, renamed or removed. Notifications are coalesced: the
// channel holds at most one pending wake-up.
func watchPIDFile(ctx context.Context, path string) (<-chan struct{}, WatchCleanupFunc, error) {
	dir := filepath.Dir(path)
	name := filepath.Base(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, err
	}

	// Watch the directory, the file itself is replaced atomically on write
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, nil, err
	}

	ch := make(chan struct{}, 1)

	sctx := stopper.WithContext(ctx)
	sctx.Defer(func() {
		_ = watcher.Close()
	})

	cleanup := func() error {
		sctx.Stop(100 * time.Millisecond)
		return sctx.Wait()
	}

	sctx.Go(func(sctx *stopper.Context) error {
		for !sctx.IsStopping() {
			select {
			case <-sctx.Stopping():
				return nil

			case event, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Base(event.Name) != name {
					continue
				}
				select {
				case ch <- struct{}{}:
				default:
				}

			case _, ok := <-watcher.Errors:
				// Callers poll as well, a lost event only delays them
				if !ok {
					return nil
				}
			}
		}
		return nil
	})

	return ch, cleanup, nil
}
