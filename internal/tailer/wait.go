package tailer

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WaitFor blocks until a regular file exists at path or ctx is done.
//
// The parent directory is watched for create and rename events. The path is
// also re-checked every interval, which covers a parent directory that does
// not exist yet and platforms where the watch cannot be installed.
func WaitFor(ctx context.Context, path string, interval time.Duration) error {
	if exists(path) {
		return nil
	}

	var events <-chan fsnotify.Event
	var errs <-chan error
	if w, err := fsnotify.NewWatcher(); err == nil {
		defer w.Close()
		if err := w.Add(filepath.Dir(path)); err == nil {
			events, errs = w.Events, w.Errors
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// The file may have appeared while the watch was being installed.
	if exists(path) {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if ev.Op&(fsnotify.Create|fsnotify.Rename|fsnotify.Write) != 0 &&
				filepath.Clean(ev.Name) == filepath.Clean(path) && exists(path) {
				return nil
			}
		case _, ok := <-errs:
			if !ok {
				errs = nil
			}
		case <-ticker.C:
			if exists(path) {
				return nil
			}
		}
	}
}

func exists(path string) bool {
	info, err := os.Lstat(path)
	return err == nil && info.Mode().IsRegular()
}
