// Package tailer follows a growing combat log and delivers appended lines.
package tailer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/nxadm/tail"

	"github.com/combatlog/combatlog-go/internal/safefile"
)

// errBuffer is the size of the Errors channel.
const errBuffer = 8

// ErrStopped is reported on Errors when the underlying tail ends on its own,
// for example because the file was removed and ReOpen is off.
var ErrStopped = errors.New("tail stopped")

// Config controls how a file is followed.
type Config struct {
	// FromStart delivers the lines already in the file. By default only lines
	// appended after New are delivered.
	FromStart bool

	// Poll uses stat polling instead of inotify. Game clients on some
	// platforms write through layers that do not raise change events.
	Poll bool

	// ReOpen reopens the path when the file is recreated.
	ReOpen bool

	Logger *slog.Logger
}

// DefaultConfig starts at the end of the file, polls, and reopens on recreate.
func DefaultConfig() Config {
	return Config{
		FromStart: false,
		Poll:      true,
		ReOpen:    true,
	}
}

// Tailer delivers the lines appended to one file.
type Tailer struct {
	path string
	t    *tail.Tail
	log  *slog.Logger

	lines  chan string
	errs   chan error
	cursor atomic.Int64

	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
	stopErr  error
}

// New starts following path.
//
// Unless cfg.FromStart is set, the complete lines already in the file are
// counted into the cursor and skipped, so a restart never replays history.
// A trailing partial line is not skipped; it is delivered once finished.
func New(ctx context.Context, path string, cfg Config) (*Tailer, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var existing, offset int64
	if !cfg.FromStart {
		f, info, err := safefile.OpenRegular(path)
		if err != nil {
			return nil, err
		}
		existing, offset, err = safefile.LineOffset(f, info.Size())
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("counting lines: %w", err)
		}
	}

	t, err := tail.TailFile(path, tail.Config{
		Location:  &tail.SeekInfo{Offset: offset, Whence: io.SeekStart},
		ReOpen:    cfg.ReOpen,
		MustExist: true,
		Poll:      cfg.Poll,
		Follow:    true,
		Logger:    tail.DiscardingLogger,
	})
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	tl := &Tailer{
		path:   path,
		t:      t,
		log:    log,
		lines:  make(chan string),
		errs:   make(chan error, errBuffer),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	tl.cursor.Store(existing)

	log.Debug("tailing", "path", path, "skipped_lines", existing, "offset", offset)
	go tl.pump(ctx)
	return tl, nil
}

// Lines returns appended lines with the trailing CR removed.
// The channel is closed after Stop.
func (tl *Tailer) Lines() <-chan string { return tl.lines }

// Errors returns read errors. The channel is closed after Stop.
func (tl *Tailer) Errors() <-chan error { return tl.errs }

// Path returns the file being followed.
func (tl *Tailer) Path() string { return tl.path }

// Cursor returns the number of lines consumed from the file so far,
// including the lines skipped at start.
func (tl *Tailer) Cursor() int64 { return tl.cursor.Load() }

// Stop stops following the file and waits for the delivery goroutine.
// Safe to call multiple times.
func (tl *Tailer) Stop() error {
	tl.stopOnce.Do(func() {
		tl.cancel()
		<-tl.done

		// nxadm/tail sends on Lines without watching its own shutdown, so
		// keep draining until it closes the channel.
		go func() {
			for range tl.t.Lines {
			}
		}()
		tl.stopErr = tl.t.Stop()
		tl.t.Cleanup()
		tl.log.Debug("stopped tailing", "path", tl.path, "cursor", tl.Cursor())
	})
	return tl.stopErr
}

func (tl *Tailer) pump(ctx context.Context) {
	defer close(tl.done)
	defer close(tl.lines)
	defer close(tl.errs)

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-tl.t.Lines:
			if !ok {
				err := ErrStopped
				if reason := tl.t.Err(); reason != nil {
					err = fmt.Errorf("%w: %v", ErrStopped, reason)
				}
				tl.sendError(ctx, err)
				return
			}
			if line.Err != nil {
				tl.sendError(ctx, line.Err)
				continue
			}
			select {
			case tl.lines <- strings.TrimRight(line.Text, "\r"):
				tl.cursor.Add(1)
			case <-ctx.Done():
				return
			}
		}
	}
}

func (tl *Tailer) sendError(ctx context.Context, err error) {
	select {
	case tl.errs <- err:
	case <-ctx.Done():
	default:
		tl.log.Warn("tail error dropped", "path", tl.path, "error", err)
	}
}
