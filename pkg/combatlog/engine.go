package combatlog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/combatlog/combatlog-go/internal/aggregate"
	"github.com/combatlog/combatlog-go/internal/logfinder"
	"github.com/combatlog/combatlog-go/internal/notify"
	"github.com/combatlog/combatlog-go/internal/parser"
	"github.com/combatlog/combatlog-go/internal/tailer"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
	"github.com/combatlog/combatlog-go/pkg/combatlog/pattern"
)

// engineErrBuffer is the buffer size for the error channel.
const engineErrBuffer = 16

// discardLogger returns a logger that discards all output.
var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// Engine follows one combat log and keeps the aggregates up to date.
//
// Two loops run while the engine is started: the tail loop, which applies
// new lines in file order, and the prune loop, which expires time-windowed
// entries. Both go through the same aggregate store, so readers always see
// a consistent copy.
type Engine struct {
	cfg    engineConfig
	log    *slog.Logger
	parser *parser.Parser
	rules  []Rule
	store  *aggregate.Store
	hub    *notify.Hub
	errCh  chan error
	cursor atomic.Int64

	// nextPrune is the log time, in ms, at which Apply next prunes.
	nextPrune atomic.Int64

	pathMu           sync.RWMutex
	selectedPath     string
	searchEverywhere bool
	paths            []string
	searching        bool
	pathCh           chan struct{} // signals a selection change to the tail loop

	relocateMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	tailCancel  context.CancelFunc
	tailDone    chan struct{}
	pruneCancel context.CancelFunc
	pruneDone   chan struct{}
}

// NewEngine creates an engine. It validates options and loads pattern files
// but does not start any goroutines.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := applyOptions(opts)
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	rules := slices.Clone(cfg.rules)
	if len(cfg.patternFiles) > 0 {
		extra, err := pattern.RulesFromFiles(cfg.patternFiles...)
		if err != nil {
			return nil, fmt.Errorf("loading pattern files: %w", err)
		}
		rules = append(rules, extra...)
	}

	log := cfg.logger
	if log == nil {
		log = discardLogger
	}

	hub := notify.New(cfg.subscriberBuffer, log)
	return &Engine{
		cfg:    *cfg,
		log:    log,
		parser: parser.New(rules...),
		rules:  rules,
		store: aggregate.NewStore(aggregate.Config{
			Target:       cfg.target,
			HistoryLimit: cfg.historyLimit,
			Publisher:    hub,
		}),
		hub:              hub,
		errCh:            make(chan error, engineErrBuffer),
		selectedPath:     cfg.selectedPath,
		searchEverywhere: cfg.searchEverywhere,
		pathCh:           make(chan struct{}, 1),
	}, nil
}

// Start begins following path, or the currently selected path when path is
// empty. If the engine is already following a file, that loop is cancelled
// and has fully exited before the new one starts. The prune loop is started
// if it is not running. Aggregates are left as they are.
//
// When the file exists it is opened before Start returns, so every line
// appended after that is applied.
func (e *Engine) Start(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}
	if path != "" {
		e.setSelectedPath(path)
	}

	e.stopTailLocked()
	ctx, cancel := context.WithCancel(context.Background())
	e.tailCancel = cancel
	e.tailDone = make(chan struct{})
	go e.tailLoop(ctx, e.tailDone, e.openNow(ctx))

	if e.pruneCancel == nil {
		ctx, cancel := context.WithCancel(context.Background())
		e.pruneCancel = cancel
		e.pruneDone = make(chan struct{})
		go e.pruneLoop(ctx, e.pruneDone)
	}

	e.log.Debug("engine started", "path", e.SelectedPath())
	return nil
}

// Stop cancels both loops and waits for them to exit. Aggregates are not
// reset. Safe to call when not started.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTailLocked()
	e.stopPruneLocked()
}

func (e *Engine) stopTailLocked() {
	if e.tailCancel == nil {
		return
	}
	e.tailCancel()
	<-e.tailDone
	e.tailCancel, e.tailDone = nil, nil
}

func (e *Engine) stopPruneLocked() {
	if e.pruneCancel == nil {
		return
	}
	e.pruneCancel()
	<-e.pruneDone
	e.pruneCancel, e.pruneDone = nil, nil
}

// Running reports whether the tail loop is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tailCancel != nil
}

// Close stops the engine and closes every subscription.
// Safe to call multiple times.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.stopTailLocked()
	e.stopPruneLocked()
	e.hub.Close()
	return nil
}

// Reset clears every aggregate. It does not stop or restart the loops.
func (e *Engine) Reset() {
	e.store.Reset()
	e.nextPrune.Store(0)
}

// SetSelectedPath changes the file to follow. A running tail loop switches
// to it on its next iteration; the new file is read from its current end.
func (e *Engine) SetSelectedPath(path string) {
	e.setSelectedPath(path)
}

func (e *Engine) setSelectedPath(path string) {
	e.pathMu.Lock()
	if e.selectedPath == path {
		e.pathMu.Unlock()
		return
	}
	e.selectedPath = path
	e.pathMu.Unlock()

	e.hub.Publish(notify.FieldSelectedPath, "", path)
	select {
	case e.pathCh <- struct{}{}:
	default:
	}
}

// SelectedPath returns the file the tail loop follows or will follow.
func (e *Engine) SelectedPath() string {
	e.pathMu.RLock()
	defer e.pathMu.RUnlock()
	return e.selectedPath
}

// SetSearchEverywhere selects the roots used by the next Relocate.
func (e *Engine) SetSearchEverywhere(on bool) {
	e.pathMu.Lock()
	defer e.pathMu.Unlock()
	e.searchEverywhere = on
}

// SearchEverywhere reports whether Relocate walks the whole home directory.
func (e *Engine) SearchEverywhere() bool {
	e.pathMu.RLock()
	defer e.pathMu.RUnlock()
	return e.searchEverywhere
}

// Relocate walks the search roots for combat logs and replaces Paths with
// the result. Searching reports true for the duration of the walk.
// Concurrent calls are serialised.
//
// Unreadable directories are skipped; the only error is a failure to
// determine the search roots, or ctx ending (with the partial result).
func (e *Engine) Relocate(ctx context.Context) ([]string, error) {
	if e.isClosed() {
		return nil, ErrEngineClosed
	}

	e.relocateMu.Lock()
	defer e.relocateMu.Unlock()

	roots := e.cfg.searchRoots
	if len(roots) == 0 {
		var err error
		roots, err = logfinder.SearchRoots(e.SearchEverywhere())
		if err != nil {
			err = &TailError{Op: TailOpLocate, Err: err}
			e.sendError(err)
			return nil, err
		}
	}

	e.setSearching(true)
	defer e.setSearching(false)

	start := time.Now()
	paths := logfinder.Locate(ctx, roots)
	e.log.Debug("located combat logs", "roots", roots, "found", len(paths), "elapsed", time.Since(start))

	e.pathMu.Lock()
	e.paths = paths
	e.pathMu.Unlock()
	e.hub.Publish(notify.FieldPaths, "", strconv.Itoa(len(paths)))

	return slices.Clone(paths), ctx.Err()
}

func (e *Engine) setSearching(on bool) {
	e.pathMu.Lock()
	e.searching = on
	e.pathMu.Unlock()
	e.hub.Publish(notify.FieldSearching, "", strconv.FormatBool(on))
}

// Paths returns the candidates found by the last Relocate.
func (e *Engine) Paths() []string {
	e.pathMu.RLock()
	defer e.pathMu.RUnlock()
	return slices.Clone(e.paths)
}

// Searching reports whether a Relocate walk is in progress.
func (e *Engine) Searching() bool {
	e.pathMu.RLock()
	defer e.pathMu.RUnlock()
	return e.searching
}

// SetTargetConfig replaces the auto-target configuration.
func (e *Engine) SetTargetConfig(cfg TargetConfig) {
	e.store.SetTargetConfig(cfg)
}

// TargetConfig returns the auto-target configuration.
func (e *Engine) TargetConfig() TargetConfig {
	return e.store.TargetConfig()
}

// SetCurrentTarget sets the point of interest manually.
func (e *Engine) SetCurrentTarget(name string) {
	e.store.SetCurrentTarget(name)
}

// Subscribe returns a subscription to state changes. Close it when done.
func (e *Engine) Subscribe() *Subscription {
	return e.hub.Subscribe()
}

// Dropped returns how many change deliveries were skipped for slow subscribers.
func (e *Engine) Dropped() int64 {
	return e.hub.Dropped()
}

// Errors returns non-fatal errors: *TailError for I/O failures and
// *ParseError for malformed lines. Errors are dropped when the buffer is
// full. The channel is never closed.
func (e *Engine) Errors() <-chan error {
	return e.errCh
}

// Cursor returns the number of lines consumed from the followed file,
// including the lines that were already present when it was opened.
// It is zero while no file is being followed.
func (e *Engine) Cursor() int64 {
	return e.cursor.Load()
}

// Snapshot returns a copy of every aggregate.
func (e *Engine) Snapshot() Snapshot { return e.store.Snapshot() }

// Damage returns total damage dealt per caster.
func (e *Engine) Damage() map[string]uint64 { return e.store.Damage() }

// Heals returns total healing done per caster.
func (e *Engine) Heals() map[string]uint64 { return e.store.Heals() }

// Retribution returns the timestamp of the last fresh Retribution grant per player.
func (e *Engine) Retribution() map[string]int64 { return e.store.Retribution() }

// Debuffs returns the active debuffs per player, oldest first.
func (e *Engine) Debuffs() map[string][]ActiveDebuff { return e.store.Debuffs() }

// Incoming returns the attacks and heals that targeted name, oldest first.
func (e *Engine) Incoming(name string) []event.Event { return e.store.Incoming(name) }

// Outgoing returns the attacks and heals cast by name, oldest first.
func (e *Engine) Outgoing(name string) []event.Event { return e.store.Outgoing(name) }

// CurrentTarget returns the selected target, or "" when there is none.
func (e *Engine) CurrentTarget() string { return e.store.CurrentTarget() }

// Casting returns the spell the current target most recently started casting.
func (e *Engine) Casting() string { return e.store.Casting() }

// Rules returns the rules that run after the built-in grammar: those from
// WithParserRules followed by those loaded from pattern files.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Prune runs one prune pass immediately.
func (e *Engine) Prune() PruneResult {
	return e.store.Prune(e.cfg.windows)
}

// ApplyLine parses line and applies the resulting event. It reports whether
// an event was applied. Malformed lines are reported on Errors.
func (e *Engine) ApplyLine(line string) bool {
	ev, err := e.parser.Parse(line)
	if err != nil {
		e.log.Debug("skipping malformed line", "error", err)
		e.sendError(&ParseError{Line: line, Err: err})
		return false
	}
	if ev == nil {
		return false
	}
	e.Apply(ev)
	return true
}

// Apply applies an already parsed event.
//
// Once per prune interval of log time, entries that have expired by the
// event's timestamp are pruned before it is applied. A debuff struck again
// after its window is therefore recorded afresh, and a replay without wall
// clock gaps expires entries the way a live session does.
func (e *Engine) Apply(ev event.Event) {
	if ev == nil {
		return
	}
	if at := ev.At(); at >= e.nextPrune.Load() {
		e.nextPrune.Store(at + e.cfg.pruneInterval.Milliseconds())
		e.store.PruneAt(at, e.cfg.windows)
	}
	e.store.Apply(ev)
	if e.cfg.onEvent != nil {
		e.cfg.onEvent(ev)
	}
}

// openNow opens the selected path for the tail loop about to start. It
// returns nil when nothing is selected or the file cannot be opened yet;
// the loop then retries and reports the failure itself.
func (e *Engine) openNow(ctx context.Context) *tailer.Tailer {
	path := e.SelectedPath()
	if path == "" {
		return nil
	}
	t, err := e.openTailer(ctx, path)
	if err != nil {
		return nil
	}
	return t
}

func (e *Engine) openTailer(ctx context.Context, path string) (*tailer.Tailer, error) {
	t, err := tailer.New(ctx, path, tailer.Config{Poll: true, ReOpen: true, Logger: e.log})
	if err != nil {
		return nil, err
	}
	e.cursor.Store(t.Cursor())
	e.log.Debug("following log file", "path", path, "cursor", t.Cursor())
	return t, nil
}

func (e *Engine) tailLoop(ctx context.Context, done chan<- struct{}, t *tailer.Tailer) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.tailInterval)
	defer ticker.Stop()

	// failed is the path whose open failure was last reported; repeats are
	// only logged at debug level until the selection or the outcome changes.
	var failed string

	stop := func() {
		if t != nil {
			_ = t.Stop()
			t = nil
		}
		e.cursor.Store(0)
	}
	defer stop()

	for {
		path := e.SelectedPath()
		if t != nil && t.Path() != path {
			e.log.Debug("switching log file", "from", t.Path(), "to", path)
			stop()
		}

		if t == nil && path != "" {
			nt, err := e.openTailer(ctx, path)
			switch {
			case err == nil:
				t = nt
				failed = ""
			case errors.Is(err, fs.ErrNotExist):
				e.log.Debug("waiting for log file", "path", path)
				e.waitForFile(ctx, path)
				if ctx.Err() != nil {
					return
				}
				continue
			case path == failed:
				e.log.Debug("log file still unavailable", "path", path, "error", err)
			default:
				e.reportTail(TailOpOpen, path, err)
				failed = path
			}
		}

		var (
			lines <-chan string
			errs  <-chan error
		)
		if t != nil {
			lines, errs = t.Lines(), t.Errors()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-e.pathCh:
		case line, ok := <-lines:
			if !ok {
				stop()
				continue
			}
			e.ApplyLine(line)
			e.cursor.Add(1)
		case err, ok := <-errs:
			if !ok {
				stop()
				continue
			}
			e.reportTail(TailOpRead, t.Path(), err)
			if errors.Is(err, tailer.ErrStopped) {
				stop()
			}
		}
	}
}

// waitForFile blocks until path exists, the selection changes or ctx ends.
func (e *Engine) waitForFile(ctx context.Context, path string) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-e.pathCh:
			cancel()
		case <-wctx.Done():
		}
	}()
	_ = tailer.WaitFor(wctx, path, e.cfg.tailInterval)
}

func (e *Engine) pruneLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.cfg.pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if res := e.store.Prune(e.cfg.windows); res != (PruneResult{}) {
				e.log.Debug("pruned", "retribution", res.Retribution, "debuffs", res.Debuffs)
			}
		}
	}
}

func (e *Engine) reportTail(op TailOp, path string, err error) {
	e.log.Warn("log tail failed", "op", op, "path", path, "error", err)
	e.sendError(&TailError{Op: op, Path: path, Err: err})
}

// sendError sends an error to the error channel.
// Errors are only dropped if the buffer is full.
func (e *Engine) sendError(err error) {
	if err == nil {
		return
	}
	select {
	case e.errCh <- err:
	default:
	}
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
