package combatlog

import (
	"errors"
	"fmt"

	"github.com/combatlog/combatlog-go/internal/safefile"
)

// Sentinel errors.
var (
	// ErrEngineClosed is returned by control operations after Close.
	ErrEngineClosed = errors.New("engine closed")

	// ErrNoLogFiles is returned when a search finds no combat log.
	ErrNoLogFiles = errors.New("no combat log files found")

	// ErrNotRegularFile is returned when a log path names a symlink,
	// directory or special file.
	ErrNotRegularFile = safefile.ErrNotRegularFile
)

// TailOp identifies the stage at which a TailError occurred.
type TailOp string

const (
	TailOpOpen   TailOp = "open"
	TailOpRead   TailOp = "read"
	TailOpLocate TailOp = "locate"
)

// TailError is reported on Engine.Errors when following or locating the
// log fails. These failures are never fatal; the engine retries on its
// next tick.
type TailError struct {
	Op   TailOp
	Path string
	Err  error
}

func (e *TailError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("combatlog: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("combatlog: %s: %v", e.Op, e.Err)
}

func (e *TailError) Unwrap() error {
	return e.Err
}

// ParseError is a line that matched a grammar but could not be converted,
// typically because of an invalid timestamp. The line is skipped.
type ParseError struct {
	Line string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("combatlog: parse error: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
