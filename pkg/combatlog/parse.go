package combatlog

import (
	"bufio"
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/combatlog/combatlog-go/internal/parser"
	"github.com/combatlog/combatlog-go/internal/safefile"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// maxLineSize bounds a single log line in ParseFile.
const maxLineSize = 1024 * 1024

// ParseLine parses a single combat log line with the built-in grammar.
//
// Return values:
//   - (event, nil): Successfully parsed event
//   - (nil, nil): Line doesn't match any grammar (not an error)
//   - (nil, error): Line matched a grammar but is malformed
//
// Example:
//
//	line := "<2024-01-15 23:59:59>Hero|r attacked Boss|r using |cffffffffFireball|r and caused |cffffffff-500|r |cffffffffHealth|r!"
//	ev, err := combatlog.ParseLine(line)
//	if err != nil {
//	    log.Printf("parse error: %v", err)
//	} else if atk, ok := ev.(event.Attack); ok {
//	    fmt.Println(atk.Caster, atk.Damage)
//	}
func ParseLine(line string) (event.Event, error) {
	return parser.Parse(line)
}

// ParseFile returns an iterator over the events of a complete log file.
// Lines that match no grammar are skipped. Malformed lines yield a
// *ParseError and parsing continues unless WithParseStopOnError is set.
// I/O failures and context cancellation end the iteration with an error.
//
//	for ev, err := range combatlog.ParseFile(ctx, "Combat.log") {
//	    if err != nil {
//	        log.Print(err)
//	        continue
//	    }
//	    fmt.Println(ev.Type())
//	}
func ParseFile(ctx context.Context, path string, opts ...ParseOption) iter.Seq2[event.Event, error] {
	cfg := applyParseOptions(opts)
	p := parser.New(cfg.rules...)

	return func(yield func(event.Event, error) bool) {
		f, _, err := safefile.OpenRegular(path)
		if err != nil {
			yield(nil, &TailError{Op: TailOpOpen, Path: path, Err: err})
			return
		}
		defer f.Close()

		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), maxLineSize)

		for sc.Scan() {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}

			line := sc.Text()
			ev, err := p.Parse(line)
			if err != nil {
				if !yield(nil, &ParseError{Line: line, Err: err}) || cfg.stopOnError {
					return
				}
				continue
			}
			if ev == nil || !cfg.includes(ev.Type()) {
				continue
			}
			if !yield(ev, nil) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(nil, &TailError{Op: TailOpRead, Path: path, Err: err})
		}
	}
}

// ParseFileAll parses a whole file and returns its events. Unlike
// ParseFile it fails on the first error of any kind.
func ParseFileAll(ctx context.Context, path string, opts ...ParseOption) ([]event.Event, error) {
	var events []event.Event
	for ev, err := range ParseFile(ctx, path, opts...) {
		if err != nil {
			return events, fmt.Errorf("parsing %s: %w", path, err)
		}
		events = append(events, ev)
	}
	return events, nil
}

// ParseString parses every line of s. It is mainly useful in tests and
// for replaying captured log fragments.
func ParseString(s string, opts ...ParseOption) ([]event.Event, error) {
	cfg := applyParseOptions(opts)
	p := parser.New(cfg.rules...)

	var events []event.Event
	for line := range strings.Lines(s) {
		ev, err := p.Parse(strings.TrimRight(line, "\n"))
		if err != nil {
			if cfg.stopOnError {
				return events, &ParseError{Line: line, Err: err}
			}
			continue
		}
		if ev != nil && cfg.includes(ev.Type()) {
			events = append(events, ev)
		}
	}
	return events, nil
}

func (c *parseConfig) includes(t event.Type) bool {
	if len(c.include) == 0 {
		return true
	}
	_, ok := c.include[t]
	return ok
}
