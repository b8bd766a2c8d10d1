package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"slices"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

type tailFlags struct {
	path         string
	format       string
	types        []string
	changes      bool
	player       string
	autoTarget   bool
	patternFiles []string
}

func newTailCmd(g *globals) *cobra.Command {
	f := &tailFlags{}
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow a combat log and print events as they are written",
		Long: `Follow a combat log in real time and print each new event.

Only lines appended after the file is opened are shown. Events are written as
JSON Lines by default (one JSON object per line) which pipes well into jq.

Examples:
  # Locate the log automatically
  combatlog tail

  # Follow a specific file
  combatlog tail --path "C:\Users\me\Documents\Game\Combat.log"

  # Only attacks and heals, human readable
  combatlog tail --types attack,heal --format pretty

  # Print aggregate changes instead of events
  combatlog tail --changes --player Hero --auto-target`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runTail(ctx, g, f, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.path, "path", "p", "",
		"combat log to follow (located automatically if not specified)")
	cmd.Flags().StringVarP(&f.format, "format", "f", "jsonl",
		"Output format: jsonl, pretty")
	cmd.Flags().StringSliceVarP(&f.types, "types", "t", nil,
		"Event types to show (comma-separated: "+strings.Join(event.TypeNames(), ",")+")")
	cmd.Flags().BoolVar(&f.changes, "changes", false,
		"print aggregate changes instead of events")
	cmd.Flags().StringVar(&f.player, "player", "",
		"your character name, for auto-target (overrides settings)")
	cmd.Flags().BoolVar(&f.autoTarget, "auto-target", false,
		"select the target from your opening spells (overrides settings)")
	cmd.Flags().StringSliceVar(&f.patternFiles, "patterns", nil,
		"extra YAML pattern files")

	_ = cmd.RegisterFlagCompletionFunc("types", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return event.TypeNames(), cobra.ShellCompDirectiveNoFileComp
	})
	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{"jsonl", "pretty"}, cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

// parseTypes validates --types values.
func parseTypes(names []string) (map[event.Type]bool, error) {
	filter := make(map[event.Type]bool, len(names))
	for _, n := range names {
		t, ok := event.ParseType(n)
		if !ok {
			return nil, fmt.Errorf("unknown event type %q (valid: %s)", n, strings.Join(event.TypeNames(), ", "))
		}
		filter[t] = true
	}
	return filter, nil
}

// engineOptions merges settings and command flags.
func (g *globals) engineOptions(path string, patternFiles []string, player string, autoTarget bool) []combatlog.Option {
	target := g.cfg.TargetConfig()
	if player != "" {
		target.PlayerName = player
	}
	if autoTarget {
		target.Enabled = true
	}

	if path == "" {
		path = g.cfg.LogPath
	}

	return []combatlog.Option{
		combatlog.WithLogger(g.logger),
		combatlog.WithTargetConfig(target),
		combatlog.WithSearchEverywhere(g.cfg.SearchEverywhere),
		combatlog.WithSelectedPath(path),
		combatlog.WithHistoryLimit(g.cfg.HistoryLimit),
		combatlog.WithPatternFiles(slices.Concat(g.cfg.PatternFiles, patternFiles)...),
	}
}

// selectPath returns the engine's selected path, locating one when empty.
func selectPath(ctx context.Context, eng *combatlog.Engine, errOut io.Writer) (string, error) {
	if p := eng.SelectedPath(); p != "" {
		return p, nil
	}
	paths, err := eng.Relocate(ctx)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", combatlog.ErrNoLogFiles
	}
	if len(paths) > 1 {
		fmt.Fprintf(errOut, "found %d combat logs, following %s (use --path to choose)\n", len(paths), paths[0])
	}
	return paths[0], nil
}

func runTail(ctx context.Context, g *globals, f *tailFlags, out, errOut io.Writer) error {
	if !validFormats[f.format] {
		return fmt.Errorf("unknown format: %s", f.format)
	}
	filter, err := parseTypes(f.types)
	if err != nil {
		return err
	}

	// Events are handed over from the tail loop so output stays on this
	// goroutine. The hand-off blocks, which paces the tail loop to the output;
	// done releases it once this function returns.
	events := make(chan event.Event, 256)
	done := make(chan struct{})
	opts := g.engineOptions(f.path, f.patternFiles, f.player, f.autoTarget)
	if !f.changes {
		opts = append(opts, combatlog.WithEventHandler(func(ev event.Event) {
			if len(filter) > 0 && !filter[ev.Type()] {
				return
			}
			select {
			case events <- ev:
			case <-done:
			}
		}))
	}

	eng, err := combatlog.NewEngine(opts...)
	if err != nil {
		return err
	}
	defer eng.Close()
	defer close(done)

	path, err := selectPath(ctx, eng, errOut)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	var changes <-chan combatlog.Change
	if f.changes {
		sub := eng.Subscribe()
		defer sub.Close()
		changes = sub.C
	}

	if err := eng.Start(path); err != nil {
		return err
	}
	g.logger.Info("following", "path", path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if err := OutputEvent(f.format, ev, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			if err := OutputChange(f.format, ch, out); err != nil {
				return fmt.Errorf("output error: %w", err)
			}
		case err := <-eng.Errors():
			if g.verbose {
				fmt.Fprintf(errOut, "warning: %v\n", err)
			}
		}
	}
}
