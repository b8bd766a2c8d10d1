package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/combatlog/combatlog-go/internal/config"
	"github.com/combatlog/combatlog-go/internal/server"
	"github.com/combatlog/combatlog-go/pkg/combatlog"
)

type serveFlags struct {
	addr         string
	path         string
	player       string
	autoTarget   bool
	patternFiles []string
}

func newServeCmd(g *globals) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live aggregates over HTTP and WebSocket",
		Long: `Follow a combat log and serve the aggregates to an overlay or dashboard.

Endpoints:
  GET  /api/snapshot                 all aggregates
  GET  /api/damage, /api/heals, /api/retribution, /api/debuffs
  GET  /api/players/{name}/incoming  events that targeted a player
  GET  /api/players/{name}/outgoing  events cast by a player
  GET  /api/status, /api/paths
  POST /api/reset, /api/target, /api/path, /api/search-everywhere,
       /api/relocate, /api/start, /api/stop
  GET  /ws                           snapshot followed by live changes

If no log is selected the server starts idle; choose one with POST /api/path
after POST /api/relocate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := combatlog.NewEngine(g.engineOptions(f.path, f.patternFiles, f.player, f.autoTarget)...)
			if err != nil {
				return err
			}
			defer eng.Close()

			path, err := selectPath(ctx, eng, cmd.ErrOrStderr())
			if err != nil && !errors.Is(err, combatlog.ErrNoLogFiles) {
				return err
			}
			if err := eng.Start(path); err != nil {
				return err
			}

			sub := eng.Subscribe()
			defer sub.Close()
			go g.watchEngine(ctx, eng, sub, cmd.ErrOrStderr())

			return server.New(eng, g.logger).Run(ctx, f.addr, nil)
		},
	}

	cmd.Flags().StringVarP(&f.addr, "addr", "a", "127.0.0.1:8787",
		"listen address")
	cmd.Flags().StringVarP(&f.path, "path", "p", "",
		"combat log to follow (located automatically if not specified)")
	cmd.Flags().StringVar(&f.player, "player", "",
		"your character name, for auto-target (overrides settings)")
	cmd.Flags().BoolVar(&f.autoTarget, "auto-target", false,
		"select the target from your opening spells (overrides settings)")
	cmd.Flags().StringSliceVar(&f.patternFiles, "patterns", nil,
		"extra YAML pattern files")
	return cmd
}

// watchEngine reports engine errors and persists the selected path when
// it is changed through the API.
func (g *globals) watchEngine(ctx context.Context, eng *combatlog.Engine, sub *combatlog.Subscription, errOut io.Writer) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-eng.Errors():
			if g.verbose {
				fmt.Fprintf(errOut, "warning: %v\n", err)
			}
		case ch, ok := <-sub.C:
			if !ok {
				return
			}
			if ch.Field != combatlog.FieldSelectedPath || ch.Value == g.cfg.LogPath || g.settingsPath == "" {
				continue
			}
			g.cfg.LogPath = ch.Value
			if err := config.Save(g.settingsPath, g.cfg); err != nil {
				g.logger.Warn("saving settings failed", "error", err)
				continue
			}
			g.logger.Debug("selected path saved", "path", ch.Value)
		}
	}
}
