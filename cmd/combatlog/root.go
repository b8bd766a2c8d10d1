package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/combatlog/combatlog-go/internal/config"
	"github.com/combatlog/combatlog-go/internal/logging"
)

// globals holds state shared by every subcommand, filled in by the root
// command's PersistentPreRunE.
type globals struct {
	configPath string
	logLevel   string
	logJSON    bool
	verbose    bool

	cfg          config.Config
	settingsPath string
	logger       *slog.Logger
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:   "combatlog",
		Short: "Follow combat logs and aggregate damage, heals and debuffs",
		Long: `combatlog locates a game's Combat.log, follows it as the game writes and keeps
per-player damage and heal totals, Retribution timers, active debuffs and the
current target.

Settings are read from a YAML file (see --config); flags override them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return g.init()
		},
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "",
		"settings file (default: <user config dir>/combatlog/combatlog.yaml)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "warn",
		"log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&g.logJSON, "log-json", false,
		"write logs as JSON")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false,
		"print non-fatal tail and parse errors")

	root.AddCommand(
		newTailCmd(g),
		newLocateCmd(g),
		newSummaryCmd(g),
		newServeCmd(g),
		newCompletionCmd(),
	)
	return root
}

func (g *globals) init() error {
	g.logger = logging.Init(g.logJSON, logging.ParseLevel(g.logLevel))

	path := g.configPath
	if path == "" {
		var err error
		path, err = config.DefaultPath()
		if err != nil {
			g.logger.Debug("no user config dir, using defaults", "error", err)
			g.cfg = config.Default()
			return nil
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	g.cfg = cfg
	g.settingsPath = path
	g.logger.Debug("settings loaded", "path", path)
	return nil
}
