package main

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
)

type summaryFlags struct {
	player       string
	patternFiles []string
	jsonOut      bool
}

func newSummaryCmd(g *globals) *cobra.Command {
	f := &summaryFlags{}
	cmd := &cobra.Command{
		Use:   "summary <file>",
		Short: "Replay a complete log and print the totals",
		Long: `Read a combat log from the beginning and print damage and heal totals,
the final target and the debuffs still active at the end of the file.

Examples:
  combatlog summary Combat.log
  combatlog summary --json Combat.log | jq .damage`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := combatlog.NewEngine(g.engineOptions("", f.patternFiles, f.player, false)...)
			if err != nil {
				return err
			}
			defer eng.Close()

			var skipped int
			for ev, err := range combatlog.ParseFile(ctx, args[0], combatlog.WithParseRules(eng.Rules()...)) {
				if err != nil {
					var parseErr *combatlog.ParseError
					if errors.As(err, &parseErr) {
						skipped++
						if g.verbose {
							fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
						}
						continue
					}
					return err
				}
				eng.Apply(ev)
			}
			res := eng.Prune()
			g.logger.Debug("replayed", "file", args[0], "skipped", skipped,
				"expired_retribution", res.Retribution, "expired_debuffs", res.Debuffs)

			if f.jsonOut {
				return OutputJSON(eng.Snapshot(), cmd.OutOrStdout())
			}
			return RenderSummary(cmd.OutOrStdout(), eng.Snapshot())
		},
	}

	cmd.Flags().StringVar(&f.player, "player", "",
		"your character name (overrides settings)")
	cmd.Flags().StringSliceVar(&f.patternFiles, "patterns", nil,
		"extra YAML pattern files")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false,
		"print the snapshot as JSON")
	return cmd
}
