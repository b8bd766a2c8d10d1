package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/combatlog/combatlog-go/internal/logfinder"
)

type locateFlags struct {
	everywhere bool
	roots      []string
	jsonOut    bool
}

func newLocateCmd(g *globals) *cobra.Command {
	f := &locateFlags{}
	cmd := &cobra.Command{
		Use:   "locate",
		Short: "List combat log files",
		Long: `Search for Combat.log files and print one path per line.

By default the Documents folders are searched (including OneDrive). Use
--everywhere to walk the whole home directory. Files inside LogBackups
directories are ignored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			roots := f.roots
			if len(roots) == 0 {
				var err error
				roots, err = logfinder.SearchRoots(f.everywhere || g.cfg.SearchEverywhere)
				if err != nil {
					return err
				}
			}
			g.logger.Debug("searching", "roots", roots)

			paths := logfinder.Locate(ctx, roots)
			if err := ctx.Err(); err != nil {
				return err
			}
			return printPaths(cmd.OutOrStdout(), paths, f.jsonOut)
		},
	}

	cmd.Flags().BoolVarP(&f.everywhere, "everywhere", "e", false,
		"search the whole home directory (overrides settings)")
	cmd.Flags().StringSliceVar(&f.roots, "root", nil,
		"directories to search instead of the defaults")
	cmd.Flags().BoolVar(&f.jsonOut, "json", false,
		"print a JSON array")
	return cmd
}

func printPaths(out io.Writer, paths []string, jsonOut bool) error {
	if jsonOut {
		if paths == nil {
			paths = []string{}
		}
		return OutputJSON(paths, out)
	}
	for _, p := range paths {
		if _, err := fmt.Fprintln(out, p); err != nil {
			return err
		}
	}
	return nil
}
