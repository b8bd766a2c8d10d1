// Package combatlog follows a game's combat log and maintains live
// aggregates over the events it contains.
//
// The package allows you to:
//   - Locate Combat.log files under the user's documents or home directory
//   - Follow the selected log from its current end as the game appends to it
//   - Parse attack, heal, cast, buff and debuff lines into typed events
//   - Keep per-player damage and heal totals, Retribution timers, active
//     debuffs and incoming/outgoing histories
//   - Pick the current target automatically from the player's opening spells
//
// # Basic Usage
//
//	eng, err := combatlog.NewEngine(
//	    combatlog.WithTargetConfig(combatlog.TargetConfig{
//	        Enabled:    true,
//	        PlayerName: "Hero",
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Close()
//
//	paths, _ := eng.Relocate(ctx)
//	if len(paths) == 0 {
//	    log.Fatal(combatlog.ErrNoLogFiles)
//	}
//	if err := eng.Start(paths[0]); err != nil {
//	    log.Fatal(err)
//	}
//
//	sub := eng.Subscribe()
//	defer sub.Close()
//	for ch := range sub.C {
//	    fmt.Println(ch.Field, ch.Player, ch.Value)
//	}
//
// Lines already in the file when it is opened are never replayed; only
// appended lines change the aggregates. Use [ParseFile] to read a complete
// log instead.
//
// # Time Windows
//
// Retribution grants expire 60 seconds and debuffs 20 seconds after they
// were logged. Windows are measured against the newest timestamp seen in
// the log, not the wall clock, so a paused log keeps its state.
//
// # Extra Grammars
//
// Lines in other languages or formats can be recognised by adding rules
// with [WithParserRules] or by loading YAML files from the [pattern]
// subpackage with [WithPatternFiles]. Extra rules run after the built-in
// grammar.
//
// # Errors
//
// I/O failures are reported as [*TailError] and malformed lines as
// [*ParseError] on [Engine.Errors]. Neither stops the engine.
package combatlog
