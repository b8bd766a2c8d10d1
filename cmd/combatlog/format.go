package main

import (
	"cmp"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// validFormats lists all valid output formats.
var validFormats = map[string]bool{
	"jsonl":  true,
	"pretty": true,
}

// Colours follow the in-game overlay: names in gold, spells red for damage
// and green for heals, timestamps magenta.
var (
	colourName   = lipgloss.Color("#F9BF3B")
	colourDamage = lipgloss.Color("#FF0000")
	colourHeal   = lipgloss.Color("#00FF00")
	colourTime   = lipgloss.Color("#FF00FF")
	colourMuted  = lipgloss.Color("#888888")
)

// styles renders for one writer. A writer that is not a terminal gets plain text.
type styles struct {
	name, damage, heal, time, muted, header lipgloss.Style
}

func newStyles(out io.Writer) styles {
	r := lipgloss.NewRenderer(out)
	return styles{
		name:   r.NewStyle().Foreground(colourName),
		damage: r.NewStyle().Foreground(colourDamage),
		heal:   r.NewStyle().Foreground(colourHeal),
		time:   r.NewStyle().Foreground(colourTime),
		muted:  r.NewStyle().Foreground(colourMuted),
		header: r.NewStyle().Bold(true).Underline(true),
	}
}

// OutputEvent writes an event in the specified format to the writer.
func OutputEvent(format string, ev event.Event, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(event.Wrap(ev), out)
	case "pretty":
		return OutputPretty(ev, out)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// OutputJSON writes v as one JSON line.
func OutputJSON(v any, out io.Writer) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

// OutputPretty writes an event as a coloured sentence.
func OutputPretty(ev event.Event, out io.Writer) error {
	_, err := fmt.Fprintln(out, prettyEvent(newStyles(out), ev))
	return err
}

func prettyEvent(s styles, ev event.Event) string {
	var b strings.Builder
	b.WriteString(s.time.Render("[" + clock(ev.At()) + "]"))
	b.WriteByte(' ')

	switch e := ev.(type) {
	case event.Attack:
		b.WriteString(s.name.Render(e.Caster) + " attacked " + s.name.Render(e.Target) +
			" with " + s.damage.Render(e.Spell) + " to deal " + s.name.Render(strconv.FormatUint(e.Damage, 10)))
		if e.Critical {
			b.WriteString(s.damage.Render(" critical damage!"))
		} else {
			b.WriteString(" damage.")
		}
	case event.Heal:
		b.WriteString(s.name.Render(e.Target) + " was healed by " + s.name.Render(e.Caster) +
			" using " + s.heal.Render(e.Spell) + " to restore " + s.heal.Render(strconv.FormatUint(e.Amount, 10)))
		if e.Critical {
			b.WriteString(s.heal.Render(" (critical!)"))
		}
	case event.Casting:
		b.WriteString(s.name.Render(e.Caster) + " is casting " + s.damage.Render(e.Spell))
	case event.SuccessfulCast:
		b.WriteString(s.name.Render(e.Caster) + " cast " + s.damage.Render(e.Spell))
	case event.BuffGained:
		b.WriteString(s.name.Render(e.Target) + " gained " + s.heal.Render(e.Buff))
	case event.BuffEnded:
		b.WriteString(s.name.Render(e.Target) + " lost " + s.muted.Render(e.Buff))
	case event.DebuffGained:
		b.WriteString(s.name.Render(e.Target) + " was struck by " + s.damage.Render(e.Debuff))
	case event.DebuffEnded:
		b.WriteString(s.name.Render(e.Target) + " is free of " + s.muted.Render(e.Debuff))
	}
	return b.String()
}

// clock formats epoch milliseconds as a UTC wall clock.
func clock(ms int64) string {
	return event.Base{Timestamp: ms}.Time().Format("15:04:05")
}

// OutputChange writes a state change in the specified format.
func OutputChange(format string, ch combatlog.Change, out io.Writer) error {
	switch format {
	case "jsonl":
		return OutputJSON(ch, out)
	case "pretty":
		s := newStyles(out)
		line := s.muted.Render(fmt.Sprintf("#%d", ch.Seq)) + " " + string(ch.Field)
		if ch.Player != "" {
			line += " " + s.name.Render(ch.Player)
		}
		if ch.Value != "" {
			line += " = " + ch.Value
		}
		_, err := fmt.Fprintln(out, line)
		return err
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
}

// Abbreviate renders n with a k, M, B or T suffix and one decimal.
// Values below 1000 are printed as is.
func Abbreviate(n uint64) string {
	const suffixes = "kMBT"
	if n < 1000 {
		return strconv.FormatUint(n, 10)
	}
	v := float64(n)
	i := -1
	for v >= 1000 && i < len(suffixes)-1 {
		v /= 1000
		i++
	}
	// Rounding can carry into the next unit, e.g. 999_950 -> "1000.0k".
	if v >= 999.95 && i < len(suffixes)-1 {
		v /= 1000
		i++
	}
	return strconv.FormatFloat(v, 'f', 1, 64) + string(suffixes[i])
}

type ranked struct {
	name  string
	value uint64
}

// rank sorts a totals map by value descending, then name ascending.
func rank(m map[string]uint64) []ranked {
	out := make([]ranked, 0, len(m))
	for _, name := range slices.Sorted(maps.Keys(m)) {
		out = append(out, ranked{name, m[name]})
	}
	slices.SortStableFunc(out, func(a, b ranked) int { return cmp.Compare(b.value, a.value) })
	return out
}

// RenderSummary writes damage and heal tables followed by the target state.
func RenderSummary(out io.Writer, snap combatlog.Snapshot) error {
	s := newStyles(out)
	var b strings.Builder

	table := func(title string, m map[string]uint64, valueStyle lipgloss.Style) {
		b.WriteString(s.header.Render(title))
		b.WriteByte('\n')
		rows := rank(m)
		if len(rows) == 0 {
			b.WriteString(s.muted.Render("  (none)"))
			b.WriteByte('\n')
			return
		}
		width := 0
		for _, r := range rows {
			width = max(width, lipgloss.Width(r.name))
		}
		nameCol := s.name.Width(width + 2)
		for _, r := range rows {
			b.WriteString("  " + nameCol.Render(r.name) + valueStyle.Render(Abbreviate(r.value)) + "\n")
		}
	}

	table("Damage", snap.Damage, s.damage)
	b.WriteByte('\n')
	table("Heals", snap.Heals, s.heal)

	if snap.CurrentTarget != "" {
		b.WriteString("\nTarget: " + s.name.Render(snap.CurrentTarget))
		if snap.Casting != "" {
			b.WriteString(" casting " + s.damage.Render(snap.Casting))
		}
		b.WriteByte('\n')
	}
	if len(snap.Debuffs) > 0 {
		b.WriteString("\n" + s.header.Render("Debuffs") + "\n")
		for _, player := range slices.Sorted(maps.Keys(snap.Debuffs)) {
			names := make([]string, 0, len(snap.Debuffs[player]))
			for _, d := range snap.Debuffs[player] {
				names = append(names, d.Name)
			}
			b.WriteString("  " + s.name.Render(player) + ": " + strings.Join(names, ", ") + "\n")
		}
	}

	_, err := io.WriteString(out, b.String())
	return err
}
