// Package parser provides combat log line parsing functionality.
package parser

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// Rule is one entry of the ordered rule table.
//
// Match reports whether the rule recognised the line. A recognised line that
// cannot be turned into an event (bad timestamp, overflowing number) returns
// matched=true together with a non-nil error so that evaluation stops there.
type Rule struct {
	Name  string
	Match func(line string) (ev event.Event, matched bool, err error)
}

// LineError is returned when a line matched a rule but could not be converted.
type LineError struct {
	Rule string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.Rule, e.Err)
}

func (e *LineError) Unwrap() error {
	return e.Err
}

// Parser evaluates its rules strictly in order; the first match wins.
type Parser struct {
	rules []Rule
}

// New returns a Parser with the built-in combat rules followed by extra.
// Extra rules can only claim lines that no built-in rule recognises.
func New(extra ...Rule) *Parser {
	rules := make([]Rule, 0, len(builtinRules)+len(extra))
	rules = append(rules, builtinRules...)
	for _, r := range extra {
		if r.Match != nil {
			rules = append(rules, r)
		}
	}
	return &Parser{rules: rules}
}

// Rules returns the names of the rules in evaluation order.
func (p *Parser) Rules() []string {
	names := make([]string, len(p.rules))
	for i, r := range p.rules {
		names[i] = r.Name
	}
	return names
}

// Parse parses a combat log line into an Event.
//
// Returns:
//   - (Event, nil): Successfully parsed
//   - (nil, nil): Not a recognized event pattern
//   - (nil, error): Recognized but malformed line (*LineError)
func (p *Parser) Parse(line string) (event.Event, error) {
	// Trim trailing CR for Windows CRLF compatibility
	line = strings.TrimRight(line, "\r")
	if line == "" {
		return nil, nil
	}

	for _, r := range p.rules {
		ev, matched, err := r.Match(line)
		if !matched {
			continue
		}
		if err != nil {
			return nil, &LineError{Rule: r.Name, Err: err}
		}
		return ev, nil
	}
	return nil, nil
}

var defaultParser = New()

// Parse parses line with the built-in rules only.
func Parse(line string) (event.Event, error) {
	return defaultParser.Parse(line)
}

// StripMarkup removes inline colour markup and the timestamp closer from s.
func StripMarkup(s string) string {
	s = markupPattern.ReplaceAllString(s, "")
	s = strings.TrimPrefix(s, ">")
	return strings.TrimSpace(s)
}

// ParseTimestamp parses a log timestamp as UTC and returns epoch milliseconds.
func ParseTimestamp(s string) (int64, error) {
	t, err := time.ParseInLocation(timestampLayout, s, time.UTC)
	if err != nil {
		return 0, err
	}
	return t.UnixMilli(), nil
}

// ParseAmount parses a signed integer and returns its absolute value.
func ParseAmount(s string) (uint64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if n < 0 {
		return uint64(-n), nil
	}
	return uint64(n), nil
}

func isCritical(kind string) bool {
	return strings.EqualFold(StripMarkup(kind), criticalMarker)
}

var builtinRules = []Rule{
	{Name: "attack", Match: parseAttackSkill},
	{Name: "attack_parried", Match: parseAttackParried},
	{Name: "auto_attack", Match: parseAutoAttack},
	{Name: "heal", Match: parseHeal},
	{Name: "casting", Match: parseCasting},
	{Name: "successful_cast", Match: parseSuccessfulCast},
	{Name: "buff_gained", Match: parseBuffGained},
	{Name: "buff_ended", Match: parseBuffEnded},
	{Name: "debuff_gained", Match: parseDebuffGained},
	{Name: "debuff_ended", Match: parseDebuffEnded},
}

func parseAttackSkill(line string) (event.Event, bool, error) {
	match := attackSkillPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	dmg, err := ParseAmount(match[5])
	if err != nil {
		return nil, true, err
	}
	return event.Attack{
		Base:     event.Base{Timestamp: ts},
		Caster:   StripMarkup(match[2]),
		Target:   StripMarkup(match[3]),
		Spell:    StripMarkup(match[4]),
		Damage:   dmg,
		Critical: isCritical(match[7]),
	}, true, nil
}

func parseAttackParried(line string) (event.Event, bool, error) {
	match := attackParriedPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	dmg, err := ParseAmount(match[4])
	if err != nil {
		return nil, true, err
	}
	return event.Attack{
		Base:   event.Base{Timestamp: ts},
		Caster: StripMarkup(match[2]),
		Target: StripMarkup(match[3]),
		Spell:  event.AutoAttack,
		Damage: dmg,
	}, true, nil
}

func parseAutoAttack(line string) (event.Event, bool, error) {
	match := autoAttackPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	dmg, err := ParseAmount(match[4])
	if err != nil {
		return nil, true, err
	}
	return event.Attack{
		Base:     event.Base{Timestamp: ts},
		Caster:   StripMarkup(match[2]),
		Target:   StripMarkup(match[3]),
		Spell:    event.AutoAttack,
		Damage:   dmg,
		Critical: isCritical(match[6]),
	}, true, nil
}

func parseHeal(line string) (event.Event, bool, error) {
	match := healPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	amount, err := ParseAmount(match[5])
	if err != nil {
		return nil, true, err
	}
	return event.Heal{
		Base:     event.Base{Timestamp: ts},
		Caster:   StripMarkup(match[2]),
		Target:   StripMarkup(match[3]),
		Spell:    StripMarkup(match[4]),
		Amount:   amount,
		Critical: isCritical(match[7]),
	}, true, nil
}

func parseCasting(line string) (event.Event, bool, error) {
	match := castingPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	return event.Casting{
		Base:   event.Base{Timestamp: ts},
		Caster: StripMarkup(match[2]),
		Spell:  StripMarkup(match[3]),
	}, true, nil
}

func parseSuccessfulCast(line string) (event.Event, bool, error) {
	match := successfulCastPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	return event.SuccessfulCast{
		Base:   event.Base{Timestamp: ts},
		Caster: StripMarkup(match[2]),
		Spell:  StripMarkup(match[3]),
	}, true, nil
}

func parseBuffGained(line string) (event.Event, bool, error) {
	match := buffGainedPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	return event.BuffGained{
		Base:   event.Base{Timestamp: ts},
		Target: StripMarkup(match[2]),
		Buff:   StripMarkup(match[3]),
	}, true, nil
}

func parseBuffEnded(line string) (event.Event, bool, error) {
	match := buffEndedPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	return event.BuffEnded{
		Base:   event.Base{Timestamp: ts},
		Target: StripMarkup(match[2]),
		Buff:   StripMarkup(match[3]),
	}, true, nil
}

func parseDebuffGained(line string) (event.Event, bool, error) {
	match := debuffGainedPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	return event.DebuffGained{
		Base:   event.Base{Timestamp: ts},
		Target: StripMarkup(match[2]),
		Debuff: StripMarkup(match[3]),
	}, true, nil
}

func parseDebuffEnded(line string) (event.Event, bool, error) {
	match := debuffEndedPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, false, nil
	}
	ts, err := ParseTimestamp(match[1])
	if err != nil {
		return nil, true, err
	}
	return event.DebuffEnded{
		Base:   event.Base{Timestamp: ts},
		Target: StripMarkup(match[2]),
		Debuff: StripMarkup(match[3]),
	}, true, nil
}
