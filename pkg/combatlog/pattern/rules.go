package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/combatlog/combatlog-go/internal/parser"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// Named capture groups understood by compiled patterns.
const (
	GroupTimestamp = "timestamp"
	GroupCaster    = "caster"
	GroupTarget    = "target"
	GroupSpell     = "spell"
	GroupAmount    = "amount"
	GroupCritical  = "critical"
	GroupBuff      = "buff"
	GroupDebuff    = "debuff"
)

var requiredGroups = map[event.Type][]string{
	// spell is optional for attacks and defaults to event.AutoAttack.
	event.TypeAttack:         {GroupTimestamp, GroupCaster, GroupTarget, GroupAmount},
	event.TypeHeal:           {GroupTimestamp, GroupCaster, GroupTarget, GroupSpell, GroupAmount},
	event.TypeCasting:        {GroupTimestamp, GroupCaster, GroupSpell},
	event.TypeSuccessfulCast: {GroupTimestamp, GroupCaster, GroupSpell},
	event.TypeBuffGained:     {GroupTimestamp, GroupTarget, GroupBuff},
	event.TypeBuffEnded:      {GroupTimestamp, GroupTarget, GroupBuff},
	event.TypeDebuffGained:   {GroupTimestamp, GroupTarget, GroupDebuff},
	event.TypeDebuffEnded:    {GroupTimestamp, GroupTarget, GroupDebuff},
}

// RequiredGroups returns the named capture groups a pattern of type t must define.
func RequiredGroups(t event.Type) []string {
	return append([]string(nil), requiredGroups[t]...)
}

// compiledPattern is one pattern ready to run as a parser rule.
type compiledPattern struct {
	id        string
	eventType event.Type
	regex     *regexp.Regexp
	index     map[string]int // group name -> submatch index
}

// Compile turns every pattern of pf into a parser.Rule, in file order.
// Rule names are prefixed with "pattern:" so they never collide with
// the built-in rule names.
func Compile(pf *PatternFile) ([]parser.Rule, error) {
	if pf == nil {
		return nil, errors.New("pattern file is nil")
	}

	rules := make([]parser.Rule, 0, len(pf.Patterns))
	for i, p := range pf.Patterns {
		cp, err := compile(i, p)
		if err != nil {
			return nil, err
		}
		rules = append(rules, parser.Rule{Name: "pattern:" + cp.id, Match: cp.match})
	}
	return rules, nil
}

// RulesFromFiles loads each file in order and concatenates the compiled rules.
func RulesFromFiles(paths ...string) ([]parser.Rule, error) {
	var rules []parser.Rule
	for _, path := range paths {
		pf, err := Load(path)
		if err != nil {
			return nil, err
		}
		r, err := Compile(pf)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r...)
	}
	return rules, nil
}

func compile(i int, p Pattern) (*compiledPattern, error) {
	t, ok := event.ParseType(p.EventType)
	if !ok {
		return nil, &PatternError{
			Index:   i,
			ID:      p.ID,
			Field:   "event_type",
			Message: fmt.Sprintf("unknown event type %q", p.EventType),
		}
	}

	re, err := regexp.Compile(p.Regex)
	if err != nil {
		return nil, &PatternError{
			Index:   i,
			ID:      p.ID,
			Field:   "regex",
			Message: "invalid regular expression",
			Cause:   err,
		}
	}

	// SubexpNames()[0] is the whole match and always empty.
	index := make(map[string]int)
	for j, name := range re.SubexpNames() {
		if j > 0 && name != "" {
			index[name] = j
		}
	}

	var missing []string
	for _, g := range requiredGroups[t] {
		if _, ok := index[g]; !ok {
			missing = append(missing, g)
		}
	}
	if len(missing) > 0 {
		return nil, &PatternError{
			Index:   i,
			ID:      p.ID,
			Field:   "regex",
			Message: fmt.Sprintf("missing named group(s) for %s: %s", t, strings.Join(missing, ", ")),
		}
	}

	return &compiledPattern{id: p.ID, eventType: t, regex: re, index: index}, nil
}

// group returns the markup-stripped value of a named group, or "".
func (cp *compiledPattern) group(m []string, name string) string {
	j, ok := cp.index[name]
	if !ok || j >= len(m) {
		return ""
	}
	return parser.StripMarkup(m[j])
}

func (cp *compiledPattern) match(line string) (event.Event, bool, error) {
	m := cp.regex.FindStringSubmatch(line)
	if m == nil {
		return nil, false, nil
	}

	ts, err := parser.ParseTimestamp(cp.group(m, GroupTimestamp))
	if err != nil {
		return nil, true, err
	}
	base := event.Base{Timestamp: ts}

	switch cp.eventType {
	case event.TypeAttack:
		amount, err := parser.ParseAmount(cp.group(m, GroupAmount))
		if err != nil {
			return nil, true, err
		}
		spell := cp.group(m, GroupSpell)
		if spell == "" {
			spell = event.AutoAttack
		}
		return event.Attack{
			Base:     base,
			Caster:   cp.group(m, GroupCaster),
			Target:   cp.group(m, GroupTarget),
			Spell:    spell,
			Damage:   amount,
			Critical: cp.group(m, GroupCritical) != "",
		}, true, nil
	case event.TypeHeal:
		amount, err := parser.ParseAmount(cp.group(m, GroupAmount))
		if err != nil {
			return nil, true, err
		}
		return event.Heal{
			Base:     base,
			Caster:   cp.group(m, GroupCaster),
			Target:   cp.group(m, GroupTarget),
			Spell:    cp.group(m, GroupSpell),
			Amount:   amount,
			Critical: cp.group(m, GroupCritical) != "",
		}, true, nil
	case event.TypeCasting:
		return event.Casting{Base: base, Caster: cp.group(m, GroupCaster), Spell: cp.group(m, GroupSpell)}, true, nil
	case event.TypeSuccessfulCast:
		return event.SuccessfulCast{Base: base, Caster: cp.group(m, GroupCaster), Spell: cp.group(m, GroupSpell)}, true, nil
	case event.TypeBuffGained:
		return event.BuffGained{Base: base, Target: cp.group(m, GroupTarget), Buff: cp.group(m, GroupBuff)}, true, nil
	case event.TypeBuffEnded:
		return event.BuffEnded{Base: base, Target: cp.group(m, GroupTarget), Buff: cp.group(m, GroupBuff)}, true, nil
	case event.TypeDebuffGained:
		return event.DebuffGained{Base: base, Target: cp.group(m, GroupTarget), Debuff: cp.group(m, GroupDebuff)}, true, nil
	case event.TypeDebuffEnded:
		return event.DebuffEnded{Base: base, Target: cp.group(m, GroupTarget), Debuff: cp.group(m, GroupDebuff)}, true, nil
	}
	return nil, false, nil
}
