// Package event defines the combat event types produced by the log parser.
//
// This package is separated from the main combatlog package to avoid import cycles
// between pkg/combatlog and internal/parser.
package event

import (
	"sort"
	"strings"
	"time"
)

// Type represents the kind of combat log event.
type Type string

const (
	// TypeAttack is damage dealt by a caster to a target.
	TypeAttack Type = "attack"

	// TypeHeal is health restored by a caster on a target.
	TypeHeal Type = "heal"

	// TypeCasting indicates a caster started casting a spell.
	TypeCasting Type = "casting"

	// TypeSuccessfulCast indicates a cast completed.
	TypeSuccessfulCast Type = "successful_cast"

	// TypeBuffGained indicates a target gained a buff.
	TypeBuffGained Type = "buff_gained"

	// TypeBuffEnded indicates a buff on a target ended.
	TypeBuffEnded Type = "buff_ended"

	// TypeDebuffGained indicates a target was struck by a debuff.
	TypeDebuffGained Type = "debuff_gained"

	// TypeDebuffEnded indicates a debuff on a target was cleared.
	TypeDebuffEnded Type = "debuff_ended"
)

// AutoAttack is the spell name given to attacks that carry no named skill.
const AutoAttack = "Auto-Attack"

// Retribution is the only buff tracked by the aggregator.
const Retribution = "Retribution"

// allTypes is the canonical list of all event types.
var allTypes = []Type{
	TypeAttack, TypeHeal, TypeCasting, TypeSuccessfulCast,
	TypeBuffGained, TypeBuffEnded, TypeDebuffGained, TypeDebuffEnded,
}

// TypeNames returns a sorted list of all valid event type names.
func TypeNames() []string {
	names := make([]string, len(allTypes))
	for i, t := range allTypes {
		names[i] = string(t)
	}
	sort.Strings(names)
	return names
}

var typeByName = func() map[string]Type {
	m := make(map[string]Type, len(allTypes))
	for _, t := range allTypes {
		m[string(t)] = t
	}
	return m
}()

// ParseType converts a string to Type if valid.
// It is case-insensitive and trims leading/trailing whitespace.
func ParseType(name string) (Type, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	t, ok := typeByName[name]
	return t, ok
}

// Event is a parsed combat log event.
// The set of implementations is closed: only the types in this package satisfy it,
// so a type switch over them is exhaustive.
type Event interface {
	// Type returns the event kind.
	Type() Type
	// At returns the event timestamp in epoch milliseconds (UTC).
	At() int64

	isEvent()
}

// Base carries the fields shared by every event.
type Base struct {
	// Timestamp is epoch milliseconds, parsed from the log's local
	// timestamp and interpreted as UTC.
	Timestamp int64 `json:"timestamp"`
}

// At implements Event.
func (b Base) At() int64 { return b.Timestamp }

// Time returns the timestamp as a UTC time.Time.
func (b Base) Time() time.Time { return time.UnixMilli(b.Timestamp).UTC() }

func (Base) isEvent() {}

// Attack is damage dealt by Caster to Target.
// Damage is always a non-negative magnitude.
type Attack struct {
	Base
	Caster   string `json:"caster"`
	Target   string `json:"target"`
	Spell    string `json:"spell"`
	Damage   uint64 `json:"damage"`
	Critical bool   `json:"critical"`
}

// Heal is health restored by Caster on Target.
type Heal struct {
	Base
	Caster   string `json:"caster"`
	Target   string `json:"target"`
	Spell    string `json:"spell"`
	Amount   uint64 `json:"amount"`
	Critical bool   `json:"critical"`
}

// Casting is a cast that has started.
type Casting struct {
	Base
	Caster string `json:"caster"`
	Spell  string `json:"spell"`
}

// SuccessfulCast is a cast that completed.
type SuccessfulCast struct {
	Base
	Caster string `json:"caster"`
	Spell  string `json:"spell"`
}

// BuffGained is a buff applied to Target.
type BuffGained struct {
	Base
	Target string `json:"target"`
	Buff   string `json:"buff"`
}

// BuffEnded is a buff that fell off Target.
type BuffEnded struct {
	Base
	Target string `json:"target"`
	Buff   string `json:"buff"`
}

// DebuffGained is a debuff that struck Target.
type DebuffGained struct {
	Base
	Target string `json:"target"`
	Debuff string `json:"debuff"`
}

// DebuffEnded is a debuff cleared from Target.
type DebuffEnded struct {
	Base
	Target string `json:"target"`
	Debuff string `json:"debuff"`
}

// Type implementations.
func (Attack) Type() Type         { return TypeAttack }
func (Heal) Type() Type           { return TypeHeal }
func (Casting) Type() Type        { return TypeCasting }
func (SuccessfulCast) Type() Type { return TypeSuccessfulCast }
func (BuffGained) Type() Type     { return TypeBuffGained }
func (BuffEnded) Type() Type      { return TypeBuffEnded }
func (DebuffGained) Type() Type   { return TypeDebuffGained }
func (DebuffEnded) Type() Type    { return TypeDebuffEnded }

// CasterOf returns the acting player of ev, or "" for events without a caster.
func CasterOf(ev Event) string {
	switch e := ev.(type) {
	case Attack:
		return e.Caster
	case Heal:
		return e.Caster
	case Casting:
		return e.Caster
	case SuccessfulCast:
		return e.Caster
	}
	return ""
}

// TargetOf returns the receiving player of ev, or "" for events without a target.
func TargetOf(ev Event) string {
	switch e := ev.(type) {
	case Attack:
		return e.Target
	case Heal:
		return e.Target
	case BuffGained:
		return e.Target
	case BuffEnded:
		return e.Target
	case DebuffGained:
		return e.Target
	case DebuffEnded:
		return e.Target
	}
	return ""
}

// Envelope wraps an Event with its type for JSON encoding.
type Envelope struct {
	Type  Type  `json:"type"`
	Event Event `json:"event"`
}

// Wrap returns the Envelope for ev.
func Wrap(ev Event) Envelope {
	return Envelope{Type: ev.Type(), Event: ev}
}

