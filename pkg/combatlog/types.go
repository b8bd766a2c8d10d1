package combatlog

import (
	"github.com/combatlog/combatlog-go/internal/aggregate"
	"github.com/combatlog/combatlog-go/internal/notify"
	"github.com/combatlog/combatlog-go/internal/parser"
)

// Aggregate types.
type (
	Snapshot     = aggregate.Snapshot
	ActiveDebuff = aggregate.ActiveDebuff
	TargetConfig = aggregate.TargetConfig
	PruneResult  = aggregate.PruneResult
)

// Notification types.
type (
	Change       = notify.Change
	Field        = notify.Field
	Subscription = notify.Subscription
)

// Rule is one entry of the ordered parser rule table. Rules added through
// WithParserRules or the pattern package run after the built-in grammar.
type Rule = parser.Rule

// Change fields.
const (
	FieldDamage       = notify.FieldDamage
	FieldHeals        = notify.FieldHeals
	FieldRetribution  = notify.FieldRetribution
	FieldDebuffs      = notify.FieldDebuffs
	FieldIncoming     = notify.FieldIncoming
	FieldOutgoing     = notify.FieldOutgoing
	FieldTarget       = notify.FieldTarget
	FieldCasting      = notify.FieldCasting
	FieldPaths        = notify.FieldPaths
	FieldSearching    = notify.FieldSearching
	FieldSelectedPath = notify.FieldSelectedPath
	FieldReset        = notify.FieldReset
)

// DefaultInitiatingSpells are used when TargetConfig.InitiatingSpells is empty.
var DefaultInitiatingSpells = aggregate.DefaultInitiatingSpells
