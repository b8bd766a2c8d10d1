package parser

import "regexp"

// Timestamp format in combat logs: "2024-01-15 23:59:59"
const timestampLayout = "2006-01-02 15:04:05"

// Building blocks shared by every pattern.
//
// A log line starts with "<2024-01-15 23:59:59>" followed by the first actor name.
// Actor names end at the first "|r"; spell and number fields are wrapped in
// "|cAARRGGBB ... |r" colour markup.
const (
	tsPrefix = `<(\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2})>?`
	colour   = `\|c[0-9a-fA-F]{8}`
	field    = colour + `(.*?)\|r`
	number   = colour + `(-?\d+)\|r`
	critTail = `(?: \(` + colour + `(.*?)\|r\))?`
)

// Compiled regex patterns for event detection.
var (
	// Matches: "<ts>Hero|r attacked Boss|r using |cffffffffFireball|r and caused |cffffffff-500|r |cffffffffHealth|r (|cffffffffCritical|r)!"
	// Captures: (1) timestamp, (2) caster, (3) target, (4) skill, (5) signed amount, (6) resource, (7) hit kind (optional)
	attackSkillPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r attacked (.+?)\|r using ` + field + ` and caused ` + number + ` ` + field + critTail + `!`,
	)

	// Matches: "<ts>Hero|r attacked Boss|r but Boss|r parried, resulting in |cffffffff-80|r |cffffffffHealth|r!"
	// Captures: (1) timestamp, (2) caster, (3) target, (4) resulting amount, (5) resource
	attackParriedPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r attacked (.+?)\|r but .+?\|r parried, resulting in ` + number + ` ` + field + `!`,
	)

	// Matches: "<ts>Hero|r attacked Boss|r and caused |cffffffff-120|r |cffffffffHealth|r (|cffffffffNormal|r)!"
	// Captures: (1) timestamp, (2) caster, (3) target, (4) signed amount, (5) resource, (6) hit kind (optional)
	autoAttackPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r attacked (.+?)\|r and caused ` + number + ` ` + field + critTail + `!`,
	)

	// Matches: "<ts>Cleric|r targeted Hero|r using |cffffffffMend|r to restore |cffffffff300|r health."
	// Captures: (1) timestamp, (2) caster, (3) target, (4) spell, (5) amount, (6) resource, (7) hit kind (optional)
	healPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r targeted (.+?)\|r using ` + field + ` to restore ` + number + ` (\w+)` + critTail + `\.`,
	)

	// Matches: "<ts>Boss|r is casting |cffffffffMeteor|r"
	// Captures: (1) timestamp, (2) caster, (3) spell
	castingPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r is casting ` + field,
	)

	// Matches: "<ts>Boss|r successfully cast |cffffffffMeteor|r"
	// Captures: (1) timestamp, (2) caster, (3) spell
	successfulCastPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r successfully cast ` + field,
	)

	// Matches: "<ts>Hero|r gained the buff: |cffffffffRetribution|r"
	// Captures: (1) timestamp, (2) target, (3) buff
	buffGainedPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r gained the buff: ` + field,
	)

	// Matches: "<ts>Hero|r's |cffffffffRetribution|r buff ended."
	// Captures: (1) timestamp, (2) target, (3) buff
	buffEndedPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r's ` + field + ` buff ended\.`,
	)

	// Matches: "<ts>Boss|r was struck by a |cffffffffBurning|r debuff!"
	// Captures: (1) timestamp, (2) target, (3) debuff
	debuffGainedPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r was struck by a ` + field + ` debuff!`,
	)

	// Matches: "<ts>Boss|r's |cffffffffBurning|r debuff cleared"
	// Captures: (1) timestamp, (2) target, (3) debuff
	debuffEndedPattern = regexp.MustCompile(
		tsPrefix + `(.+?)\|r's ` + field + ` debuff cleared`,
	)

	// markupPattern matches inline colour openers and closers.
	markupPattern = regexp.MustCompile(colour + `|\|r`)
)

// criticalMarker is the hit kind that flags a critical attack or heal.
const criticalMarker = "Critical"
