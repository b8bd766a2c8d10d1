// Package pattern provides extra combat log grammars defined in YAML files.
//
// The built-in parser recognises the stock combat log wording. Pattern files let
// users teach it additional wordings (a localised client, a private server with
// different phrasing) without code changes. Every pattern maps onto one of the
// closed event kinds in the event package, and pattern rules are always evaluated
// after the built-in rules.
package pattern

// PatternFile represents the structure of a YAML pattern file.
//
// Example YAML file:
//
//	version: 1
//	patterns:
//	  - id: german_casting
//	    event_type: casting
//	    regex: '<(?P<timestamp>[\d-]+ [\d:]+)>(?P<caster>.+?)\|r wirkt \|c[0-9a-f]{8}(?P<spell>.*?)\|r'
//	  - id: german_debuff
//	    event_type: debuff_gained
//	    regex: '<(?P<timestamp>[\d-]+ [\d:]+)>(?P<target>.+?)\|r erleidet \|c[0-9a-f]{8}(?P<debuff>.*?)\|r'
type PatternFile struct {
	// Version is the pattern file format version. Currently only version 1 is supported.
	Version int `yaml:"version"`

	// Patterns is the list of pattern definitions, evaluated in file order.
	Patterns []Pattern `yaml:"patterns"`
}

// Pattern represents a single log pattern definition.
//
// The regex must contain the named capture groups required by its event type
// (see RequiredGroups). Captured values have colour markup stripped.
type Pattern struct {
	// ID is a unique identifier for this pattern (e.g., "german_casting").
	// IDs must be unique within a pattern file.
	ID string `yaml:"id"`

	// EventType is the event kind produced when this pattern matches
	// (one of event.TypeNames()).
	EventType string `yaml:"event_type"`

	// Regex is the regular expression pattern to match against log lines.
	Regex string `yaml:"regex"`
}
