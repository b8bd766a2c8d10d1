package combatlog

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/combatlog/combatlog-go/internal/aggregate"
	"github.com/combatlog/combatlog-go/internal/notify"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// Defaults.
const (
	// DefaultTailInterval is how often the tail loop re-checks the selected
	// path while it has nothing to follow.
	DefaultTailInterval = 250 * time.Millisecond

	// DefaultPruneInterval is the period of the prune loop.
	DefaultPruneInterval = time.Second
)

// Option configures an Engine using the functional options pattern.
type Option func(*engineConfig)

// engineConfig holds internal configuration for the engine.
type engineConfig struct {
	logger           *slog.Logger
	tailInterval     time.Duration
	pruneInterval    time.Duration
	windows          aggregate.Windows
	target           TargetConfig
	searchEverywhere bool
	selectedPath     string
	historyLimit     int
	rules            []Rule
	patternFiles     []string
	searchRoots      []string
	subscriberBuffer int
	onEvent          func(event.Event)
}

func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		tailInterval:     DefaultTailInterval,
		pruneInterval:    DefaultPruneInterval,
		windows:          aggregate.DefaultWindows(),
		subscriberBuffer: notify.DefaultBuffer,
	}
}

func applyOptions(opts []Option) *engineConfig {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// validate checks for invalid option values.
func (c *engineConfig) validate() error {
	if c.tailInterval <= 0 {
		return fmt.Errorf("tail interval must be positive, got %v", c.tailInterval)
	}
	if c.pruneInterval <= 0 {
		return fmt.Errorf("prune interval must be positive, got %v", c.pruneInterval)
	}
	if c.windows.Retribution <= 0 {
		return fmt.Errorf("retribution window must be positive, got %v", c.windows.Retribution)
	}
	if c.windows.Debuff <= 0 {
		return fmt.Errorf("debuff window must be positive, got %v", c.windows.Debuff)
	}
	if c.historyLimit < 0 {
		return fmt.Errorf("history limit must be non-negative, got %d", c.historyLimit)
	}
	if c.subscriberBuffer < 0 {
		return fmt.Errorf("subscriber buffer must be non-negative, got %d", c.subscriberBuffer)
	}
	return nil
}

// WithLogger sets a logger for lifecycle and I/O failure messages.
// If logger is nil, logging is disabled (default behavior).
func WithLogger(logger *slog.Logger) Option {
	return func(c *engineConfig) {
		c.logger = logger
	}
}

// WithTailInterval sets how often the tail loop re-checks the selected path
// when idle or after a failure. Default: 250ms.
func WithTailInterval(d time.Duration) Option {
	return func(c *engineConfig) {
		c.tailInterval = d
	}
}

// WithPruneInterval sets the prune loop period. Default: 1s.
func WithPruneInterval(d time.Duration) Option {
	return func(c *engineConfig) {
		c.pruneInterval = d
	}
}

// WithRetributionWindow sets how long a Retribution grant stays fresh,
// measured in log time. Default: 60s.
func WithRetributionWindow(d time.Duration) Option {
	return func(c *engineConfig) {
		c.windows.Retribution = d
	}
}

// WithDebuffWindow sets how long a debuff stays active, measured in log
// time. Default: 20s.
func WithDebuffWindow(d time.Duration) Option {
	return func(c *engineConfig) {
		c.windows.Debuff = d
	}
}

// WithTargetConfig sets the initial auto-target configuration.
func WithTargetConfig(cfg TargetConfig) Option {
	return func(c *engineConfig) {
		c.target = cfg
	}
}

// WithSearchEverywhere makes Relocate walk the whole home directory.
func WithSearchEverywhere(on bool) Option {
	return func(c *engineConfig) {
		c.searchEverywhere = on
	}
}

// WithSelectedPath sets the log file to follow once Start is called.
func WithSelectedPath(path string) Option {
	return func(c *engineConfig) {
		c.selectedPath = path
	}
}

// WithHistoryLimit caps each player's incoming and outgoing event lists
// to the newest n events. Default: 0 (unbounded until Reset).
func WithHistoryLimit(n int) Option {
	return func(c *engineConfig) {
		c.historyLimit = n
	}
}

// WithParserRules appends rules after the built-in grammar.
func WithParserRules(rules ...Rule) Option {
	return func(c *engineConfig) {
		c.rules = append(c.rules, rules...)
	}
}

// WithPatternFiles loads YAML pattern files (see the pattern package) and
// appends their rules after the built-in grammar.
func WithPatternFiles(paths ...string) Option {
	return func(c *engineConfig) {
		c.patternFiles = append(c.patternFiles, paths...)
	}
}

// WithSearchRoots overrides the directories Relocate walks.
func WithSearchRoots(roots ...string) Option {
	return func(c *engineConfig) {
		c.searchRoots = slices.Clone(roots)
	}
}

// WithSubscriberBuffer sets the channel size of each Subscribe call.
// 0 uses the default (1024).
func WithSubscriberBuffer(n int) Option {
	return func(c *engineConfig) {
		c.subscriberBuffer = n
	}
}

// WithEventHandler registers fn to be called with every applied event, after
// the aggregates are updated. fn runs on the tail loop and must not block.
func WithEventHandler(fn func(event.Event)) Option {
	return func(c *engineConfig) {
		c.onEvent = fn
	}
}

// ParseOption configures ParseFile behavior.
type ParseOption func(*parseConfig)

type parseConfig struct {
	rules       []Rule
	include     map[event.Type]struct{}
	stopOnError bool
}

func applyParseOptions(opts []ParseOption) *parseConfig {
	cfg := &parseConfig{}
	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}
	return cfg
}

// WithParseRules appends rules after the built-in grammar.
func WithParseRules(rules ...Rule) ParseOption {
	return func(c *parseConfig) {
		c.rules = append(c.rules, rules...)
	}
}

// WithParseIncludeTypes yields only events of the given types.
// If called multiple times, only the last call takes effect.
func WithParseIncludeTypes(types ...event.Type) ParseOption {
	return func(c *parseConfig) {
		c.include = make(map[event.Type]struct{}, len(types))
		for _, t := range types {
			c.include[t] = struct{}{}
		}
	}
}

// WithParseStopOnError stops parsing on the first error instead of skipping.
// Default: false (skip malformed lines and continue).
func WithParseStopOnError(stop bool) ParseOption {
	return func(c *parseConfig) {
		c.stopOnError = stop
	}
}
