// Package aggregate folds combat events into the per-player state the UI reads.
package aggregate

import (
	"maps"
	"slices"
	"strconv"
	"sync"

	"github.com/combatlog/combatlog-go/internal/notify"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// Publisher receives one call per state change.
// *notify.Hub satisfies it.
type Publisher interface {
	Publish(field notify.Field, player, value string) uint64
}

type nopPublisher struct{}

func (nopPublisher) Publish(notify.Field, string, string) uint64 { return 0 }

// ActiveDebuff is a debuff currently on a player.
type ActiveDebuff struct {
	Name     string `json:"name"`
	GainedAt int64  `json:"gained_at"`
}

// Snapshot is a copy of the aggregates. Callers own it.
type Snapshot struct {
	Damage        map[string]uint64         `json:"damage"`
	Heals         map[string]uint64         `json:"heals"`
	Retribution   map[string]int64          `json:"retribution"`
	Debuffs       map[string][]ActiveDebuff `json:"debuffs"`
	Incoming      map[string][]event.Event  `json:"-"`
	Outgoing      map[string][]event.Event  `json:"-"`
	CurrentTarget string                    `json:"current_target"`
	Casting       string                    `json:"casting"`
	MostRecent    int64                     `json:"most_recent"`
}

// Config configures a Store.
type Config struct {
	Target TargetConfig

	// HistoryLimit caps each player's incoming and outgoing lists to the
	// newest N events. Zero keeps every event until Reset.
	HistoryLimit int

	// Publisher is told about every change. Nil discards.
	Publisher Publisher
}

// Store owns the aggregates. One mutex serialises Apply, Prune, Reset and
// target changes; readers always receive copies.
type Store struct {
	mu sync.RWMutex

	target       TargetConfig
	historyLimit int
	pub          Publisher

	damage        map[string]uint64
	heals         map[string]uint64
	retribution   map[string]int64
	debuffs       map[string][]ActiveDebuff
	incoming      map[string][]event.Event
	outgoing      map[string][]event.Event
	currentTarget string
	casting       string
	mostRecent    int64
}

// NewStore returns an empty Store.
func NewStore(cfg Config) *Store {
	pub := cfg.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	s := &Store{
		target:       cloneTarget(cfg.Target),
		historyLimit: cfg.HistoryLimit,
		pub:          pub,
	}
	s.clear()
	return s
}

func (s *Store) clear() {
	s.damage = make(map[string]uint64)
	s.heals = make(map[string]uint64)
	s.retribution = make(map[string]int64)
	s.debuffs = make(map[string][]ActiveDebuff)
	s.incoming = make(map[string][]event.Event)
	s.outgoing = make(map[string][]event.Event)
	s.currentTarget = ""
	s.casting = ""
	s.mostRecent = 0
}

// Apply folds one event into the aggregates. Events must be applied in
// file order.
func (s *Store) Apply(ev event.Event) {
	if ev == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if ts := ev.At(); ts > s.mostRecent {
		s.mostRecent = ts
	}

	switch e := ev.(type) {
	case event.Attack:
		s.damage[e.Caster] += e.Damage
		s.pub.Publish(notify.FieldDamage, e.Caster, strconv.FormatUint(s.damage[e.Caster], 10))
		s.record(e, e.Caster, e.Target)
		s.autoTarget(e.Target, e.Spell)

	case event.Heal:
		s.heals[e.Caster] += e.Amount
		s.pub.Publish(notify.FieldHeals, e.Caster, strconv.FormatUint(s.heals[e.Caster], 10))
		s.record(e, e.Caster, e.Target)
		s.autoTarget(e.Target, e.Spell)

	case event.Casting:
		if e.Caster == s.currentTarget {
			// Published on every matching cast, including a repeat of the
			// same spell.
			s.casting = e.Spell
			s.pub.Publish(notify.FieldCasting, e.Caster, e.Spell)
		}

	case event.SuccessfulCast:
		// Only advances mostRecent.

	case event.BuffGained:
		if e.Buff == event.Retribution {
			s.retribution[e.Target] = e.Timestamp
			s.pub.Publish(notify.FieldRetribution, e.Target, strconv.FormatInt(e.Timestamp, 10))
		}

	case event.BuffEnded:
		if e.Buff == event.Retribution {
			if _, ok := s.retribution[e.Target]; ok {
				delete(s.retribution, e.Target)
				s.pub.Publish(notify.FieldRetribution, e.Target, "")
			}
		}

	case event.DebuffGained:
		active := s.debuffs[e.Target]
		if slices.ContainsFunc(active, func(d ActiveDebuff) bool { return d.Name == e.Debuff }) {
			return
		}
		s.debuffs[e.Target] = append(slices.Clip(active), ActiveDebuff{Name: e.Debuff, GainedAt: e.Timestamp})
		s.pub.Publish(notify.FieldDebuffs, e.Target, e.Debuff)

	case event.DebuffEnded:
		active := s.debuffs[e.Target]
		kept := slices.DeleteFunc(slices.Clone(active), func(d ActiveDebuff) bool { return d.Name == e.Debuff })
		if len(kept) == len(active) {
			return
		}
		s.setDebuffs(e.Target, kept)
		s.pub.Publish(notify.FieldDebuffs, e.Target, "")
	}
}

// record appends ev to the caster's outgoing and the target's incoming lists.
func (s *Store) record(ev event.Event, caster, target string) {
	s.outgoing[caster] = s.appendHistory(s.outgoing[caster], ev)
	s.pub.Publish(notify.FieldOutgoing, caster, string(ev.Type()))
	s.incoming[target] = s.appendHistory(s.incoming[target], ev)
	s.pub.Publish(notify.FieldIncoming, target, string(ev.Type()))
}

func (s *Store) appendHistory(list []event.Event, ev event.Event) []event.Event {
	list = append(list, ev)
	if s.historyLimit > 0 && len(list) > s.historyLimit {
		list = slices.Clone(list[len(list)-s.historyLimit:])
	}
	return list
}

func (s *Store) autoTarget(target, spell string) {
	name, ok := s.target.Select(target, spell)
	if !ok || name == s.currentTarget {
		return
	}
	s.currentTarget = name
	s.pub.Publish(notify.FieldTarget, "", name)
}

// setDebuffs stores list for player, removing the key when list is empty.
func (s *Store) setDebuffs(player string, list []ActiveDebuff) {
	if len(list) == 0 {
		delete(s.debuffs, player)
		return
	}
	s.debuffs[player] = list
}

// Reset clears every aggregate, including the current target and the most
// recent timestamp.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clear()
	s.pub.Publish(notify.FieldReset, "", "")
}

// SetCurrentTarget sets the point of interest manually.
func (s *Store) SetCurrentTarget(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if name == s.currentTarget {
		return
	}
	s.currentTarget = name
	s.pub.Publish(notify.FieldTarget, "", name)
}

// SetTargetConfig replaces the auto-target configuration for later events.
func (s *Store) SetTargetConfig(cfg TargetConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = cloneTarget(cfg)
}

// TargetConfig returns the current auto-target configuration.
func (s *Store) TargetConfig() TargetConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTarget(s.target)
}

func cloneTarget(c TargetConfig) TargetConfig {
	c.InitiatingSpells = slices.Clone(c.InitiatingSpells)
	return c
}

// Snapshot returns a deep copy of every aggregate.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		Damage:        maps.Clone(s.damage),
		Heals:         maps.Clone(s.heals),
		Retribution:   maps.Clone(s.retribution),
		Debuffs:       cloneLists(s.debuffs),
		Incoming:      cloneLists(s.incoming),
		Outgoing:      cloneLists(s.outgoing),
		CurrentTarget: s.currentTarget,
		Casting:       s.casting,
		MostRecent:    s.mostRecent,
	}
}

// Damage returns a copy of the cumulative damage per caster.
func (s *Store) Damage() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.damage)
}

// Heals returns a copy of the cumulative healing per caster.
func (s *Store) Heals() map[string]uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.heals)
}

// Retribution returns a copy of the last Retribution grant per player.
func (s *Store) Retribution() map[string]int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.retribution)
}

// Debuffs returns a copy of the active debuffs per player.
func (s *Store) Debuffs() map[string][]ActiveDebuff {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLists(s.debuffs)
}

// Incoming returns a copy of the events targeting name, oldest first.
func (s *Store) Incoming(name string) []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.incoming[name])
}

// Outgoing returns a copy of the events cast by name, oldest first.
func (s *Store) Outgoing(name string) []event.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.outgoing[name])
}

// CurrentTarget returns the selected target.
func (s *Store) CurrentTarget() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTarget
}

// Casting returns the last spell the current target started casting.
func (s *Store) Casting() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.casting
}

// MostRecent returns the largest event timestamp applied since the last Reset.
func (s *Store) MostRecent() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mostRecent
}

func cloneLists[T any](m map[string][]T) map[string][]T {
	out := make(map[string][]T, len(m))
	for k, v := range m {
		out[k] = slices.Clone(v)
	}
	return out
}
