package aggregate

import (
	"time"

	"github.com/combatlog/combatlog-go/internal/notify"
)

// Default prune windows.
const (
	DefaultRetributionWindow = 60 * time.Second
	DefaultDebuffWindow      = 20 * time.Second
)

// Windows are the freshness limits used by Prune, measured in log time.
type Windows struct {
	Retribution time.Duration
	Debuff      time.Duration
}

// DefaultWindows returns the reference windows.
func DefaultWindows() Windows {
	return Windows{Retribution: DefaultRetributionWindow, Debuff: DefaultDebuffWindow}
}

// PruneResult counts the entries removed by one Prune call.
type PruneResult struct {
	Retribution int
	Debuffs     int
}

// Prune drops Retribution grants older than w.Retribution and debuffs older
// than w.Debuff. Age is measured against the most recent event timestamp,
// never the wall clock, and that timestamp is left unchanged.
func (s *Store) Prune(w Windows) PruneResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(s.mostRecent, w)
}

// PruneAt is Prune measured against now when now is later than the most
// recent event. It is used just before applying an event stamped now, so an
// expired entry is gone before the event can refresh it.
func (s *Store) PruneAt(now int64, w Windows) PruneResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pruneLocked(max(now, s.mostRecent), w)
}

func (s *Store) pruneLocked(now int64, w Windows) PruneResult {
	var res PruneResult
	if now == 0 {
		return res
	}

	retribution := w.Retribution.Milliseconds()
	for player, grantedAt := range s.retribution {
		if now-grantedAt > retribution {
			delete(s.retribution, player)
			res.Retribution++
			s.pub.Publish(notify.FieldRetribution, player, "")
		}
	}

	debuff := w.Debuff.Milliseconds()
	for player, active := range s.debuffs {
		kept := make([]ActiveDebuff, 0, len(active))
		for _, d := range active {
			if now-d.GainedAt <= debuff {
				kept = append(kept, d)
			}
		}
		if removed := len(active) - len(kept); removed > 0 {
			res.Debuffs += removed
			s.setDebuffs(player, kept)
			s.pub.Publish(notify.FieldDebuffs, player, "")
		}
	}

	return res
}
