package aggregate

// DefaultInitiatingSpells are the openers that mark a new engagement when
// TargetConfig.InitiatingSpells is empty.
var DefaultInitiatingSpells = []string{
	"Charge",
	"Hell Spear",
	"Earthen Grip",
	"Freezing Arrow",
	"Snare",
	"Serpent's Glare",
	"Ring Throw",
	"Void Surge",
	"Stalker's Mark",
}

// TargetConfig drives the auto-target heuristic.
type TargetConfig struct {
	Enabled          bool     `json:"enabled"`
	PlayerName       string   `json:"player_name"`
	AllowSelf        bool     `json:"allow_self"`
	InitiatingSpells []string `json:"initiating_spells,omitempty"`
}

// Select decides whether an attack or heal with the given target and spell
// moves the point of interest. It returns the new target and true when it does.
func (c TargetConfig) Select(target, spell string) (string, bool) {
	if !c.Enabled || c.PlayerName == "" {
		return "", false
	}
	if !c.initiating(spell) {
		return "", false
	}
	if target == c.PlayerName && !c.AllowSelf {
		return "", false
	}
	return target, true
}

func (c TargetConfig) initiating(spell string) bool {
	spells := c.InitiatingSpells
	if len(spells) == 0 {
		spells = DefaultInitiatingSpells
	}
	for _, s := range spells {
		if s == spell {
			return true
		}
	}
	return false
}
