package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combatlog/combatlog-go/pkg/combatlog"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

// 2024-01-15 12:30:45 UTC
const testTS = 1705321845000

func TestValidFormats(t *testing.T) {
	tests := []struct {
		format string
		valid  bool
	}{
		{"jsonl", true},
		{"pretty", true},
		{"json", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			assert.Equal(t, tt.valid, validFormats[tt.format])
		})
	}
}

func TestOutputEvent_JSON(t *testing.T) {
	ev := event.Heal{
		Base:   event.Base{Timestamp: testTS},
		Caster: "Cleric",
		Target: "Hero",
		Spell:  "Mend",
		Amount: 300,
	}

	var buf bytes.Buffer
	require.NoError(t, OutputEvent("jsonl", ev, &buf))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	var decoded struct {
		Type  string         `json:"type"`
		Event map[string]any `json:"event"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "heal", decoded.Type)
	assert.Equal(t, "Mend", decoded.Event["spell"])
	assert.Equal(t, float64(300), decoded.Event["amount"])
}

func TestOutputEvent_Pretty(t *testing.T) {
	base := event.Base{Timestamp: testTS}
	tests := []struct {
		name string
		ev   event.Event
		want string
	}{
		{
			name: "attack",
			ev:   event.Attack{Base: base, Caster: "Hero", Target: "Boss", Spell: "Fireball", Damage: 500},
			want: "[12:30:45] Hero attacked Boss with Fireball to deal 500 damage.",
		},
		{
			name: "critical attack",
			ev:   event.Attack{Base: base, Caster: "Hero", Target: "Boss", Spell: "Fireball", Damage: 900, Critical: true},
			want: "[12:30:45] Hero attacked Boss with Fireball to deal 900 critical damage!",
		},
		{
			name: "heal",
			ev:   event.Heal{Base: base, Caster: "Cleric", Target: "Hero", Spell: "Mend", Amount: 300},
			want: "[12:30:45] Hero was healed by Cleric using Mend to restore 300",
		},
		{
			name: "critical heal",
			ev:   event.Heal{Base: base, Caster: "Cleric", Target: "Hero", Spell: "Mend", Amount: 600, Critical: true},
			want: "[12:30:45] Hero was healed by Cleric using Mend to restore 600 (critical!)",
		},
		{
			name: "casting",
			ev:   event.Casting{Base: base, Caster: "Boss", Spell: "Meteor"},
			want: "[12:30:45] Boss is casting Meteor",
		},
		{
			name: "successful cast",
			ev:   event.SuccessfulCast{Base: base, Caster: "Boss", Spell: "Meteor"},
			want: "[12:30:45] Boss cast Meteor",
		},
		{
			name: "buff gained",
			ev:   event.BuffGained{Base: base, Target: "Hero", Buff: "Retribution"},
			want: "[12:30:45] Hero gained Retribution",
		},
		{
			name: "buff ended",
			ev:   event.BuffEnded{Base: base, Target: "Hero", Buff: "Retribution"},
			want: "[12:30:45] Hero lost Retribution",
		},
		{
			name: "debuff gained",
			ev:   event.DebuffGained{Base: base, Target: "Boss", Debuff: "Burning"},
			want: "[12:30:45] Boss was struck by Burning",
		},
		{
			name: "debuff ended",
			ev:   event.DebuffEnded{Base: base, Target: "Boss", Debuff: "Burning"},
			want: "[12:30:45] Boss is free of Burning",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, OutputEvent("pretty", tt.ev, &buf))
			assert.Equal(t, tt.want+"\n", buf.String())
		})
	}
}

func TestOutputEvent_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := OutputEvent("xml", event.Casting{}, &buf)
	assert.ErrorContains(t, err, "unknown format")
	assert.Empty(t, buf.String())
}

func TestOutputChange(t *testing.T) {
	ch := combatlog.Change{Seq: 7, Field: combatlog.FieldDamage, Player: "Hero", Value: "500"}

	var buf bytes.Buffer
	require.NoError(t, OutputChange("pretty", ch, &buf))
	assert.Equal(t, "#7 damage Hero = 500\n", buf.String())

	buf.Reset()
	require.NoError(t, OutputChange("jsonl", ch, &buf))
	assert.JSONEq(t, `{"seq":7,"field":"damage","player":"Hero","value":"500"}`, buf.String())

	buf.Reset()
	require.NoError(t, OutputChange("pretty", combatlog.Change{Seq: 8, Field: combatlog.FieldReset}, &buf))
	assert.Equal(t, "#8 reset\n", buf.String())
}

func TestAbbreviate(t *testing.T) {
	tests := []struct {
		in   uint64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1.0k"},
		{1500, "1.5k"},
		{12_345, "12.3k"},
		{1_000_000, "1.0M"},
		{2_500_000_000, "2.5B"},
		{7_000_000_000_000, "7.0T"},
		{12_000_000_000_000_000, "12000.0T"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Abbreviate(tt.in))
		})
	}
}

func TestRank(t *testing.T) {
	got := rank(map[string]uint64{"b": 10, "a": 10, "c": 50})
	assert.Equal(t, []ranked{{"c", 50}, {"a", 10}, {"b", 10}}, got)
}

func TestRenderSummary(t *testing.T) {
	snap := combatlog.Snapshot{
		Damage:        map[string]uint64{"Hero": 1500, "Rogue": 20_000},
		Heals:         map[string]uint64{},
		Debuffs:       map[string][]combatlog.ActiveDebuff{"Boss": {{Name: "Burning"}, {Name: "Snared"}}},
		CurrentTarget: "Boss",
		Casting:       "Meteor",
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, snap))
	out := buf.String()

	assert.Contains(t, out, "Damage")
	assert.Less(t, strings.Index(out, "Rogue"), strings.Index(out, "Hero"), "sorted by value")
	assert.Contains(t, out, "20.0k")
	assert.Contains(t, out, "1.5k")
	assert.Contains(t, out, "(none)")
	assert.Contains(t, out, "Target: Boss casting Meteor")
	assert.Contains(t, out, "Boss: Burning, Snared")
}
