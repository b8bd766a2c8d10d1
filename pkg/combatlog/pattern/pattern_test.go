package pattern_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combatlog/combatlog-go/internal/parser"
	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
	"github.com/combatlog/combatlog-go/pkg/combatlog/pattern"
)

func TestLoad_Valid(t *testing.T) {
	pf, err := pattern.Load("testdata/valid.yaml")
	require.NoError(t, err)
	assert.Equal(t, 1, pf.Version)
	require.Len(t, pf.Patterns, 2)
	assert.Equal(t, "german_casting", pf.Patterns[0].ID)
	assert.Equal(t, "casting", pf.Patterns[0].EventType)
	assert.Equal(t, "german_debuff", pf.Patterns[1].ID)
}

func TestLoad_UnknownEventType(t *testing.T) {
	_, err := pattern.Load("testdata/unknown_type.yaml")
	require.Error(t, err)
	var patErr *pattern.PatternError
	require.True(t, errors.As(err, &patErr))
	assert.Equal(t, "event_type", patErr.Field)
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestLoad_UnsupportedVersion(t *testing.T) {
	_, err := pattern.Load("testdata/unsupported_version.yaml")
	require.Error(t, err)
	var valErr *pattern.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, err.Error(), "unsupported version")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := pattern.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open pattern file")
	assert.NotContains(t, err.Error(), "nope.yaml")
}

func TestLoad_RejectsDirectory(t *testing.T) {
	_, err := pattern.Load(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "regular file")
}

func TestLoad_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	_, err := pattern.Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty")
}

func TestLoadBytes_Validation(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "no patterns",
			yaml:    "version: 1\npatterns: []\n",
			wantErr: "at least one pattern",
		},
		{
			name:    "missing id",
			yaml:    "version: 1\npatterns:\n  - event_type: casting\n    regex: x\n",
			wantErr: "id is required",
		},
		{
			name:    "missing regex",
			yaml:    "version: 1\npatterns:\n  - id: a\n    event_type: casting\n",
			wantErr: "regex is required",
		},
		{
			name: "duplicate id",
			yaml: "version: 1\npatterns:\n" +
				"  - id: a\n    event_type: casting\n    regex: x\n" +
				"  - id: a\n    event_type: casting\n    regex: y\n",
			wantErr: "duplicate id",
		},
		{
			name:    "unknown key",
			yaml:    "version: 1\npatterns:\n  - id: a\n    event_type: casting\n    regex: x\n    flags: i\n",
			wantErr: "failed to parse YAML",
		},
		{
			name:    "bad yaml",
			yaml:    "version: [\n",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pattern.LoadBytes([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCompile_MissingGroup(t *testing.T) {
	pf, err := pattern.Load("testdata/missing_group.yaml")
	require.NoError(t, err)

	_, err = pattern.Compile(pf)
	require.Error(t, err)
	var patErr *pattern.PatternError
	require.True(t, errors.As(err, &patErr))
	assert.Equal(t, "bad_heal", patErr.ID)
	assert.Contains(t, err.Error(), "spell")
	assert.Contains(t, err.Error(), "amount")
}

func TestCompile_InvalidRegex(t *testing.T) {
	pf, err := pattern.LoadBytes([]byte("version: 1\npatterns:\n  - id: broken\n    event_type: casting\n    regex: '(?P<timestamp>['\n"))
	require.NoError(t, err)

	_, err = pattern.Compile(pf)
	require.Error(t, err)
	var patErr *pattern.PatternError
	require.True(t, errors.As(err, &patErr))
	assert.NotNil(t, errors.Unwrap(err))
}

func TestCompile_NilFile(t *testing.T) {
	_, err := pattern.Compile(nil)
	require.Error(t, err)
}

func TestRulesFromFiles_ParsesLines(t *testing.T) {
	rules, err := pattern.RulesFromFiles("testdata/valid.yaml")
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "pattern:german_casting", rules[0].Name)

	p := parser.New(rules...)

	ev, err := p.Parse("<2024-03-01 12:00:05>Held|r wirkt |cff00ff00Feuerball|r")
	require.NoError(t, err)
	require.NotNil(t, ev)
	cast, ok := ev.(event.Casting)
	require.True(t, ok)
	assert.Equal(t, "Held", cast.Caster)
	assert.Equal(t, "Feuerball", cast.Spell)
	assert.Equal(t, int64(1709294405000), cast.At())

	ev, err = p.Parse("<2024-03-01 12:00:06>Boss|r erleidet |cffff0000Brennen|r")
	require.NoError(t, err)
	deb, ok := ev.(event.DebuffGained)
	require.True(t, ok)
	assert.Equal(t, "Boss", deb.Target)
	assert.Equal(t, "Brennen", deb.Debuff)
}

func TestCompile_AttackDefaults(t *testing.T) {
	pf, err := pattern.LoadBytes([]byte(`version: 1
patterns:
  - id: hit
    event_type: attack
    regex: '<(?P<timestamp>[\d-]+ [\d:]+)>(?P<caster>\w+) trifft (?P<target>\w+) fuer (?P<amount>-?\d+)(?P<critical> kritisch)?'
`))
	require.NoError(t, err)
	rules, err := pattern.Compile(pf)
	require.NoError(t, err)

	p := parser.New(rules...)

	ev, err := p.Parse("<2024-03-01 12:00:00>Held trifft Boss fuer -250 kritisch")
	require.NoError(t, err)
	atk, ok := ev.(event.Attack)
	require.True(t, ok)
	assert.Equal(t, event.AutoAttack, atk.Spell)
	assert.Equal(t, uint64(250), atk.Damage)
	assert.True(t, atk.Critical)

	ev, err = p.Parse("<2024-03-01 12:00:00>Held trifft Boss fuer 10")
	require.NoError(t, err)
	atk = ev.(event.Attack)
	assert.False(t, atk.Critical)
}

func TestCompile_BadTimestampIsLineError(t *testing.T) {
	rules, err := pattern.RulesFromFiles("testdata/valid.yaml")
	require.NoError(t, err)

	_, err = parser.New(rules...).Parse("<2024-13-45 12:00:05>Held|r wirkt Feuerball|r")
	require.Error(t, err)
	var lineErr *parser.LineError
	require.True(t, errors.As(err, &lineErr))
	assert.Equal(t, "pattern:german_casting", lineErr.Rule)
}

func TestRequiredGroups(t *testing.T) {
	assert.Equal(t, []string{"timestamp", "target", "debuff"}, pattern.RequiredGroups(event.TypeDebuffEnded))
	assert.Empty(t, pattern.RequiredGroups(event.Type("nope")))
}
