package combatlog

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combatlog/combatlog-go/pkg/combatlog/event"
)

const sampleLog = lineCharge + "\r\n" +
	"not a combat line\n" +
	lineBadClock + "\n" +
	"<2024-01-01 00:00:03>Boss|r is casting |cffffffffMeteor|r\n" +
	lineAuto + "\n"

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Combat.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleLog), 0o644))
	return path
}

func TestParseLine(t *testing.T) {
	ev, err := ParseLine(lineCharge)
	require.NoError(t, err)
	atk, ok := ev.(event.Attack)
	require.True(t, ok)
	assert.Equal(t, "Charge", atk.Spell)
	assert.Equal(t, uint64(500), atk.Damage)

	ev, err = ParseLine("nothing here")
	assert.NoError(t, err)
	assert.Nil(t, ev)

	_, err = ParseLine(lineBadClock)
	assert.Error(t, err)
}

func TestParseFile_SkipsMalformedLines(t *testing.T) {
	path := writeSample(t)

	var types []event.Type
	var errs []error
	for ev, err := range ParseFile(context.Background(), path) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		types = append(types, ev.Type())
	}

	assert.Equal(t, []event.Type{event.TypeAttack, event.TypeCasting, event.TypeAttack}, types)
	require.Len(t, errs, 1)
	var parseErr *ParseError
	assert.ErrorAs(t, errs[0], &parseErr)
}

func TestParseFile_StopOnError(t *testing.T) {
	path := writeSample(t)

	var n int
	var lastErr error
	for _, err := range ParseFile(context.Background(), path, WithParseStopOnError(true)) {
		if err != nil {
			lastErr = err
			continue
		}
		n++
	}
	assert.Equal(t, 1, n)
	assert.Error(t, lastErr)
}

func TestParseFile_IncludeTypes(t *testing.T) {
	path := writeSample(t)

	events, err := ParseFileAll(context.Background(), path, WithParseIncludeTypes(event.TypeCasting))
	// The malformed line fails ParseFileAll even though it is filtered.
	require.Error(t, err)
	assert.Empty(t, events)

	var casts []event.Event
	for ev, err := range ParseFile(context.Background(), path, WithParseIncludeTypes(event.TypeCasting)) {
		if err == nil {
			casts = append(casts, ev)
		}
	}
	require.Len(t, casts, 1)
	assert.Equal(t, "Meteor", casts[0].(event.Casting).Spell)
}

func TestParseFile_EarlyBreak(t *testing.T) {
	path := writeSample(t)

	var n int
	for _, err := range ParseFile(context.Background(), path) {
		require.NoError(t, err)
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestParseFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := ParseFileAll(context.Background(), filepath.Join(t.TempDir(), "missing.log"))
		var tailErr *TailError
		require.ErrorAs(t, err, &tailErr)
		assert.Equal(t, TailOpOpen, tailErr.Op)
	})

	t.Run("directory", func(t *testing.T) {
		_, err := ParseFileAll(context.Background(), t.TempDir())
		assert.ErrorIs(t, err, ErrNotRegularFile)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := ParseFileAll(ctx, writeSample(t))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestParseFile_ExtraRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Combat.log")
	require.NoError(t, os.WriteFile(path, []byte("PING Hero\n"), 0o644))

	ping := regexp.MustCompile(`^PING (\w+)$`)
	rule := Rule{
		Name: "ping",
		Match: func(line string) (event.Event, bool, error) {
			m := ping.FindStringSubmatch(line)
			if m == nil {
				return nil, false, nil
			}
			return event.SuccessfulCast{Caster: m[1], Spell: "Ping"}, true, nil
		},
	}

	events, err := ParseFileAll(context.Background(), path, WithParseRules(rule))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Hero", events[0].(event.SuccessfulCast).Caster)
}

func TestParseString(t *testing.T) {
	events, err := ParseString(sampleLog)
	require.NoError(t, err)
	assert.Len(t, events, 3)

	_, err = ParseString(sampleLog, WithParseStopOnError(true))
	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}
