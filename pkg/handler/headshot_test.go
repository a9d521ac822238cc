package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

// fakeRunner records every command an RCON-using handler issues.
type fakeRunner struct {
	commands []string
}

func (f *fakeRunner) ExecCommand(command string) (string, error) {
	f.commands = append(f.commands, command)
	return "", nil
}

func fire(h func(logparse.Record), messages ...string) {
	for _, msg := range messages {
		h(logparse.Record{Message: []byte(msg)})
	}
}

const (
	humanHeadshot = `"Alice<2><[U:1:111]><CT>" killed "Bob<3><[U:1:222]><TERRORIST>" with "ak47" (headshot)`
	botHeadshot   = `"(BOT) Brad<4><BOT><CT>" killed "Bob<3><[U:1:222]><TERRORIST>" with "glock" (headshot)`
)

func newTestHeadshot(t *testing.T, opts Options) (func(logparse.Record), *fakeRunner) {
	t.Helper()

	runner := &fakeRunner{}
	h, err := Build("headshot", Deps{RCON: runner}, opts)
	require.NoError(t, err)
	return h, runner
}

func TestHeadshotCountsAndAnswersSelfQuery(t *testing.T) {
	h, runner := newTestHeadshot(t, nil)

	fire(h, humanHeadshot, humanHeadshot)
	fire(h, `"Alice<2><[U:1:111]><CT>" say "!headshots"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] Alice has 2", runner.commands[0])
}

func TestHeadshotIgnoresBotsByDefault(t *testing.T) {
	h, runner := newTestHeadshot(t, nil)

	fire(h, botHeadshot)
	fire(h, `"Alice<2><[U:1:111]><CT>" say "!headshots (BOT) Brad"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] (BOT) Brad has 0", runner.commands[0])
}

func TestHeadshotCountsBotsWhenConfigured(t *testing.T) {
	h, runner := newTestHeadshot(t, Options{"count_bots": "yes"})

	fire(h, botHeadshot)
	fire(h, `"Alice<2><[U:1:111]><CT>" say "!headshots (BOT) Brad"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] (BOT) Brad has 1", runner.commands[0])
}

func TestHeadshotNamedQuery(t *testing.T) {
	h, runner := newTestHeadshot(t, nil)

	fire(h, humanHeadshot)
	fire(h, `"Bob<3><[U:1:222]><TERRORIST>" say "!headshots Alice"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] Alice has 1", runner.commands[0])
}

func TestHeadshotWildcardQuery(t *testing.T) {
	h, runner := newTestHeadshot(t, nil)

	fire(h, humanHeadshot)
	fire(h, `"Bob<3><[U:1:222]><TERRORIST>" say "!headshots *"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] Alice has 1", runner.commands[0])
}

func TestHeadshotRoundReset(t *testing.T) {
	h, runner := newTestHeadshot(t, Options{"when_reset": "round"})

	fire(h, humanHeadshot)
	fire(h, `World triggered "Round_Start"`)
	fire(h, `"Alice<2><[U:1:111]><CT>" say "!headshots Alice"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] Alice has 0", runner.commands[0])
}

func TestHeadshotMapReset(t *testing.T) {
	h, runner := newTestHeadshot(t, Options{"when_reset": "map"})

	fire(h, humanHeadshot)
	fire(h, `Started map "de_dust2" (CRC "12345")`)
	fire(h, `"Alice<2><[U:1:111]><CT>" say "!headshots Alice"`)

	require.Len(t, runner.commands, 1)
	assert.Equal(t, "say [HEADSHOTS] Alice has 0", runner.commands[0])
}

func TestHeadshotIgnoresSentinel(t *testing.T) {
	h, runner := newTestHeadshot(t, nil)

	h(logparse.Record{})
	assert.Empty(t, runner.commands)
}

func TestHeadshotRequiresRCON(t *testing.T) {
	_, err := Build("headshot", Deps{}, nil)
	assert.Error(t, err)
}
