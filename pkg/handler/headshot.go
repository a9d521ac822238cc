package handler

import (
	"bytes"
	"fmt"
	"log"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

// newHeadshot builds a handler that keeps a per-player headshot tally and
// answers `!headshots` chat queries over RCON `say`.
//
// Options:
//
//	when_reset: "never" (default), "round", or "map": when to clear the
//	             tally.
//	count_bots: "yes" or "no" (default): whether bot kills count.
func newHeadshot(deps Deps, opts Options) (func(logparse.Record), error) {
	reset := opts["when_reset"]
	if reset == "" {
		reset = "never"
	}
	switch reset {
	case "never", "round", "map":
	default:
		return nil, fmt.Errorf("headshot: when_reset must be never, round or map, not %q", reset)
	}

	countBots := false
	switch opts["count_bots"] {
	case "", "no":
	case "yes":
		countBots = true
	default:
		return nil, fmt.Errorf("headshot: count_bots must be yes or no, not %q", opts["count_bots"])
	}

	if deps.RCON == nil {
		return nil, fmt.Errorf("headshot: an RCON session is required")
	}

	h := &headshotTally{
		rcon:      deps.RCON,
		reset:     reset,
		countBots: countBots,
		counts:    make(map[string]int),
	}
	return h.onRecord, nil
}

type headshotTally struct {
	rcon      CommandRunner
	reset     string
	countBots bool
	counts    map[string]int
}

func (h *headshotTally) onRecord(rec logparse.Record) {
	msg := rec.Message
	switch {
	case rec.EndOfStream():
		// Nothing to tear down.

	case bytes.Contains(msg, []byte("(headshot)")):
		h.recordKill(msg)

	case bytes.Contains(msg, []byte(`" say "`)) && bytes.Contains(msg, []byte(`"!headshots`)):
		h.answerQuery(msg)

	case h.reset == "round" && bytes.Equal(msg, []byte(`World triggered "Round_Start"`)):
		h.counts = make(map[string]int)

	case h.reset == "map" && bytes.HasPrefix(msg, []byte("Started map")):
		h.counts = make(map[string]int)
	}
}

// recordKill credits a headshot kill line to the killer.
func (h *headshotTally) recordKill(msg []byte) {
	quoted := logparse.QuotedStrings(msg)
	if len(quoted) == 0 {
		return
	}

	killer, err := logparse.ParsePlayerInfo(quoted[0])
	if err != nil {
		log.Printf("headshot: unparseable killer in %q: %v", msg, err)
		return
	}
	if killer.IsBot() && !h.countBots {
		return
	}

	h.counts[string(killer.Name)]++
}

// answerQuery handles a `!headshots [player|*]` chat command.
func (h *headshotTally) answerQuery(msg []byte) {
	quoted := logparse.QuotedStrings(msg)
	if len(quoted) < 2 {
		return
	}
	requester, query := quoted[0], quoted[1]

	var who []byte
	if bytes.Equal(bytes.TrimSpace(query), []byte("!headshots")) {
		// Bare query: the requester asks about themselves.
		info, err := logparse.ParsePlayerInfo(requester)
		if err != nil {
			log.Printf("headshot: unparseable requester in %q: %v", msg, err)
			return
		}
		who = info.Name
	} else {
		fields := bytes.SplitN(bytes.TrimSpace(query), []byte(" "), 2)
		if len(fields) < 2 {
			h.say(`[HEADSHOTS] Usage: "!headshots", "!headshots <PLAYER>" or "!headshots *"`)
			return
		}
		who = bytes.TrimSpace(fields[1])
	}

	if bytes.Equal(who, []byte("*")) {
		for player, count := range h.counts {
			h.say(fmt.Sprintf("[HEADSHOTS] %s has %d", player, count))
		}
		return
	}

	h.say(fmt.Sprintf("[HEADSHOTS] %s has %d", who, h.counts[string(who)]))
}

func (h *headshotTally) say(line string) {
	if _, err := h.rcon.ExecCommand("say " + line); err != nil {
		log.Printf("headshot: say failed: %v", err)
	}
}
