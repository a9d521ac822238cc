package logparse

import (
	"bytes"
	"fmt"
)

// PlayerInfo is the decomposition of an engine player blob of the form
// `NAME<SLOT><USERID><TEAM>`.
type PlayerInfo struct {
	// Name is the player's screen name.
	Name []byte

	// Slot is the server-assigned numeric slot, kept as bytes.
	Slot []byte

	// UserID is either a Steam ID of the form `[U:...:...]` or the
	// literal `BOT`.
	UserID []byte

	// Team is the team name, possibly empty (also seen: "Unassigned",
	// "TERRORIST", "CT").
	Team []byte
}

// IsBot reports whether the blob described a server bot.
func (p PlayerInfo) IsBot() bool {
	return bytes.Equal(p.UserID, []byte("BOT"))
}

// ParsePlayerInfo splits a player blob into its four fields.
func ParsePlayerInfo(blob []byte) (PlayerInfo, error) {
	blob = bytes.TrimRight(blob, ">")

	parts := bytes.Split(blob, []byte("><"))
	if len(parts) != 3 {
		return PlayerInfo{}, fmt.Errorf("logparse: malformed player blob %q", blob)
	}

	// The name itself may contain anything but '<'; the slot follows the
	// last one.
	sep := bytes.LastIndexByte(parts[0], '<')
	if sep < 0 {
		return PlayerInfo{}, fmt.Errorf("logparse: malformed player blob %q", blob)
	}

	return PlayerInfo{
		Name:   parts[0][:sep],
		Slot:   parts[0][sep+1:],
		UserID: parts[1],
		Team:   parts[2],
	}, nil
}

// QuotedStrings returns every "..."-quoted span of message, in order.
// Quotes do not nest and there is no escaping in the engine's log format;
// empty spans are omitted.
func QuotedStrings(message []byte) [][]byte {
	var (
		out    [][]byte
		start  int
		quoted bool
	)

	for idx, c := range message {
		if c != '"' {
			continue
		}
		if quoted {
			if idx > start {
				out = append(out, message[start:idx])
			}
			quoted = false
		} else {
			start = idx + 1
			quoted = true
		}
	}

	return out
}
