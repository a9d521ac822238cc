// Package logparse turns raw Source-engine log stream payloads into
// timestamped records, and provides the small lexical helpers (quoted
// strings, player blobs) that log handlers build on.
package logparse

import (
	"fmt"
	"time"
)

// ParseTimestamp parses the leading `MM/DD/YYYY HH:MM:SS` timestamp of a
// log payload and returns it together with every byte after the `: `
// delimiter that follows the seconds field.
//
// Fields may be one or two digits wide. The parser accumulates digit runs
// and assigns them positionally on `/`, the first space, and `:`
// separators; any other byte between fields (the literal " - " the engine
// emits between date and time, for instance) is skipped. The result is a
// naive wall-clock value in the local zone, exactly as the remote server
// supplied it.
func ParseTimestamp(buf []byte) (time.Time, []byte, error) {
	var (
		month, day, year     = -1, -1, -1
		hour, minute, second = -1, -1, -1
		run                  int // current digit run value
		runLen               int
		end                  int // index of the colon closing the seconds field
	)

	take := func(field string) (int, error) {
		if runLen == 0 {
			return 0, fmt.Errorf("logparse: empty %s field in timestamp", field)
		}
		v := run
		run, runLen = 0, 0
		return v, nil
	}

	var err error
scan:
	for idx, c := range buf {
		switch {
		case c == '/':
			switch {
			case month < 0:
				if month, err = take("month"); err != nil {
					return time.Time{}, nil, err
				}
			case day < 0:
				if day, err = take("day"); err != nil {
					return time.Time{}, nil, err
				}
			}
		case c == ' ':
			if year < 0 && day >= 0 {
				if year, err = take("year"); err != nil {
					return time.Time{}, nil, err
				}
			}
		case c == ':':
			switch {
			case hour < 0:
				if hour, err = take("hour"); err != nil {
					return time.Time{}, nil, err
				}
			case minute < 0:
				if minute, err = take("minute"); err != nil {
					return time.Time{}, nil, err
				}
			case second < 0:
				if second, err = take("second"); err != nil {
					return time.Time{}, nil, err
				}
				end = idx
				break scan
			}
		case c >= '0' && c <= '9':
			run = run*10 + int(c-'0')
			runLen++
		}
	}

	if second < 0 {
		return time.Time{}, nil, fmt.Errorf("logparse: incomplete timestamp")
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, second, 0, time.Local)

	// time.Date normalizes out-of-range fields (month 13 becomes January);
	// reject anything that did not survive construction unchanged.
	if ts.Year() != year || ts.Month() != time.Month(month) || ts.Day() != day ||
		ts.Hour() != hour || ts.Minute() != minute || ts.Second() != second {
		return time.Time{}, nil, fmt.Errorf("logparse: invalid calendar value %02d/%02d/%04d %02d:%02d:%02d",
			month, day, year, hour, minute, second)
	}

	// Skip the closing colon and the space after it.
	rest := buf[min(end+2, len(buf)):]

	return ts, rest, nil
}
