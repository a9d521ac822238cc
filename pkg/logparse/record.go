package logparse

import "time"

// Record is one parsed log line: the server-supplied timestamp plus the
// raw message bytes after it. The message is never interpreted at this
// layer; picking apart quoted fields or player tags is handler business.
type Record struct {
	Timestamp time.Time
	Message   []byte
}

// EndOfStream reports whether this is the terminal sentinel record, which
// the log socket broadcasts exactly once when its receive loop stops.
// Handlers should run their teardown when they see it.
func (r Record) EndOfStream() bool {
	return r.Timestamp.IsZero() && r.Message == nil
}

// ParseRecord parses one de-framed log payload (junk header and trailing
// newline already stripped) into a Record.
func ParseRecord(payload []byte) (Record, error) {
	ts, message, err := ParseTimestamp(payload)
	if err != nil {
		return Record{}, err
	}

	return Record{Timestamp: ts, Message: message}, nil
}
