// Package logsock receives a Source-engine UDP log stream, reassembles
// NUL-terminated frames split across datagrams, and broadcasts each parsed
// record to registered handlers.
package logsock

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/srcdstools/srcwatch/pkg/dispatch"
	"github.com/srcdstools/srcwatch/pkg/logparse"
)

const (
	// ReadChunkSize is how much is read from the socket per wake-up.
	ReadChunkSize = 1024

	// frameHeaderSize is the fixed junk prefix on every frame: 4 bytes of
	// 0xFF, a two-byte record tag, and a separator space.
	frameHeaderSize = 7
)

// Socket owns a UDP receive endpoint and an event dispatcher. Handlers
// registered before Run receive every record the stream produces, followed
// by exactly one end-of-stream sentinel (Record.EndOfStream) when the loop
// exits for any reason.
//
// A Socket is single-use: once Run returns it cannot be restarted.
type Socket struct {
	addr       string
	dispatcher *dispatch.Dispatcher[logparse.Record]
	metrics    *Metrics

	ready     chan struct{}
	readyOnce sync.Once

	mu   sync.Mutex
	conn net.PacketConn
	done bool

	// Receive accumulator: everything received and not yet split off as a
	// complete frame.
	buf []byte
}

// New creates a log socket that will bind to addr (host:port) when Run is
// called.
func New(addr string) *Socket {
	return &Socket{
		addr:       addr,
		dispatcher: dispatch.New[logparse.Record](),
		ready:      make(chan struct{}),
	}
}

// SetMetrics attaches metrics to the socket.
func (s *Socket) SetMetrics(m *Metrics) {
	s.metrics = m
}

// Register adds a handler for decoded records.
func (s *Socket) Register(fn func(logparse.Record)) dispatch.Subscription {
	sub := s.dispatcher.Register(fn)
	if s.metrics != nil {
		s.metrics.RecordActiveHandlers(s.dispatcher.Len())
	}
	return sub
}

// Unregister removes a previously registered handler.
func (s *Socket) Unregister(sub dispatch.Subscription) error {
	err := s.dispatcher.Unregister(sub)
	if s.metrics != nil {
		s.metrics.RecordActiveHandlers(s.dispatcher.Len())
	}
	return err
}

// Run binds the receive socket and processes the log stream until Stop is
// called (possibly from inside a handler) or ctx is cancelled. On exit it
// broadcasts the end-of-stream sentinel exactly once before returning.
func (s *Socket) Run(ctx context.Context) error {
	// Whatever happens, release anyone waiting on Ready.
	defer s.readyOnce.Do(func() { close(s.ready) })

	conn, err := net.ListenPacket("udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind log socket on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	if s.done {
		// Stop raced with startup.
		s.mu.Unlock()
		conn.Close()
		s.fireSentinel()
		return nil
	}
	s.conn = conn
	s.mu.Unlock()
	s.readyOnce.Do(func() { close(s.ready) })

	// Cancellation is an implicit Stop: closing the socket unblocks the
	// pending read.
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopWatch:
		}
	}()
	defer close(stopWatch)

	chunk := make([]byte, ReadChunkSize)
	for {
		n, _, err := conn.ReadFrom(chunk)
		if err != nil {
			if !s.stopped() {
				log.Printf("logsock: read error: %v", err)
			}
			break
		}

		if s.metrics != nil {
			s.metrics.RecordDatagram(n)
		}

		s.buf = append(s.buf, chunk[:n]...)
		s.drainFrames()

		// A handler may have called Stop during a broadcast; don't block
		// on another read if so.
		if s.stopped() {
			break
		}
	}

	s.fireSentinel()
	return nil
}

// drainFrames splits the accumulator on NUL bytes and broadcasts every
// complete frame. The trailing segment is a partial frame and stays
// buffered.
func (s *Socket) drainFrames() {
	segments := bytes.Split(s.buf, []byte{0})
	s.buf = segments[len(segments)-1]

	for _, frame := range segments[:len(segments)-1] {
		// Strip the junk header and the trailing newline.
		if len(frame) < frameHeaderSize+1 {
			log.Printf("logsock: dropping short frame (%d bytes)", len(frame))
			if s.metrics != nil {
				s.metrics.RecordFrameTooShort()
			}
			continue
		}
		payload := frame[frameHeaderSize : len(frame)-1]

		rec, err := logparse.ParseRecord(payload)
		if err != nil {
			// Malformed records are dropped; the stream keeps flowing.
			log.Printf("logsock: dropping record: %v", err)
			if s.metrics != nil {
				s.metrics.RecordParseFailure()
			}
			continue
		}

		s.broadcast(rec)
		if s.metrics != nil {
			s.metrics.RecordParsed()
		}
	}
}

// broadcast delivers one record to every handler.
func (s *Socket) broadcast(rec logparse.Record) {
	if s.metrics == nil {
		s.dispatcher.Fire(rec)
		return
	}

	start := time.Now()
	fanout := s.dispatcher.Len()
	s.dispatcher.Fire(rec)
	s.metrics.RecordBroadcast(fanout, time.Since(start).Seconds())
}

// Stop closes the receive socket and ends the Run loop. It is safe to call
// from inside a handler invoked during a broadcast; the loop finishes the
// current wake-up's frames and exits. Calling Stop more than once is
// harmless.
func (s *Socket) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done {
		return
	}
	s.done = true

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

// Bound reports whether the receive socket is currently bound. After
// Ready fires it distinguishes a live socket from a Run that gave up
// (bind failure, or Stop racing startup).
func (s *Socket) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// stopped reports whether Stop has been requested.
func (s *Socket) stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// fireSentinel broadcasts the end-of-stream record.
func (s *Socket) fireSentinel() {
	s.broadcast(logparse.Record{})
}

// Ready is closed once the socket is bound (or Run has given up), at
// which point Addr reports the resolved address.
func (s *Socket) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the bound address while the socket is running, or the
// configured address otherwise.
func (s *Socket) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn != nil {
		return s.conn.LocalAddr().String()
	}
	return s.addr
}
