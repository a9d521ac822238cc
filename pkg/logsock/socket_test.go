package logsock

import (
	"bytes"
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srcdstools/srcwatch/pkg/logparse"
)

var logStream = []byte("\xff\xff\xff\xffRL 11/20/2016 - 13:5:40: \"Human<2><[U:0:12345678]><Unassigned>\" joined team \"CT\"\n\x00" +
	"\xff\xff\xff\xffRL 11/20/2016 - 13:5:41: \"(BOT) Vladimir<3><BOT><>\" connected, address \"none\"\n\x00" +
	"\xff\xff\xff\xffRL 11/20/2016 - 13:5:41: World triggered \"Game_Commencing\"\n\x00" +
	"\xff\xff\xff\xffRL 1/1/2000 - 12:00:00: END OF DATA\n\x00")

// startSocket runs the socket in the background and waits for it to bind,
// returning the resolved address and the Run result channel.
func startSocket(t *testing.T, s *Socket, ctx context.Context) (string, chan error) {
	t.Helper()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	var addr string
	require.Eventually(t, func() bool {
		addr = s.Addr()
		return !strings.HasSuffix(addr, ":0")
	}, 2*time.Second, 5*time.Millisecond, "socket never bound")

	return addr, done
}

func sendChunks(t *testing.T, addr string, stream []byte, chunkSize int) {
	t.Helper()

	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	defer conn.Close()

	for len(stream) > 0 {
		n := min(chunkSize, len(stream))
		_, err := conn.Write(stream[:n])
		require.NoError(t, err)
		stream = stream[n:]
	}
}

func TestSocketEndToEnd(t *testing.T) {
	s := New("127.0.0.1:0")

	var (
		mu  sync.Mutex
		got []logparse.Record
	)
	s.Register(func(rec logparse.Record) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()

		// Stopping from inside a handler is the documented way to end the
		// loop.
		if bytes.Equal(rec.Message, []byte("END OF DATA")) {
			s.Stop()
		}
	})

	addr, done := startSocket(t, s, context.Background())

	// Split the stream mid-frame to exercise datagram reassembly.
	sendChunks(t, addr, logStream, 100)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("socket did not stop")
	}

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, got, 5)

	assert.True(t, got[0].Timestamp.Equal(time.Date(2016, 11, 20, 13, 5, 40, 0, time.Local)))
	assert.Equal(t, `"Human<2><[U:0:12345678]><Unassigned>" joined team "CT"`, string(got[0].Message))

	assert.Equal(t, `"(BOT) Vladimir<3><BOT><>" connected, address "none"`, string(got[1].Message))
	assert.Equal(t, `World triggered "Game_Commencing"`, string(got[2].Message))

	assert.True(t, got[3].Timestamp.Equal(time.Date(2000, 1, 1, 12, 0, 0, 0, time.Local)))
	assert.Equal(t, "END OF DATA", string(got[3].Message))

	// The sentinel arrives last, exactly once.
	assert.True(t, got[4].EndOfStream())
}

func TestSocketDropsMalformedRecords(t *testing.T) {
	s := New("127.0.0.1:0")

	var (
		mu  sync.Mutex
		got []logparse.Record
	)
	s.Register(func(rec logparse.Record) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()

		if bytes.Equal(rec.Message, []byte("END OF DATA")) {
			s.Stop()
		}
	})

	addr, done := startSocket(t, s, context.Background())

	stream := []byte("\xff\xff\xff\xffRL this frame has no timestamp\n\x00" +
		"tiny\x00" +
		"\xff\xff\xff\xffRL 1/1/2000 - 12:00:00: END OF DATA\n\x00")
	sendChunks(t, addr, stream, len(stream))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("socket did not stop")
	}

	mu.Lock()
	defer mu.Unlock()

	// Malformed and short frames are dropped; the loop keeps running.
	require.Len(t, got, 2)
	assert.Equal(t, "END OF DATA", string(got[0].Message))
	assert.True(t, got[1].EndOfStream())
}

func TestSocketContextCancellation(t *testing.T) {
	s := New("127.0.0.1:0")

	var (
		mu  sync.Mutex
		got []logparse.Record
	)
	s.Register(func(rec logparse.Record) {
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
	})

	ctx, cancel := context.WithCancel(context.Background())
	_, done := startSocket(t, s, ctx)

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("socket did not stop on cancellation")
	}

	// Cancellation still yields the terminal sentinel, exactly once.
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.True(t, got[0].EndOfStream())
}

func TestSocketStopBeforeRun(t *testing.T) {
	s := New("127.0.0.1:0")

	sentinels := 0
	s.Register(func(rec logparse.Record) {
		if rec.EndOfStream() {
			sentinels++
		}
	})

	s.Stop()
	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, 1, sentinels)
}

func TestSocketBindFailure(t *testing.T) {
	taken, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	s := New(taken.LocalAddr().String())
	err = s.Run(context.Background())
	require.Error(t, err)

	// Ready is released even on failure so waiters do not hang; Bound
	// tells them the socket never came up.
	<-s.Ready()
	assert.False(t, s.Bound())
}

func TestSocketUnregister(t *testing.T) {
	s := New("127.0.0.1:0")

	sub := s.Register(func(logparse.Record) {})
	require.NoError(t, s.Unregister(sub))
	assert.Error(t, s.Unregister(sub))
}
