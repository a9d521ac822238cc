// Package rcon implements the client side of the Source remote-console
// protocol: a persistent TCP connection over which an operator
// authenticates and executes administrative commands.
package rcon

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/srcdstools/srcwatch/pkg/protocol"
)

// DefaultPort is the conventional RCON listen port.
const DefaultPort = 27015

// Client is a live RCON session. It is not safe for concurrent use and is
// not reusable after Close.
type Client struct {
	conn    net.Conn
	timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout applies a deadline to every read and write on the session.
// The protocol itself has no keepalive, so without this a silent peer can
// block a call forever.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// Dial connects to an RCON server at addr (host:port).
func Dial(addr string, opts ...Option) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	return NewClient(conn, opts...), nil
}

// NewClient wraps an established connection in a Client. Useful for tests
// and custom transports.
func NewClient(conn net.Conn, opts ...Option) *Client {
	c := &Client{conn: conn}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate sends the server password and reports whether it was
// accepted. Per the protocol the server answers with two packets: an
// empty response-value mirroring the request ID, then an auth response
// whose ID is the request ID on success or -1 on failure. Both must be
// read; judging the handshake from the first packet alone misreads it.
func (c *Client) Authenticate(password string) (bool, error) {
	req, err := protocol.NewPacket(protocol.TypeAuth, []byte(password))
	if err != nil {
		return false, err
	}
	if err := c.send(req); err != nil {
		return false, fmt.Errorf("failed to send auth request: %w", err)
	}

	first, err := c.read()
	if err != nil {
		return false, fmt.Errorf("failed to read auth acknowledgement: %w", err)
	}
	if first.ID != req.ID {
		return false, fmt.Errorf("auth acknowledgement ID %d does not match request ID %d", first.ID, req.ID)
	}

	second, err := c.read()
	if err != nil {
		return false, fmt.Errorf("failed to read auth response: %w", err)
	}

	return second.ID != protocol.AuthFailureID, nil
}

// ExecCommand executes a command on the server and returns its output.
//
// The server may split a long reply across multiple response-value packets
// sharing the command's ID, and announces the count nowhere. To find the
// end, an empty response-value packet is sent right behind the command:
// the server processes packets in order and mirrors it back, so the first
// reply whose ID differs from the command's marks the boundary. That
// boundary packet and exactly one follow-up artifact are read and dropped.
func (c *Client) ExecCommand(command string) (string, error) {
	req, err := protocol.NewPacket(protocol.TypeExecCommand, []byte(command))
	if err != nil {
		return "", err
	}
	if err := c.send(req); err != nil {
		return "", fmt.Errorf("failed to send command: %w", err)
	}

	terminator, err := protocol.NewPacket(protocol.TypeResponseValue, nil)
	if err != nil {
		return "", err
	}
	if err := c.send(terminator); err != nil {
		return "", fmt.Errorf("failed to send terminator: %w", err)
	}

	var reply strings.Builder
	for {
		resp, err := c.read()
		if err != nil {
			return "", fmt.Errorf("failed to read command response: %w", err)
		}
		if resp.ID != req.ID {
			// The terminator echo. One more artifact packet follows it.
			break
		}
		reply.Write(resp.Body)
	}

	if _, err := c.read(); err != nil {
		return "", fmt.Errorf("failed to drain terminator artifact: %w", err)
	}

	return reply.String(), nil
}

// LocalAddr returns the local address of the underlying connection. The
// daemon uses it to tell the game server where to send its log stream.
func (c *Client) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Close tears down the session. The session is unusable afterwards;
// calling Close twice is the caller's bug, not a supported operation.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) send(p *protocol.Packet) error {
	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return err
		}
	}
	return protocol.EncodePacket(c.conn, p)
}

func (c *Client) read() (*protocol.Packet, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, err
		}
	}
	return protocol.DecodePacket(c.conn)
}
