package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"math/rand/v2"
)

const (
	// PacketOverhead is the number of non-body bytes counted by the size
	// field: 4 bytes of ID, 4 bytes of type, and the two trailing NULs.
	// The size field itself is not counted.
	PacketOverhead = 10

	// MaxPacketSize is the largest size-field value the protocol allows.
	// Some servers exceed it in practice, so decoding treats violations
	// as a warning rather than an error.
	MaxPacketSize = 4096

	// MaxBodySize is the largest body that fits inside MaxPacketSize.
	MaxBodySize = MaxPacketSize - PacketOverhead
)

// Packet type constants. TypeAuthResponse and TypeExecCommand share the
// value 2; which one a packet "is" depends entirely on the direction and
// state of the conversation, never on the field alone.
const (
	TypeAuth          int32 = 3
	TypeExecCommand   int32 = 2
	TypeAuthResponse  int32 = 2
	TypeResponseValue int32 = 0
)

// AuthFailureID is the packet ID the server substitutes into an auth
// response when the password was rejected. Client-generated IDs are
// always positive, so the two can never collide.
const AuthFailureID int32 = -1

var (
	ErrBodyTooLarge   = errors.New("packet body exceeds maximum size (4086 bytes)")
	ErrPacketTooSmall = errors.New("packet size below protocol minimum (10 bytes)")
	ErrInvalidType    = errors.New("packet has an invalid type")
	ErrConnectionLost = errors.New("connection lost")
)

// Packet is a single RCON protocol packet, in either direction.
// Wire format: [Size (int32 LE)][ID (int32 LE)][Type (int32 LE)][Body][NUL][NUL]
// where Size counts everything after itself.
type Packet struct {
	// ID correlates responses with requests. The client generates a fresh
	// random positive ID per outgoing packet; the server echoes it back,
	// except for AuthFailureID on a failed authentication.
	ID int32

	// Type is one of the Type* constants.
	Type int32

	// Body is the ASCII payload. It must not contain NUL bytes (the
	// protocol uses NUL as a terminator); this is not validated here.
	Body []byte
}

// NewPacket builds an outgoing packet of the given type with a freshly
// generated random ID in [1, 2^31-1].
func NewPacket(packetType int32, body []byte) (*Packet, error) {
	if len(body) > MaxBodySize {
		return nil, ErrBodyTooLarge
	}

	return &Packet{
		ID:   1 + rand.Int32N(math.MaxInt32),
		Type: packetType,
		Body: body,
	}, nil
}

// EncodePacket writes the wire representation of p to w.
func EncodePacket(w io.Writer, p *Packet) error {
	if len(p.Body) > MaxBodySize {
		return ErrBodyTooLarge
	}

	size := int32(len(p.Body) + PacketOverhead)

	buf := make([]byte, 0, size+4)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(size))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.ID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(p.Type))
	buf = append(buf, p.Body...)
	buf = append(buf, 0, 0)

	_, err := w.Write(buf)
	return err
}

// DecodePacket reads one packet from r. Short reads are retried until the
// packet is complete; a stream that ends mid-packet (or before one begins
// when more data was expected) fails with ErrConnectionLost.
func DecodePacket(r io.Reader) (*Packet, error) {
	sizeBuf := make([]byte, 4)
	if _, err := io.ReadFull(r, sizeBuf); err != nil {
		return nil, fmt.Errorf("%w: reading packet size: %v", ErrConnectionLost, err)
	}

	size := int32(binary.LittleEndian.Uint32(sizeBuf))
	if size < PacketOverhead {
		return nil, fmt.Errorf("%w: declared size %d", ErrPacketTooSmall, size)
	}
	if size > MaxPacketSize {
		// Some servers send oversized packets; process them anyway.
		log.Printf("protocol: packet size %d exceeds protocol maximum %d", size, MaxPacketSize)
	}

	raw := make([]byte, size)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: reading packet payload: %v", ErrConnectionLost, err)
	}

	p := &Packet{
		ID:   int32(binary.LittleEndian.Uint32(raw[0:4])),
		Type: int32(binary.LittleEndian.Uint32(raw[4:8])),
		// Drop the body NUL and the packet NUL.
		Body: raw[8 : size-2],
	}

	switch p.Type {
	case TypeAuth, TypeExecCommand, TypeResponseValue:
		// TypeAuthResponse aliases TypeExecCommand.
	default:
		return nil, fmt.Errorf("%w: %d", ErrInvalidType, p.Type)
	}

	return p, nil
}

// MarshalPacket is a helper that encodes a packet to a byte slice.
func MarshalPacket(p *Packet) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := EncodePacket(buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalPacket is a helper that decodes a packet from a byte slice.
func UnmarshalPacket(data []byte) (*Packet, error) {
	return DecodePacket(bytes.NewReader(data))
}
