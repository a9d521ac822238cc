package protocol

import (
	"bytes"
	"testing"

	"pgregory.net/rapid"
)

// TestPacketRoundTrip tests that any packet with a legal body survives an
// encode/decode round trip with its generated ID intact.
func TestPacketRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		packetType := rapid.SampledFrom([]int32{
			TypeAuth, TypeExecCommand, TypeResponseValue,
		}).Draw(t, "type")
		bodyLen := rapid.IntRange(0, MaxBodySize).Draw(t, "bodyLen")
		// ASCII bodies only; NUL is the protocol terminator.
		body := rapid.SliceOfN(rapid.ByteRange(0x20, 0x7e), bodyLen, bodyLen).Draw(t, "body")

		original, err := NewPacket(packetType, body)
		if err != nil {
			t.Fatalf("build failed: %v", err)
		}
		if original.ID < 1 {
			t.Fatalf("generated non-positive ID %d", original.ID)
		}

		var buf bytes.Buffer
		if err := EncodePacket(&buf, original); err != nil {
			t.Fatalf("encode failed: %v", err)
		}

		decoded, err := DecodePacket(&buf)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}

		if decoded.ID != original.ID {
			t.Fatalf("ID mismatch: got %d, want %d", decoded.ID, original.ID)
		}
		if decoded.Type != original.Type {
			t.Fatalf("type mismatch: got %d, want %d", decoded.Type, original.Type)
		}
		if !bytes.Equal(decoded.Body, original.Body) {
			t.Fatalf("body mismatch")
		}
	})
}
