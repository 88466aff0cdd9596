package wire

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// marshalingFunction adapts an ordinary function to cryptobyte.MarshalingValue,
// ported from the teacher's handshake-message codec.
type marshalingFunction func(b *cryptobyte.Builder) error

func (f marshalingFunction) Marshal(b *cryptobyte.Builder) error { return f(b) }

// addFixed appends v to b, failing the build if v is not exactly n bytes.
func addFixed(b *cryptobyte.Builder, v []byte, n int) {
	b.AddValue(marshalingFunction(func(b *cryptobyte.Builder) error {
		if len(v) != n {
			return fmt.Errorf("tls13: wire: expected %d bytes, got %d", n, len(v))
		}
		b.AddBytes(v)
		return nil
	}))
}

// readU8LP acts like s.ReadUint8LengthPrefixed but targets a []byte.
func readU8LP(s *cryptobyte.String, out *[]byte) bool {
	return s.ReadUint8LengthPrefixed((*cryptobyte.String)(out))
}

// readU16LP acts like s.ReadUint16LengthPrefixed but targets a []byte.
func readU16LP(s *cryptobyte.String, out *[]byte) bool {
	return s.ReadUint16LengthPrefixed((*cryptobyte.String)(out))
}

// readU24LP acts like s.ReadUint24LengthPrefixed but targets a []byte.
func readU24LP(s *cryptobyte.String, out *[]byte) bool {
	return s.ReadUint24LengthPrefixed((*cryptobyte.String)(out))
}

// Frame wraps a handshake message body with its type[1] and
// length_u24[3] header (spec.md §3's "complete handshake message
// frame").
func Frame(msgType uint8, body []byte) []byte {
	frame := make([]byte, 4+len(body))
	frame[0] = msgType
	frame[1] = byte(len(body) >> 16)
	frame[2] = byte(len(body) >> 8)
	frame[3] = byte(len(body))
	copy(frame[4:], body)
	return frame
}
