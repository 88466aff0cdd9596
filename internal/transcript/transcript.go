// Package transcript implements the TLS 1.3 Transcript Accumulator
// (spec.md §3): an append-only byte buffer holding the concatenation,
// in wire order, of complete handshake message frames, used as the
// hashing input for both key derivation and Finished MACs. Ported
// from the running-hash bookkeeping in the teacher's key_schedule.go,
// adapted to keep raw bytes rather than an incremental hash.Hash so
// the two-boundary ServerFinished tolerance (spec.md §4.1) can rehash
// two different prefixes of the same buffer.
package transcript

// Transcript is an append-only accumulator of handshake message
// frames in wire order.
type Transcript struct {
	buf []byte
}

// New returns an empty Transcript.
func New() *Transcript {
	return &Transcript{}
}

// Append adds a complete handshake frame to the transcript.
func (t *Transcript) Append(frame []byte) {
	t.buf = append(t.buf, frame...)
}

// Bytes returns the transcript contents accumulated so far. The
// returned slice is a copy; callers may not mutate the accumulator by
// mutating it.
func (t *Transcript) Bytes() []byte {
	out := make([]byte, len(t.buf))
	copy(out, t.buf)
	return out
}

// Len returns the number of bytes accumulated so far.
func (t *Transcript) Len() int {
	return len(t.buf)
}
