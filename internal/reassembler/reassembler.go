// Package reassembler implements the TLS 1.3 Handshake Reassembler
// (spec.md §4.3): it buffers the plaintext payloads of handshake
// records and hands back one complete handshake frame at a time,
// silently discarding TLS 1.3 middlebox-compat ChangeCipherSpec
// records. Ported from the buffering discipline in the teacher's
// conn.go halfConn input queue, trimmed to the single
// buffer-then-frame responsibility this core needs.
package reassembler

import (
	"tls13/internal/tlserr"
	"tls13/internal/wire"
)

// RecordSource supplies the next handshake or CCS record payload,
// paired with its record content type. It models the read side of the
// record-layer adapter contract from spec.md §4.4.
type RecordSource interface {
	ReceiveRecord() (contentType uint8, payload []byte, err error)
}

// Reassembler buffers record payloads and emits complete handshake
// frames. It is a pure function of the concatenated bytes fed to it
// (spec.md §8): how those bytes were split across records never
// affects the sequence of frames it returns.
type Reassembler struct {
	src RecordSource
	buf []byte
}

// New creates a Reassembler drawing records from src.
func New(src RecordSource) *Reassembler {
	return &Reassembler{src: src}
}

const frameHeaderLen = 4
const maxFrameLen = 1<<24 - 1

// Next returns exactly one complete handshake frame (type[1] ∥
// length_u24[3] ∥ body), pulling and buffering further records as
// needed. It never returns a partial frame and never merges two
// frames; any bytes left in the internal buffer after Next returns
// are the leading bytes of the frames that follow, returned by later
// calls.
func (r *Reassembler) Next() ([]byte, error) {
	for {
		if frame, ok := r.tryExtract(); ok {
			return frame, nil
		}
		contentType, payload, err := r.src.ReceiveRecord()
		if err != nil {
			return nil, err
		}
		if contentType == wire.ContentTypeChangeCipherSpec {
			// Middlebox-compat CCS carries no handshake content in TLS
			// 1.3 and never touches the buffer (spec.md §4.3).
			continue
		}
		if contentType != wire.ContentTypeHandshake {
			return nil, tlserr.Protocol("reassembler_next", "unexpected non-handshake record while reassembling", nil)
		}
		r.buf = append(r.buf, payload...)
	}
}

// tryExtract returns the leading complete frame in r.buf, if any, and
// advances the buffer past it.
func (r *Reassembler) tryExtract() ([]byte, bool) {
	if len(r.buf) < frameHeaderLen {
		return nil, false
	}
	length := int(r.buf[1])<<16 | int(r.buf[2])<<8 | int(r.buf[3])
	if length > maxFrameLen {
		return nil, false
	}
	total := frameHeaderLen + length
	if len(r.buf) < total {
		return nil, false
	}
	frame := make([]byte, total)
	copy(frame, r.buf[:total])
	r.buf = r.buf[total:]
	return frame, true
}
