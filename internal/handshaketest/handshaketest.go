// Package handshaketest provides a deterministic in-memory test double
// for the reassembler's RecordSource contract, so reassembly tests
// never need a real socket. Grounded in the teacher's testing
// conventions of substituting small scripted fakes for halfConn during
// unit tests, generalized to this core's narrower contracts (spec.md
// §9: "implementations should model [collaborators] as capabilities/
// traits... so tests can substitute deterministic in-memory variants").
package handshaketest

import "io"

// ScriptedRecord is one (content_type, payload) pair to feed a
// ScriptedSource in order.
type ScriptedRecord struct {
	ContentType uint8
	Payload     []byte
}

// ScriptedSource implements reassembler.RecordSource by replaying a
// fixed sequence of records, then returning io.EOF.
type ScriptedSource struct {
	records []ScriptedRecord
	pos     int
}

// NewScriptedSource returns a ScriptedSource that replays records in
// order.
func NewScriptedSource(records ...ScriptedRecord) *ScriptedSource {
	return &ScriptedSource{records: records}
}

// ReceiveRecord returns the next scripted record, or io.EOF once
// exhausted.
func (s *ScriptedSource) ReceiveRecord() (uint8, []byte, error) {
	if s.pos >= len(s.records) {
		return 0, nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r.ContentType, r.Payload, nil
}

// FramesFromRecords splits a byte stream into n arbitrarily-sized
// chunks, for exercising the reassembler's invariant that it is a
// pure function of the concatenated bytes regardless of how they were
// split into records (spec.md §8).
func FramesFromRecords(contentType uint8, data []byte, chunkSizes []int) []ScriptedRecord {
	var out []ScriptedRecord
	offset := 0
	for _, n := range chunkSizes {
		if offset+n > len(data) {
			n = len(data) - offset
		}
		out = append(out, ScriptedRecord{ContentType: contentType, Payload: data[offset : offset+n]})
		offset += n
	}
	return out
}
