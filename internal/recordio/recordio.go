// Package recordio implements a concrete TLS 1.3 record-layer
// Transport (spec.md §6) over a net.Conn: plaintext record framing
// before handshake keys are installed, then AEAD-sealed records with
// per-direction sequence numbers afterward. Ported from the
// seq/nonce/additional-data construction in the teacher's
// conn.go halfConn.encrypt/decrypt, trimmed to TLS 1.3-only (no CBC,
// no explicit nonce, no legacy padding oracle defenses that apply
// only to pre-1.3 MAC-then-encrypt modes) and restricted to the
// record-header-as-additional-data form RFC 8446 §5.2 mandates.
package recordio

import (
	"crypto/cipher"
	"encoding/binary"
	"io"
	"net"

	"tls13/internal/recordlayer"
	"tls13/internal/suite"
	"tls13/internal/tlserr"
)

const (
	recordHeaderLen = 5
	maxRecordLen    = 1 << 14 // RFC 8446 §5.1: max plaintext fragment 2^14 bytes
	maxCiphertext   = maxRecordLen + 256
)

// halfCipher is one direction's installed AEAD state.
type halfCipher struct {
	suiteID uint16
	aead    cipher.AEAD
	iv      []byte
	seq     uint64
}

func (h *halfCipher) nonce() []byte {
	nonce := make([]byte, len(h.iv))
	copy(nonce, h.iv)
	var seqBytes [8]byte
	binary.BigEndian.PutUint64(seqBytes[:], h.seq)
	for i := range seqBytes {
		nonce[len(nonce)-8+i] ^= seqBytes[i]
	}
	return nonce
}

func (h *halfCipher) advance() error {
	h.seq++
	if h.seq == 0 {
		return tlserr.Transport("record_seq", "sequence number overflow", nil)
	}
	return nil
}

// Transport is a recordlayer.Transport backed by a net.Conn. It
// implements plaintext pass-through until handshake/application keys
// are installed, per spec.md §3's PLAINTEXT epoch.
type Transport struct {
	conn net.Conn

	read  *halfCipher
	write *halfCipher

	closed bool
}

// New wraps conn (already connected) as a plaintext-epoch Transport.
func New(conn net.Conn) *Transport {
	return &Transport{conn: conn}
}

var _ recordlayer.Transport = (*Transport)(nil)

// SendRecord writes one TLS record. Before handshake keys are
// installed, it is sent in the clear with contentType as the outer
// record header type; afterward, the payload is AEAD-sealed and
// wrapped as application_data with the real type appended as a
// trailing plaintext byte before encryption (RFC 8446 §5.2).
func (t *Transport) SendRecord(contentType uint8, payload []byte) error {
	if t.write == nil {
		return t.writeRecord(contentType, payload)
	}
	inner := make([]byte, 0, len(payload)+1)
	inner = append(inner, payload...)
	inner = append(inner, contentType)

	outerType := byte(23) // application_data
	n := len(inner) + t.write.aead.Overhead()
	recordHeader := []byte{outerType, 0x03, 0x04, byte(n >> 8), byte(n)}

	sealed := t.write.aead.Seal(nil, t.write.nonce(), inner, recordHeader)
	if err := t.write.advance(); err != nil {
		return err
	}

	out := append(recordHeader, sealed...)
	if _, err := t.conn.Write(out); err != nil {
		return tlserr.Transport("send_record", "write failed", err)
	}
	return nil
}

func (t *Transport) writeRecord(contentType uint8, payload []byte) error {
	if len(payload) > maxRecordLen {
		return tlserr.Transport("send_record", "record exceeds maximum fragment length", nil)
	}
	header := []byte{contentType, 0x03, 0x03, byte(len(payload) >> 8), byte(len(payload))}
	if _, err := t.conn.Write(append(header, payload...)); err != nil {
		return tlserr.Transport("send_record", "write failed", err)
	}
	return nil
}

// ReceiveRecord reads one TLS record and returns its (content_type,
// payload) under the installed read cipher state. The returned
// content_type is the inner type once records are encrypted, per
// spec.md §6.
func (t *Transport) ReceiveRecord() (uint8, []byte, error) {
	var header [recordHeaderLen]byte
	if _, err := io.ReadFull(t.conn, header[:]); err != nil {
		return 0, nil, tlserr.Transport("receive_record", "short record header read", err)
	}
	outerType := header[0]
	length := int(header[3])<<8 | int(header[4])
	if length > maxCiphertext {
		return 0, nil, tlserr.Transport("receive_record", "record exceeds maximum ciphertext length", nil)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(t.conn, body); err != nil {
		return 0, nil, tlserr.Transport("receive_record", "short record body read", err)
	}

	if t.read == nil {
		return outerType, body, nil
	}

	if outerType == 20 {
		// Middlebox-compat ChangeCipherSpec is never encrypted, even
		// after keys are installed (RFC 8446 Appendix D.4); surface it
		// to the caller unchanged so the reassembler can discard it.
		return outerType, body, nil
	}

	plain, err := t.read.aead.Open(nil, t.read.nonce(), body, header[:])
	if err != nil {
		return 0, nil, tlserr.Crypto("receive_record", "record AEAD verification failed", err)
	}
	if err := t.read.advance(); err != nil {
		return 0, nil, err
	}

	i := len(plain) - 1
	for i >= 0 && plain[i] == 0 {
		i--
	}
	if i < 0 {
		return 0, nil, tlserr.Protocol("receive_record", "record has no content type after padding", nil)
	}
	return plain[i], plain[:i], nil
}

// InstallReadCipherState installs the server-direction AEAD state.
func (t *Transport) InstallReadCipherState(state recordlayer.CipherState) error {
	aead, iv, err := openAEAD(state)
	if err != nil {
		return err
	}
	t.read = &halfCipher{suiteID: state.SuiteID, aead: aead, iv: iv}
	return nil
}

// InstallWriteCipherState installs the client-direction AEAD state.
func (t *Transport) InstallWriteCipherState(state recordlayer.CipherState) error {
	aead, iv, err := openAEAD(state)
	if err != nil {
		return err
	}
	t.write = &halfCipher{suiteID: state.SuiteID, aead: aead, iv: iv}
	return nil
}

func openAEAD(state recordlayer.CipherState) (cipher.AEAD, []byte, error) {
	s, ok := suite.ByID(suite.ID(state.SuiteID))
	if !ok {
		return nil, nil, tlserr.Config("install_cipher_state", "unknown cipher suite id", nil)
	}
	aead, err := s.AEAD(state.Key)
	if err != nil {
		return nil, nil, tlserr.Crypto("install_cipher_state", "aead construction failed", err)
	}
	return aead, state.IV, nil
}

// Close closes the underlying net.Conn exactly once.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}
