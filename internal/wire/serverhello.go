package wire

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// ServerHello is the decoded content of a TLS 1.3 ServerHello, holding
// only the fields spec.md §4.5 requires the client to extract: the
// negotiated cipher suite and the server's key_share entry.
// supported_versions is validated during Unmarshal but not retained,
// since the client only ever accepts 0x0304.
type ServerHello struct {
	Random       [32]byte
	SessionID    []byte
	CipherSuite  uint16
	KeyShareGroup uint16
	KeyShareData  []byte
}

// Unmarshal decodes a ServerHello body (the bytes after the 4-byte
// handshake header). Ported from the ServerHello parse loop in
// mar1xlatino-utls's handshake-message codec, trimmed to the extensions
// this client actually consumes.
func (m *ServerHello) Unmarshal(body []byte) error {
	s := cryptobyte.String(body)

	var version uint16
	if !s.ReadUint16(&version) {
		return fmt.Errorf("tls13: wire: server_hello: truncated legacy_version")
	}

	var random []byte
	if !s.ReadBytes(&random, 32) {
		return fmt.Errorf("tls13: wire: server_hello: truncated random")
	}
	copy(m.Random[:], random)

	if !readU8LP(&s, &m.SessionID) {
		return fmt.Errorf("tls13: wire: server_hello: truncated legacy_session_id_echo")
	}

	if !s.ReadUint16(&m.CipherSuite) {
		return fmt.Errorf("tls13: wire: server_hello: truncated cipher_suite")
	}

	var compressionMethod uint8
	if !s.ReadUint8(&compressionMethod) {
		return fmt.Errorf("tls13: wire: server_hello: truncated legacy_compression_method")
	}

	var extensions cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&extensions) {
		return fmt.Errorf("tls13: wire: server_hello: truncated extensions")
	}
	if !s.Empty() {
		return fmt.Errorf("tls13: wire: server_hello: trailing bytes after extensions")
	}

	sawSupportedVersions := false
	sawKeyShare := false
	for !extensions.Empty() {
		var extType uint16
		var extData cryptobyte.String
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&extData) {
			return fmt.Errorf("tls13: wire: server_hello: truncated extension header")
		}
		switch extType {
		case ExtSupportedVersions:
			var v uint16
			if !extData.ReadUint16(&v) || !extData.Empty() {
				return fmt.Errorf("tls13: wire: server_hello: malformed supported_versions")
			}
			if v != SupportedVersionsTLS13 {
				return fmt.Errorf("tls13: wire: server_hello: unsupported version %#04x", v)
			}
			sawSupportedVersions = true
		case ExtKeyShare:
			if !extData.ReadUint16(&m.KeyShareGroup) {
				return fmt.Errorf("tls13: wire: server_hello: truncated key_share group")
			}
			if !readU16LP(&extData, &m.KeyShareData) || !extData.Empty() {
				return fmt.Errorf("tls13: wire: server_hello: malformed key_share entry")
			}
			sawKeyShare = true
		default:
			// Unrecognized ServerHello extensions are ignored; this
			// core only ever asked for the two above.
		}
	}

	if !sawSupportedVersions {
		return fmt.Errorf("tls13: wire: server_hello: missing supported_versions")
	}
	if !sawKeyShare {
		return fmt.Errorf("tls13: wire: server_hello: missing key_share")
	}
	return nil
}
