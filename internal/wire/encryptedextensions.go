package wire

import (
	"fmt"

	"golang.org/x/crypto/cryptobyte"
)

// EncryptedExtensions holds the subset of EncryptedExtensions content
// this client reads: the negotiated ALPN protocol, if any
// (SPEC_FULL.md §12). A compress_certificate echo from the server is
// accepted but not recorded.
type EncryptedExtensions struct {
	ALPNProtocol string
}

// Unmarshal decodes an EncryptedExtensions body.
func (m *EncryptedExtensions) Unmarshal(body []byte) error {
	s := cryptobyte.String(body)
	var extensions cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&extensions) || !s.Empty() {
		return fmt.Errorf("tls13: wire: encrypted_extensions: malformed extensions block")
	}
	for !extensions.Empty() {
		var extType uint16
		var extData cryptobyte.String
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&extData) {
			return fmt.Errorf("tls13: wire: encrypted_extensions: truncated extension header")
		}
		switch extType {
		case ExtALPN:
			var list cryptobyte.String
			if !extData.ReadUint16LengthPrefixed(&list) || !extData.Empty() {
				return fmt.Errorf("tls13: wire: encrypted_extensions: malformed alpn")
			}
			var proto []byte
			if !readU8LP(&list, &proto) || !list.Empty() {
				return fmt.Errorf("tls13: wire: encrypted_extensions: malformed alpn protocol list")
			}
			m.ALPNProtocol = string(proto)
		default:
			// server_name ack, supported_groups (RFC 8446 §4.2.7 use in
			// EE), and any compress_certificate echo are accepted but
			// unused by this core.
		}
	}
	return nil
}

// Certificate holds the DER-encoded certificate chain from a TLS 1.3
// Certificate message. X.509 parsing/validation is out of scope
// (spec.md §1); this core only extracts the request context and the
// raw DER chain (per-entry extensions are skipped), deferring trust
// decisions to a caller.
type Certificate struct {
	RequestContext []byte
	ChainDER       [][]byte
}

// Unmarshal decodes a Certificate body (RFC 8446 §4.4.2).
func (m *Certificate) Unmarshal(body []byte) error {
	s := cryptobyte.String(body)
	if !readU8LP(&s, &m.RequestContext) {
		return fmt.Errorf("tls13: wire: certificate: truncated certificate_request_context")
	}
	var certList cryptobyte.String
	if !s.ReadUint24LengthPrefixed(&certList) || !s.Empty() {
		return fmt.Errorf("tls13: wire: certificate: malformed certificate_list")
	}
	for !certList.Empty() {
		var certDER []byte
		if !readU24LP(&certList, &certDER) {
			return fmt.Errorf("tls13: wire: certificate: truncated CertificateEntry")
		}
		var extensions cryptobyte.String
		if !certList.ReadUint16LengthPrefixed(&extensions) {
			return fmt.Errorf("tls13: wire: certificate: truncated certificate extensions")
		}
		m.ChainDER = append(m.ChainDER, certDER)
	}
	return nil
}

// CertificateVerify holds the signature over the transcript that
// authenticates the server's certificate (RFC 8446 §4.4.3). Signature
// verification against the leaf's public key is out of scope (X.509
// parsing is out of scope, spec.md §1); this core exposes the raw
// fields so a caller with an X.509 stack can verify.
type CertificateVerify struct {
	SignatureScheme uint16
	Signature       []byte
}

// Unmarshal decodes a CertificateVerify body.
func (m *CertificateVerify) Unmarshal(body []byte) error {
	s := cryptobyte.String(body)
	if !s.ReadUint16(&m.SignatureScheme) {
		return fmt.Errorf("tls13: wire: certificate_verify: truncated signature_scheme")
	}
	if !readU16LP(&s, &m.Signature) || !s.Empty() {
		return fmt.Errorf("tls13: wire: certificate_verify: malformed signature")
	}
	return nil
}

// Finished carries verify_data (RFC 8446 §4.4.4).
type Finished struct {
	VerifyData []byte
}

// Marshal encodes a Finished message frame.
func (m *Finished) Marshal() []byte {
	return Frame(TypeFinished, m.VerifyData)
}

// Unmarshal decodes a Finished body, which is bare verify_data with no
// further structure.
func (m *Finished) Unmarshal(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("tls13: wire: finished: empty verify_data")
	}
	m.VerifyData = append([]byte(nil), body...)
	return nil
}
