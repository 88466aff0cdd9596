package wire

import (
	"golang.org/x/crypto/cryptobyte"
)

// ClientHello is the wire-level content of a TLS 1.3 ClientHello, per
// spec.md §4.5. Only the fields this core sends are modeled; there is
// no generic extension bag, since the client never varies its
// extension set by target profile (SPEC_FULL.md §11).
type ClientHello struct {
	Random             [32]byte
	SessionID          [32]byte
	CipherSuites       []uint16
	ServerName         string   // empty disables server_name
	SupportedGroups    []uint16 // e.g. GroupX25519, GroupSecP256r1, GroupSecP384r1
	SignatureSchemes   []uint16
	ALPNProtocols      []string
	KeyShareGroup      uint16 // always GroupX25519 for this core
	KeyShareData       []byte // 32-byte X25519 public key
	CompressAlgorithms []uint16 // certificate_compression_algorithm IDs advertised, may be empty
}

// Marshal encodes the ClientHello body (everything after the 4-byte
// handshake header) per RFC 8446 §4.1.2, then wraps it in the
// handshake frame.
func (m *ClientHello) Marshal() ([]byte, error) {
	var exts cryptobyte.Builder

	if m.ServerName != "" {
		exts.AddUint16(ExtServerName)
		exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
			exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
				exts.AddUint8(0) // name_type = host_name
				exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
					exts.AddBytes([]byte(m.ServerName))
				})
			})
		})
	}

	exts.AddUint16(ExtSupportedVersions)
	exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint8LengthPrefixed(func(exts *cryptobyte.Builder) {
			exts.AddUint16(SupportedVersionsTLS13)
		})
	})

	exts.AddUint16(ExtSupportedGroups)
	exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
			for _, g := range m.SupportedGroups {
				exts.AddUint16(g)
			}
		})
	})

	exts.AddUint16(ExtSignatureAlgorithms)
	exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
			for _, s := range m.SignatureSchemes {
				exts.AddUint16(s)
			}
		})
	})

	exts.AddUint16(ExtPSKKeyExchangeModes)
	exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint8LengthPrefixed(func(exts *cryptobyte.Builder) {
			exts.AddUint8(PSKKeyExchangeModeDHE)
		})
	})

	if len(m.ALPNProtocols) > 0 {
		exts.AddUint16(ExtALPN)
		exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
			exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
				for _, p := range m.ALPNProtocols {
					exts.AddUint8LengthPrefixed(func(exts *cryptobyte.Builder) {
						exts.AddBytes([]byte(p))
					})
				}
			})
		})
	}

	if len(m.CompressAlgorithms) > 0 {
		exts.AddUint16(ExtCompressCertificate)
		exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
			exts.AddUint8LengthPrefixed(func(exts *cryptobyte.Builder) {
				for _, a := range m.CompressAlgorithms {
					exts.AddUint16(a)
				}
			})
		})
	}

	exts.AddUint16(ExtKeyShare)
	exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
			exts.AddUint16(m.KeyShareGroup)
			exts.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
				addFixed(exts, m.KeyShareData, 32)
			})
		})
	})

	extBytes, err := exts.Bytes()
	if err != nil {
		return nil, err
	}

	var b cryptobyte.Builder
	b.AddUint16(LegacyVersion)
	addFixed(&b, m.Random[:], 32)
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(m.SessionID[:])
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		for _, cs := range m.CipherSuites {
			b.AddUint16(cs)
		}
	})
	b.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddUint8(0) // legacy_compression_methods = {null}
	})
	b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes(extBytes)
	})

	body, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return Frame(TypeClientHello, body), nil
}
