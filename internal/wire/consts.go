// Package wire implements bit-for-bit RFC 8446 encode/decode for the
// handshake messages and extensions this core exchanges: ClientHello,
// ServerHello, EncryptedExtensions, Certificate, CertificateVerify,
// Finished. Ported from the marshal/unmarshal pairs in the teacher's
// handshake-message codec (cryptobyte.Builder to write,
// cryptobyte.String to read), trimmed to the extension set spec.md
// §4.5 names and without the teacher's GREASE/fingerprint-profile
// machinery.
package wire

// Handshake message type octet (RFC 8446 §4).
const (
	TypeClientHello         = 1
	TypeServerHello         = 2
	TypeEncryptedExtensions = 8
	TypeCertificate         = 11
	TypeCertificateVerify   = 15
	TypeFinished            = 20
	TypeKeyUpdate           = 24
)

// Record content types (RFC 8446 §5.1).
const (
	ContentTypeChangeCipherSpec = 20
	ContentTypeAlert            = 21
	ContentTypeHandshake        = 22
	ContentTypeApplicationData  = 23
)

// Extension identifiers used by this core (RFC 8446 §4.2).
const (
	ExtServerName          uint16 = 0
	ExtSupportedGroups     uint16 = 10
	ExtSignatureAlgorithms uint16 = 13
	ExtALPN                uint16 = 16
	ExtCompressCertificate uint16 = 27
	ExtSupportedVersions   uint16 = 43
	ExtPSKKeyExchangeModes uint16 = 45
	ExtKeyShare            uint16 = 51
)

// LegacyVersion is the value ClientHello.legacy_version always carries
// (RFC 8446 §4.1.2): TLS 1.3 is negotiated exclusively via
// supported_versions.
const LegacyVersion = 0x0303

// SupportedVersionsTLS13 is the sole entry this core advertises in
// supported_versions (spec.md §4.5: "supported_versions: {TLS 1.3
// only}").
const SupportedVersionsTLS13 = 0x0304

// Named group identifiers (RFC 8446 §4.2.7).
const (
	GroupSecP256r1 uint16 = 23
	GroupSecP384r1 uint16 = 24
	GroupX25519    uint16 = 29
)

// Signature scheme identifiers (RFC 8446 §4.2.3) this core advertises.
const (
	SigSchemeRSAPSSRSAESHA256 uint16 = 0x0804
	SigSchemeECDSASecP256R1   uint16 = 0x0403
	SigSchemeRSAPKCS1SHA256   uint16 = 0x0401
)

// PSKKeyExchangeModeDHE is psk_dhe_ke (RFC 8446 §4.2.9); advertised
// per spec.md §4.5 even though this core never establishes a PSK.
const PSKKeyExchangeModeDHE uint8 = 1
