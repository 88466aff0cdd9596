// Package suite defines the TLS 1.3 cipher suites this core
// negotiates, grounded on the cipherSuiteTLS13 shape from the
// teacher's key_schedule.go (id, keyLen, aead, hash).
package suite

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/sha512"
	"hash"

	"golang.org/x/crypto/chacha20poly1305"
)

// ID is a 16-bit TLS cipher suite identifier.
type ID uint16

const (
	TLS_AES_128_GCM_SHA256       ID = 0x1301
	TLS_AES_256_GCM_SHA384       ID = 0x1302
	TLS_CHACHA20_POLY1305_SHA256 ID = 0x1303
)

const aeadNonceLength = 12

// Suite is the negotiable shape of a TLS 1.3 AEAD cipher suite: its
// wire ID, traffic key length, transcript/HKDF hash, and AEAD
// constructor. Suite.AEAD gives the record layer (§6, out of core
// scope for the handshake itself) a concrete encrypt/decrypt
// primitive so the repo is end-to-end runnable.
type Suite struct {
	ID     ID
	Name   string
	KeyLen int
	Hash   func() hash.Hash
	AEAD   func(key []byte) (cipher.AEAD, error)
}

var registry = map[ID]*Suite{
	TLS_AES_128_GCM_SHA256: {
		ID: TLS_AES_128_GCM_SHA256, Name: "TLS_AES_128_GCM_SHA256",
		KeyLen: 16, Hash: sha256.New, AEAD: aeadAESGCM,
	},
	TLS_AES_256_GCM_SHA384: {
		ID: TLS_AES_256_GCM_SHA384, Name: "TLS_AES_256_GCM_SHA384",
		KeyLen: 32, Hash: sha512.New384, AEAD: aeadAESGCM,
	},
	TLS_CHACHA20_POLY1305_SHA256: {
		ID: TLS_CHACHA20_POLY1305_SHA256, Name: "TLS_CHACHA20_POLY1305_SHA256",
		KeyLen: 32, Hash: sha256.New, AEAD: chacha20poly1305.New,
	},
}

func aeadAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// ByID looks up a suite by wire identifier. The second return is
// false for any suite this core does not recognize.
func ByID(id ID) (*Suite, bool) {
	s, ok := registry[id]
	return s, ok
}

// ByName looks up a suite by its configuration-facing name, used when
// parsing the client's configured cipher-suite preference list
// (spec.md §4.5). Unknown names are dropped by the caller, not here.
func ByName(name string) (*Suite, bool) {
	for _, s := range registry {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// IVLength is the AEAD nonce length used by every TLS 1.3 record
// cipher suite: 12 bytes (RFC 8446 §5.3).
func IVLength() int { return aeadNonceLength }

// Defaults returns the default cipher-suite preference order from
// spec.md §3.
func Defaults() []*Suite {
	return []*Suite{
		registry[TLS_AES_128_GCM_SHA256],
		registry[TLS_AES_256_GCM_SHA384],
		registry[TLS_CHACHA20_POLY1305_SHA256],
	}
}
