// Package keyschedule implements the TLS 1.3 key schedule (RFC 8446
// §7): Early -> Handshake -> Application secrets, per-epoch traffic
// key/IV expansion, and Finished MAC compute/verify. It is ported from
// the teacher's key_schedule.go and internal/tls13 package, trimmed of
// everything PSK/early-data/resumption touches (out of scope per
// spec.md §1) and restricted to the single X25519 key exchange spec.md
// §3 names.
package keyschedule

import (
	"crypto/ecdh"
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"hash"
	"io"

	"tls13/internal/suite"
	"tls13/internal/tlserr"
)

// step tracks which one-shot derivations have already run, so a
// repeated or out-of-order call surfaces a tlserr.Crypto error instead
// of silently re-deriving (spec.md §4.1).
type step int

const (
	stepNone step = iota
	stepEarly
	stepHandshake
	stepHandshakeTraffic
	stepApplication
)

// Schedule owns the single-writer key material for one connection, as
// described in spec.md §3. Each Derive* method may be called exactly
// once, in order.
type Schedule struct {
	suite *suite.Suite

	keyShare    *ecdh.PrivateKey
	peerPublic  []byte
	sharedSecret []byte

	early       []byte
	handshake   []byte
	master      []byte

	clientHandshakeSecret []byte
	serverHandshakeSecret []byte
	clientAppSecret       []byte
	serverAppSecret       []byte

	at step
}

// New creates a Schedule bound to the negotiated cipher suite's hash
// algorithm. The suite also selects the AEAD used once traffic keys
// are expanded (spec.md §3: hash algorithm is fixed by cipher suite,
// immutable thereafter).
func New(s *suite.Suite) *Schedule {
	return &Schedule{suite: s}
}

// GenerateKeyShare produces the client's X25519 ephemeral keypair.
// Must be called exactly once, before ClientHello is built.
func (s *Schedule) GenerateKeyShare(rnd io.Reader) (public [32]byte, err error) {
	if s.keyShare != nil {
		return public, tlserr.Crypto("generate_key_share", "key share already generated", nil)
	}
	if rnd == nil {
		rnd = rand.Reader
	}
	priv, err := ecdh.X25519().GenerateKey(rnd)
	if err != nil {
		return public, tlserr.Crypto("generate_key_share", "x25519 key generation failed", err)
	}
	s.keyShare = priv
	copy(public[:], priv.PublicKey().Bytes())
	return public, nil
}

// UseKeyShare installs an already-generated X25519 private key as this
// Schedule's client key share. It exists so the same ephemeral key
// share generated before the cipher suite (and therefore the hash
// algorithm) was known can be carried into a Schedule built for the
// suite ServerHello actually negotiated (spec.md §4.5: the key share
// is generated once, before ClientHello, independent of suite
// selection).
func (s *Schedule) UseKeyShare(priv *ecdh.PrivateKey) error {
	if s.keyShare != nil {
		return tlserr.Crypto("use_key_share", "key share already set", nil)
	}
	s.keyShare = priv
	return nil
}

// SetPeerKeyShare records the server's X25519 public key from
// ServerHello's key_share entry (group MUST already have been
// validated as 0x001D/X25519 and 32 bytes by the caller, per spec.md
// §4.5) and computes the ECDHE shared secret.
func (s *Schedule) SetPeerKeyShare(peerPublic []byte) error {
	if s.keyShare == nil {
		return tlserr.Crypto("set_peer_key_share", "no local key share generated", nil)
	}
	if s.peerPublic != nil {
		return tlserr.Crypto("set_peer_key_share", "peer key share already set", nil)
	}
	if len(peerPublic) != 32 {
		return tlserr.Crypto("set_peer_key_share", "peer public key must be 32 bytes", nil)
	}
	peer, err := ecdh.X25519().NewPublicKey(peerPublic)
	if err != nil {
		return tlserr.Crypto("set_peer_key_share", "invalid peer public key", err)
	}
	shared, err := s.keyShare.ECDH(peer)
	if err != nil {
		return tlserr.Crypto("set_peer_key_share", "x25519 exchange failed", err)
	}
	if isAllZero(shared) {
		return tlserr.Crypto("set_peer_key_share", "x25519 produced all-zero shared secret", nil)
	}
	s.peerPublic = append([]byte(nil), peerPublic...)
	s.sharedSecret = shared
	return nil
}

// KeyShare returns the client's generated X25519 private key, for
// carrying the same ephemeral share into a Schedule rebuilt once the
// negotiated suite (and its hash) is known. Returns nil if no key
// share has been generated yet.
func (s *Schedule) KeyShare() *ecdh.PrivateKey { return s.keyShare }

func isAllZero(b []byte) bool {
	var v byte
	for _, x := range b {
		v |= x
	}
	return v == 0
}

func (s *Schedule) newHash() hash.Hash { return s.suite.Hash() }

// DeriveEarly computes the Early Secret with an all-zero PSK (PSK
// flows are out of scope; ikm is always Hlen zero bytes per spec.md
// §4.1 step 1).
func (s *Schedule) DeriveEarly() error {
	if s.at != stepNone {
		return tlserr.Crypto("derive_early", "must be the first derivation", nil)
	}
	zeroIKM := make([]byte, s.newHash().Size())
	zeroSalt := make([]byte, s.newHash().Size())
	early, err := extract(s.newHash, zeroIKM, zeroSalt)
	if err != nil {
		return err
	}
	s.early = early
	s.at = stepEarly
	return nil
}

// DeriveHandshake computes the Handshake Secret from the Early Secret
// and the ECDHE shared secret (spec.md §4.1 step 2). Requires
// DeriveEarly and a completed key exchange.
func (s *Schedule) DeriveHandshake() error {
	if s.at != stepEarly {
		return tlserr.Crypto("derive_handshake", "derive_early must run first", nil)
	}
	if s.sharedSecret == nil {
		return tlserr.Crypto("derive_handshake", "shared secret not established", nil)
	}
	derived, err := deriveSecret(s.newHash, s.early, "derived", nil)
	if err != nil {
		return err
	}
	hsSecret, err := extract(s.newHash, s.sharedSecret, derived)
	if err != nil {
		return err
	}
	s.handshake = hsSecret
	s.at = stepHandshake
	return nil
}

// DeriveHandshakeTraffic computes client/server handshake traffic
// secrets from the transcript through ServerHello (spec.md §4.1 step
// 3).
func (s *Schedule) DeriveHandshakeTraffic(transcriptThroughServerHello []byte) error {
	if s.at != stepHandshake {
		return tlserr.Crypto("derive_handshake_traffic", "derive_handshake must run first", nil)
	}
	c, err := deriveSecret(s.newHash, s.handshake, "c hs traffic", transcriptThroughServerHello)
	if err != nil {
		return err
	}
	srv, err := deriveSecret(s.newHash, s.handshake, "s hs traffic", transcriptThroughServerHello)
	if err != nil {
		return err
	}
	s.clientHandshakeSecret = c
	s.serverHandshakeSecret = srv
	s.at = stepHandshakeTraffic
	return nil
}

// DeriveApplicationSecrets computes the Master Secret and the
// client/server application traffic secrets from the transcript
// through ClientFinished (spec.md §4.1 step 4).
func (s *Schedule) DeriveApplicationSecrets(transcriptThroughClientFinished []byte) error {
	if s.at != stepHandshakeTraffic {
		return tlserr.Crypto("derive_application_secrets", "derive_handshake_traffic must run first", nil)
	}
	derived, err := deriveSecret(s.newHash, s.handshake, "derived", nil)
	if err != nil {
		return err
	}
	zeroIKM := make([]byte, s.newHash().Size())
	master, err := extract(s.newHash, zeroIKM, derived)
	if err != nil {
		return err
	}
	c, err := deriveSecret(s.newHash, master, "c ap traffic", transcriptThroughClientFinished)
	if err != nil {
		return err
	}
	srv, err := deriveSecret(s.newHash, master, "s ap traffic", transcriptThroughClientFinished)
	if err != nil {
		return err
	}
	s.master = master
	s.clientAppSecret = c
	s.serverAppSecret = srv
	s.at = stepApplication
	return nil
}

// ClientHandshakeTrafficSecret returns the secret derived by
// DeriveHandshakeTraffic for use as the ClientFinished base key.
func (s *Schedule) ClientHandshakeTrafficSecret() []byte { return s.clientHandshakeSecret }

// ServerHandshakeTrafficSecret returns the secret derived by
// DeriveHandshakeTraffic for use as the ServerFinished base key.
func (s *Schedule) ServerHandshakeTrafficSecret() []byte { return s.serverHandshakeSecret }

// ClientApplicationTrafficSecret returns client_application_traffic_secret_0.
func (s *Schedule) ClientApplicationTrafficSecret() []byte { return s.clientAppSecret }

// ServerApplicationTrafficSecret returns server_application_traffic_secret_0.
func (s *Schedule) ServerApplicationTrafficSecret() []byte { return s.serverAppSecret }

// TrafficKeyIV expands a traffic secret into an AEAD key and 12-byte
// IV (spec.md §4.1: key = Expand-Label(S,"key","",klen), iv =
// Expand-Label(S,"iv","",12)).
func (s *Schedule) TrafficKeyIV(trafficSecret []byte) (key, iv []byte, err error) {
	key, kerr := expandLabel(s.newHash, trafficSecret, "key", nil, s.suite.KeyLen)
	if kerr != nil {
		return nil, nil, kerr
	}
	iv, ierr := expandLabel(s.newHash, trafficSecret, "iv", nil, suite.IVLength())
	if ierr != nil {
		return nil, nil, ierr
	}
	return key, iv, nil
}

// FinishedMAC computes verify_data for the given base key (a
// handshake traffic secret) over a transcript hash (spec.md §4.1).
func (s *Schedule) FinishedMAC(baseKey, transcript []byte) ([]byte, error) {
	finishedKey, err := expandLabel(s.newHash, baseKey, "finished", nil, s.newHash().Size())
	if err != nil {
		return nil, err
	}
	h := s.newHash()
	h.Write(transcript)
	mac := hmac.New(s.newHash, finishedKey)
	mac.Write(h.Sum(nil))
	return mac.Sum(nil), nil
}

// VerifyFinished recomputes verify_data over transcript and compares
// it to wantVerifyData in constant time, per spec.md §4.1's
// constant-time requirement.
func (s *Schedule) VerifyFinished(baseKey, transcript, wantVerifyData []byte) (bool, error) {
	got, err := s.FinishedMAC(baseKey, transcript)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare(got, wantVerifyData) == 1, nil
}

// Suite returns the cipher suite this schedule was constructed with.
func (s *Schedule) Suite() *suite.Suite { return s.suite }

// Zero wipes all derived secrets and the ephemeral private key
// material from the Schedule, per spec.md §5's resource-lifecycle
// requirement that secrets are cleared on close/ERROR.
func (s *Schedule) Zero() {
	for _, b := range [][]byte{
		s.sharedSecret, s.early, s.handshake, s.master,
		s.clientHandshakeSecret, s.serverHandshakeSecret,
		s.clientAppSecret, s.serverAppSecret,
	} {
		for i := range b {
			b[i] = 0
		}
	}
	s.keyShare = nil
	s.sharedSecret = nil
	s.early, s.handshake, s.master = nil, nil, nil
	s.clientHandshakeSecret, s.serverHandshakeSecret = nil, nil
	s.clientAppSecret, s.serverAppSecret = nil, nil
}
