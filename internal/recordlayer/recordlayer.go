// Package recordlayer implements the Record-Layer Adapter (spec.md
// §4.4): a thin facade that swaps read/write cipher state on epoch
// change and forwards send/receive to an underlying Transport. It is
// deliberately ignorant of TCP or AEAD details, per spec.md §1's
// framing of the record layer's crypto as an external collaborator;
// the concrete Transport lives in internal/recordio, grounded in the
// teacher's conn.go halfConn.
package recordlayer

import (
	"tls13/internal/tlserr"
)

// Epoch names the three cipher-state regimes a connection passes
// through, monotonically (spec.md §3).
type Epoch int

const (
	EpochPlaintext Epoch = iota
	EpochHandshake
	EpochApplication
)

func (e Epoch) String() string {
	switch e {
	case EpochPlaintext:
		return "plaintext"
	case EpochHandshake:
		return "handshake"
	case EpochApplication:
		return "application"
	default:
		return "unknown"
	}
}

// CipherState is one direction's installed key material (spec.md §3):
// (suite, key, iv, sequence starting at 0, protocol_version 0x0304).
// It is opaque to the adapter; Transport implementations interpret it.
type CipherState struct {
	SuiteID uint16
	Key     []byte
	IV      []byte
}

// Transport is the external record-layer collaborator (spec.md §6):
// it performs the actual AEAD encrypt/decrypt and sequence-number
// bookkeeping under whichever cipher state was last installed.
type Transport interface {
	SendRecord(contentType uint8, payload []byte) error
	ReceiveRecord() (contentType uint8, payload []byte, err error)
	InstallReadCipherState(state CipherState) error
	InstallWriteCipherState(state CipherState) error
	Close() error
}

// Adapter is the facade the orchestrator and reassembler drive. It
// tracks the installed epoch for diagnostics but delegates all crypto
// to Transport (spec.md §4.4: "the adapter does not buffer").
type Adapter struct {
	transport Transport
	epoch     Epoch
}

// New wraps transport in an Adapter starting at the plaintext epoch.
func New(transport Transport) *Adapter {
	return &Adapter{transport: transport, epoch: EpochPlaintext}
}

// SendRecord hands payload to the transport under the currently
// installed write cipher state.
func (a *Adapter) SendRecord(contentType uint8, payload []byte) error {
	// Transport already tags errors with the right tlserr.Kind (a
	// dial failure is Transport, a bad AEAD seal is Crypto); the
	// adapter is a pure facade and must not flatten that distinction.
	return a.transport.SendRecord(contentType, payload)
}

// ReceiveRecord returns the next (content_type, payload) under the
// currently installed read cipher state. AEAD-verification failures
// surface as tlserr.KindCrypto so callers draining post-handshake
// records (spec.md §4.4) can distinguish them from transport errors.
func (a *Adapter) ReceiveRecord() (uint8, []byte, error) {
	return a.transport.ReceiveRecord()
}

// InstallHandshakeKeys atomically swaps both directions' cipher state
// to the handshake epoch (spec.md §4.4, §5(b): "cipher-state
// installation is atomic from the orchestrator's perspective").
func (a *Adapter) InstallHandshakeKeys(client, server CipherState) error {
	if err := a.transport.InstallWriteCipherState(client); err != nil {
		return tlserr.Crypto("install_handshake_keys", "installing client write state failed", err)
	}
	if err := a.transport.InstallReadCipherState(server); err != nil {
		return tlserr.Crypto("install_handshake_keys", "installing server read state failed", err)
	}
	a.epoch = EpochHandshake
	return nil
}

// InstallApplicationKeys atomically swaps both directions' cipher
// state to the application epoch.
func (a *Adapter) InstallApplicationKeys(client, server CipherState) error {
	if err := a.transport.InstallWriteCipherState(client); err != nil {
		return tlserr.Crypto("install_application_keys", "installing client write state failed", err)
	}
	if err := a.transport.InstallReadCipherState(server); err != nil {
		return tlserr.Crypto("install_application_keys", "installing server read state failed", err)
	}
	a.epoch = EpochApplication
	return nil
}

// InstalledEpoch reports the current epoch, for diagnostics
// (SPEC_FULL.md §12).
func (a *Adapter) InstalledEpoch() Epoch {
	return a.epoch
}

// Close closes the underlying transport exactly once; idempotent per
// spec.md §5.
func (a *Adapter) Close() error {
	return a.transport.Close()
}
