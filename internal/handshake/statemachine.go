// Package handshake implements the TLS 1.3 Handshake State Machine
// (spec.md §4.2): a purely structural tagged-variant state tracker
// that sequences message production/consumption and enforces legal
// transitions. It owns no bytes and performs no I/O; the orchestrator
// is the sole transition driver. Ported from the phase-tracking style
// of the teacher's handshake_client_tls13.go, generalized to an
// explicit adjacency table per spec.md §4.2 rather than the teacher's
// inline phase checks.
package handshake

import "tls13/internal/tlserr"

// State is one of the tagged handshake phases (spec.md §3).
type State int

const (
	Initial State = iota
	WaitServerHello
	WaitEncryptedExtensions
	WaitCertificate
	WaitCertificateVerify
	WaitFinished
	Connected
	Error
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case WaitServerHello:
		return "wait_server_hello"
	case WaitEncryptedExtensions:
		return "wait_encrypted_extensions"
	case WaitCertificate:
		return "wait_certificate"
	case WaitCertificateVerify:
		return "wait_certificate_verify"
	case WaitFinished:
		return "wait_finished"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// adjacency is the static legal-transition table from spec.md §4.2.
// Any state may additionally transition to Error; that edge is
// handled separately in TryTransition rather than listed here.
var adjacency = map[State]State{
	Initial:                 WaitServerHello,
	WaitServerHello:         WaitEncryptedExtensions,
	WaitEncryptedExtensions: WaitCertificate,
	WaitCertificate:         WaitCertificateVerify,
	WaitCertificateVerify:   WaitFinished,
	WaitFinished:            Connected,
}

// Machine is the handshake state machine. It is purely structural: it
// validates transitions but never inspects or produces bytes.
type Machine struct {
	current State
}

// New returns a Machine in the Initial state.
func New() *Machine {
	return &Machine{current: Initial}
}

// CurrentState returns the machine's current state.
func (m *Machine) CurrentState() State { return m.current }

// IsCompleted reports whether the machine has reached Connected.
func (m *Machine) IsCompleted() bool { return m.current == Connected }

// IsError reports whether the machine has reached Error.
func (m *Machine) IsError() bool { return m.current == Error }

// Reset returns the machine to Initial with any error flag cleared
// (spec.md §8: "reset() from any state yields INITIAL with error flag
// cleared").
func (m *Machine) Reset() { m.current = Initial }

// TryTransition attempts to move to target. ERROR is absorbing: once
// in Error, every TryTransition call is rejected and the machine stays
// in Error. A transition not adjacent to the current state in the
// static table is rejected and the machine moves to Error before the
// IllegalTransition is reported (spec.md §4.2).
func (m *Machine) TryTransition(target State) error {
	if m.current == Error {
		return tlserr.Protocol("try_transition", "state machine is in the absorbing error state", nil)
	}
	from := m.current
	if target == Error {
		m.current = Error
		return nil
	}
	if next, ok := adjacency[from]; ok && next == target {
		m.current = target
		return nil
	}
	m.current = Error
	return tlserr.Protocol("try_transition", "illegal transition "+from.String()+" -> "+target.String(), nil)
}
