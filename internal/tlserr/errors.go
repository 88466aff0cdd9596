// Package tlserr provides the structured error taxonomy and leveled
// logging used throughout the handshake core. It is a trimmed
// descendant of uTLS's errors package: the severity-tagged Error type
// and Combine helper survive, the xray-core interop aliases and
// per-log stack captures do not.
package tlserr

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"
)

// Kind classifies a fatal error per spec §7. It is not itself an
// error interface; Error.Kind() exposes it for callers that want to
// branch (e.g. the orchestrator deciding whether a failure is
// recoverable before CONNECTED).
type Kind int

const (
	KindTransport Kind = iota
	KindProtocol
	KindCrypto
	KindConfig
	KindUsage
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindCrypto:
		return "crypto"
	case KindConfig:
		return "config"
	case KindUsage:
		return "usage"
	default:
		return "unknown"
	}
}

// Error is a structured, wrappable error carrying its taxonomy kind
// and the operation that produced it.
type Error struct {
	kind Kind
	op   string
	msg  string
	err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.kind.String())
	b.WriteString(": ")
	if e.op != "" {
		b.WriteString(e.op)
		b.WriteString(": ")
	}
	b.WriteString(e.msg)
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.err }

// Kind reports the taxonomy this error belongs to.
func (e *Error) Kind() Kind { return e.kind }

func newErr(k Kind, op, msg string, cause error) *Error {
	return &Error{kind: k, op: op, msg: msg, err: cause}
}

// Transport reports a TransportError: connect/read/write failure or
// unexpected EOF.
func Transport(op, msg string, cause error) *Error { return newErr(KindTransport, op, msg, cause) }

// Protocol reports a ProtocolError: malformed/unexpected message,
// illegal transition, disallowed cipher/group.
func Protocol(op, msg string, cause error) *Error { return newErr(KindProtocol, op, msg, cause) }

// Crypto reports a CryptoError: X25519 failure, Finished MAC
// mismatch, key derivation without prerequisites.
func Crypto(op, msg string, cause error) *Error { return newErr(KindCrypto, op, msg, cause) }

// Config reports a ConfigError, raised before any I/O occurs.
func Config(op, msg string, cause error) *Error { return newErr(KindConfig, op, msg, cause) }

// Usage reports a UsageError: an API call made in the wrong
// connection state.
func Usage(op, msg string, cause error) *Error { return newErr(KindUsage, op, msg, cause) }

// multiError joins independent failures, e.g. a transport close error
// observed alongside a key-material wipe error.
type multiError []error

func (m multiError) Error() string {
	parts := make([]string, len(m))
	for i, err := range m {
		parts[i] = err.Error()
	}
	return strings.Join(parts, " | ")
}

func (m multiError) Unwrap() []error { return []error(m) }

// Combine merges non-nil errors into one. It returns nil if every
// argument is nil, and returns the single error unwrapped if only one
// is non-nil.
func Combine(errs ...error) error {
	var out multiError
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	default:
		return out
	}
}

// Level is a logging severity, ordered least to most verbose.
type Level int32

const (
	LevelWarn Level = iota
	LevelInfo
	LevelDebug
)

var (
	level  atomic.Int32
	writer atomic.Value // always holds a writerBox
)

// writerBox gives every stored writer the same concrete type, which
// atomic.Value requires across Store calls.
type writerBox struct{ w io.Writer }

func init() {
	level.Store(int32(LevelWarn))
	writer.Store(writerBox{os.Stderr})
}

// SetLevel sets the minimum severity that will be emitted.
func SetLevel(l Level) { level.Store(int32(l)) }

// SetWriter redirects log output; passing nil restores os.Stderr.
func SetWriter(w io.Writer) {
	if w == nil {
		w = os.Stderr
	}
	writer.Store(writerBox{w})
}

func shouldLog(l Level) bool { return l <= Level(level.Load()) }

func logf(l Level, tag, format string, args ...any) {
	if !shouldLog(l) {
		return
	}
	w := writer.Load().(writerBox).w
	fmt.Fprintf(w, "[%s] %s\n", tag, fmt.Sprintf(format, args...))
}

// Debugf logs at debug level: per-transition, per-message bookkeeping.
func Debugf(format string, args ...any) { logf(LevelDebug, "debug", format, args...) }

// Infof logs at info level: handshake milestones (epoch install, CONNECTED).
func Infof(format string, args ...any) { logf(LevelInfo, "info", format, args...) }

// Warnf logs at warn level: tolerated recoveries (decode swallowed,
// AEAD-verify skip, Finished boundary retry).
func Warnf(format string, args ...any) { logf(LevelWarn, "warn", format, args...) }
