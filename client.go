// Package tls13 implements the client side of a TLS 1.3 handshake:
// key schedule, handshake-message reassembly, and the state machine
// that sequences them into a connected, application-data-capable
// connection. Ported from the public surface of the teacher's Conn/
// Config pair, narrowed to the single TLS 1.3 client flow this core
// supports — no resumption, no 0-RTT, no server side.
package tls13

import (
	"net"
	"strconv"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/idna"

	"tls13/internal/certcompress"
	"tls13/internal/handshake"
	"tls13/internal/keyschedule"
	"tls13/internal/reassembler"
	"tls13/internal/recordio"
	"tls13/internal/recordlayer"
	"tls13/internal/suite"
	"tls13/internal/tlserr"
	"tls13/internal/transcript"
	"tls13/internal/wire"
)

// ConnState is the informational connection state surfaced to callers
// (spec.md §6).
type ConnState string

const (
	StateInitial    ConnState = "initial"
	StateConnecting ConnState = "connecting"
	StateEstablished ConnState = "established"
	StateClosed     ConnState = "closed"
	StateError      ConnState = "error"
)

// Options configures a Client (spec.md §6). It is copied at
// construction: mutating a slice passed in afterward does not affect
// the Client (spec.md §8's "options passed at construction are
// copied").
type Options struct {
	// Timeout bounds transport establishment (spec.md §5). Zero means
	// the default of 30 seconds.
	Timeout time.Duration

	// CipherSuites is an ordered preference list of recognized suite
	// names (e.g. "TLS_AES_128_GCM_SHA256"). Unrecognized names are
	// dropped; an empty or all-unrecognized list falls back to
	// suite.Defaults() order.
	CipherSuites []string

	// ALPN is the protocol list advertised in the alpn extension.
	// Defaults to {"http/1.1"}.
	ALPN []string

	// CompressAlgorithms advertises certificate_compression_algorithm
	// IDs (SPEC_FULL.md §12). Defaults to certcompress.DefaultAlgorithms().
	// Pass a non-nil empty slice to disable the extension entirely.
	CompressAlgorithms []uint16
}

func (o Options) clone() Options {
	out := Options{Timeout: o.Timeout}
	out.CipherSuites = append([]string(nil), o.CipherSuites...)
	out.ALPN = append([]string(nil), o.ALPN...)
	if o.CompressAlgorithms != nil {
		out.CompressAlgorithms = append(make([]uint16, 0, len(o.CompressAlgorithms)), o.CompressAlgorithms...)
	}
	return out
}

func (o Options) timeout() time.Duration {
	if o.Timeout <= 0 {
		return 30 * time.Second
	}
	return o.Timeout
}

// alpn returns the configured ALPN protocol list, canonicalizing "h2"
// to http2.NextProtoTLS so the HTTP/2 identifier this client advertises
// comes from the same constant net/http2 clients negotiate against,
// rather than a hand-rolled string literal.
func (o Options) alpn() []string {
	if len(o.ALPN) == 0 {
		return []string{"http/1.1"}
	}
	out := make([]string, len(o.ALPN))
	for i, p := range o.ALPN {
		if p == "h2" {
			p = http2.NextProtoTLS
		}
		out[i] = p
	}
	return out
}

func (o Options) compressAlgorithms() []uint16 {
	if o.CompressAlgorithms == nil {
		return certcompress.DefaultAlgorithms()
	}
	return o.CompressAlgorithms
}

func (o Options) cipherSuites() ([]*suite.Suite, error) {
	var out []*suite.Suite
	for _, name := range o.CipherSuites {
		if s, ok := suite.ByName(name); ok {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		out = suite.Defaults()
	}
	if len(out) == 0 {
		return nil, tlserr.Config("cipher_suites", "no recognized cipher suite in preference list", nil)
	}
	return out, nil
}

// Client is a single TLS 1.3 client connection. It is not safe for
// concurrent use from multiple goroutines (spec.md §5: "strictly
// single-threaded per connection").
type Client struct {
	hostname string
	port     uint16
	opts     Options

	netConn net.Conn
	adapter *recordlayer.Adapter
	reasm   *reassembler.Reassembler
	machine *handshake.Machine
	sched   *keyschedule.Schedule
	tr      *transcript.Transcript

	negotiatedProto string
	state           ConnState
	closed          bool
}

// New constructs a Client for the given hostname:port. Options are
// copied; SNI is sent whenever hostname is non-empty.
func New(hostname string, port uint16, opts Options) *Client {
	return &Client{
		hostname: hostname,
		port:     port,
		opts:     opts.clone(),
		machine:  handshake.New(),
		tr:       transcript.New(),
		state:    StateInitial,
	}
}

// State reports the client's informational connection state.
func (c *Client) State() ConnState { return c.state }

// IsEstablished reports whether the handshake has completed.
func (c *Client) IsEstablished() bool { return c.state == StateEstablished }

// Version reports the negotiated protocol version, informationally
// (spec.md §6). This core only ever completes TLS 1.3.
func (c *Client) Version() int {
	if c.IsEstablished() {
		return 13
	}
	return 0
}

// NegotiatedProtocol returns the ALPN protocol the server selected,
// or "" if none was negotiated (SPEC_FULL.md §12).
func (c *Client) NegotiatedProtocol() string { return c.negotiatedProto }

func normalizeHostname(hostname string) (string, error) {
	if hostname == "" {
		return "", nil
	}
	normalized, err := idna.Lookup.ToASCII(hostname)
	if err != nil {
		return "", tlserr.Config("normalize_hostname", "invalid hostname for SNI", err)
	}
	return normalized, nil
}

// Connect opens the transport and drives the handshake to completion
// or to ERROR (spec.md §4.5).
func (c *Client) Connect() error {
	if c.state != StateInitial {
		return tlserr.Usage("connect", "connect called outside the initial state", nil)
	}
	c.state = StateConnecting

	sniHost, err := normalizeHostname(c.hostname)
	if err != nil {
		c.fail()
		return err
	}
	if err := certcompress.Validate(c.opts.compressAlgorithms()); err != nil {
		c.fail()
		return err
	}
	suites, err := c.opts.cipherSuites()
	if err != nil {
		c.fail()
		return err
	}

	dialer := net.Dialer{Timeout: c.opts.timeout()}
	conn, err := dialer.Dial("tcp", net.JoinHostPort(c.hostname, strconv.Itoa(int(c.port))))
	if err != nil {
		c.state = StateError
		return tlserr.Transport("connect", "tcp dial failed", err)
	}
	c.netConn = conn
	transport := recordio.New(conn)
	c.adapter = recordlayer.New(transport)
	c.reasm = reassembler.New(&adapterRecordSource{c.adapter})

	if err := c.handshakeLoop(sniHost, suites); err != nil {
		c.fail()
		return err
	}

	c.state = StateEstablished
	return nil
}

// adapterRecordSource adapts *recordlayer.Adapter to the
// reassembler.RecordSource contract.
type adapterRecordSource struct {
	adapter *recordlayer.Adapter
}

func (a *adapterRecordSource) ReceiveRecord() (uint8, []byte, error) {
	return a.adapter.ReceiveRecord()
}

func (c *Client) fail() {
	c.state = StateError
	_ = c.machine.TryTransition(handshake.Error)
	if c.sched != nil {
		c.sched.Zero()
	}
}

// SendData delivers payload as one or more application_data records.
// Requires CONNECTED (spec.md §4.5).
func (c *Client) SendData(payload []byte) error {
	if !c.IsEstablished() {
		return tlserr.Usage("send_data", "send called before the connection is established", nil)
	}
	const maxFragment = 1 << 14
	for len(payload) > 0 {
		n := len(payload)
		if n > maxFragment {
			n = maxFragment
		}
		if err := c.adapter.SendRecord(wire.ContentTypeApplicationData, payload[:n]); err != nil {
			c.fail()
			return err
		}
		payload = payload[n:]
	}
	return nil
}

// ReceiveData reads records, skipping non-application_data content
// types and records that fail AEAD verification, and returns the
// first successfully decrypted application_data payload (spec.md
// §4.5, §7(c)). A post-handshake key_update is rejected outright
// rather than skipped: this core does not implement the key-update
// rekey procedure, so silently dropping it would leave the connection
// reading under stale traffic keys the peer may stop accepting
// (SPEC_FULL.md's post-handshake-message handling).
func (c *Client) ReceiveData() ([]byte, error) {
	if !c.IsEstablished() {
		return nil, tlserr.Usage("receive_data", "receive called before the connection is established", nil)
	}
	for {
		contentType, payload, err := c.adapter.ReceiveRecord()
		if err != nil {
			if kind, ok := errorKind(err); ok && kind == tlserr.KindCrypto {
				tlserr.Warnf("receive_data: dropping record that failed AEAD verification: %v", err)
				continue
			}
			c.fail()
			return nil, err
		}
		if contentType == wire.ContentTypeHandshake {
			if len(payload) > 0 && payload[0] == wire.TypeKeyUpdate {
				err := tlserr.Protocol("receive_data", "post-handshake key_update is not supported", nil)
				c.fail()
				return nil, err
			}
			tlserr.Debugf("receive_data: skipping non-application_data record type %d", contentType)
			continue
		}
		if contentType != wire.ContentTypeApplicationData {
			tlserr.Debugf("receive_data: skipping non-application_data record type %d", contentType)
			continue
		}
		return payload, nil
	}
}

func errorKind(err error) (tlserr.Kind, bool) {
	type kinder interface{ Kind() tlserr.Kind }
	if k, ok := err.(kinder); ok {
		return k.Kind(), true
	}
	return 0, false
}

// Close closes the transport exactly once and wipes key material
// (spec.md §5). Subsequent calls are no-ops.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.state = StateClosed
	if c.sched != nil {
		c.sched.Zero()
	}
	if c.adapter != nil {
		return c.adapter.Close()
	}
	return nil
}
