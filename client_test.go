package tls13_test

import (
	"bytes"
	"crypto/rand"
	"net"
	"testing"
	"time"

	"golang.org/x/crypto/cryptobyte"

	"tls13"
	"tls13/internal/keyschedule"
	"tls13/internal/recordio"
	"tls13/internal/recordlayer"
	"tls13/internal/suite"
	"tls13/internal/wire"
)

// TestConnectSendReceiveEndToEnd drives a full client handshake and one
// round of application data against a scripted peer that plays the
// server side of RFC 8446 §4 using the same key-schedule primitives the
// client uses, over a real loopback TCP connection.
func TestConnectSendReceiveEndToEnd(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- runScriptedServer(ln, func(transport *recordio.Transport) error {
			_, appData, err := transport.ReceiveRecord()
			if err != nil {
				return err
			}
			if !bytes.Equal(appData, []byte("hello server")) {
				return errParse("unexpected application data payload from client")
			}
			return transport.SendRecord(wire.ContentTypeApplicationData, []byte("hello client"))
		})
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := tls13.New("127.0.0.1", uint16(addr.Port), tls13.Options{Timeout: 5 * time.Second})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	if !client.IsEstablished() {
		t.Fatal("client should be established after Connect")
	}
	if client.NegotiatedProtocol() != "http/1.1" {
		t.Errorf("NegotiatedProtocol() = %q, want http/1.1", client.NegotiatedProtocol())
	}

	if err := client.SendData([]byte("hello server")); err != nil {
		t.Fatalf("SendData: %v", err)
	}
	got, err := client.ReceiveData()
	if err != nil {
		t.Fatalf("ReceiveData: %v", err)
	}
	if !bytes.Equal(got, []byte("hello client")) {
		t.Errorf("ReceiveData() = %q, want %q", got, "hello client")
	}

	if err := <-serverErr; err != nil {
		t.Fatalf("scripted server: %v", err)
	}
}

// TestReceiveDataRejectsPostHandshakeKeyUpdate verifies a post-handshake
// key_update handshake message is surfaced as a ProtocolError rather
// than silently skipped like an ordinary non-application_data record
// (SPEC_FULL.md's post-handshake message handling: key_update is
// explicitly rejected, not ignored, once CONNECTED).
func TestReceiveDataRejectsPostHandshakeKeyUpdate(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- runScriptedServer(ln, func(transport *recordio.Transport) error {
			keyUpdateFrame := wire.Frame(wire.TypeKeyUpdate, []byte{0x00})
			return transport.SendRecord(wire.ContentTypeHandshake, keyUpdateFrame)
		})
	}()

	addr := ln.Addr().(*net.TCPAddr)
	client := tls13.New("127.0.0.1", uint16(addr.Port), tls13.Options{Timeout: 5 * time.Second})

	if err := client.Connect(); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer client.Close()

	_, err = client.ReceiveData()
	if err == nil {
		t.Fatal("expected an error for a post-handshake key_update message")
	}

	if err := <-serverErr; err != nil {
		t.Fatalf("scripted server: %v", err)
	}
}

// runScriptedServer accepts one connection and plays the server side of
// a single TLS 1.3 handshake by hand, reusing keyschedule.Schedule for
// the ECDHE/HKDF math (which is symmetric in both directions) rather
// than re-deriving RFC 8446 by hand. Once application keys are
// installed, afterHandshake drives whatever post-handshake exchange the
// test needs.
func runScriptedServer(ln net.Listener, afterHandshake func(*recordio.Transport) error) error {
	conn, err := ln.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()

	transport := recordio.New(conn)
	var tr []byte

	chFrame, err := readPastCCS(transport)
	if err != nil {
		return err
	}
	tr = append(tr, chFrame...)

	offeredSuites, clientKeyShare, err := parseClientHello(chFrame)
	if err != nil {
		return err
	}

	negotiated := offeredSuites[0]
	sched := keyschedule.New(negotiated)
	serverPublic, err := sched.GenerateKeyShare(rand.Reader)
	if err != nil {
		return err
	}
	if err := sched.SetPeerKeyShare(clientKeyShare); err != nil {
		return err
	}
	if err := sched.DeriveEarly(); err != nil {
		return err
	}
	if err := sched.DeriveHandshake(); err != nil {
		return err
	}

	shFrame := buildServerHello(negotiated, serverPublic[:])
	if err := transport.SendRecord(wire.ContentTypeHandshake, shFrame); err != nil {
		return err
	}
	tr = append(tr, shFrame...)

	if err := sched.DeriveHandshakeTraffic(tr); err != nil {
		return err
	}
	clientHSKey, clientHSIV, err := sched.TrafficKeyIV(sched.ClientHandshakeTrafficSecret())
	if err != nil {
		return err
	}
	serverHSKey, serverHSIV, err := sched.TrafficKeyIV(sched.ServerHandshakeTrafficSecret())
	if err != nil {
		return err
	}
	if err := transport.InstallWriteCipherState(recordlayer.CipherState{SuiteID: uint16(negotiated.ID), Key: serverHSKey, IV: serverHSIV}); err != nil {
		return err
	}
	if err := transport.InstallReadCipherState(recordlayer.CipherState{SuiteID: uint16(negotiated.ID), Key: clientHSKey, IV: clientHSIV}); err != nil {
		return err
	}

	eeFrame := buildEncryptedExtensions("http/1.1")
	if err := transport.SendRecord(wire.ContentTypeHandshake, eeFrame); err != nil {
		return err
	}
	tr = append(tr, eeFrame...)

	certFrame := buildEmptyCertificate()
	if err := transport.SendRecord(wire.ContentTypeHandshake, certFrame); err != nil {
		return err
	}
	tr = append(tr, certFrame...)

	certVerifyFrame := buildDummyCertificateVerify()
	if err := transport.SendRecord(wire.ContentTypeHandshake, certVerifyFrame); err != nil {
		return err
	}
	tr = append(tr, certVerifyFrame...)

	serverVerifyData, err := sched.FinishedMAC(sched.ServerHandshakeTrafficSecret(), tr)
	if err != nil {
		return err
	}
	serverFinFrame := (&wire.Finished{VerifyData: serverVerifyData}).Marshal()
	if err := transport.SendRecord(wire.ContentTypeHandshake, serverFinFrame); err != nil {
		return err
	}
	tr = append(tr, serverFinFrame...)

	clientFinFrame, err := readPastCCS(transport)
	if err != nil {
		return err
	}
	tr = append(tr, clientFinFrame...)

	if err := sched.DeriveApplicationSecrets(tr); err != nil {
		return err
	}
	clientAppKey, clientAppIV, err := sched.TrafficKeyIV(sched.ClientApplicationTrafficSecret())
	if err != nil {
		return err
	}
	serverAppKey, serverAppIV, err := sched.TrafficKeyIV(sched.ServerApplicationTrafficSecret())
	if err != nil {
		return err
	}
	if err := transport.InstallWriteCipherState(recordlayer.CipherState{SuiteID: uint16(negotiated.ID), Key: serverAppKey, IV: serverAppIV}); err != nil {
		return err
	}
	if err := transport.InstallReadCipherState(recordlayer.CipherState{SuiteID: uint16(negotiated.ID), Key: clientAppKey, IV: clientAppIV}); err != nil {
		return err
	}

	return afterHandshake(transport)
}

// readPastCCS reads records until it finds one that is not the
// middlebox-compat ChangeCipherSpec, returning that record's payload.
func readPastCCS(transport *recordio.Transport) ([]byte, error) {
	for {
		contentType, body, err := transport.ReceiveRecord()
		if err != nil {
			return nil, err
		}
		if contentType == wire.ContentTypeChangeCipherSpec {
			continue
		}
		return body, nil
	}
}

// parseClientHello extracts the offered cipher suites and the x25519
// key_share entry from a raw client_hello frame, standing in for a real
// server's ClientHello parser (out of this core's scope, per spec.md
// §1's client-only framing).
func parseClientHello(frame []byte) ([]*suite.Suite, []byte, error) {
	s := cryptobyte.String(frame[4:])
	var legacyVersion uint16
	var random []byte
	var sessionID []byte
	if !s.ReadUint16(&legacyVersion) || !s.ReadBytes(&random, 32) || !s.ReadUint8LengthPrefixed((*cryptobyte.String)(&sessionID)) {
		return nil, nil, errParse("client_hello: header")
	}

	var cipherSuitesRaw cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&cipherSuitesRaw) {
		return nil, nil, errParse("client_hello: cipher_suites")
	}
	var suites []*suite.Suite
	for !cipherSuitesRaw.Empty() {
		var id uint16
		if !cipherSuitesRaw.ReadUint16(&id) {
			return nil, nil, errParse("client_hello: cipher_suite entry")
		}
		if sv, ok := suite.ByID(suite.ID(id)); ok {
			suites = append(suites, sv)
		}
	}

	var compressionMethods []byte
	if !s.ReadUint8LengthPrefixed((*cryptobyte.String)(&compressionMethods)) {
		return nil, nil, errParse("client_hello: compression_methods")
	}

	var extensions cryptobyte.String
	if !s.ReadUint16LengthPrefixed(&extensions) {
		return nil, nil, errParse("client_hello: extensions")
	}

	var keyShare []byte
	for !extensions.Empty() {
		var extType uint16
		var extBody cryptobyte.String
		if !extensions.ReadUint16(&extType) || !extensions.ReadUint16LengthPrefixed(&extBody) {
			return nil, nil, errParse("client_hello: extension header")
		}
		if extType == wire.ExtKeyShare {
			var clientShares cryptobyte.String
			var group uint16
			var keyExchange cryptobyte.String
			if !extBody.ReadUint16LengthPrefixed(&clientShares) || !clientShares.ReadUint16(&group) || !clientShares.ReadUint16LengthPrefixed(&keyExchange) {
				return nil, nil, errParse("client_hello: key_share")
			}
			keyShare = append([]byte(nil), keyExchange...)
		}
	}
	if keyShare == nil {
		return nil, nil, errParse("client_hello: missing key_share")
	}
	return suites, keyShare, nil
}

func errParse(what string) error {
	return &parseError{what}
}

type parseError struct{ what string }

func (e *parseError) Error() string { return "client_test: " + e.what }

func buildServerHello(negotiated *suite.Suite, pub []byte) []byte {
	var body cryptobyte.Builder
	body.AddUint16(wire.LegacyVersion)
	var random [32]byte
	_, _ = rand.Read(random[:])
	body.AddBytes(random[:])
	body.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {})
	body.AddUint16(uint16(negotiated.ID))
	body.AddUint8(0)
	body.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint16(wire.ExtSupportedVersions)
		exts.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(wire.SupportedVersionsTLS13)
		})
		exts.AddUint16(wire.ExtKeyShare)
		exts.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16(wire.GroupX25519)
			b.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
				b.AddBytes(pub)
			})
		})
	})
	return wire.Frame(wire.TypeServerHello, mustBytes(&body))
}

func buildEncryptedExtensions(alpn string) []byte {
	var body cryptobyte.Builder
	body.AddUint16LengthPrefixed(func(exts *cryptobyte.Builder) {
		exts.AddUint16(wire.ExtALPN)
		exts.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
			b.AddUint16LengthPrefixed(func(list *cryptobyte.Builder) {
				list.AddUint8LengthPrefixed(func(proto *cryptobyte.Builder) {
					proto.AddBytes([]byte(alpn))
				})
			})
		})
	})
	return wire.Frame(wire.TypeEncryptedExtensions, mustBytes(&body))
}

func buildEmptyCertificate() []byte {
	var body cryptobyte.Builder
	body.AddUint8LengthPrefixed(func(b *cryptobyte.Builder) {})
	body.AddUint24LengthPrefixed(func(b *cryptobyte.Builder) {})
	return wire.Frame(wire.TypeCertificate, mustBytes(&body))
}

func buildDummyCertificateVerify() []byte {
	var body cryptobyte.Builder
	body.AddUint16(wire.SigSchemeRSAPSSRSAESHA256)
	body.AddUint16LengthPrefixed(func(b *cryptobyte.Builder) {
		b.AddBytes([]byte{0x01, 0x02, 0x03, 0x04})
	})
	return wire.Frame(wire.TypeCertificateVerify, mustBytes(&body))
}

func mustBytes(b *cryptobyte.Builder) []byte {
	out, err := b.Bytes()
	if err != nil {
		panic(err)
	}
	return out
}
