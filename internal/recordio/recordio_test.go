package recordio

import (
	"bytes"
	"net"
	"testing"

	"tls13/internal/recordlayer"
	"tls13/internal/suite"
)

// TestPlaintextRoundTrip verifies records sent before any cipher state
// is installed arrive unmodified with their original content type
// (spec.md §3's PLAINTEXT epoch).
func TestPlaintextRoundTrip(t *testing.T) {
	t.Parallel()

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := New(clientConn)
	server := New(serverConn)

	done := make(chan error, 1)
	go func() {
		done <- client.SendRecord(22, []byte("client_hello body"))
	}()

	contentType, payload, err := server.ReceiveRecord()
	if err != nil {
		t.Fatalf("ReceiveRecord: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SendRecord: %v", err)
	}
	if contentType != 22 {
		t.Errorf("contentType = %d, want 22", contentType)
	}
	if !bytes.Equal(payload, []byte("client_hello body")) {
		t.Errorf("payload = %q, want %q", payload, "client_hello body")
	}
}

// TestEncryptedRoundTrip installs matching AEAD cipher state on both
// ends and verifies sealed records decrypt to the original
// (content_type, payload), per spec.md §4.4's atomic epoch swap.
func TestEncryptedRoundTrip(t *testing.T) {
	t.Parallel()

	s, ok := suite.ByID(suite.TLS_AES_128_GCM_SHA256)
	if !ok {
		t.Fatal("suite not registered")
	}

	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := New(clientConn)
	server := New(serverConn)

	clientToServer := recordlayer.CipherState{SuiteID: uint16(s.ID), Key: bytes.Repeat([]byte{0x11}, s.KeyLen), IV: bytes.Repeat([]byte{0x22}, 12)}
	serverToClient := recordlayer.CipherState{SuiteID: uint16(s.ID), Key: bytes.Repeat([]byte{0x33}, s.KeyLen), IV: bytes.Repeat([]byte{0x44}, 12)}

	if err := client.InstallWriteCipherState(clientToServer); err != nil {
		t.Fatalf("client InstallWriteCipherState: %v", err)
	}
	if err := client.InstallReadCipherState(serverToClient); err != nil {
		t.Fatalf("client InstallReadCipherState: %v", err)
	}
	if err := server.InstallReadCipherState(clientToServer); err != nil {
		t.Fatalf("server InstallReadCipherState: %v", err)
	}
	if err := server.InstallWriteCipherState(serverToClient); err != nil {
		t.Fatalf("server InstallWriteCipherState: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- client.SendRecord(22, []byte("encrypted finished"))
	}()

	contentType, payload, err := server.ReceiveRecord()
	if err != nil {
		t.Fatalf("ReceiveRecord: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("SendRecord: %v", err)
	}
	if contentType != 22 {
		t.Errorf("contentType = %d, want 22 (the inner type, not application_data)", contentType)
	}
	if !bytes.Equal(payload, []byte("encrypted finished")) {
		t.Errorf("payload = %q, want %q", payload, "encrypted finished")
	}
}

// TestEncryptedRoundTripRejectsTamperedRecord verifies a record that
// does not authenticate under the receiver's key fails AEAD
// verification rather than decrypting to garbage (spec.md §7:
// CryptoError on AEAD failure). The bad record is produced by sealing
// under a mismatched write key, not by flipping bits on the wire.
func TestEncryptedRoundTripRejectsTamperedRecord(t *testing.T) {
	t.Parallel()

	s, _ := suite.ByID(suite.TLS_AES_128_GCM_SHA256)
	clientConn, serverConn := net.Pipe()
	defer clientConn.Close()
	defer serverConn.Close()

	client := New(clientConn)
	server := New(serverConn)

	state := recordlayer.CipherState{SuiteID: uint16(s.ID), Key: bytes.Repeat([]byte{0x55}, s.KeyLen), IV: bytes.Repeat([]byte{0x66}, 12)}
	if err := client.InstallWriteCipherState(state); err != nil {
		t.Fatal(err)
	}
	if err := server.InstallReadCipherState(state); err != nil {
		t.Fatal(err)
	}

	go func() {
		_ = client.SendRecord(23, []byte("application data"))
	}()

	// Flip a bit on the wire by reading raw bytes on a side channel is
	// not directly expressible over net.Pipe without a proxy, so
	// instead verify the negative case structurally: installing
	// mismatched read/write keys on the two ends must fail to decrypt.
	mismatched := recordlayer.CipherState{SuiteID: uint16(s.ID), Key: bytes.Repeat([]byte{0x99}, s.KeyLen), IV: bytes.Repeat([]byte{0x66}, 12)}
	serverConn2, clientConn2 := net.Pipe()
	defer serverConn2.Close()
	defer clientConn2.Close()
	clientSide := New(clientConn2)
	serverSide := New(serverConn2)
	if err := clientSide.InstallWriteCipherState(mismatched); err != nil {
		t.Fatal(err)
	}
	if err := serverSide.InstallReadCipherState(state); err != nil {
		t.Fatal(err)
	}
	go func() {
		_ = clientSide.SendRecord(23, []byte("application data"))
	}()
	if _, _, err := serverSide.ReceiveRecord(); err == nil {
		t.Error("expected AEAD verification failure for mismatched cipher state")
	}
}
