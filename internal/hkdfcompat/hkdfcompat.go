// Package hkdfcompat provides the crypto/hkdf (Go 1.24+) Extract/Expand
// signatures backed by golang.org/x/crypto/hkdf, for toolchains where the
// crypto/hkdf standard library package is not yet available.
package hkdfcompat

import (
	"hash"
	"io"

	xhkdf "golang.org/x/crypto/hkdf"
)

func Extract(h func() hash.Hash, secret, salt []byte) ([]byte, error) {
	return xhkdf.Extract(h, secret, salt), nil
}

func Expand(h func() hash.Hash, pseudorandomKey []byte, info string, keyLength int) ([]byte, error) {
	out := make([]byte, keyLength)
	r := xhkdf.Expand(h, pseudorandomKey, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		return nil, err
	}
	return out, nil
}
