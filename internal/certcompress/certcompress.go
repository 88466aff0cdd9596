// Package certcompress advertises the certificate_compression_algorithm
// extension (RFC 8879) in ClientHello. This core never decompresses a
// server-compressed Certificate message, since X.509 parsing is out
// of core scope (spec.md §1); the registry exists only so the client
// can validate that the algorithm IDs it offers are ones an
// eventual decompression stage could actually serve, per
// SPEC_FULL.md §11's wiring of the pack's compression libraries.
package certcompress

import (
	"bytes"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"

	"tls13/internal/tlserr"
)

// Algorithm IDs per RFC 8879 §7.3.
const (
	AlgorithmZlib   uint16 = 1
	AlgorithmBrotli uint16 = 2
	AlgorithmZstd   uint16 = 3
)

// DefaultAlgorithms is the advertisement order SPEC_FULL.md §12
// recommends: brotli and zstd, the two compressors the retrieved
// dependency stack actually provides decoders for.
func DefaultAlgorithms() []uint16 {
	return []uint16{AlgorithmBrotli, AlgorithmZstd}
}

// Supported reports whether id names an algorithm this build can
// decode, by probing that the corresponding decoder constructs
// successfully.
func Supported(id uint16) bool {
	switch id {
	case AlgorithmBrotli:
		r := brotli.NewReader(bytes.NewReader(nil))
		return r != nil
	case AlgorithmZstd:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return false
		}
		dec.Close()
		return true
	default:
		return false
	}
}

// Validate rejects an advertisement list containing an ID this build
// cannot decode, surfacing a ConfigError before any I/O happens
// (spec.md §7: ConfigError is "fatal before I/O").
func Validate(ids []uint16) error {
	for _, id := range ids {
		if !Supported(id) {
			return tlserr.Config("certcompress_validate", "unsupported certificate compression algorithm id", nil)
		}
	}
	return nil
}
