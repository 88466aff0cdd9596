package keyschedule

import (
	"encoding/binary"
	"hash"

	"tls13/internal/tlserr"

	stdhkdf "tls13/internal/hkdfcompat"
)

// expandLabel implements HKDF-Expand-Label (RFC 8446 §7.1), ported
// from the teacher's internal/tls13.ExpandLabel and generalized to a
// plain hash.Hash constructor since this core has no PSK/early-data
// call sites that need the generic-over-H signature the teacher uses.
func expandLabel(newHash func() hash.Hash, secret []byte, label string, context []byte, length int) ([]byte, error) {
	const prefix = "tls13 "
	if len(prefix)+len(label) > 255 || len(context) > 255 {
		return nil, tlserr.Crypto("expand_label", "label or context too long", nil)
	}
	hkdfLabel := make([]byte, 0, 2+1+len(prefix)+len(label)+1+len(context))
	hkdfLabel = binary.BigEndian.AppendUint16(hkdfLabel, uint16(length))
	hkdfLabel = append(hkdfLabel, byte(len(prefix)+len(label)))
	hkdfLabel = append(hkdfLabel, prefix...)
	hkdfLabel = append(hkdfLabel, label...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	out, err := stdhkdf.Expand(newHash, secret, string(hkdfLabel), length)
	if err != nil {
		return nil, tlserr.Crypto("expand_label", "hkdf expand failed", err)
	}
	return out, nil
}

// deriveSecret implements Derive-Secret (RFC 8446 §7.1):
// HKDF-Expand-Label(secret, label, Hash(messages), Hash.length).
func deriveSecret(newHash func() hash.Hash, secret []byte, label string, transcript []byte) ([]byte, error) {
	h := newHash()
	h.Write(transcript)
	return expandLabel(newHash, secret, label, h.Sum(nil), h.Size())
}

func extract(newHash func() hash.Hash, ikm, salt []byte) ([]byte, error) {
	out, err := stdhkdf.Extract(newHash, ikm, salt)
	if err != nil {
		return nil, tlserr.Crypto("extract", "hkdf extract failed", err)
	}
	return out, nil
}
