package transcript

import (
	"bytes"
	"testing"
)

func TestAppendOrderAndLen(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Append([]byte{0x01, 0x02})
	tr.Append([]byte{0x03})

	if tr.Len() != 3 {
		t.Errorf("Len() = %d, want 3", tr.Len())
	}
	if !bytes.Equal(tr.Bytes(), []byte{0x01, 0x02, 0x03}) {
		t.Errorf("Bytes() = %x, want 010203", tr.Bytes())
	}
}

func TestBytesReturnsDefensiveCopy(t *testing.T) {
	t.Parallel()

	tr := New()
	tr.Append([]byte{0xAA, 0xBB})

	got := tr.Bytes()
	got[0] = 0xFF

	if tr.Bytes()[0] != 0xAA {
		t.Error("mutating the slice returned by Bytes() must not affect the accumulator")
	}
}
