package wire

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func mustDecodeEntry(t *testing.T, b []byte) ([]byte, []byte) {
	t.Helper()
	m, p, err := DecodeEntry(b)
	if err != nil {
		t.Fatalf("DecodeEntry error: %v", err)
	}
	return m, p
}

func TestEntryEmptyAndNonEmpty(t *testing.T) {
	cases := []struct {
		meta    []byte
		payload []byte
	}{
		{nil, nil},
		{[]byte{0x80}, []byte("\x89PNG\r\n\x1a\n")},
		{[]byte("meta"), bytes.Repeat([]byte{0xAB}, 4096)},
	}
	for _, tc := range cases {
		enc := EncodeEntry(tc.meta, tc.payload)
		m, p := mustDecodeEntry(t, enc)
		if !bytes.Equal(m, tc.meta) {
			t.Fatalf("meta mismatch: got %x want %x", m, tc.meta)
		}
		if !bytes.Equal(p, tc.payload) {
			t.Fatalf("payload mismatch: got %d bytes want %d", len(p), len(tc.payload))
		}
	}
}

func TestEntryRejectsTrailingBytes(t *testing.T) {
	enc := EncodeEntry([]byte("m"), []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, _, err := DecodeEntry(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestEntryRejectsTruncation(t *testing.T) {
	enc := EncodeEntry([]byte("meta"), []byte("payload-bytes"))
	for cut := 1; cut < len(enc); cut++ {
		if _, _, err := DecodeEntry(enc[:len(enc)-cut]); err == nil {
			t.Fatalf("expected error when truncated by %d bytes", cut)
		}
	}
}

func TestEntryCorruptHeaders(t *testing.T) {
	enc := EncodeEntry([]byte("m"), []byte("abc"))

	badMagic := append([]byte(nil), enc...)
	badMagic[0] = 'X'
	if _, _, err := DecodeEntry(badMagic); err == nil {
		t.Fatalf("expected error on bad magic")
	}

	badVer := append([]byte(nil), enc...)
	badVer[4] = version + 1
	if _, _, err := DecodeEntry(badVer); err == nil {
		t.Fatalf("expected error on bad version")
	}

	badKind := append([]byte(nil), enc...)
	badKind[5] = kindEntry + 1
	if _, _, err := DecodeEntry(badKind); err == nil {
		t.Fatalf("expected error on bad kind")
	}

	// meta length pointing past the end
	badLen := append([]byte(nil), enc...)
	binary.BigEndian.PutUint32(badLen[6:10], 0xFFFFFFF0)
	if _, _, err := DecodeEntry(badLen); err == nil {
		t.Fatalf("expected error on oversized meta length")
	}
}

func TestEntryChecksumCatchesBitFlip(t *testing.T) {
	enc := EncodeEntry([]byte("m"), []byte("abcdef"))
	enc[len(enc)-1] ^= 0x01
	if _, _, err := DecodeEntry(enc); err != ErrCorrupt {
		t.Fatalf("expected ErrCorrupt on flipped payload bit, got %v", err)
	}
}
