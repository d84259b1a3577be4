package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"hash/crc32"
)

const (
	version   byte = 1
	kindEntry byte = 1

	headerLen = 4 + 1 + 1 + 4 + 4 + 4
)

var (
	ErrCorrupt = errors.New("imgload: corrupt store entry")
	magic4     = [...]byte{'I', 'M', 'G', 'L'}
	castagnoli = crc32.MakeTable(crc32.Castagnoli)
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | kind(1) | mlen(u32 be) | plen(u32 be) | crc32c(u32 be) | meta(mlen) | payload(plen)
//
// The checksum covers meta and payload so a truncated or partially written
// entry never decodes.
func EncodeEntry(meta, payload []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(headerLen + len(meta) + len(payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(kindEntry)

	var u4 [4]byte
	binary.BigEndian.PutUint32(u4[:], uint32(len(meta)))
	buf.Write(u4[:])
	binary.BigEndian.PutUint32(u4[:], uint32(len(payload)))
	buf.Write(u4[:])

	crc := crc32.Update(0, castagnoli, meta)
	crc = crc32.Update(crc, castagnoli, payload)
	binary.BigEndian.PutUint32(u4[:], crc)
	buf.Write(u4[:])

	buf.Write(meta)
	buf.Write(payload)
	return buf.Bytes()
}

func DecodeEntry(b []byte) (meta, payload []byte, err error) {
	if len(b) < headerLen || !hasMagic(b) || b[4] != version || b[5] != kindEntry {
		return nil, nil, ErrCorrupt
	}
	off := 6

	mlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	plen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	sum := binary.BigEndian.Uint32(b[off : off+4])
	off += 4

	// overflow-safe bound checks; trailing bytes are rejected too
	rest := len(b) - off
	if mlen < 0 || plen < 0 || mlen > rest || plen != rest-mlen {
		return nil, nil, ErrCorrupt
	}

	meta = b[off : off+mlen]
	payload = b[off+mlen:]

	crc := crc32.Update(0, castagnoli, meta)
	crc = crc32.Update(crc, castagnoli, payload)
	if crc != sum {
		return nil, nil, ErrCorrupt
	}
	return meta, payload, nil
}
