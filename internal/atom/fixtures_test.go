package atom

import (
	"bytes"
	"encoding/binary"
)

// box builds an atom: 4-byte size, 4-byte type, payload.
func box(typ string, parts ...[]byte) []byte {
	payload := bytes.Join(parts, nil)
	out := make([]byte, 8, 8+len(payload))
	binary.BigEndian.PutUint32(out, uint32(8+len(payload)))
	copy(out[4:], typ)
	return append(out, payload...)
}

func be32(v uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return b
}

// keysAtom builds a QuickTime keys atom with "mdta" namespaced entries.
func keysAtom(names ...string) []byte {
	parts := [][]byte{be32(0), be32(uint32(len(names)))}
	for _, n := range names {
		parts = append(parts, box("mdta", []byte(n)))
	}
	return box("keys", parts...)
}

// ilstItem builds an ilst item keyed by a 1-based keys index holding one UTF-8 data atom.
func ilstItem(index uint32, value string) []byte {
	data := box("data", be32(1), be32(0), []byte(value))
	return box(string(be32(index)), data)
}

func ftypAtom() []byte {
	return box("ftyp", []byte("qt  "), be32(0), []byte("qt  "))
}

// mvhdV0 builds a complete 100-byte version 0 movie header payload.
func mvhdV0(creation uint32) []byte {
	p := make([]byte, 100)
	binary.BigEndian.PutUint32(p[4:], creation)
	binary.BigEndian.PutUint32(p[8:], creation)
	binary.BigEndian.PutUint32(p[12:], 600)
	binary.BigEndian.PutUint32(p[16:], 6000)
	binary.BigEndian.PutUint32(p[20:], 0x00010000)
	binary.BigEndian.PutUint16(p[24:], 0x0100)
	binary.BigEndian.PutUint32(p[36:], 0x00010000)
	binary.BigEndian.PutUint32(p[52:], 0x00010000)
	binary.BigEndian.PutUint32(p[68:], 0x40000000)
	binary.BigEndian.PutUint32(p[96:], 2)
	return box("mvhd", p)
}

// mvhdV1 builds a complete 112-byte version 1 movie header payload.
func mvhdV1(creation uint64) []byte {
	p := make([]byte, 112)
	p[0] = 1
	binary.BigEndian.PutUint64(p[4:], creation)
	binary.BigEndian.PutUint64(p[12:], creation)
	binary.BigEndian.PutUint32(p[20:], 600)
	binary.BigEndian.PutUint64(p[24:], 6000)
	binary.BigEndian.PutUint32(p[32:], 0x00010000)
	binary.BigEndian.PutUint16(p[36:], 0x0100)
	binary.BigEndian.PutUint32(p[48:], 0x00010000)
	binary.BigEndian.PutUint32(p[64:], 0x00010000)
	binary.BigEndian.PutUint32(p[80:], 0x40000000)
	binary.BigEndian.PutUint32(p[108:], 2)
	return box("mvhd", p)
}

// quickTimeFile assembles ftyp + moov(mvhd, meta(keys, ilst)) the way iPhone
// recordings lay them out.
func quickTimeFile(mvhd []byte, keys []string, items ...[]byte) []byte {
	meta := box("meta", keysAtom(keys...), box("ilst", items...))
	return append(ftypAtom(), box("moov", mvhd, meta)...)
}

// unixToMP4 converts unix seconds to the 1904-based count stored in mvhd.
func unixToMP4(unix int64) uint64 {
	return uint64(unix + MP4EpochOffset)
}

// largeBox rewrites a compact atom with a 64-bit largesize header: size field 1,
// type, 8-byte total size, payload.
func largeBox(compact []byte) []byte {
	payload := compact[8:]
	out := make([]byte, 16, 16+len(payload))
	binary.BigEndian.PutUint32(out, 1)
	copy(out[4:], compact[4:8])
	binary.BigEndian.PutUint64(out[8:], uint64(16+len(payload)))
	return append(out, payload...)
}
