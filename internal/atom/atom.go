// Package atom recovers capture metadata directly from the raw bytes of an
// ISO base media file (MP4/MOV) without decoding the media.
//
// Three lookups are provided, each returning a tagged Result:
//   - CreationDateFromMdta: the vendor "com.apple.quicktime.creationdate" value
//     stored in the keys/ilst atom pair
//   - CreationTimeFromMvhd: the movie header creation time (1904 epoch)
//   - GPS: an ISO 6709 coordinate pair embedded in the first 500,000 bytes
//
// Atoms are located either by a linear scan for their four-character code
// (Linear, the default) or by walking the box tree (Structured). Every read is
// bounds-checked against the buffer and the enclosing atom; a size that does not
// fit is reported as Malformed rather than read.
package atom

import (
	"encoding/binary"
	"fmt"
)

// Status describes how a lookup ended.
type Status int

const (
	// NotPresent means the container has no such metadata.
	NotPresent Status = iota
	// Found means Result.Value holds a usable value.
	Found
	// Malformed means the metadata exists but could not be read or failed validation.
	Malformed
)

func (s Status) String() string {
	switch s {
	case NotPresent:
		return "not_present"
	case Found:
		return "found"
	case Malformed:
		return "malformed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a single metadata lookup.
// Value is only meaningful when Status is Found; Reason explains the other cases.
type Result[T any] struct {
	Value  T
	Status Status
	Reason string
}

// Ok reports whether the lookup produced a value.
func (r Result[T]) Ok() bool {
	return r.Status == Found
}

func found[T any](v T) Result[T] {
	return Result[T]{Value: v, Status: Found}
}

func notPresent[T any](reason string) Result[T] {
	return Result[T]{Status: NotPresent, Reason: reason}
}

func malformed[T any](format string, args ...any) Result[T] {
	return Result[T]{Status: Malformed, Reason: fmt.Sprintf(format, args...)}
}

// Box header layout shared by every atom: 4-byte size, 4-byte type. A size
// of 1 means a 64-bit size follows the type.
const (
	boxHeaderSize   = 8
	largeHeaderSize = 16
)

// header is a located atom: where its size field starts and how long its
// size/type header is.
type header struct {
	off int
	len int
}

// headerAt reads the header length of the atom whose size field is at off.
func headerAt(buf []byte, off int) header {
	if size, ok := u32(buf, off); ok && size == 1 {
		if _, ok := u64(buf, off+boxHeaderSize); ok {
			return header{off: off, len: largeHeaderSize}
		}
	}
	return header{off: off, len: boxHeaderSize}
}

// size returns the declared total size of the atom.
func (h header) size(buf []byte) (uint64, bool) {
	if h.len == largeHeaderSize {
		return u64(buf, h.off+boxHeaderSize)
	}
	v, ok := u32(buf, h.off)
	return uint64(v), ok
}

// payload is the offset of the first byte after the header.
func (h header) payload() int {
	return h.off + h.len
}

// u32 reads a big-endian uint32 at off, or reports false when it would leave buf.
func u32(buf []byte, off int) (uint32, bool) {
	if off < 0 || off > len(buf)-4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(buf[off:]), true
}

// u64 reads a big-endian uint64 at off, or reports false when it would leave buf.
func u64(buf []byte, off int) (uint64, bool) {
	if off < 0 || off > len(buf)-8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(buf[off:]), true
}

// fits reports whether size bytes starting at start end at or before end.
func fits[S uint32 | uint64](start int, size S, end int) bool {
	return start >= 0 && uint64(start)+uint64(size) <= uint64(end)
}
