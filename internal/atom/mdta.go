package atom

import (
	"bytes"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	// keysPreamble covers the version/flags and entry count after the header.
	keysPreamble = 8
	// dataHeaderSize covers size, type, type indicator and locale of a data atom.
	dataHeaderSize = 16

	dataAtomType = 0x64617461 // "data"
)

var creationDateKey = []byte("creationdate")

// CreationDateFromMdta looks up the vendor creation date with a linear scan.
func CreationDateFromMdta(buf []byte) Result[time.Time] {
	return NewScanner(buf, Linear).CreationDateFromMdta()
}

// CreationDateFromMdta resolves the "creationdate" key in the keys atom to its
// 1-based index and returns the matching ilst item's data value as a time.
func (s *Scanner) CreationDateFromMdta() Result[time.Time] {
	keys, res := s.locate("keys")
	if !res.Ok() {
		return Result[time.Time]{Status: res.Status, Reason: res.Reason}
	}
	ilst, res := s.locate("ilst")
	if !res.Ok() {
		return Result[time.Time]{Status: res.Status, Reason: res.Reason}
	}

	index := creationDateIndex(s.buf, keys)
	if !index.Ok() {
		return Result[time.Time]{Status: index.Status, Reason: index.Reason}
	}
	return creationDateItem(s.buf, ilst, index.Value)
}

// creationDateIndex walks the keys atom entries (size, namespace, name).
func creationDateIndex(buf []byte, keys header) Result[uint32] {
	keysSize, ok := keys.size(buf)
	if !ok {
		return malformed[uint32]("keys atom header truncated at offset %d", keys.off)
	}
	if keysSize < uint64(keys.len+keysPreamble) || !fits(keys.off, keysSize, len(buf)) {
		return malformed[uint32]("keys atom at offset %d declares %d bytes, buffer holds %d", keys.off, keysSize, len(buf))
	}
	keysEnd := keys.off + int(keysSize)

	count, _ := u32(buf, keys.payload()+4)
	off := keys.payload() + keysPreamble
	for i := uint32(0); i < count && off < keysEnd; i++ {
		entrySize, ok := u32(buf, off)
		if !ok || entrySize < boxHeaderSize || !fits(off, entrySize, keysEnd) {
			return malformed[uint32]("keys entry %d at offset %d declares %d bytes past keys end %d", i+1, off, entrySize, keysEnd)
		}
		name := buf[off+boxHeaderSize : off+int(entrySize)]
		if bytes.Contains(name, creationDateKey) {
			return found(i + 1)
		}
		off += int(entrySize)
	}
	return notPresent[uint32]("no creationdate key in keys atom")
}

// creationDateItem walks the ilst items (size, key index, sub-atoms) looking for
// the item with the given index and parses its first readable data value.
func creationDateItem(buf []byte, ilst header, index uint32) Result[time.Time] {
	ilstSize, ok := ilst.size(buf)
	if !ok {
		return malformed[time.Time]("ilst atom header truncated at offset %d", ilst.off)
	}
	if ilstSize < uint64(ilst.len) || !fits(ilst.off, ilstSize, len(buf)) {
		return malformed[time.Time]("ilst atom at offset %d declares %d bytes, buffer holds %d", ilst.off, ilstSize, len(buf))
	}
	ilstEnd := ilst.off + int(ilstSize)

	var unparseable string
	off := ilst.payload()
	for off+boxHeaderSize < ilstEnd {
		itemSize, _ := u32(buf, off)
		if itemSize < boxHeaderSize || !fits(off, itemSize, ilstEnd) {
			return malformed[time.Time]("ilst item at offset %d declares %d bytes past ilst end %d", off, itemSize, ilstEnd)
		}
		itemEnd := off + int(itemSize)
		itemIndex, _ := u32(buf, off+4)

		if itemIndex == index {
			dataOff := off + boxHeaderSize
			for dataOff+boxHeaderSize < itemEnd {
				dataSize, _ := u32(buf, dataOff)
				if dataSize < boxHeaderSize || !fits(dataOff, dataSize, itemEnd) {
					return malformed[time.Time]("sub-atom at offset %d declares %d bytes past item end %d", dataOff, dataSize, itemEnd)
				}
				dataType, _ := u32(buf, dataOff+4)
				if dataType == dataAtomType {
					if dataSize < dataHeaderSize {
						return malformed[time.Time]("data atom at offset %d is %d bytes, shorter than its header", dataOff, dataSize)
					}
					value := printableASCII(buf[dataOff+dataHeaderSize : dataOff+int(dataSize)])
					if t, err := parseDate(value); err == nil {
						return found(t)
					}
					unparseable = value
				}
				dataOff += int(dataSize)
			}
		}
		off = itemEnd
	}

	if unparseable != "" {
		return malformed[time.Time]("creation date value %q is not a date", unparseable)
	}
	return notPresent[time.Time]("no ilst item for creationdate key")
}

// printableASCII keeps bytes in the range 32..126 and trims surrounding space.
func printableASCII(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b))
	for _, c := range b {
		if c >= 32 && c < 127 {
			sb.WriteByte(c)
		}
	}
	return strings.TrimSpace(sb.String())
}

// appleDateLayouts are the forms QuickTime writers use for creationdate.
var appleDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05.000Z0700",
}

// parseDate accepts the QuickTime layouts first and anything dateparse
// understands after that. Strings without a zone are read as UTC.
func parseDate(s string) (time.Time, error) {
	for _, layout := range appleDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
