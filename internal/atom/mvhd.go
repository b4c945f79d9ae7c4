package atom

import "time"

// MP4EpochOffset is the number of seconds between 1904-01-01 (the QuickTime
// epoch) and 1970-01-01.
const MP4EpochOffset = 2082844800

// Years outside this window are treated as a bogus header rather than a capture time.
const (
	minPlausibleYear = 2000
	maxPlausibleYear = 2100
)

// CreationTimeFromMvhd reads the movie header creation time with a linear scan.
func CreationTimeFromMvhd(buf []byte) Result[time.Time] {
	return NewScanner(buf, Linear).CreationTimeFromMvhd()
}

// CreationTimeFromMvhd decodes the creation time of the first mvhd atom.
// Version 1 headers carry a 64-bit count, everything else a 32-bit count.
func (s *Scanner) CreationTimeFromMvhd() Result[time.Time] {
	h, res := s.locate("mvhd")
	if !res.Ok() {
		return Result[time.Time]{Status: res.Status, Reason: res.Reason}
	}

	off := h.off
	versionOff := h.payload()
	if versionOff >= len(s.buf) {
		return malformed[time.Time]("mvhd at offset %d truncated before version", off)
	}
	version := s.buf[versionOff]

	var seconds uint64
	if version == 1 {
		v, ok := u64(s.buf, versionOff+4)
		if !ok {
			return malformed[time.Time]("mvhd v1 at offset %d truncated before creation time", off)
		}
		seconds = v
	} else {
		v, ok := u32(s.buf, versionOff+4)
		if !ok {
			return malformed[time.Time]("mvhd v0 at offset %d truncated before creation time", off)
		}
		seconds = uint64(v)
	}

	if seconds == 0 {
		return notPresent[time.Time]("mvhd creation time is unset")
	}
	if seconds <= MP4EpochOffset {
		return malformed[time.Time]("mvhd creation time %d precedes the unix epoch", seconds)
	}

	unix := seconds - MP4EpochOffset
	if unix > uint64(maxPlausibleYear+1-1970)*366*24*3600 {
		return malformed[time.Time]("mvhd creation time %d is far outside %d-%d", seconds, minPlausibleYear, maxPlausibleYear)
	}
	t := time.UnixMilli(int64(unix) * 1000).UTC()
	if t.Year() < minPlausibleYear || t.Year() > maxPlausibleYear {
		return malformed[time.Time]("mvhd creation year %d outside %d-%d", t.Year(), minPlausibleYear, maxPlausibleYear)
	}
	return found(t)
}
