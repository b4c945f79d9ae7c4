package atom

import (
	"regexp"
	"strconv"
)

// GPSScanLimit bounds the prefix searched for a location tag. Writers place the
// location atom in the header area, ahead of the media data.
const GPSScanLimit = 500000

// Coordinates is a latitude/longitude pair in signed decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// iso6709Pair matches two concatenated signed decimals, e.g. "+35.123456+129.012345".
// Altitude and the trailing "/" are ignored; separators are not accepted.
var iso6709Pair = regexp.MustCompile(`([+-]\d{1,3}\.\d{2,6})([+-]\d{1,3}\.\d{2,6})`)

// GPS returns the first ISO 6709 coordinate pair within the first GPSScanLimit bytes.
func GPS(buf []byte) Result[Coordinates] {
	limit := min(len(buf), GPSScanLimit)

	m := iso6709Pair.FindSubmatch(buf[:limit])
	if m == nil {
		return notPresent[Coordinates]("no ISO 6709 location in header area")
	}

	lat, err := strconv.ParseFloat(string(m[1]), 64)
	if err != nil {
		return malformed[Coordinates]("latitude %q: %v", m[1], err)
	}
	lon, err := strconv.ParseFloat(string(m[2]), 64)
	if err != nil {
		return malformed[Coordinates]("longitude %q: %v", m[2], err)
	}
	return found(Coordinates{Latitude: lat, Longitude: lon})
}

// GPS is the Scanner form of GPS; location is independent of the scan mode.
func (s *Scanner) GPS() Result[Coordinates] {
	return GPS(s.buf)
}
