package extractor

import "time"

// CreatedAtSource names where VideoMetadata.CreatedAt came from.
type CreatedAtSource string

const (
	SourceMdta      CreatedAtSource = "mdta"
	SourceMvhd      CreatedAtSource = "mvhd"
	SourceFileMtime CreatedAtSource = "file_mtime"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// VideoMetadata is what the upload flow needs to know about a selected clip.
type VideoMetadata struct {
	// Duration in seconds.
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`

	// Latitude and Longitude are set together or not at all.
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`

	CreatedAt       string          `json:"createdAt,omitempty"`
	CreatedAtSource CreatedAtSource `json:"createdAtSource,omitempty"`
}

// HasGPS reports whether a location was recovered.
func (m *VideoMetadata) HasGPS() bool {
	return m.Latitude != nil && m.Longitude != nil
}

// GPS returns the location, or zeros when HasGPS is false.
func (m *VideoMetadata) GPS() (lat, lon float64) {
	if !m.HasGPS() {
		return 0, 0
	}
	return *m.Latitude, *m.Longitude
}

// CreatedTime parses CreatedAt back into a time. ok is false when unset.
func (m *VideoMetadata) CreatedTime() (t time.Time, ok bool) {
	if m.CreatedAt == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(TimestampLayout, m.CreatedAt)
	return t, err == nil
}

// FormatTimestamp renders t the way CreatedAt stores it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
