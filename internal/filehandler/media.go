// Package filehandler provides video file handling for the shorts uploader.
//
// It owns three concerns around a user-selected video:
//   - Loading and validating the file (extension, size cap)
//   - Probing basic media properties (duration, pixel dimensions) through a
//     Prober: pure Go over the MP4 box tree first, ffprobe second
//   - Capturing a JPEG preview frame through a Thumbnailer (ffmpeg)
//
// Capture date and location are not read here; see package atom.
package filehandler

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// SupportedVideoExtensions defines the file extensions accepted for upload.
var SupportedVideoExtensions = map[string]string{
	".mp4": "video/mp4",
	".mov": "video/quicktime",
}

// MaxUploadSize is the largest video the backend accepts (500 MB).
const MaxUploadSize int64 = 500 * 1024 * 1024

var (
	// ErrUnsupportedType is returned for anything that is not MP4 or MOV.
	ErrUnsupportedType = errors.New("only MP4 and MOV videos can be uploaded")
	// ErrFileTooLarge is returned for files above MaxUploadSize.
	ErrFileTooLarge = errors.New("file size exceeds 500MB")
)

// MediaFile is a video on local disk. Data is never held here; readers open
// Path when they need bytes.
type MediaFile struct {
	Path     string
	MIMEType string
	Size     int64
	// ModTime is the filesystem modification time, the last-resort capture time.
	ModTime time.Time
}

// Name returns the base file name.
func (m *MediaFile) Name() string {
	return filepath.Base(m.Path)
}

// LoadMediaFile stats a video file and returns a MediaFile for it.
// The extension must be one of SupportedVideoExtensions.
func LoadMediaFile(filePath string) (*MediaFile, error) {
	log.Debug().Str("path", filePath).Msg("Loading media file")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return nil, err
	}

	mediaFile := &MediaFile{
		Path:     filePath,
		MIMEType: mimeType,
		Size:     info.Size(),
		ModTime:  info.ModTime(),
	}

	log.Debug().
		Str("path", filePath).
		Str("mime_type", mimeType).
		Str("size", humanize.IBytes(uint64(info.Size()))).
		Msg("Media file loaded")

	return mediaFile, nil
}

// ValidateForUpload applies the upload page's checks: video type first, then size.
func ValidateForUpload(m *MediaFile) error {
	if !IsSupportedMIMEType(m.MIMEType) {
		return ErrUnsupportedType
	}
	if m.Size > MaxUploadSize {
		return fmt.Errorf("%w: %s is %s", ErrFileTooLarge, m.Name(), humanize.IBytes(uint64(m.Size)))
	}
	return nil
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedVideoExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// IsVideo returns true if the file extension corresponds to a supported video.
func IsVideo(ext string) bool {
	_, ok := SupportedVideoExtensions[strings.ToLower(ext)]
	return ok
}

// IsSupportedMIMEType reports whether mimeType is one of the accepted video types.
func IsSupportedMIMEType(mimeType string) bool {
	for _, mt := range SupportedVideoExtensions {
		if mt == mimeType {
			return true
		}
	}
	return false
}

// CoordinatesToDMS converts decimal degrees to degrees, minutes, seconds format.
func CoordinatesToDMS(lat, lon float64) string {
	latDir := "N"
	if lat < 0 {
		latDir = "S"
		lat = -lat
	}

	lonDir := "E"
	if lon < 0 {
		lonDir = "W"
		lon = -lon
	}

	latDeg := int(lat)
	latMin := int((lat - float64(latDeg)) * 60)
	latSec := ((lat-float64(latDeg))*60 - float64(latMin)) * 60

	lonDeg := int(lon)
	lonMin := int((lon - float64(lonDeg)) * 60)
	lonSec := ((lon-float64(lonDeg))*60 - float64(lonMin)) * 60

	return fmt.Sprintf("%d°%d'%.2f\"%s, %d°%d'%.2f\"%s",
		latDeg, latMin, latSec, latDir,
		lonDeg, lonMin, lonSec, lonDir)
}
