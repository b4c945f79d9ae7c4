package filehandler

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
)

// ThumbnailQuality is the JPEG quality used for preview frames.
const ThumbnailQuality = 80

// Thumbnail is a single encoded preview frame.
type Thumbnail struct {
	Data     []byte
	MIMEType string
	Width    int
	Height   int
}

// DataURI returns the thumbnail as an inline data URI for previews and JSON output.
func (t *Thumbnail) DataURI() string {
	return "data:" + t.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(t.Data)
}

// Thumbnailer captures a preview frame from a video.
type Thumbnailer interface {
	Capture(ctx context.Context, path string, durationSeconds float64) (*Thumbnail, error)
}

// FFmpegThumbnailer extracts one frame with ffmpeg and encodes it as JPEG.
type FFmpegThumbnailer struct {
	// MaxDimension caps the longer side; 0 keeps the native frame size.
	MaxDimension int
	// Path overrides the ffmpeg binary; empty means look it up in PATH.
	Path string
}

// SeekPosition is where the preview frame is taken: one second in, or the
// middle of clips shorter than two seconds.
func SeekPosition(durationSeconds float64) float64 {
	if durationSeconds <= 0 {
		return 0
	}
	return min(1, durationSeconds/2)
}

// Capture seeks to SeekPosition(duration), grabs a frame at native size and
// returns it JPEG-encoded. The intermediate PNG is removed on every path.
func (t FFmpegThumbnailer) Capture(ctx context.Context, videoPath string, durationSeconds float64) (*Thumbnail, error) {
	ffmpegPath := t.Path
	if ffmpegPath == "" {
		var err error
		ffmpegPath, err = exec.LookPath("ffmpeg")
		if err != nil {
			return nil, fmt.Errorf("ffmpeg not found: video thumbnail generation requires ffmpeg")
		}
	}

	seek := SeekPosition(durationSeconds)
	log.Debug().
		Str("path", videoPath).
		Float64("seek", seek).
		Int("max_dimension", t.MaxDimension).
		Msg("Capturing video thumbnail")

	tmpFile, err := os.CreateTemp("", "vthumb-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	defer os.Remove(tmpPath)

	// -ss before -i seeks on keyframes, which is fast and exact enough for a preview
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-ss", strconv.FormatFloat(seek, 'f', 3, 64),
		"-i", videoPath,
		"-frames:v", "1",
		"-f", "image2",
		"-y", tmpPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg frame extraction failed: %w: %s", err, lastLine(output))
	}

	frameFile, err := os.Open(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read video thumbnail: %w", err)
	}
	defer frameFile.Close()

	img, err := png.Decode(frameFile)
	if err != nil {
		return nil, fmt.Errorf("failed to decode extracted frame: %w", err)
	}

	thumb, err := EncodeJPEG(img, t.MaxDimension)
	if err != nil {
		return nil, err
	}

	log.Debug().
		Str("file", filepath.Base(videoPath)).
		Int("width", thumb.Width).
		Int("height", thumb.Height).
		Int("output_size", len(thumb.Data)).
		Msg("Video thumbnail captured")

	return thumb, nil
}

// EncodeJPEG downsizes img to fit maxDimension (when positive) and encodes it
// at ThumbnailQuality.
func EncodeJPEG(img image.Image, maxDimension int) (*Thumbnail, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("frame has no pixels")
	}

	if maxDimension > 0 {
		newWidth, newHeight := calculateThumbnailDimensions(width, height, maxDimension)
		if newWidth != width || newHeight != height {
			resized := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
			draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
			img = resized
			width, height = newWidth, newHeight
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail as JPEG: %w", err)
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("JPEG encoding produced empty thumbnail")
	}

	return &Thumbnail{
		Data:     buf.Bytes(),
		MIMEType: "image/jpeg",
		Width:    width,
		Height:   height,
	}, nil
}

// calculateThumbnailDimensions calculates new dimensions maintaining aspect ratio.
func calculateThumbnailDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newWidth := maxDimension
		newHeight := max(1, int(float64(height)*float64(maxDimension)/float64(width)))
		return newWidth, newHeight
	}

	newHeight := maxDimension
	newWidth := max(1, int(float64(width)*float64(maxDimension)/float64(height)))
	return newWidth, newHeight
}

// lastLine keeps ffmpeg's final stderr line, which names the actual failure.
func lastLine(output []byte) string {
	output = bytes.TrimRight(output, "\r\n ")
	if i := bytes.LastIndexByte(output, '\n'); i >= 0 {
		output = output[i+1:]
	}
	return string(output)
}
