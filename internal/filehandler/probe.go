package filehandler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/abema/go-mp4"
	"github.com/rs/zerolog/log"
	"github.com/sunfish-shogi/bufseekio"
)

// ProbeInfo holds the basic media properties of a video.
type ProbeInfo struct {
	// Duration in seconds.
	Duration  float64
	Width     int
	Height    int
	Codec     string
	FrameRate float64
	// Prober names the implementation that produced this result.
	Prober string
}

// Prober reads basic media properties from a video file.
// An error means the file could not be decoded as a video.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeInfo, error)
}

// DefaultProber tries the pure Go prober first and falls back to ffprobe.
func DefaultProber() Prober {
	return ChainProber{MP4Prober{}, FFprobeProber{}}
}

// ChainProber returns the first successful result of its probers, in order.
type ChainProber []Prober

func (c ChainProber) Probe(ctx context.Context, path string) (*ProbeInfo, error) {
	if len(c) == 0 {
		return nil, errors.New("no probers configured")
	}
	var errs []error
	for _, p := range c {
		info, err := p.Probe(ctx, path)
		if err == nil {
			return info, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.Debug().Err(err).Str("path", path).Msgf("%T failed, trying next prober", p)
		errs = append(errs, err)
	}
	return nil, errors.Join(errs...)
}

// mp4ReadBufferSize is the page size for the buffered seeker; box headers are
// small and scattered, so a few pages cover the moov walk.
const mp4ReadBufferSize = 128 * 1024

// MP4Prober decodes the ISO BMFF box tree directly. It needs no external tools
// but only understands MP4/MOV containers.
type MP4Prober struct{}

// Probe reads duration and display size from the moov box. A corrupt box tree
// can make the box reader panic; that is returned as an error.
func (MP4Prober) Probe(ctx context.Context, path string) (result *ProbeInfo, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("mp4 box walk panicked: %v", r)
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open video: %w", err)
	}
	defer f.Close()

	r := bufseekio.NewReadSeeker(f, mp4ReadBufferSize, 4)
	info, err := mp4.Probe(r)
	if err != nil {
		return nil, fmt.Errorf("failed to probe mp4 boxes: %w", err)
	}
	if info.Timescale == 0 {
		return nil, errors.New("no movie header with a timescale")
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind video: %w", err)
	}
	boxes, err := mp4.ExtractBoxesWithPayload(r, nil, []mp4.BoxPath{
		{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read track headers: %w", err)
	}

	result = &ProbeInfo{
		Duration: float64(info.Duration) / float64(info.Timescale),
		Prober:   "mp4",
	}
	for _, b := range boxes {
		tkhd, ok := b.Payload.(*mp4.Tkhd)
		if !ok {
			continue
		}
		w, h := int(tkhd.GetWidthInt()), int(tkhd.GetHeightInt())
		if w == 0 || h == 0 {
			// audio and metadata tracks carry no size
			continue
		}
		if rotated(tkhd.Matrix) {
			w, h = h, w
		}
		result.Width, result.Height = w, h
		break
	}
	if result.Width == 0 {
		return nil, errors.New("no video track with dimensions")
	}

	for _, track := range info.Tracks {
		if track.Codec == mp4.CodecAVC1 {
			result.Codec = "h264"
			break
		}
	}

	log.Debug().
		Str("path", path).
		Float64("duration", result.Duration).
		Int("width", result.Width).
		Int("height", result.Height).
		Msg("Video probed from mp4 boxes")

	return result, nil
}

// rotated reports whether a track matrix turns the picture by 90 or 270 degrees,
// in which case display width and height are the stored height and width.
func rotated(m [9]int32) bool {
	return m[0] == 0 && m[4] == 0 && m[1] != 0 && m[3] != 0
}
