// Package upload runs the upload wizard without a UI: it validates and
// inspects a clip, suggests a spot and season, then pushes the video and its
// thumbnail to presigned URLs and registers the short with the backend.
package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fpang/shorts-media-helper/internal/extractor"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/fpang/shorts-media-helper/internal/geocode"
	"github.com/fpang/shorts-media-helper/internal/shortsapi"
	"github.com/rs/zerolog/log"
)

// ThumbnailFileName is the object name the backend expects for previews.
const ThumbnailFileName = "thumbnail.jpg"

var (
	// ErrUnreadable is returned by Prepare when the clip cannot be probed.
	ErrUnreadable = errors.New("file could not be processed")

	ErrNoThumbnail = errors.New("a thumbnail is required")
	ErrNoName      = errors.New("a name is required")
	ErrNoTitle     = errors.New("a title is required")
)

// Backend is the slice of the shorts API the flow uses.
type Backend interface {
	GetUploadURL(ctx context.Context, req shortsapi.UploadURLRequest) (*shortsapi.UploadURLResponse, error)
	UploadToPresignedURL(ctx context.Context, presignedURL, contentType string, body io.Reader, size int64, onProgress shortsapi.ProgressFunc) error
	Create(ctx context.Context, req shortsapi.CreateRequest) (*shortsapi.CreateResponse, error)
	NearbyAttractions(ctx context.Context, lat, lon float64, radius int) ([]shortsapi.NearbyAttraction, error)
}

// Extractor produces metadata and a thumbnail for a clip.
type Extractor interface {
	Extract(ctx context.Context, mf *filehandler.MediaFile) (*extractor.Result, error)
}

// Flow drives one upload at a time. It is safe for concurrent use as long as
// its collaborators are.
type Flow struct {
	api       Backend
	extractor Extractor
	geocoder  geocode.Resolver
	open      func(path string) (io.ReadCloser, error)
}

// New builds a Flow. geocoder may be nil, in which case addresses are the
// formatted coordinates.
func New(api Backend, ex Extractor, geocoder geocode.Resolver) *Flow {
	return &Flow{
		api:       api,
		extractor: ex,
		geocoder:  geocoder,
		open:      func(path string) (io.ReadCloser, error) { return os.Open(path) },
	}
}

// Draft is everything known about a clip before the user fills in details.
type Draft struct {
	File      *filehandler.MediaFile
	Metadata  *extractor.VideoMetadata
	Thumbnail *filehandler.Thumbnail

	// Address is set only when the clip has GPS.
	Address string
	// Spots are nearby attractions, nearest first. Spot points at the
	// preselected one.
	Spots []shortsapi.NearbyAttraction
	Spot  *shortsapi.NearbyAttraction

	// Season is suggested from the capture month; empty when no date is known.
	Season shortsapi.Season
}

// Details is what the user supplies on top of a Draft.
type Details struct {
	Name     string
	Title    string
	Weather  shortsapi.Weather
	Theme    shortsapi.Theme
	Season   shortsapi.Season
	Hashtags []string

	// SpotID overrides the preselected spot. Zero keeps the draft's choice.
	SpotID int64
	// NoSpot clears the spot even when one was preselected.
	NoSpot bool
}

// Prepare validates the file and gathers metadata, a thumbnail, the address
// and nearby spots. Lookup failures after extraction are logged and leave the
// corresponding field empty.
func (f *Flow) Prepare(ctx context.Context, path string) (*Draft, error) {
	mf, err := filehandler.LoadMediaFile(path)
	if err != nil {
		return nil, err
	}
	if err := filehandler.ValidateForUpload(mf); err != nil {
		return nil, err
	}

	res, err := f.extractor.Extract(ctx, mf)
	if err != nil {
		var exErr *extractor.Error
		if errors.As(err, &exErr) && exErr.Type == extractor.ErrTypeProbe {
			return nil, fmt.Errorf("%w: %w", ErrUnreadable, err)
		}
		return nil, err
	}

	d := &Draft{File: mf, Metadata: res.Metadata, Thumbnail: res.Thumbnail}
	if t, ok := res.Metadata.CreatedTime(); ok {
		d.Season = SeasonFor(t.Local().Month())
	}

	if res.Metadata.HasGPS() {
		lat, lon := res.Metadata.GPS()
		if f.geocoder != nil {
			d.Address = f.geocoder.Address(ctx, lat, lon)
		} else {
			d.Address = geocode.FormatCoordinates(lat, lon)
		}

		spots, err := f.api.NearbyAttractions(ctx, lat, lon, shortsapi.NearbyRadiusMeters)
		if err != nil {
			log.Warn().Err(err).Msg("Nearby attraction lookup failed")
		} else {
			d.Spots = spots
			if len(spots) > 0 {
				d.Spot = &d.Spots[0]
			}
		}
	}

	log.Info().
		Str("file", mf.Name()).
		Str("size", humanize.IBytes(uint64(mf.Size))).
		Float64("duration", res.Metadata.Duration).
		Bool("hasGps", res.Metadata.HasGPS()).
		Bool("hasThumbnail", res.Thumbnail != nil).
		Int("spots", len(d.Spots)).
		Msg("Upload draft prepared")
	return d, nil
}

// Submit uploads the video (progress 0-80), the thumbnail (90) and registers
// the short (100). onProgress may be nil.
func (f *Flow) Submit(ctx context.Context, d *Draft, det Details, onProgress func(percent int)) (*shortsapi.CreateResponse, error) {
	if d.Thumbnail == nil {
		return nil, ErrNoThumbnail
	}
	if strings.TrimSpace(det.Name) == "" {
		return nil, ErrNoName
	}
	if strings.TrimSpace(det.Title) == "" {
		return nil, ErrNoTitle
	}
	report := func(p int) {
		if onProgress != nil {
			onProgress(p)
		}
	}
	start := time.Now()

	urls, err := f.api.GetUploadURL(ctx, shortsapi.UploadURLRequest{
		VideoFileName:        d.File.Name(),
		VideoContentType:     d.File.MIMEType,
		VideoFileSize:        d.File.Size,
		ThumbnailFileName:    ThumbnailFileName,
		ThumbnailContentType: d.Thumbnail.MIMEType,
		ThumbnailFileSize:    int64(len(d.Thumbnail.Data)),
	})
	if err != nil {
		return nil, err
	}

	video, err := f.open(d.File.Path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	defer video.Close()

	err = f.api.UploadToPresignedURL(ctx, urls.VideoUploadURL, d.File.MIMEType, video, d.File.Size, func(p int) {
		report(p * 80 / 100)
	})
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}

	err = f.api.UploadToPresignedURL(ctx, urls.ThumbnailUploadURL, d.Thumbnail.MIMEType,
		bytes.NewReader(d.Thumbnail.Data), int64(len(d.Thumbnail.Data)), nil)
	if err != nil {
		return nil, fmt.Errorf("upload thumbnail: %w", err)
	}
	report(90)

	resp, err := f.api.Create(ctx, buildCreateRequest(d, det, urls))
	if err != nil {
		return nil, err
	}
	report(100)

	log.Info().
		Int64("id", resp.ID).
		Str("videoKey", urls.VideoKey).
		Dur("elapsed", time.Since(start)).
		Msg("Short uploaded")
	return resp, nil
}

func buildCreateRequest(d *Draft, det Details, urls *shortsapi.UploadURLResponse) shortsapi.CreateRequest {
	req := shortsapi.CreateRequest{
		VideoKey:     urls.VideoKey,
		ThumbnailKey: urls.ThumbnailKey,
		Name:         strings.TrimSpace(det.Name),
		Title:        strings.TrimSpace(det.Title),
		Weather:      det.Weather,
		Theme:        det.Theme,
		Season:       det.Season,
		Hashtags:     NormalizeHashtags(det.Hashtags),
	}
	if req.Season == "" {
		req.Season = d.Season
	}

	switch {
	case det.NoSpot:
	case det.SpotID != 0:
		id := det.SpotID
		req.ContentID = &id
	case d.Spot != nil:
		id := d.Spot.ContentID
		req.ContentID = &id
	}

	if d.Metadata != nil && d.Metadata.HasGPS() {
		req.Latitude, req.Longitude = d.Metadata.Latitude, d.Metadata.Longitude
	}
	return req
}

// SeasonFor maps a month to its season: March-May spring, June-August summer,
// September-November autumn, otherwise winter.
func SeasonFor(m time.Month) shortsapi.Season {
	switch {
	case m >= time.March && m <= time.May:
		return shortsapi.SeasonSpring
	case m >= time.June && m <= time.August:
		return shortsapi.SeasonSummer
	case m >= time.September && m <= time.November:
		return shortsapi.SeasonAutumn
	default:
		return shortsapi.SeasonWinter
	}
}

// NormalizeHashtags trims each tag, drops one leading '#', and removes empty
// and repeated tags while keeping first-seen order. nil in, nil out.
func NormalizeHashtags(tags []string) []string {
	var out []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}
