// Package extractor composes the container byte scanners, the media probe and
// the thumbnailer into the single call the upload flow makes for a clip.
//
// Capture time is resolved in priority order: the vendor mdta creation date,
// the movie header (mvhd) creation time, then the file's modification time.
// The probe is required; scanning problems are never returned as errors.
package extractor

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fpang/shorts-media-helper/internal/atom"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Extractor runs metadata and thumbnail extraction for video files.
// It holds no per-call state and is safe for concurrent use.
type Extractor struct {
	prober      filehandler.Prober
	thumbnailer filehandler.Thumbnailer
	mode        atom.Mode
	readFile    func(path string) ([]byte, error)
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithScanMode selects how atoms are located (default atom.Linear).
func WithScanMode(mode atom.Mode) Option {
	return func(e *Extractor) { e.mode = mode }
}

// WithReadFile replaces the whole-file reader used for byte scanning.
func WithReadFile(fn func(path string) ([]byte, error)) Option {
	return func(e *Extractor) { e.readFile = fn }
}

// New returns an Extractor. A nil prober or thumbnailer selects the defaults
// (filehandler.DefaultProber, an ffmpeg thumbnailer at native size).
func New(prober filehandler.Prober, thumbnailer filehandler.Thumbnailer, opts ...Option) *Extractor {
	if prober == nil {
		prober = filehandler.DefaultProber()
	}
	if thumbnailer == nil {
		thumbnailer = filehandler.FFmpegThumbnailer{}
	}
	e := &Extractor{
		prober:      prober,
		thumbnailer: thumbnailer,
		mode:        atom.Linear,
		readFile:    os.ReadFile,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result is the outcome of Extract.
type Result struct {
	Metadata  *VideoMetadata
	Thumbnail *filehandler.Thumbnail
	// ThumbnailErr is set when the preview could not be captured. It never
	// fails the extraction.
	ThumbnailErr error
}

// Extract produces metadata and, best effort, a thumbnail.
// Only a probe failure is returned as an error.
func (e *Extractor) Extract(ctx context.Context, mf *filehandler.MediaFile) (*Result, error) {
	meta, err := e.Metadata(ctx, mf)
	if err != nil {
		return nil, err
	}

	res := &Result{Metadata: meta}
	res.Thumbnail, res.ThumbnailErr = e.Thumbnail(ctx, mf, meta.Duration)
	if res.ThumbnailErr != nil {
		log.Warn().Err(res.ThumbnailErr).Str("path", mf.Path).Msg("Continuing without thumbnail")
	}
	return res, nil
}

// Metadata probes the clip and scans its bytes for capture time and location.
// The probe and the byte scan run concurrently.
func (e *Extractor) Metadata(ctx context.Context, mf *filehandler.MediaFile) (*VideoMetadata, error) {
	logger := log.With().Str("path", mf.Path).Str("scan_mode", e.mode.String()).Logger()
	start := time.Now()

	var (
		probe *filehandler.ProbeInfo
		found scanned
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := e.prober.Probe(gctx, mf.Path)
		if err != nil {
			return &Error{Type: ErrTypeProbe, Message: "metadata load error", Err: err}
		}
		probe = info
		return nil
	})
	g.Go(func() error {
		found = e.scan(gctx, mf.Path, logger)
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Debug().Err(err).Msg("Metadata extraction rejected")
		return nil, err
	}

	meta := &VideoMetadata{
		Duration: probe.Duration,
		Width:    probe.Width,
		Height:   probe.Height,
	}

	switch {
	case !found.createdAt.IsZero():
		meta.CreatedAt = FormatTimestamp(found.createdAt)
		meta.CreatedAtSource = found.source
	case !mf.ModTime.IsZero():
		meta.CreatedAt = FormatTimestamp(mf.ModTime)
		meta.CreatedAtSource = SourceFileMtime
	}

	if found.gps != nil {
		lat, lon := found.gps.Latitude, found.gps.Longitude
		meta.Latitude, meta.Longitude = &lat, &lon
	}

	logger.Debug().
		Float64("duration", meta.Duration).
		Int("width", meta.Width).
		Int("height", meta.Height).
		Str("created_at", meta.CreatedAt).
		Str("created_at_source", string(meta.CreatedAtSource)).
		Bool("has_gps", meta.HasGPS()).
		Dur("elapsed", time.Since(start)).
		Msg("Video metadata extracted")

	return meta, nil
}

// Thumbnail captures the preview frame for a clip of the given duration.
func (e *Extractor) Thumbnail(ctx context.Context, mf *filehandler.MediaFile, durationSeconds float64) (*filehandler.Thumbnail, error) {
	thumb, err := e.thumbnailer.Capture(ctx, mf.Path, durationSeconds)
	if err != nil {
		return nil, &Error{Type: ErrTypeThumbnail, Message: "thumbnail extraction error", Err: err}
	}
	return thumb, nil
}

type scanned struct {
	createdAt time.Time
	source    CreatedAtSource
	gps       *atom.Coordinates
}

// scan reads the file once and runs the date and location lookups over it.
// Read errors and panics leave the result empty.
func (e *Extractor) scan(ctx context.Context, path string, logger zerolog.Logger) (res scanned) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().Str("panic", fmt.Sprint(r)).Msg("Byte scan aborted, treating date and location as not found")
			res = scanned{}
		}
	}()

	if ctx.Err() != nil {
		return scanned{}
	}
	buf, err := e.readFile(path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to read file for byte scan")
		return scanned{}
	}

	s := atom.NewScanner(buf, e.mode)

	if r := s.CreationDateFromMdta(); r.Ok() {
		res.createdAt, res.source = r.Value, SourceMdta
	} else {
		logLookup(logger, "mdta", r.Status, r.Reason)
		if r := s.CreationTimeFromMvhd(); r.Ok() {
			res.createdAt, res.source = r.Value, SourceMvhd
		} else {
			logLookup(logger, "mvhd", r.Status, r.Reason)
		}
	}

	if r := s.GPS(); r.Ok() {
		res.gps = &r.Value
	} else {
		logLookup(logger, "gps", r.Status, r.Reason)
	}
	return res
}

func logLookup(logger zerolog.Logger, lookup string, status atom.Status, reason string) {
	ev := logger.Trace()
	if status == atom.Malformed {
		ev = logger.Debug()
	}
	ev.Str("lookup", lookup).Str("status", status.String()).Str("reason", reason).Msg("Atom lookup fell through")
}
