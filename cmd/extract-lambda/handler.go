package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/shorts-media-helper/internal/extractor"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/fpang/shorts-media-helper/internal/geocode"
	"github.com/fpang/shorts-media-helper/internal/metrics"
	"github.com/fpang/shorts-media-helper/internal/s3util"
	"github.com/fpang/shorts-media-helper/internal/store"
)

// thumbnailURLExpiry is how long the returned preview link stays valid.
const thumbnailURLExpiry = time.Hour

// ExtractEvent is the invocation payload.
type ExtractEvent struct {
	Key    string `json:"key"`
	Bucket string `json:"bucket,omitempty"` // Optional override; defaults to MEDIA_BUCKET_NAME.
}

// ExtractResult is returned to the caller for every invocation that got as far
// as reading the event.
type ExtractResult struct {
	Key          string                   `json:"key"`
	ThumbnailKey string                   `json:"thumbnailKey,omitempty"`
	ThumbnailURL string                   `json:"thumbnailUrl,omitempty"`
	Metadata     *extractor.VideoMetadata `json:"metadata,omitempty"`
	Address      string                   `json:"address,omitempty"`
	Cached       bool                     `json:"cached,omitempty"`
	Success      bool                     `json:"success"`
	Error        string                   `json:"error,omitempty"`
}

type s3API interface {
	s3util.GetObjectAPI
	s3util.PutObjectAPI
	s3util.PutObjectTaggingAPI
}

type videoExtractor interface {
	Extract(ctx context.Context, mf *filehandler.MediaFile) (*extractor.Result, error)
}

type handler struct {
	s3        s3API
	presigner s3util.PresignGetAPI
	bucket    string
	extractor videoExtractor
	records   store.VideoStore // nil disables the cache
	geocoder  geocode.Resolver // nil disables addresses
	now       func() time.Time
	// metricsOut receives one EMF line per invocation; nil discards it.
	metricsOut io.Writer

	warm bool
}

func (h *handler) handle(ctx context.Context, event ExtractEvent) (ExtractResult, error) {
	start := h.now()
	if !h.warm {
		h.warm = true
		log.Info().Str("function", "extract-lambda").Msg("Cold start, first invocation")
	}

	bucket := h.bucket
	if event.Bucket != "" {
		bucket = event.Bucket
	}
	logger := log.With().Str("bucket", bucket).Str("key", event.Key).Logger()
	logger.Info().Msg("Processing extraction request")

	rec := metrics.New(metrics.Namespace).To(h.metricsOut)
	res, size, err := h.process(ctx, bucket, event.Key)

	outcome := "success"
	switch {
	case err != nil:
		outcome = "error"
	case res.Cached:
		outcome = "cached"
	case !res.Success:
		outcome = "rejected"
	}
	rec.Dimension("Outcome", outcome).
		Count("ExtractInvocations").
		Duration("ExtractLatencyMs", h.now().Sub(start)).
		Property("key", event.Key)
	if size > 0 {
		rec.Metric("VideoBytes", float64(size), metrics.UnitBytes)
	}
	if res.Metadata != nil {
		rec.Property("createdAtSource", string(res.Metadata.CreatedAtSource)).
			Property("hasGps", res.Metadata.HasGPS())
	}
	rec.Flush()

	if err != nil {
		logger.Error().Err(err).Msg("Extraction failed")
		return res, err
	}
	logger.Info().
		Bool("success", res.Success).
		Bool("cached", res.Cached).
		Str("thumbnailKey", res.ThumbnailKey).
		Dur("duration", h.now().Sub(start)).
		Msg("Extraction finished")
	return res, nil
}

// process does the work for one object. A returned error fails the
// invocation; a clip that cannot be probed comes back with Success false and
// no error so fan-out callers do not retry it.
func (h *handler) process(ctx context.Context, bucket, key string) (ExtractResult, int64, error) {
	res := ExtractResult{Key: key}
	if key == "" {
		res.Error = "key is required"
		return res, 0, errors.New(res.Error)
	}
	ext := strings.ToLower(path.Ext(key))
	if !filehandler.IsVideo(ext) {
		res.Error = fmt.Sprintf("unsupported file type: %s", ext)
		log.Warn().Str("extension", ext).Msg("Unsupported file type rejected")
		return res, 0, nil
	}

	if cached, ok := h.cached(ctx, bucket, key); ok {
		return cached, 0, nil
	}

	dl, cleanup, err := s3util.DownloadToTempFile(ctx, h.s3, bucket, key)
	if err != nil {
		res.Error = fmt.Sprintf("download failed: %v", err)
		return res, 0, err
	}
	defer cleanup()

	mf, err := filehandler.LoadMediaFile(dl.Path)
	if err != nil {
		res.Error = fmt.Sprintf("load failed: %v", err)
		return res, dl.Size, err
	}

	out, err := h.extractor.Extract(ctx, mf)
	if err != nil {
		var exErr *extractor.Error
		if errors.As(err, &exErr) && exErr.Type == extractor.ErrTypeProbe {
			log.Warn().Err(err).Msg("Clip could not be probed (soft failure)")
			res.Error = "file could not be processed"
			return res, dl.Size, nil
		}
		res.Error = err.Error()
		return res, dl.Size, err
	}
	res.Metadata = out.Metadata

	if out.Thumbnail != nil {
		thumbKey, err := s3util.UploadThumbnail(ctx, h.s3, bucket, key, out.Thumbnail.Data)
		if err != nil {
			res.Error = err.Error()
			return res, dl.Size, err
		}
		res.ThumbnailKey = thumbKey
		if res.ThumbnailURL, err = h.presign(ctx, bucket, thumbKey); err != nil {
			log.Warn().Err(err).Str("thumbnailKey", thumbKey).Msg("Failed to presign thumbnail")
		}
	} else {
		res.Error = fmt.Sprintf("thumbnail unavailable: %v", out.ThumbnailErr)
	}

	if h.geocoder != nil && out.Metadata.HasGPS() {
		res.Address = h.geocoder.Address(ctx, *out.Metadata.Latitude, *out.Metadata.Longitude)
	}

	if err := s3util.TagObject(ctx, h.s3, bucket, key); err != nil {
		log.Warn().Err(err).Msg("Failed to tag source video")
	}

	if h.records != nil {
		rec := recordFrom(bucket, key, dl.ETag, res)
		rec.ExtractedAt = h.now().Unix()
		if err := h.records.PutVideo(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("Failed to cache extraction record")
		}
	}

	res.Success = true
	return res, dl.Size, nil
}

// cached returns the stored result for bucket/key when one exists and still
// has its thumbnail. Lookup errors are treated as a miss. A record whose
// thumbnail cannot be presigned is evicted so the clip is extracted again.
func (h *handler) cached(ctx context.Context, bucket, key string) (ExtractResult, bool) {
	if h.records == nil {
		return ExtractResult{}, false
	}
	rec, err := h.records.GetVideo(ctx, bucket, key)
	if err != nil {
		log.Warn().Err(err).Msg("Record lookup failed, extracting again")
		return ExtractResult{}, false
	}
	if rec == nil || rec.ThumbnailKey == "" {
		return ExtractResult{}, false
	}

	thumbURL, err := h.presign(ctx, bucket, rec.ThumbnailKey)
	if err != nil {
		log.Warn().Err(err).Str("thumbnailKey", rec.ThumbnailKey).Msg("Evicting cached record with unusable thumbnail")
		if err := h.records.DeleteVideo(ctx, bucket, key); err != nil {
			log.Warn().Err(err).Msg("Failed to evict cached record")
		}
		return ExtractResult{}, false
	}

	log.Debug().Int64("extractedAt", rec.ExtractedAt).Msg("Serving cached extraction record")
	return ExtractResult{
		Key:          key,
		ThumbnailKey: rec.ThumbnailKey,
		ThumbnailURL: thumbURL,
		Metadata:     metadataFrom(rec),
		Address:      rec.Address,
		Cached:       true,
		Success:      true,
	}, true
}

func (h *handler) presign(ctx context.Context, bucket, key string) (string, error) {
	return s3util.GeneratePresignedURL(ctx, h.presigner, bucket, key, thumbnailURLExpiry)
}

func recordFrom(bucket, key, etag string, res ExtractResult) *store.VideoRecord {
	m := res.Metadata
	return &store.VideoRecord{
		Bucket:          bucket,
		Key:             key,
		ETag:            etag,
		ThumbnailKey:    res.ThumbnailKey,
		Duration:        m.Duration,
		Width:           m.Width,
		Height:          m.Height,
		Latitude:        m.Latitude,
		Longitude:       m.Longitude,
		CreatedAt:       m.CreatedAt,
		CreatedAtSource: string(m.CreatedAtSource),
		Address:         res.Address,
	}
}

func metadataFrom(rec *store.VideoRecord) *extractor.VideoMetadata {
	return &extractor.VideoMetadata{
		Duration:        rec.Duration,
		Width:           rec.Width,
		Height:          rec.Height,
		Latitude:        rec.Latitude,
		Longitude:       rec.Longitude,
		CreatedAt:       rec.CreatedAt,
		CreatedAtSource: extractor.CreatedAtSource(rec.CreatedAtSource),
	}
}
