// Package main provides a Lambda entry point for per-video metadata extraction.
//
// The Lambda is invoked once per uploaded clip (S3 notification fan-out or a
// direct invoke). It downloads the video, recovers capture time, location,
// duration and dimensions, stores a JPEG preview under thumbnails/ and caches
// the result in DynamoDB so repeated events for the same object are cheap.
//
// Container: Heavy (includes ffmpeg and ffprobe)
// Memory: 1024 MB
// Timeout: 2 minutes
package main

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog/log"

	"github.com/fpang/shorts-media-helper/internal/atom"
	"github.com/fpang/shorts-media-helper/internal/extractor"
	"github.com/fpang/shorts-media-helper/internal/filehandler"
	"github.com/fpang/shorts-media-helper/internal/geocode"
	"github.com/fpang/shorts-media-helper/internal/lambdaboot"
	"github.com/fpang/shorts-media-helper/internal/logging"
)

// thumbnailMaxDimension caps cached previews; the upload page shows them small.
const thumbnailMaxDimension = 720

var h *handler

func init() {
	initStart := time.Now()
	logging.InitJSON()

	clients := lambdaboot.InitAWS()
	s3c := lambdaboot.InitS3(clients.Config, "MEDIA_BUCKET_NAME")
	dynamo := lambdaboot.InitDynamoOptional(clients.Config, "METADATA_TABLE_NAME")
	kakaoKey := lambdaboot.LoadKakaoKey(context.Background(), clients.SSM)

	mode := atom.Linear
	if m, err := atom.ParseMode(logging.EnvOrDefault("SCAN_MODE", "linear")); err == nil {
		mode = m
	} else {
		log.Warn().Err(err).Msg("Invalid SCAN_MODE, using linear")
	}

	h = &handler{
		s3:        s3c.Client,
		presigner: s3c.Presigner,
		bucket:    s3c.Bucket,
		extractor: extractor.New(nil, filehandler.FFmpegThumbnailer{MaxDimension: thumbnailMaxDimension},
			extractor.WithScanMode(mode)),
		now:        time.Now,
		metricsOut: os.Stdout,
	}
	if dynamo != nil {
		h.records = dynamo
	}
	if kakaoKey != "" {
		h.geocoder = geocode.NewKakao(kakaoKey)
	}

	tools := filehandler.LookupTools()
	if err := filehandler.CheckTools(); err != nil {
		log.Warn().Err(err).Msg("Thumbnails will be skipped")
	}
	lambdaboot.StartupLog("extract-lambda", initStart).
		S3Bucket("mediaBucket", s3c.Bucket).
		DynamoTable("metadataTable", logging.EnvOrDefault("METADATA_TABLE_NAME", "")).
		SSMParam("kakaoKey", logging.EnvOrDefault("SSM_KAKAO_KEY_PARAM", lambdaboot.DefaultKakaoKeyParam)).
		Binary("ffmpeg", tools["ffmpeg"]).
		Binary("ffprobe", tools["ffprobe"]).
		Feature("recordCache", dynamo != nil).
		Feature("geocoding", kakaoKey != "").
		Config("scanMode", mode.String()).
		Log()
}

func main() {
	lambda.Start(h.handle)
}
