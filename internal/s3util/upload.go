package s3util

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// ThumbnailPrefix is where extracted preview frames are written.
const ThumbnailPrefix = "thumbnails/"

// PutObjectAPI is the S3 call UploadThumbnail needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// PresignGetAPI is the presign call GeneratePresignedURL needs.
type PresignGetAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// ThumbnailKey maps a video key to its thumbnail key: thumbnails/{base}.jpg.
func ThumbnailKey(videoKey string) string {
	base := path.Base(videoKey)
	return ThumbnailPrefix + strings.TrimSuffix(base, path.Ext(base)) + ".jpg"
}

// UploadThumbnail writes JPEG bytes under ThumbnailKey(videoKey), tagged for
// cost allocation, and returns the key.
func UploadThumbnail(ctx context.Context, client PutObjectAPI, bucket, videoKey string, data []byte) (string, error) {
	key := ThumbnailKey(videoKey)
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("image/jpeg"),
		Tagging:       ProjectTagging(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload thumbnail to S3: %w", err)
	}

	log.Info().
		Str("video_key", videoKey).
		Str("thumbnail_key", key).
		Int("bytes", len(data)).
		Msg("Thumbnail uploaded to S3")
	return key, nil
}

// GeneratePresignedURL creates a pre-signed GET URL for an S3 object.
func GeneratePresignedURL(ctx context.Context, presignClient PresignGetAPI, bucket, key string, expiry time.Duration) (string, error) {
	result, err := presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket, Key: &key,
	}, func(opts *s3.PresignOptions) {
		opts.Expires = expiry
	})
	if err != nil {
		return "", fmt.Errorf("presign GetObject: %w", err)
	}
	return result.URL, nil
}
