// Package s3util provides the S3 helpers the extraction Lambda uses to fetch
// uploaded videos and store their thumbnails.
package s3util

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog/log"
)

// GetObjectAPI is the S3 call DownloadToTempFile needs.
type GetObjectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Download describes an object copied to local disk.
type Download struct {
	Path string
	Size int64
	ETag string
	// LastModified is the object's upload time; the file's mtime is set to it.
	LastModified time.Time
}

// DownloadToTempFile downloads an S3 object to a new temporary file keeping the
// key's extension, and returns it plus a cleanup function that removes it.
//
// The temp file's modification time is set to the object's LastModified, so
// anything that falls back to the file mtime sees the upload time instead of
// the download time.
func DownloadToTempFile(ctx context.Context, client GetObjectAPI, bucket, key string) (*Download, func(), error) {
	start := time.Now()
	result, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("S3 GetObject: %w", err)
	}
	defer result.Body.Close()

	tmpFile, err := os.CreateTemp("", "s3dl-*"+filepath.Ext(key))
	if err != nil {
		return nil, nil, fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() { os.Remove(tmpFile.Name()) }

	n, err := io.Copy(tmpFile, result.Body)
	if closeErr := tmpFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("download: %w", err)
	}

	dl := &Download{
		Path: tmpFile.Name(),
		Size: n,
		ETag: aws.ToString(result.ETag),
	}
	if result.LastModified != nil {
		dl.LastModified = *result.LastModified
		if err := os.Chtimes(dl.Path, dl.LastModified, dl.LastModified); err != nil {
			log.Warn().Err(err).Str("path", dl.Path).Msg("Failed to set file times from LastModified")
		}
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Str("size", humanize.IBytes(uint64(n))).
		Time("lastModified", dl.LastModified).
		Dur("duration", time.Since(start)).
		Msg("Downloaded from S3")
	return dl, cleanup, nil
}
