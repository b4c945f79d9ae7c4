package s3util

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	body         string
	lastModified *time.Time
	getErr       error
	put          *s3.PutObjectInput
	putBody      []byte
	tagged       *s3.PutObjectTaggingInput
	presignOpts  s3.PresignOptions
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &s3.GetObjectOutput{
		Body:         io.NopCloser(strings.NewReader(f.body)),
		ETag:         aws.String(`"abc123"`),
		LastModified: f.lastModified,
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.put = in
	f.putBody, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) PutObjectTagging(ctx context.Context, in *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	f.tagged = in
	return &s3.PutObjectTaggingOutput{}, nil
}

func (f *fakeS3) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	for _, fn := range optFns {
		fn(&f.presignOpts)
	}
	return &v4.PresignedHTTPRequest{URL: "https://" + *in.Bucket + ".s3/" + *in.Key + "?X-Amz-Signature=x"}, nil
}

func TestDownloadToTempFile(t *testing.T) {
	uploaded := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)
	fake := &fakeS3{body: "movie bytes", lastModified: &uploaded}

	dl, cleanup, err := DownloadToTempFile(context.Background(), fake, "bucket", "uploads/clip.MOV")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if filepath.Ext(dl.Path) != ".MOV" {
		t.Errorf("expected extension kept, got %s", dl.Path)
	}
	data, err := os.ReadFile(dl.Path)
	if err != nil || string(data) != "movie bytes" {
		t.Errorf("content = %q, %v", data, err)
	}
	if dl.Size != int64(len("movie bytes")) || dl.ETag != `"abc123"` {
		t.Errorf("unexpected download: %+v", dl)
	}

	info, err := os.Stat(dl.Path)
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(uploaded) {
		t.Errorf("mtime = %v, want %v", info.ModTime(), uploaded)
	}

	cleanup()
	if _, err := os.Stat(dl.Path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("cleanup did not remove temp file: %v", err)
	}
}

func TestDownloadToTempFileWithoutLastModified(t *testing.T) {
	dl, cleanup, err := DownloadToTempFile(context.Background(), &fakeS3{body: "x"}, "bucket", "clip.mp4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer cleanup()
	if !dl.LastModified.IsZero() {
		t.Errorf("LastModified = %v, want zero", dl.LastModified)
	}
}

func TestDownloadToTempFileError(t *testing.T) {
	boom := errors.New("NoSuchKey")
	_, cleanup, err := DownloadToTempFile(context.Background(), &fakeS3{getErr: boom}, "bucket", "missing.mp4")
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
	if cleanup != nil {
		t.Error("expected nil cleanup on error")
	}
}

func TestThumbnailKey(t *testing.T) {
	tests := map[string]string{
		"uploads/2024/clip.mov": "thumbnails/clip.jpg",
		"clip.MP4":              "thumbnails/clip.jpg",
		"a/b/no-extension":      "thumbnails/no-extension.jpg",
		"trip.day1.mp4":         "thumbnails/trip.day1.jpg",
	}
	for in, want := range tests {
		if got := ThumbnailKey(in); got != want {
			t.Errorf("ThumbnailKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestUploadThumbnail(t *testing.T) {
	fake := &fakeS3{}
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0}

	key, err := UploadThumbnail(context.Background(), fake, "bucket", "uploads/clip.mov", jpeg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key != "thumbnails/clip.jpg" || *fake.put.Key != key {
		t.Errorf("key = %s", key)
	}
	if *fake.put.ContentType != "image/jpeg" || *fake.put.Tagging != "Project=shorts-media-helper" {
		t.Errorf("unexpected put: %s %s", *fake.put.ContentType, *fake.put.Tagging)
	}
	if !bytes.Equal(fake.putBody, jpeg) {
		t.Errorf("body = %v", fake.putBody)
	}
}

func TestTagObject(t *testing.T) {
	fake := &fakeS3{}
	if err := TagObject(context.Background(), fake, "bucket", "uploads/clip.mov"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	tags := fake.tagged.Tagging.TagSet
	if len(tags) != 1 || *tags[0].Key != "Project" || *tags[0].Value != "shorts-media-helper" {
		t.Errorf("unexpected tags: %+v", tags)
	}
}

func TestGeneratePresignedURL(t *testing.T) {
	fake := &fakeS3{}
	url, err := GeneratePresignedURL(context.Background(), fake, "bucket", "thumbnails/clip.jpg", 15*time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(url, "https://bucket.s3/thumbnails/clip.jpg") {
		t.Errorf("url = %s", url)
	}
	if fake.presignOpts.Expires != 15*time.Minute {
		t.Errorf("expiry = %v", fake.presignOpts.Expires)
	}
}
