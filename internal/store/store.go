// Package store caches extraction results for uploaded videos so a repeated
// S3 event for the same object does not probe and thumbnail it again.
//
// The package uses a single-table DynamoDB design: each object gets the
// partition key VIDEO#{bucket}/{key} and the sort key META. A TTL attribute
// (expiresAt) auto-deletes records after RecordTTL.
package store

import (
	"context"
	"time"
)

// RecordTTL is how long an extraction record is kept.
const RecordTTL = 7 * 24 * time.Hour

// VideoStore persists extraction results keyed by S3 object.
//
// GetVideo returns (nil, nil) when no record exists. PutVideo performs
// full-item replacement.
type VideoStore interface {
	PutVideo(ctx context.Context, rec *VideoRecord) error
	GetVideo(ctx context.Context, bucket, key string) (*VideoRecord, error)
	DeleteVideo(ctx context.Context, bucket, key string) error
}

// VideoRecord is the stored result of extracting one object.
// Bucket and Key are derived from the partition key on read.
type VideoRecord struct {
	Bucket string `json:"bucket" dynamodbav:"-"`
	Key    string `json:"key" dynamodbav:"-"`

	ETag         string `json:"etag,omitempty" dynamodbav:"etag,omitempty"`
	ThumbnailKey string `json:"thumbnailKey,omitempty" dynamodbav:"thumbnailKey,omitempty"`

	Duration        float64  `json:"duration" dynamodbav:"duration"`
	Width           int      `json:"width" dynamodbav:"width"`
	Height          int      `json:"height" dynamodbav:"height"`
	Latitude        *float64 `json:"latitude,omitempty" dynamodbav:"latitude,omitempty"`
	Longitude       *float64 `json:"longitude,omitempty" dynamodbav:"longitude,omitempty"`
	CreatedAt       string   `json:"createdAt,omitempty" dynamodbav:"createdAt,omitempty"`
	CreatedAtSource string   `json:"createdAtSource,omitempty" dynamodbav:"createdAtSource,omitempty"`
	Address         string   `json:"address,omitempty" dynamodbav:"address,omitempty"`

	// ExtractedAt is a Unix timestamp in seconds.
	ExtractedAt int64 `json:"extractedAt" dynamodbav:"extractedAt"`
}
