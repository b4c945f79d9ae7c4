package s3util

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const (
	projectTagKey   = "Project"
	projectTagValue = "shorts-media-helper"

	// projectTag is the URL-encoded S3 object tagging string for cost allocation.
	projectTag = projectTagKey + "=" + projectTagValue
)

// ProjectTagging returns a pointer to the URL-encoded S3 object tagging string.
// Use as the Tagging field on PutObjectInput.
func ProjectTagging() *string {
	t := projectTag
	return &t
}

// PutObjectTaggingAPI is the S3 call TagObject needs.
type PutObjectTaggingAPI interface {
	PutObjectTagging(ctx context.Context, params *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error)
}

// TagObject applies the Project cost-allocation tag to an existing S3 object.
// Videos arrive through presigned PUT URLs and cannot be tagged at creation time.
func TagObject(ctx context.Context, client PutObjectTaggingAPI, bucket, key string) error {
	_, err := client.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket: &bucket,
		Key:    &key,
		Tagging: &s3types.Tagging{
			TagSet: []s3types.Tag{
				{Key: aws.String(projectTagKey), Value: aws.String(projectTagValue)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("PutObjectTagging: %w", err)
	}
	return nil
}
