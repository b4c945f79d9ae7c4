package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key constants for the single-table design.
const (
	pkPrefix = "VIDEO#"
	skMeta   = "META"
)

// DynamoAPI is the subset of the DynamoDB client the store calls.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoStore implements VideoStore using AWS DynamoDB.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// Compile-time interface check.
var _ VideoStore = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

// videoPK returns the partition key for an object.
func videoPK(bucket, key string) string {
	return pkPrefix + bucket + "/" + key
}

// splitVideoPK is the inverse of videoPK. Bucket names cannot contain '/'.
func splitVideoPK(pk string) (bucket, key string, ok bool) {
	rest, found := strings.CutPrefix(pk, pkPrefix)
	if !found {
		return "", "", false
	}
	return strings.Cut(rest, "/")
}

func keyAttrs(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// PutVideo creates or replaces the record for rec.Bucket/rec.Key.
func (s *DynamoStore) PutVideo(ctx context.Context, rec *VideoRecord) error {
	if rec.Bucket == "" || rec.Key == "" {
		return fmt.Errorf("put video: bucket and key are required")
	}
	if rec.ExtractedAt == 0 {
		rec.ExtractedAt = s.now().Unix()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	pk := videoPK(rec.Bucket, rec.Key)
	// Add key and TTL attributes (overwrite any conflicting keys from the data).
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: skMeta}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RecordTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, skMeta, err)
	}

	log.Debug().
		Str("bucket", rec.Bucket).
		Str("key", rec.Key).
		Str("createdAtSource", rec.CreatedAtSource).
		Msg("Video record persisted")
	return nil
}

// GetVideo reads the record for bucket/key. Returns nil, nil if not found.
func (s *DynamoStore) GetVideo(ctx context.Context, bucket, key string) (*VideoRecord, error) {
	pk := videoPK(bucket, key)
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       keyAttrs(pk, skMeta),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	if result.Item == nil {
		log.Debug().Str("bucket", bucket).Str("key", key).Bool("found", false).Msg("GetVideo: record not found")
		return nil, nil
	}

	var rec VideoRecord
	if err := attributevalue.UnmarshalMap(result.Item, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal PK=%s SK=%s: %w", pk, skMeta, err)
	}
	rec.Bucket, rec.Key = bucket, key
	if pkAttr, ok := result.Item["PK"].(*types.AttributeValueMemberS); ok {
		if b, k, ok := splitVideoPK(pkAttr.Value); ok {
			rec.Bucket, rec.Key = b, k
		}
	}

	log.Debug().Str("bucket", bucket).Str("key", key).Bool("found", true).Msg("GetVideo: record retrieved")
	return &rec, nil
}

// DeleteVideo removes the record for bucket/key. Deleting a missing record is not an error.
func (s *DynamoStore) DeleteVideo(ctx context.Context, bucket, key string) error {
	pk := videoPK(bucket, key)
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key:       keyAttrs(pk, skMeta),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, skMeta, err)
	}
	return nil
}
