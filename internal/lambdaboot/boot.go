// Package lambdaboot provides shared Lambda cold-start bootstrap logic.
//
// The extraction Lambda needs AWS config, S3, the optional DynamoDB record
// cache and the Kakao key from SSM. Each helper here is one step of init().
package lambdaboot

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/rs/zerolog/log"

	"github.com/fpang/shorts-media-helper/internal/logging"
	"github.com/fpang/shorts-media-helper/internal/store"
)

// DefaultKakaoKeyParam is the SSM parameter read when SSM_KAKAO_KEY_PARAM is unset.
const DefaultKakaoKeyParam = "/shorts-media-helper/prod/kakao-rest-key"

// AWSClients holds the core AWS SDK clients used across Lambdas.
type AWSClients struct {
	Config aws.Config
	SSM    *ssm.Client
}

// S3Clients holds S3 client, presigner, and bucket name.
type S3Clients struct {
	Client    *s3.Client
	Presigner *s3.PresignClient
	Bucket    string
}

// InitAWS loads the default AWS config and returns it along with common clients.
func InitAWS() AWSClients {
	cfg, err := awsconfig.LoadDefaultConfig(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{
		Config: cfg,
		SSM:    ssm.NewFromConfig(cfg),
	}
}

// InitS3 creates an S3 client, presigner, and reads the bucket name from the
// given environment variable. Fatals if the env var is empty.
func InitS3(cfg aws.Config, bucketEnvVar string) S3Clients {
	client := s3.NewFromConfig(cfg)
	bucket := os.Getenv(bucketEnvVar)
	if bucket == "" {
		log.Fatal().Str("envVar", bucketEnvVar).Msg("Bucket environment variable is required")
	}
	return S3Clients{
		Client:    client,
		Presigner: s3.NewPresignClient(client),
		Bucket:    bucket,
	}
}

// InitDynamoOptional creates the DynamoDB record store if the env var is set.
// Returns nil (with a warning) if not configured.
func InitDynamoOptional(cfg aws.Config, tableEnvVar string) *store.DynamoStore {
	tableName := os.Getenv(tableEnvVar)
	if tableName == "" {
		log.Warn().Str("envVar", tableEnvVar).Msg("DynamoDB table not set, record cache disabled")
		return nil
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(cfg), tableName)
}

// GetParameterAPI is the SSM call LoadKakaoKey needs.
type GetParameterAPI interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// LoadKakaoKey returns the Kakao REST key from KAKAO_REST_KEY, or from the SSM
// parameter named by SSM_KAKAO_KEY_PARAM. Non-fatal: an empty string (with a
// warning) disables geocoding.
func LoadKakaoKey(ctx context.Context, ssmClient GetParameterAPI) string {
	if key := os.Getenv("KAKAO_REST_KEY"); key != "" {
		return key
	}
	paramName := logging.EnvOrDefault("SSM_KAKAO_KEY_PARAM", DefaultKakaoKeyParam)

	ssmStart := time.Now()
	result, err := ssmClient.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           &paramName,
		WithDecryption: aws.Bool(true),
	})
	if err != nil || result.Parameter == nil {
		log.Warn().Err(err).Str("param", paramName).Msg("Kakao key not found in SSM, geocoding disabled")
		return ""
	}
	log.Debug().Str("param", paramName).Dur("elapsed", time.Since(ssmStart)).Msg("Kakao key loaded from SSM")
	return aws.ToString(result.Parameter.Value)
}

// StartupLog is a convenience wrapper for the startup logger.
func StartupLog(name string, initStart time.Time) *logging.StartupLogger {
	return logging.NewStartupLogger(name).InitDuration(time.Since(initStart))
}
