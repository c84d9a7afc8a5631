// Package bootstrap wires the optional AWS-backed collaborators at startup:
// the SSM key lookup, DynamoDB run history and the S3 screenshot sink. Each
// is enabled by its environment variable and falls back to a local
// implementation when unset.
package bootstrap

import (
	"context"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/fpang/profile-agent/internal/snapshot"
	"github.com/fpang/profile-agent/internal/store"
	"github.com/rs/zerolog/log"
)

// Environment variables that enable AWS collaborators.
const (
	EnvSSMParam  = "SSM_API_KEY_PARAM"
	EnvRunsTable = "RUNS_TABLE_NAME"
	EnvBucket    = "SCREENSHOT_BUCKET"
	EnvPrefix    = "SCREENSHOT_PREFIX"
)

// memoryRuns is how many reports the in-memory store keeps.
const memoryRuns = 100

// AWSClients holds the AWS config and the SSM client, or nothing when no
// AWS collaborator is configured.
type AWSClients struct {
	Config *aws.Config
	SSM    *ssm.Client
}

// NeedsAWS reports whether any AWS-backed collaborator is configured.
func NeedsAWS() bool {
	return os.Getenv(EnvSSMParam) != "" || os.Getenv(EnvRunsTable) != "" || os.Getenv(EnvBucket) != ""
}

// InitAWS loads the default AWS config when NeedsAWS is true. Fatals if the
// config cannot be loaded.
func InitAWS(ctx context.Context) AWSClients {
	if !NeedsAWS() {
		return AWSClients{}
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load AWS config")
	}
	log.Debug().Str("region", cfg.Region).Msg("AWS config loaded")
	return AWSClients{Config: &cfg, SSM: ssm.NewFromConfig(cfg)}
}

// InitRunStore returns a DynamoDB-backed store when RUNS_TABLE_NAME is set
// and AWS is configured, otherwise an in-memory store.
func InitRunStore(clients AWSClients) store.RunStore {
	table := os.Getenv(EnvRunsTable)
	if table == "" || clients.Config == nil {
		log.Debug().Int("limit", memoryRuns).Msg("Run history kept in memory")
		return store.NewMemoryStore(memoryRuns)
	}
	return store.NewDynamoStore(dynamodb.NewFromConfig(*clients.Config), table)
}

// InitScreenshotSink returns the static screenshot sinks: S3 when
// SCREENSHOT_BUCKET is set, plus a local directory when dir is non-empty.
// Returns nil when neither is configured.
func InitScreenshotSink(clients AWSClients, dir string) snapshot.Sink {
	var sinks snapshot.Multi
	if dir != "" {
		sinks = append(sinks, snapshot.DirSink{Dir: dir})
	}
	if bucket := os.Getenv(EnvBucket); bucket != "" {
		if clients.Config == nil {
			log.Warn().Str("bucket", bucket).Msg("Screenshot bucket set but AWS is not configured; S3 sink disabled")
		} else {
			sinks = append(sinks, snapshot.NewS3Sink(s3.NewFromConfig(*clients.Config), bucket, os.Getenv(EnvPrefix)))
		}
	}
	if len(sinks) == 0 {
		return nil
	}
	return sinks
}
