package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// PutObjectAPI is the subset of *s3.Client used by S3Sink.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink uploads screenshots under prefix/<username>/<filename>.
type S3Sink struct {
	client PutObjectAPI
	bucket string
	prefix string
}

// NewS3Sink returns a sink writing to bucket.
func NewS3Sink(client PutObjectAPI, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for shot.
func (s *S3Sink) Key(shot Shot) string {
	return path.Join(s.prefix, shot.Username, shot.Filename)
}

func (s *S3Sink) Deliver(ctx context.Context, shot Shot) error {
	key := s.Key(shot)
	contentType := "image/jpeg"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(shot.Data),
		ContentType: &contentType,
		Metadata: map[string]string{
			"profile-url": shot.ProfileURL,
			"captured-at": shot.TakenAt.Format(isoMillis),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to upload screenshot to S3: %w", err)
	}

	log.Info().
		Str("bucket", s.bucket).
		Str("key", key).
		Msg("Screenshot uploaded to S3")
	return nil
}
