// File: internal/artifacts/s3.go
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// putObjectAPI is the part of the S3 client the mirror uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror copies proof screenshots to a bucket for audit. The local file
// stays authoritative; upload failures are logged and otherwise ignored.
type S3Mirror struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewS3Mirror loads the default AWS credential chain for region.
func NewS3Mirror(ctx context.Context, region, bucket, prefix string, logger *zap.Logger) (*S3Mirror, error) {
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return newS3Mirror(s3.NewFromConfig(cfg), bucket, prefix, logger), nil
}

func newS3Mirror(client putObjectAPI, bucket, prefix string, logger *zap.Logger) *S3Mirror {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &S3Mirror{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		logger: logger.Named("s3mirror"),
	}
}

// Key returns the object key for a job's file.
func (m *S3Mirror) Key(jobID, name string) string {
	return path.Join(m.prefix, safeSegment(jobID), name)
}

// Mirror uploads the file at localPath and returns its s3:// URI, or "" when
// the upload failed.
func (m *S3Mirror) Mirror(ctx context.Context, jobID, localPath string) string {
	f, err := os.Open(localPath)
	if err != nil {
		m.logger.Warn("Failed to open artifact for upload.", zap.String("path", localPath), zap.Error(err))
		return ""
	}
	defer f.Close()

	key := m.Key(jobID, path.Base(localPath))
	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("image/png"),
	})
	if err != nil {
		m.logger.Warn("Failed to mirror artifact to S3.", zap.String("key", key), zap.Error(err))
		return ""
	}
	uri := fmt.Sprintf("s3://%s/%s", m.bucket, key)
	m.logger.Debug("Mirrored artifact.", zap.String("uri", uri))
	return uri
}
