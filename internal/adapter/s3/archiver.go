// Package s3 uploads rotated dataset archives to an S3-compatible bucket.
package s3

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// putObjectAPI is the subset of the S3 client the archiver uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver uploads archive files under a key prefix.
// It implements pipeline.Archiver.
type Archiver struct {
	client putObjectAPI
	bucket string
	prefix string
	logger *slog.Logger
}

// NewArchiver creates an archiver for bucket. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewArchiver(ctx context.Context, bucket, prefix, region, endpoint string, logger *slog.Logger) (*Archiver, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return &Archiver{
		client: s3.NewFromConfig(cfg, s3opts...),
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Upload stores the file at localPath as <prefix><file name> and returns the key.
func (a *Archiver) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	key := ObjectKey(a.prefix, localPath)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("s3 put object: %w", err)
	}

	a.logger.Info("archive uploaded", "bucket", a.bucket, "key", key)
	return key, nil
}

// ObjectKey joins prefix and the base name of localPath with a single slash.
func ObjectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
