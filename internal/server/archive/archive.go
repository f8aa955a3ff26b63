// Package archive copies accepted envelopes to object storage.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/dmitrijs2005/deviceguard/internal/common"
)

// Archiver stores the raw envelope of snapshot id.
type Archiver interface {
	Archive(ctx context.Context, id string, receivedAt time.Time, envelope []byte) (key string, err error)
}

// NopArchiver is used when no bucket is configured.
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, string, time.Time, []byte) (string, error) {
	return "", nil
}

// ObjectKey lays objects out by receive date.
func ObjectKey(id string, receivedAt time.Time) string {
	d := receivedAt.UTC()
	return fmt.Sprintf("snapshots/%d/%d/%d/%s.json", d.Year(), d.Month(), d.Day(), id)
}

// Options configure an S3Archiver. AccessKey and SecretKey may be empty to
// use the default credential chain. BaseEndpoint targets S3-compatible
// storage such as MinIO.
type Options struct {
	Bucket       string
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

// putObjectAPI is the subset of *s3.Client used here.
type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

type S3Archiver struct {
	client putObjectAPI
	bucket string
}

// NewS3Archiver builds an S3 client from o.
func NewS3Archiver(ctx context.Context, o Options) (*S3Archiver, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(o.Region)}
	if o.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(so *s3.Options) {
		if o.BaseEndpoint != "" {
			so.BaseEndpoint = aws.String(o.BaseEndpoint)
			so.UsePathStyle = true
		}
	})
	return &S3Archiver{client: client, bucket: o.Bucket}, nil
}

func (a *S3Archiver) Archive(ctx context.Context, id string, receivedAt time.Time, envelope []byte) (string, error) {
	key := ObjectKey(id, receivedAt)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(envelope),
		ContentType: aws.String(common.JSONContentType),
	})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return key, nil
}
