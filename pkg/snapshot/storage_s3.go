package snapshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Storage keeps captures in an S3 bucket.
type S3Storage struct {
	client *s3.Client
	bucket string
	prefix string
}

func NewS3Storage(client *s3.Client, bucket, prefix string) *S3Storage {
	return &S3Storage{
		client: client,
		bucket: bucket,
		prefix: strings.TrimSuffix(prefix, "/"),
	}
}

// NewS3StorageFromEnv builds the client from the ambient AWS credential
// chain. ASTRELAY_S3_ENDPOINT plus ASTRELAY_S3_ACCESS_KEY/SECRET_KEY
// switch to a self-hosted S3-compatible store (MinIO and friends).
func NewS3StorageFromEnv(ctx context.Context, region, bucket, prefix string) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	accessKey := os.Getenv("ASTRELAY_S3_ACCESS_KEY")
	secretKey := os.Getenv("ASTRELAY_S3_SECRET_KEY")
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if endpoint := os.Getenv("ASTRELAY_S3_ENDPOINT"); endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	return NewS3Storage(s3.NewFromConfig(cfg, clientOpts...), bucket, prefix), nil
}

func (s *S3Storage) key(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *S3Storage) Save(ctx context.Context, name string, data io.Reader) error {
	body, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read snapshot data: %w", err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload snapshot to S3: %w", err)
	}
	return nil
}

func (s *S3Storage) Load(ctx context.Context, name string) (io.ReadCloser, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot from S3: %w", err)
	}
	return result.Body, nil
}

func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	result, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.key(prefix)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots in S3: %w", err)
	}

	var names []string
	for _, obj := range result.Contents {
		key := aws.ToString(obj.Key)
		if s.prefix != "" {
			key = strings.TrimPrefix(key, s.prefix+"/")
		}
		names = append(names, key)
	}
	return names, nil
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return fmt.Errorf("failed to delete snapshot from S3: %w", err)
	}
	return nil
}
