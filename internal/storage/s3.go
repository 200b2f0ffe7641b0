package storage

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"account-service/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const documentPrefix = "identity-documents"

// DocumentStore keeps uploaded identity documents.
type DocumentStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a client for AWS or, with an endpoint set, an
// S3-compatible server such as MinIO.
func NewS3Client(ctx context.Context, storage utils.StorageConfig) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(storage.Region),
	}
	if storage.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(storage.AccessKey, storage.SecretKey, ""),
		))
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(storage.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

type S3Store struct {
	client putObjectAPI
	bucket string
	log    *zap.Logger
}

func NewS3Store(client putObjectAPI, bucket string, log *zap.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		log:    log.With(zap.String("storage", "s3")),
	}
}

func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.Error("Failed to store document",
			zap.Error(err),
			zap.String("bucket", s.bucket),
			zap.String("key", key),
		)
		return fmt.Errorf("put object %s: %w", key, err)
	}

	return nil
}

// DocumentKey names a new object for the user's upload, keeping the file
// extension of the original name.
func DocumentKey(userID uuid.UUID, filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s/%s/%s%s", documentPrefix, userID.String(), utils.GenerateUUID().String(), ext)
}
