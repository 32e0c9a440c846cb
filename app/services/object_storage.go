package services

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/amirphl/omc-bdc-price-service/config"
	"github.com/amirphl/omc-bdc-price-service/utils"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// StoredObject is an uploaded object and its public URL
type StoredObject struct {
	Key string
	URL string
}

// PresignedUpload is a time-limited PUT target for a client-side upload
type PresignedUpload struct {
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	UploadURL string    `json:"upload_url"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ObjectStorage stores price entry images
type ObjectStorage interface {
	Upload(ctx context.Context, fileName, contentType string, content []byte) (StoredObject, error)
	Delete(ctx context.Context, key string) error
	Presign(ctx context.Context, fileName string, ttl time.Duration) (PresignedUpload, error)
}

// S3ObjectStorage implements ObjectStorage on an S3-compatible bucket
type S3ObjectStorage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	keyPrefix string
	publicURL string
}

// NewS3ObjectStorage builds an S3 client from the storage configuration
func NewS3ObjectStorage(ctx context.Context, cfg config.StorageConfig) (*S3ObjectStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage configuration: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	publicURL := utils.TrimRightSlash(cfg.Endpoint)
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://s3.%s.amazonaws.com", cfg.Region)
	}

	return &S3ObjectStorage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		keyPrefix: strings.Trim(cfg.KeyPrefix, "/"),
		publicURL: publicURL,
	}, nil
}

// objectKey builds <prefix>/<uuid>.<ext> from the original file name
func (s *S3ObjectStorage) objectKey(fileName string) string {
	name := uuid.New().String()
	if ext := strings.ToLower(filepath.Ext(fileName)); ext != "" {
		name += ext
	}
	if s.keyPrefix == "" {
		return name
	}
	return path.Join(s.keyPrefix, name)
}

// URLFor returns the public URL of key: endpoint/bucket/key
func (s *S3ObjectStorage) URLFor(key string) string {
	return s.publicURL + "/" + s.bucket + "/" + key
}

// Upload stores content under a fresh key
func (s *S3ObjectStorage) Upload(ctx context.Context, fileName, contentType string, content []byte) (StoredObject, error) {
	key := s.objectKey(fileName)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(content),
		ContentLength: aws.Int64(int64(len(content))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return StoredObject{}, fmt.Errorf("failed to upload %s: %w", key, err)
	}

	return StoredObject{Key: key, URL: s.URLFor(key)}, nil
}

// Delete removes the object stored under key
func (s *S3ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Presign returns a PUT URL for fileName valid for ttl
func (s *S3ObjectStorage) Presign(ctx context.Context, fileName string, ttl time.Duration) (PresignedUpload, error) {
	if ttl <= 0 {
		ttl = utils.PresignDefaultTTLSeconds * time.Second
	}
	key := s.objectKey(fileName)

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return PresignedUpload{
		Name:      fileName,
		Key:       key,
		UploadURL: req.URL,
		PublicURL: s.URLFor(key),
		ExpiresAt: utils.UTCNow().Add(ttl),
	}, nil
}
