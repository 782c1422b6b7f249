package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pratik860s/Autopart-Backend/internal/config"
)

// IS3Storage defines the interface for S3 operations.
type IS3Storage interface {
	// GeneratePresignedPutURL returns a pre-signed PUT URL plus the generated
	// object key. scope groups objects, e.g. "enquiries" or "chat".
	GeneratePresignedPutURL(ctx context.Context, userID, scope, filename, contentType string) (string, string, error)
	// Upload writes the bytes directly and returns the object key and its
	// public URL.
	Upload(ctx context.Context, scope, filename, contentType string, data []byte) (string, string, error)
	// Download fetches an object's bytes, used by image post-processing.
	Download(ctx context.Context, key string) ([]byte, error)
	// PublicURL maps an object key to its public address.
	PublicURL(key string) string
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg           *config.Config
	s3Client      *s3.Client
	presignClient *s3.PresignClient
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Use static credentials from config for simplicity
		// For production, prefer IAM roles or other secure credential methods
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg)
	presignClient := s3.NewPresignClient(s3Client)

	return &s3Storage{
		cfg:           cfg,
		s3Client:      s3Client,
		presignClient: presignClient,
	}, nil
}

func objectKey(scope, filename string) string {
	// Filenames come from user uploads; keep only the last path element.
	if idx := strings.LastIndexAny(filename, "/\\"); idx >= 0 {
		filename = filename[idx+1:]
	}
	return fmt.Sprintf("uploads/%s/%s_%s", scope, uuid.NewString(), filename)
}

// GeneratePresignedPutURL creates a pre-signed URL for uploading an object.
// It returns the URL and the generated S3 object key.
func (s *s3Storage) GeneratePresignedPutURL(ctx context.Context, userID, scope, filename, contentType string) (string, string, error) {
	key := fmt.Sprintf("uploads/%s/%s/%s_%s", scope, userID, uuid.NewString(), filename)

	expiration := 15 * time.Minute

	presignParams := &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}

	presignedReq, err := s.presignClient.PresignPutObject(ctx, presignParams, s3.WithPresignExpires(expiration))
	if err != nil {
		return "", "", fmt.Errorf("failed to generate presigned PUT URL for key %s: %w", key, err)
	}

	return presignedReq.URL, key, nil
}

// Upload puts the object synchronously. Used by the pass-through upload
// endpoint and by image post-processing writing resized variants back.
func (s *s3Storage) Upload(ctx context.Context, scope, filename, contentType string, data []byte) (string, string, error) {
	key := objectKey(scope, filename)

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", "", fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	return key, s.PublicURL(key), nil
}

// Download reads the full object into memory. Uploaded images are capped by
// the request size limit so this stays bounded.
func (s *s3Storage) Download(ctx context.Context, key string) ([]byte, error) {
	out, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.AwsS3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", key, err)
	}
	defer out.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(out.Body); err != nil {
		return nil, fmt.Errorf("failed to read object %s: %w", key, err)
	}
	return buf.Bytes(), nil
}

func (s *s3Storage) PublicURL(key string) string {
	base := strings.TrimSuffix(s.cfg.ImageBaseS3URL, "/")
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", s.cfg.AwsS3Bucket, s.cfg.AwsRegion)
	}
	return base + "/" + key
}
