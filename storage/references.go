package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const maxReferenceBytes int64 = 10 * 1024 * 1024

// ReferenceStorage keeps uploaded reference material (style boards, model
// sheets, bundle extractions) in MinIO/S3. Generated assets stay on the local
// ImageStore; only user-provided references go through here.
type ReferenceStorage struct {
	client *minio.Client
	bucket string
}

// NewReferenceStorageFromEnv initialises ReferenceStorage from MINIO_*
// environment variables. Returns (nil, nil) when unconfigured, in which case
// reference uploads are rejected at the handler.
func NewReferenceStorageFromEnv() (*ReferenceStorage, error) {
	endpoint := strings.TrimSpace(os.Getenv("MINIO_ENDPOINT"))
	accessKey := strings.TrimSpace(os.Getenv("MINIO_ACCESS_KEY"))
	secretKey := strings.TrimSpace(os.Getenv("MINIO_SECRET_KEY"))
	bucket := strings.TrimSpace(os.Getenv("MINIO_BUCKET"))
	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		return nil, nil
	}

	useSSL := strings.EqualFold(strings.TrimSpace(os.Getenv("MINIO_USE_SSL")), "true")
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: init minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}

	return &ReferenceStorage{client: client, bucket: bucket}, nil
}

// Enabled reports whether the object store is configured.
func (s *ReferenceStorage) Enabled() bool {
	return s != nil && s.client != nil
}

// Upload stores one reference image beneath references/<segments...> and
// returns the object key persisted as the Asset's file path.
func (s *ReferenceStorage) Upload(ctx context.Context, data []byte, originalName string, segments ...string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("storage: reference storage not configured")
	}
	if len(data) == 0 {
		return "", errors.New("storage: reference image is empty")
	}
	if int64(len(data)) > maxReferenceBytes {
		return "", fmt.Errorf("storage: reference image exceeds %d bytes", maxReferenceBytes)
	}

	contentType := http.DetectContentType(data)
	if !isAllowedReferenceContent(contentType) {
		return "", fmt.Errorf("storage: unsupported reference content type %q", contentType)
	}

	keySegments := []string{"references"}
	for _, segment := range segments {
		trimmed := strings.Trim(segment, "/")
		if trimmed != "" {
			keySegments = append(keySegments, trimmed)
		}
	}
	objectName := path.Join(append(keySegments, fmt.Sprintf("%s%s", uuid.NewString(), referenceExtension(originalName, contentType)))...)

	uploadCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	reader := bytes.NewReader(data)
	_, err := s.client.PutObject(uploadCtx, s.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("storage: upload reference: %w", err)
	}

	return objectName, nil
}

// PresignedURL returns a temporary download URL for a stored reference.
func (s *ReferenceStorage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	if !s.Enabled() {
		return "", errors.New("storage: reference storage not configured")
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(objectName), "/")
	if trimmed == "" {
		return "", errors.New("storage: empty object name")
	}
	if expiry <= 0 {
		expiry = 15 * time.Minute
	}

	presignCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	signed, err := s.client.PresignedGetObject(presignCtx, s.bucket, trimmed, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("storage: presign reference: %w", err)
	}
	return signed.String(), nil
}

// Fetch downloads a stored reference so it can accompany a model call.
func (s *ReferenceStorage) Fetch(ctx context.Context, objectName string) ([]byte, error) {
	if !s.Enabled() {
		return nil, errors.New("storage: reference storage not configured")
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(objectName), "/")
	if trimmed == "" {
		return nil, errors.New("storage: empty object name")
	}

	fetchCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	object, err := s.client.GetObject(fetchCtx, s.bucket, trimmed, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("storage: fetch reference: %w", err)
	}
	defer object.Close()

	var buffer bytes.Buffer
	if _, err := buffer.ReadFrom(object); err != nil {
		return nil, fmt.Errorf("storage: read reference: %w", err)
	}
	return buffer.Bytes(), nil
}

// Remove deletes a stored reference object.
func (s *ReferenceStorage) Remove(ctx context.Context, objectName string) error {
	if !s.Enabled() {
		return nil
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(objectName), "/")
	if trimmed == "" {
		return nil
	}

	removeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return s.client.RemoveObject(removeCtx, s.bucket, trimmed, minio.RemoveObjectOptions{})
}

func isAllowedReferenceContent(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return true
	case "image/jpeg", "image/pjpeg":
		return true
	case "image/webp":
		return true
	case "image/gif":
		return true
	default:
		return false
	}
}

func referenceExtension(filename, contentType string) string {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "image/png", "image/x-png":
		return ".png"
	case "image/jpeg", "image/pjpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	}
	ext := strings.ToLower(strings.TrimSpace(path.Ext(filename)))
	if ext == "" {
		return ".png"
	}
	return ext
}
