// Package storage provides the artifact storage backends and the policy
// that picks between them.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/vidamed/backend/internal/domain/document"
	infraconfig "github.com/vidamed/backend/internal/infrastructure/config"
)

const pdfContentType = "application/pdf"

// versionSegment matches an optional CDN version path segment like "v1723456789"
var versionSegment = regexp.MustCompile(`^v\d+$`)

// RemoteObjectStore stores PDF artifacts in an S3-compatible bucket and
// addresses them through a public CDN base URL. It is compatible with any
// S3-compatible storage (AWS S3, MinIO, RustFS, etc.)
type RemoteObjectStore struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	logger        *zap.Logger
}

// NewRemoteObjectStore creates the remote backend from configuration.
// When the credentials are incomplete it returns a store that reports
// unavailable instead of failing startup; the caller falls back to the
// local backend.
func NewRemoteObjectStore(cfg *infraconfig.RemoteStorageConfig, logger *zap.Logger) (*RemoteObjectStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store := &RemoteObjectStore{logger: logger}

	if cfg == nil || !cfg.Configured() {
		logger.Warn("remote storage credentials incomplete, backend disabled")
		return store, nil
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid storage endpoint: %w", err)
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	store.client = s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		o.BaseEndpoint = aws.String(endpoint)
	})
	store.bucket = cfg.Bucket
	store.publicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")

	return store, nil
}

// Available reports whether the backend has a usable client
func (s *RemoteObjectStore) Available() bool {
	return s.client != nil
}

// Store uploads the PDF under "<category>/<id>" and returns a remote
// reference carrying the public URL.
func (s *RemoteObjectStore) Store(ctx context.Context, category, id string, data []byte) (document.ArtifactRef, error) {
	if !s.Available() {
		return document.ArtifactRef{}, errors.New("remote storage is not available")
	}
	if category == "" || id == "" {
		return document.ArtifactRef{}, errors.New("category and id are required")
	}

	key := category + "/" + id

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(pdfContentType),
	})
	if err != nil {
		return document.ArtifactRef{}, fmt.Errorf("failed to upload object %s: %w", key, err)
	}

	publicURL := s.publicBaseURL + "/" + key + ".pdf"

	s.logger.Info("artifact uploaded",
		zap.String("key", key),
		zap.Int("bytes", len(data)))

	return document.ArtifactRef{Backend: document.BackendRemote, Value: publicURL}, nil
}

// Delete removes the object a public URL points at. URLs that do not
// belong to this store's public base are ignored, and deleting an object
// that is already gone is not an error.
func (s *RemoteObjectStore) Delete(ctx context.Context, value string) error {
	if !s.Available() {
		return errors.New("remote storage is not available")
	}

	key, ok := s.extractKey(value)
	if !ok {
		s.logger.Warn("skipping delete of unrecognized artifact URL", zap.String("url", value))
		return nil
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object %s: %w", key, err)
	}

	return nil
}

// extractKey maps a public artifact URL back to its object key.
// It strips the public base, an optional version segment, and the
// file extension, e.g.
//
//	https://cdn.example/docs/v1700000000/certificates/42.pdf -> certificates/42
func (s *RemoteObjectStore) extractKey(value string) (string, bool) {
	if s.publicBaseURL == "" || !strings.HasPrefix(value, s.publicBaseURL+"/") {
		return "", false
	}

	rest := strings.TrimPrefix(value, s.publicBaseURL+"/")

	parts := strings.Split(rest, "/")
	if len(parts) > 1 && versionSegment.MatchString(parts[0]) {
		parts = parts[1:]
	}
	rest = strings.Join(parts, "/")

	if idx := strings.LastIndex(rest, "."); idx > strings.LastIndex(rest, "/") {
		rest = rest[:idx]
	}

	if rest == "" {
		return "", false
	}
	return rest, true
}
