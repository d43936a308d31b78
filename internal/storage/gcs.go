package storage

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSProvider mirrors objects into a Google Cloud Storage bucket.
// Authentication is handled via Application Default Credentials.
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// NewGCSProvider initializes the GCS client and verifies bucket access
// so misconfiguration fails at startup rather than mid-run.
func NewGCSProvider(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("Failed to close GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("check gcs bucket %q: %w", bucket, err)
	}

	return &GCSProvider{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger,
	}, nil
}

// Save uploads data under prefix/objectName in the bucket.
func (g *GCSProvider) Save(ctx context.Context, objectName string, data []byte) error {
	name := objectName
	if g.prefix != "" {
		name = path.Join(g.prefix, objectName)
	}
	w := g.client.Bucket(g.bucket).Object(name).NewWriter(ctx)
	if _, err := w.Write(data); err != nil {
		if cerr := w.Close(); cerr != nil {
			g.logger.Warn("Failed to close GCS writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("write gcs object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize gcs object %s: %w", name, err)
	}
	return nil
}

// Close closes the underlying client.
func (g *GCSProvider) Close() error {
	if err := g.client.Close(); err != nil {
		return fmt.Errorf("close gcs client: %w", err)
	}
	return nil
}
