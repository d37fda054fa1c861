// Package blob implements the compliance export adapter (C9's bulk export
// path) against Google Cloud Storage.
package blob

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"

	"github.com/wagateway/core/internal/core/ports"
)

var _ ports.ExportStore = (*GCSExportStore)(nil)

// GCSExportStore writes audit export archives as objects in one bucket,
// generalizing the object-write idiom from the pack's GCS client
// (storage.Client.Bucket(...).Object(...).NewWriter) into one call with
// no local-file intermediate, since exports are already in memory as the
// audit chain builds them.
type GCSExportStore struct {
	client *storage.Client
	bucket string
}

// NewGCSExportStore wires an already-authenticated *storage.Client and
// the destination bucket name.
func NewGCSExportStore(client *storage.Client, bucket string) *GCSExportStore {
	return &GCSExportStore{client: client, bucket: bucket}
}

// PutExport uploads data under objectKey and returns the full
// gs://bucket/objectKey reference an operator can use to fetch it.
func (s *GCSExportStore) PutExport(ctx context.Context, objectKey string, data []byte, contentType string) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(objectKey)
	writer := obj.NewWriter(ctx)
	writer.ContentType = contentType
	writer.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("write export object %s: %w", objectKey, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close export object %s: %w", objectKey, err)
	}

	return fmt.Sprintf("gs://%s/%s", s.bucket, objectKey), nil
}
