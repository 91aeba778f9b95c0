// Package retention archives transactions past the retention period and then
// removes them from the database.
package retention

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"cloud.google.com/go/storage"
)

// Archiver stores an archive object and returns its URI.
type Archiver interface {
	Archive(ctx context.Context, objectName string, data []byte) (string, error)
}

// GCSArchiver writes archives to a Google Cloud Storage bucket. It uses
// Application Default Credentials.
type GCSArchiver struct {
	client *storage.Client
	bucket string
}

// NewGCSArchiver creates a storage client for bucket.
func NewGCSArchiver(ctx context.Context, bucket string) (*GCSArchiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("retention bucket is required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchiver{client: client, bucket: bucket}, nil
}

// Archive uploads data as objectName.
func (a *GCSArchiver) Archive(ctx context.Context, objectName string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := a.client.Bucket(a.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("copy archive to GCS writer: %w", err)
	}
	// Close finalizes the upload; a failure here means the object was not written.
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, objectName), nil
}

// Close releases the storage client.
func (a *GCSArchiver) Close() error {
	return a.client.Close()
}

// MockArchiver keeps archives in memory for tests.
type MockArchiver struct {
	Err     error
	Objects map[string][]byte
	mu      sync.Mutex
}

// Archive implements Archiver.
func (m *MockArchiver) Archive(_ context.Context, objectName string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	if m.Objects == nil {
		m.Objects = make(map[string][]byte)
	}
	m.Objects[objectName] = data
	return "mem://" + objectName, nil
}

var (
	_ Archiver = (*GCSArchiver)(nil)
	_ Archiver = (*MockArchiver)(nil)
)
