package supabase

import (
	"context"
	"errors"
	"io"
	"sync"

	"canvas-backend/application/ports"
	pkgerrors "canvas-backend/pkg/errors"

	storage "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// MediaStorage uploads media to a public storage bucket
type MediaStorage struct {
	// the storage client keeps upload options in shared headers
	mu     sync.Mutex
	client *storage.Client
	bucket string
	logger *zap.Logger
}

var _ ports.ObjectStorage = (*MediaStorage)(nil)

// NewMediaStorage creates a bucket adapter
func NewMediaStorage(client *storage.Client, bucket string, logger *zap.Logger) *MediaStorage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaStorage{client: client, bucket: bucket, logger: logger}
}

// Upload stores the object at path and returns its public URL
func (s *MediaStorage) Upload(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	upsert := true
	opts := storage.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}

	s.mu.Lock()
	resp, err := s.client.UploadFile(s.bucket, path, data, opts)
	s.mu.Unlock()
	if err != nil {
		return "", pkgerrors.NewExternalError("storage", err)
	}
	if resp.Error != "" {
		return "", pkgerrors.NewExternalError("storage", errors.New(resp.Error+": "+resp.Message))
	}

	url := s.client.GetPublicUrl(s.bucket, path).SignedURL
	s.logger.Debug("Uploaded media", zap.String("path", path), zap.String("url", url))
	return url, nil
}
