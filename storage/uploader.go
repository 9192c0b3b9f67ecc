package storage

import (
	"context"
	"errors"
	"io"
)

type UploadResult struct {
	Key      string
	Location string
	ETag     string
}

// FileUploader is the narrow interface onto object storage. The core uses it
// only for team crest images.
type FileUploader interface {
	Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error)

	Delete(ctx context.Context, key string) error

	GetPublicURL(key string) string
}

var ErrUploadsDisabled = errors.New("object storage is not configured")

type disabledUploader struct{}

// NewDisabledUploader backs deployments without object storage credentials.
// Uploads fail with ErrUploadsDisabled; already stored keys resolve to no URL.
func NewDisabledUploader() FileUploader {
	return disabledUploader{}
}

func (disabledUploader) Upload(ctx context.Context, key string, contentType string, reader io.Reader) (*UploadResult, error) {
	return nil, ErrUploadsDisabled
}

func (disabledUploader) Delete(ctx context.Context, key string) error {
	return ErrUploadsDisabled
}

func (disabledUploader) GetPublicURL(key string) string {
	return ""
}
