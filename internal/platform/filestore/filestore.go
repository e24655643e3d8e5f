// Package filestore provides storage for referral document attachments.
// It defines the Store interface, an in-memory implementation suitable for
// testing and development, and a local-disk implementation for deployments
// without an object store.
package filestore

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrFileNotFound       = errors.New("file not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrMissingFileName    = errors.New("file name is required")
)

// MaxFileSize is the maximum allowed attachment size in bytes (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// AllowedContentTypes lists the MIME types accepted for referral documents.
var AllowedContentTypes = map[string]bool{
	"image/jpeg":      true,
	"image/png":       true,
	"image/webp":      true,
	"application/pdf": true,
}

// FileInfo describes a stored file.
type FileInfo struct {
	Key         string    `json:"key"`
	FileName    string    `json:"file_name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	StoredAt    time.Time `json:"stored_at"`
}

// Store defines the contract for document storage backends.
type Store interface {
	Save(ctx context.Context, fileName, contentType string, content io.Reader) (*FileInfo, error)
	Open(ctx context.Context, key string) (io.ReadCloser, *FileInfo, error)
	Delete(ctx context.Context, key string) error
}

// ValidateUpload checks the file name, content type and declared size before
// any bytes are stored. A size of zero means unknown and is checked again
// while reading.
func ValidateUpload(fileName, contentType string, size int64) error {
	if fileName == "" {
		return ErrMissingFileName
	}
	if !AllowedContentTypes[contentType] {
		return ErrInvalidContentType
	}
	if size > MaxFileSize {
		return ErrFileTooLarge
	}
	return nil
}
