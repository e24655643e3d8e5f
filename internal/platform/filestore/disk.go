package filestore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// DiskStore persists files under a base directory on the local filesystem.
// Content is written to <base>/<key> and metadata to <base>/<key>.json.
type DiskStore struct {
	base string
}

// NewDiskStore creates the base directory if needed and returns a DiskStore.
func NewDiskStore(base string) (*DiskStore, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory %s: %w", base, err)
	}
	return &DiskStore{base: base}, nil
}

func (s *DiskStore) contentPath(key string) string {
	return filepath.Join(s.base, key)
}

func (s *DiskStore) metaPath(key string) string {
	return filepath.Join(s.base, key+".json")
}

// Save validates inputs, streams the content to disk, and writes a metadata
// sidecar file next to it.
func (s *DiskStore) Save(_ context.Context, fileName, contentType string, content io.Reader) (*FileInfo, error) {
	if err := ValidateUpload(fileName, contentType, 0); err != nil {
		return nil, err
	}

	key := uuid.New().String()
	path := s.contentPath(key)

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create file %s: %w", path, err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(f, h), io.LimitReader(content, MaxFileSize+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write file content: %w", err)
	}
	if size > MaxFileSize {
		os.Remove(path)
		return nil, ErrFileTooLarge
	}

	info := FileInfo{
		Key:         key,
		FileName:    fileName,
		ContentType: contentType,
		Size:        size,
		Hash:        fmt.Sprintf("%x", h.Sum(nil)),
		StoredAt:    time.Now().UTC(),
	}

	meta, err := json.Marshal(info)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(key), meta, 0o644); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	out := info // copy
	return &out, nil
}

// Open returns the file content and its metadata.
func (s *DiskStore) Open(_ context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	meta, err := s.readMeta(key)
	if err != nil {
		return nil, nil, err
	}

	f, err := os.Open(s.contentPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, ErrFileNotFound
		}
		return nil, nil, fmt.Errorf("open file %s: %w", key, err)
	}

	return f, meta, nil
}

// Delete removes the file and its metadata sidecar.
func (s *DiskStore) Delete(_ context.Context, key string) error {
	if _, err := s.readMeta(key); err != nil {
		return err
	}
	if err := os.Remove(s.contentPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove file %s: %w", key, err)
	}
	if err := os.Remove(s.metaPath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove metadata %s: %w", key, err)
	}
	return nil
}

func (s *DiskStore) readMeta(key string) (*FileInfo, error) {
	data, err := os.ReadFile(s.metaPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("read metadata %s: %w", key, err)
	}

	var info FileInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal metadata %s: %w", key, err)
	}
	return &info, nil
}
