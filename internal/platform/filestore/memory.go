package filestore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
)

type storedFile struct {
	info    FileInfo
	content []byte
}

// MemoryStore is a thread-safe, in-memory Store for testing and development.
type MemoryStore struct {
	mu    sync.RWMutex
	files map[string]*storedFile
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*storedFile),
	}
}

// Save validates inputs, reads the content, computes a SHA-256 hash, and
// stores the file in memory.
func (s *MemoryStore) Save(_ context.Context, fileName, contentType string, content io.Reader) (*FileInfo, error) {
	if err := ValidateUpload(fileName, contentType, 0); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	h := sha256.Sum256(data)

	info := FileInfo{
		Key:         uuid.New().String(),
		FileName:    fileName,
		ContentType: contentType,
		Size:        int64(len(data)),
		Hash:        fmt.Sprintf("%x", h),
		StoredAt:    time.Now().UTC(),
	}

	s.mu.Lock()
	s.files[info.Key] = &storedFile{info: info, content: data}
	s.mu.Unlock()

	out := info // copy
	return &out, nil
}

// Open returns an io.ReadCloser over the file content and its metadata.
func (s *MemoryStore) Open(_ context.Context, key string) (io.ReadCloser, *FileInfo, error) {
	s.mu.RLock()
	f, ok := s.files[key]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrFileNotFound
	}

	info := f.info // copy
	return io.NopCloser(bytes.NewReader(f.content)), &info, nil
}

// Len returns the number of stored files.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}

// Delete removes a file by key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[key]; !ok {
		return ErrFileNotFound
	}
	delete(s.files, key)
	return nil
}
