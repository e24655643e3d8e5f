package filestore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name        string
		fileName    string
		contentType string
		size        int64
		wantErr     error
	}{
		{"valid pdf", "referral.pdf", "application/pdf", 1024, nil},
		{"valid jpeg", "scan.jpg", "image/jpeg", 1024, nil},
		{"valid png", "scan.png", "image/png", 1024, nil},
		{"valid webp", "scan.webp", "image/webp", 1024, nil},
		{"missing name", "", "application/pdf", 1024, ErrMissingFileName},
		{"bad content type", "virus.exe", "application/octet-stream", 1024, ErrInvalidContentType},
		{"gif rejected", "anim.gif", "image/gif", 1024, ErrInvalidContentType},
		{"too large", "big.pdf", "application/pdf", MaxFileSize + 1, ErrFileTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.fileName, tt.contentType, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ValidateUpload() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestMemoryStore_SaveAndOpen(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	content := []byte("pdf bytes here")
	info, err := store.Save(ctx, "referral.pdf", "application/pdf", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Key == "" {
		t.Error("expected a generated key")
	}
	if info.Size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), info.Size)
	}
	if info.Hash == "" {
		t.Error("expected content hash")
	}

	rc, meta, err := store.Open(ctx, info.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Error("content mismatch after round trip")
	}
	if meta.FileName != "referral.pdf" {
		t.Errorf("expected file name preserved, got %s", meta.FileName)
	}
}

func TestMemoryStore_RejectsInvalidContentType(t *testing.T) {
	store := NewMemoryStore()
	_, err := store.Save(context.Background(), "notes.txt", "text/plain", strings.NewReader("hi"))
	if !errors.Is(err, ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}
}

func TestMemoryStore_RejectsOversizedContent(t *testing.T) {
	store := NewMemoryStore()
	big := bytes.NewReader(make([]byte, MaxFileSize+1))
	_, err := store.Save(context.Background(), "big.pdf", "application/pdf", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
}

func TestMemoryStore_Delete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	info, err := store.Save(ctx, "scan.png", "image/png", strings.NewReader("png"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, info.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := store.Open(ctx, info.Key); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound after delete, got %v", err)
	}

	if err := store.Delete(ctx, info.Key); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound on double delete, got %v", err)
	}
}

func TestDiskStore_SaveAndOpen(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	content := []byte("jpeg bytes")
	info, err := store.Save(ctx, "photo.jpg", "image/jpeg", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	rc, meta, err := store.Open(ctx, info.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()

	got, _ := io.ReadAll(rc)
	if !bytes.Equal(got, content) {
		t.Error("content mismatch after round trip")
	}
	if meta.ContentType != "image/jpeg" {
		t.Errorf("expected content type preserved, got %s", meta.ContentType)
	}
	if meta.Hash != info.Hash {
		t.Error("expected metadata hash to survive round trip")
	}
}

func TestDiskStore_Delete(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	ctx := context.Background()

	info, err := store.Save(ctx, "doc.pdf", "application/pdf", strings.NewReader("pdf"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := store.Delete(ctx, info.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if _, _, err := store.Open(ctx, info.Key); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound after delete, got %v", err)
	}
}

func TestDiskStore_OpenMissing(t *testing.T) {
	store, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if _, _, err := store.Open(context.Background(), "nope"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}
