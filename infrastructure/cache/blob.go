package cache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BlobStore holds the whole serialized cache as a single value
type BlobStore interface {
	Load() ([]byte, error)
	Store(data []byte) error
}

// MemoryBlob keeps the serialized cache in process memory
type MemoryBlob struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryBlob creates an empty in-memory blob
func NewMemoryBlob() *MemoryBlob {
	return &MemoryBlob{}
}

func (b *MemoryBlob) Load() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out, nil
}

func (b *MemoryBlob) Store(data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = make([]byte, len(data))
	copy(b.data, data)
	return nil
}

// FileBlob persists the serialized cache to a file so it survives restarts
type FileBlob struct {
	path string
}

// NewFileBlob creates a file-backed blob, creating parent directories as needed
func NewFileBlob(path string) (*FileBlob, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &FileBlob{path: path}, nil
}

func (b *FileBlob) Load() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (b *FileBlob) Store(data []byte) error {
	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, b.path)
}
