package storage

import (
	"sync"

	"canvas-backend/domain/core/valueobjects"
)

const localPrefix = "local:"

type localObject struct {
	name     string
	mimeType string
	data     []byte
}

// LocalMediaStore keeps media bytes in process memory under "local:" references.
// References do not survive a restart.
type LocalMediaStore struct {
	mu      sync.RWMutex
	objects map[string]localObject
}

// NewLocalMediaStore creates an empty store
func NewLocalMediaStore() *LocalMediaStore {
	return &LocalMediaStore{objects: make(map[string]localObject)}
}

// Put stores a copy of data and returns its reference
func (s *LocalMediaStore) Put(name, mimeType string, data []byte) string {
	buf := make([]byte, len(data))
	copy(buf, data)
	ref := localPrefix + valueobjects.NewID()

	s.mu.Lock()
	s.objects[ref] = localObject{name: name, mimeType: mimeType, data: buf}
	s.mu.Unlock()
	return ref
}

// Get returns the bytes and MIME type behind a reference
func (s *LocalMediaStore) Get(ref string) ([]byte, string, bool) {
	s.mu.RLock()
	obj, ok := s.objects[ref]
	s.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	return obj.data, obj.mimeType, true
}

// Len returns the number of stored objects
func (s *LocalMediaStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
