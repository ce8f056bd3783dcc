// Package memory keeps canvas snapshots in process memory.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"
)

// CanvasStore is an in-memory ports.CanvasRepository. Snapshots are stored
// encoded so callers never share node payloads with the store.
type CanvasStore struct {
	mu       sync.RWMutex
	canvases map[string][]byte
	clock    utils.Clock
}

var _ ports.CanvasRepository = (*CanvasStore)(nil)

// NewCanvasStore creates an empty store
func NewCanvasStore(clock utils.Clock) *CanvasStore {
	if clock == nil {
		clock = utils.RealClock()
	}
	return &CanvasStore{canvases: make(map[string][]byte), clock: clock}
}

// Save stores a copy of the snapshot
func (s *CanvasStore) Save(ctx context.Context, snapshot aggregates.Snapshot) (string, error) {
	if snapshot.ID == "" {
		snapshot.ID = valueobjects.NewID()
	}
	snapshot.UpdatedAt = s.clock.Now()
	raw, err := json.Marshal(snapshot)
	if err != nil {
		return "", pkgerrors.NewInternalError("encode canvas").WithCause(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.canvases[snapshot.ID] = raw
	return snapshot.ID, nil
}

// Load returns a copy of a stored snapshot
func (s *CanvasStore) Load(ctx context.Context, id string) (aggregates.Snapshot, error) {
	s.mu.RLock()
	raw, ok := s.canvases[id]
	s.mu.RUnlock()
	if !ok {
		return aggregates.Snapshot{}, pkgerrors.NewNotFoundError("canvas")
	}
	var snap aggregates.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return aggregates.Snapshot{}, pkgerrors.NewInternalError("decode canvas").WithCause(err)
	}
	return snap, nil
}

// List returns the client's canvases, most recently updated first
func (s *CanvasStore) List(ctx context.Context, clientID string) ([]ports.CanvasSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ports.CanvasSummary, 0, len(s.canvases))
	for _, raw := range s.canvases {
		var head aggregates.Snapshot
		if err := json.Unmarshal(raw, &head); err != nil {
			continue
		}
		if clientID != "" && head.ClientID != clientID {
			continue
		}
		out = append(out, ports.CanvasSummary{ID: head.ID, Name: head.Name, UpdatedAt: head.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

// Delete removes a canvas
func (s *CanvasStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.canvases, id)
	return nil
}

// LibraryStore is an in-memory ports.LibraryRepository
type LibraryStore struct {
	mu    sync.RWMutex
	items map[string]ports.LibraryItem
}

var _ ports.LibraryRepository = (*LibraryStore)(nil)

// NewLibraryStore creates a library holding the given items
func NewLibraryStore(items ...ports.LibraryItem) *LibraryStore {
	s := &LibraryStore{items: make(map[string]ports.LibraryItem)}
	for _, item := range items {
		s.items[item.ID] = item
	}
	return s
}

// Put adds or replaces an item
func (s *LibraryStore) Put(item ports.LibraryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[item.ID] = item
}

// Get returns an item of the client's library
func (s *LibraryStore) Get(ctx context.Context, clientID, itemID string) (ports.LibraryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[itemID]
	if !ok || (clientID != "" && item.ClientID != "" && item.ClientID != clientID) {
		return ports.LibraryItem{}, pkgerrors.NewNotFoundError("library item")
	}
	return item, nil
}
