// Package mocks provides testify mocks of the application ports.
package mocks

import (
	"context"
	"io"
	"sync"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/events"

	"github.com/stretchr/testify/mock"
)

// MockExtractors mocks ports.Extractors
type MockExtractors struct {
	mock.Mock
}

func (m *MockExtractors) ExtractYouTube(ctx context.Context, url string) (*ports.Extracted, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Extracted), args.Error(1)
}

func (m *MockExtractors) ExtractInstagram(ctx context.Context, url string) (*ports.Extracted, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Extracted), args.Error(1)
}

func (m *MockExtractors) FetchURL(ctx context.Context, url string) (*ports.Extracted, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.Extracted), args.Error(1)
}

func (m *MockExtractors) Transcribe(ctx context.Context, media ports.MediaRef) (ports.Transcript, error) {
	args := m.Called(ctx, media)
	return args.Get(0).(ports.Transcript), args.Error(1)
}

func (m *MockExtractors) ExtractImagesText(ctx context.Context, imageURLs []string) (string, error) {
	args := m.Called(ctx, imageURLs)
	return args.String(0), args.Error(1)
}

// MockImageAnalyzer mocks ports.ImageAnalyzer
type MockImageAnalyzer struct {
	mock.Mock
}

func (m *MockImageAnalyzer) OCR(ctx context.Context, image ports.MediaRef) (string, error) {
	args := m.Called(ctx, image)
	return args.String(0), args.Error(1)
}

func (m *MockImageAnalyzer) AnalyzeStyle(ctx context.Context, image ports.MediaRef) (map[string]interface{}, error) {
	args := m.Called(ctx, image)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]interface{}), args.Error(1)
}

// MockTextGenerator mocks ports.TextGenerator
type MockTextGenerator struct {
	mock.Mock
}

func (m *MockTextGenerator) StreamText(ctx context.Context, req ports.TextRequest) (io.ReadCloser, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

// MockImageGenerator mocks ports.ImageGenerator
type MockImageGenerator struct {
	mock.Mock
}

func (m *MockImageGenerator) GenerateImage(ctx context.Context, req ports.ImageRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockImageGenerator) EditImage(ctx context.Context, req ports.EditRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// MockObjectStorage mocks ports.ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Upload(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}

// MockCanvasRepository mocks ports.CanvasRepository
type MockCanvasRepository struct {
	mock.Mock
}

func (m *MockCanvasRepository) Save(ctx context.Context, snapshot aggregates.Snapshot) (string, error) {
	args := m.Called(ctx, snapshot)
	return args.String(0), args.Error(1)
}

func (m *MockCanvasRepository) Load(ctx context.Context, id string) (aggregates.Snapshot, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(aggregates.Snapshot), args.Error(1)
}

func (m *MockCanvasRepository) List(ctx context.Context, clientID string) ([]ports.CanvasSummary, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ports.CanvasSummary), args.Error(1)
}

func (m *MockCanvasRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockLibraryRepository mocks ports.LibraryRepository
type MockLibraryRepository struct {
	mock.Mock
}

func (m *MockLibraryRepository) Get(ctx context.Context, clientID, itemID string) (ports.LibraryItem, error) {
	args := m.Called(ctx, clientID, itemID)
	return args.Get(0).(ports.LibraryItem), args.Error(1)
}

// RecordingEventBus collects published events
type RecordingEventBus struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (b *RecordingEventBus) Publish(_ context.Context, evts ...events.DomainEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, evts...)
	return nil
}

// Events returns a copy of everything published so far
func (b *RecordingEventBus) Events() []events.DomainEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.DomainEvent, len(b.events))
	copy(out, b.events)
	return out
}

// Types returns the event types published so far
func (b *RecordingEventBus) Types() []string {
	var types []string
	for _, e := range b.Events() {
		types = append(types, e.GetEventType())
	}
	return types
}
