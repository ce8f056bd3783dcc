package ports

import (
	"context"
	"time"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/events"
)

// CanvasSummary is a listing entry of saved canvases
type CanvasSummary struct {
	ID        string    `json:"id" dynamodbav:"id"`
	Name      string    `json:"name" dynamodbav:"name"`
	UpdatedAt time.Time `json:"updated_at" dynamodbav:"updated_at"`
}

// CanvasRepository defines the interface for whole-snapshot canvas persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type CanvasRepository interface {
	// Save upserts a snapshot. An empty snapshot ID allocates a new canvas;
	// the ID used is returned.
	Save(ctx context.Context, snapshot aggregates.Snapshot) (string, error)

	// Load retrieves a snapshot by ID
	Load(ctx context.Context, id string) (aggregates.Snapshot, error)

	// List returns the canvases saved for a client, most recent first
	List(ctx context.Context, clientID string) ([]CanvasSummary, error)

	// Delete removes a canvas
	Delete(ctx context.Context, id string) error
}

// LibraryItem is a pre-existing content item that library nodes snapshot
type LibraryItem struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id,omitempty"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	ItemType string `json:"type"`
}

// LibraryRepository reads library items
type LibraryRepository interface {
	Get(ctx context.Context, clientID, itemID string) (LibraryItem, error)
}

// EventBus publishes domain events
type EventBus interface {
	Publish(ctx context.Context, evts ...events.DomainEvent) error
}
