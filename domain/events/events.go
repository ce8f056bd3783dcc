package events

import (
	"time"
)

// Event types
const (
	TypeOutputCreated    = "canvas.output_created"
	TypeGenerationFailed = "canvas.generation_failed"
	TypeCanvasSaved      = "canvas.saved"
	TypeSourceExtracted  = "canvas.source_extracted"
)

// DomainEvent is the base interface for all domain events
// Events represent something that has happened in the past
type DomainEvent interface {
	GetAggregateID() string
	GetEventType() string
	GetTimestamp() time.Time
	GetVersion() int
}

// BaseEvent provides common event fields
type BaseEvent struct {
	AggregateID string    `json:"aggregate_id"`
	EventType   string    `json:"event_type"`
	Timestamp   time.Time `json:"timestamp"`
	Version     int       `json:"version"`
}

func (e BaseEvent) GetAggregateID() string  { return e.AggregateID }
func (e BaseEvent) GetEventType() string    { return e.EventType }
func (e BaseEvent) GetTimestamp() time.Time { return e.Timestamp }
func (e BaseEvent) GetVersion() int         { return e.Version }

// OutputCreated is raised when generation or an image edit adds an output node
type OutputCreated struct {
	BaseEvent
	CanvasID    string `json:"canvas_id,omitempty"`
	GeneratorID string `json:"generator_id"`
	OutputID    string `json:"output_id"`
	Format      string `json:"format"`
	Platform    string `json:"platform,omitempty"`
	Variation   int    `json:"variation,omitempty"`
}

// NewOutputCreated creates an OutputCreated event
func NewOutputCreated(canvasID, generatorID, outputID, format, platform string, variation int, timestamp time.Time) OutputCreated {
	return OutputCreated{
		BaseEvent: BaseEvent{
			AggregateID: generatorID,
			EventType:   TypeOutputCreated,
			Timestamp:   timestamp,
			Version:     1,
		},
		CanvasID:    canvasID,
		GeneratorID: generatorID,
		OutputID:    outputID,
		Format:      format,
		Platform:    platform,
		Variation:   variation,
	}
}

// GenerationFailed is raised when a generation run ends without success
type GenerationFailed struct {
	BaseEvent
	CanvasID    string `json:"canvas_id,omitempty"`
	GeneratorID string `json:"generator_id"`
	Outcome     string `json:"outcome"`
	Reason      string `json:"reason,omitempty"`
	Completed   int    `json:"completed"`
}

// NewGenerationFailed creates a GenerationFailed event
func NewGenerationFailed(canvasID, generatorID, outcome, reason string, completed int, timestamp time.Time) GenerationFailed {
	return GenerationFailed{
		BaseEvent: BaseEvent{
			AggregateID: generatorID,
			EventType:   TypeGenerationFailed,
			Timestamp:   timestamp,
			Version:     1,
		},
		CanvasID:    canvasID,
		GeneratorID: generatorID,
		Outcome:     outcome,
		Reason:      reason,
		Completed:   completed,
	}
}

// CanvasSaved is raised after a snapshot is persisted
type CanvasSaved struct {
	BaseEvent
	CanvasID  string `json:"canvas_id"`
	ClientID  string `json:"client_id,omitempty"`
	NodeCount int    `json:"node_count"`
	EdgeCount int    `json:"edge_count"`
	Created   bool   `json:"created"`
}

// NewCanvasSaved creates a CanvasSaved event
func NewCanvasSaved(canvasID, clientID string, nodeCount, edgeCount int, created bool, timestamp time.Time) CanvasSaved {
	return CanvasSaved{
		BaseEvent: BaseEvent{
			AggregateID: canvasID,
			EventType:   TypeCanvasSaved,
			Timestamp:   timestamp,
			Version:     1,
		},
		CanvasID:  canvasID,
		ClientID:  clientID,
		NodeCount: nodeCount,
		EdgeCount: edgeCount,
		Created:   created,
	}
}

// SourceExtracted is raised when a source node receives extracted content
type SourceExtracted struct {
	BaseEvent
	NodeID    string `json:"node_id"`
	Kind      string `json:"kind"`
	WordCount int    `json:"word_count"`
	FromCache bool   `json:"from_cache"`
}

// NewSourceExtracted creates a SourceExtracted event
func NewSourceExtracted(nodeID, kind string, wordCount int, fromCache bool, timestamp time.Time) SourceExtracted {
	return SourceExtracted{
		BaseEvent: BaseEvent{
			AggregateID: nodeID,
			EventType:   TypeSourceExtracted,
			Timestamp:   timestamp,
			Version:     1,
		},
		NodeID:    nodeID,
		Kind:      kind,
		WordCount: wordCount,
		FromCache: fromCache,
	}
}
