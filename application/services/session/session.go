package session

import (
	"context"
	"sync"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/autosave"
	"canvas-backend/application/services/extraction"
	"canvas-backend/application/services/generation"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"

	"go.uber.org/zap"
)

// Session is one canvas being edited together with its autosaver
type Session struct {
	id       string
	canvas   *aggregates.Canvas
	saver    *autosave.Saver
	services *Services
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	jobsMu sync.RWMutex
	jobs   map[string]*Job
	closed bool
}

// ID returns the session ID
func (s *Session) ID() string { return s.id }

// Canvas returns the graph store bound to the session
func (s *Session) Canvas() *aggregates.Canvas { return s.canvas }

// SaveState returns the autosave status
func (s *Session) SaveState() autosave.State { return s.saver.State() }

// Save persists pending changes immediately
func (s *Session) Save(ctx context.Context) error { return s.saver.Flush(ctx) }

// Load replaces the graph with a saved canvas. Pending changes of the
// current canvas are saved first.
func (s *Session) Load(ctx context.Context, canvasID string) error {
	if canvasID == "" {
		return pkgerrors.NewValidationError("canvas id is required")
	}
	if err := s.saver.Flush(ctx); err != nil {
		s.logger.Warn("Failed to save canvas before load",
			zap.String("session_id", s.id),
			zap.Error(err),
		)
	}
	snap, err := s.services.Canvases.Load(ctx, canvasID)
	if err != nil {
		return err
	}
	if clientID := s.canvas.ClientID(); clientID != "" && snap.ClientID != "" && snap.ClientID != clientID {
		return pkgerrors.NewNotFoundError("canvas")
	}
	if snap.ClientID == "" {
		snap.ClientID = s.canvas.ClientID()
	}
	s.canvas.Load(snap)
	s.logger.Info("Canvas loaded",
		zap.String("session_id", s.id),
		zap.String("canvas_id", canvasID),
		zap.Int("nodes", len(snap.Nodes)),
	)
	return nil
}

// SwitchClient empties the graph and scopes the session to another client
func (s *Session) SwitchClient(ctx context.Context, clientID string) error {
	if clientID == "" {
		return pkgerrors.NewValidationError("client id is required")
	}
	if err := s.saver.Flush(ctx); err != nil {
		s.logger.Warn("Failed to save canvas before client switch",
			zap.String("session_id", s.id),
			zap.Error(err),
		)
	}
	s.canvas.Reset(clientID)
	return nil
}

// List returns the saved canvases of the session's client
func (s *Session) List(ctx context.Context) ([]ports.CanvasSummary, error) {
	return s.services.Canvases.List(ctx, s.canvas.ClientID())
}

// AddLibraryNode adds a node holding a snapshot of a library item
func (s *Session) AddLibraryNode(ctx context.Context, itemID string, pos valueobjects.Position) (string, error) {
	if s.services.Library == nil {
		return "", pkgerrors.NewUnavailableError("library")
	}
	item, err := s.services.Library.Get(ctx, s.canvas.ClientID(), itemID)
	if err != nil {
		return "", err
	}
	return s.canvas.AddNodeData(pos, &entities.LibraryData{
		ItemID:   item.ID,
		Title:    item.Title,
		Content:  item.Content,
		ItemType: item.ItemType,
	})
}

// Extract runs extraction for a source or attachment node
func (s *Session) Extract(ctx context.Context, nodeID, input string) (extraction.Result, error) {
	node, ok := s.canvas.Node(nodeID)
	if !ok {
		return extraction.Result{}, pkgerrors.NewNotFoundError("node")
	}
	if input == "" {
		if src, ok := node.Data.(*entities.SourceData); ok && src.SourceType == valueobjects.SourceFile {
			return s.services.Extraction.ExtractFiles(ctx, s.canvas, nodeID)
		}
	}
	return s.services.Extraction.Extract(ctx, s.canvas, nodeID, input)
}

// Analyze runs one analysis on one image
func (s *Session) Analyze(ctx context.Context, target analysis.Target, kind entities.AnalysisKind) error {
	return s.services.Analysis.Analyze(ctx, s.canvas, target, kind)
}

// Upload stores a file on a node
func (s *Session) Upload(ctx context.Context, nodeID string, file media.Upload) (entities.MediaItem, error) {
	return s.services.Uploader.Upload(ctx, s.canvas, nodeID, file)
}

// Generate runs a generator synchronously
func (s *Session) Generate(ctx context.Context, generatorID string) generation.Outcome {
	return s.services.Orchestrator.Generate(ctx, s.canvas, generatorID)
}

// EditContent edits an output's text
func (s *Session) EditContent(outputID, content string) (bool, error) {
	return s.services.Outputs.EditContent(s.canvas, outputID, content)
}

// SetEditing toggles the editing flag of an output
func (s *Session) SetEditing(outputID string, editing bool) error {
	return s.services.Outputs.SetEditing(s.canvas, outputID, editing)
}

// RestoreVersion restores an output version
func (s *Session) RestoreVersion(outputID, versionID string) error {
	return s.services.Outputs.RestoreVersion(s.canvas, outputID, versionID)
}

// SetApproval sets the approval status of an output
func (s *Session) SetApproval(outputID string, status valueobjects.ApprovalStatus) error {
	return s.services.Outputs.SetApproval(s.canvas, outputID, status)
}

// AddComment appends a comment to an output
func (s *Session) AddComment(outputID, author, text string) (entities.Comment, error) {
	return s.services.Outputs.AddComment(s.canvas, outputID, author, text)
}

// MarkSentToPlanning flags an output as handed off
func (s *Session) MarkSentToPlanning(outputID string) error {
	return s.services.Outputs.MarkSentToPlanning(s.canvas, outputID)
}

// close cancels running jobs, waits for them and saves pending changes
func (s *Session) close(ctx context.Context) error {
	s.jobsMu.Lock()
	s.closed = true
	s.jobsMu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.saver.Close(ctx)
}
