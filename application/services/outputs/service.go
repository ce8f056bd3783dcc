// Package outputs edits, reviews and versions output nodes.
package outputs

import (
	"fmt"

	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"go.uber.org/zap"
)

// Service applies review operations to output nodes
type Service struct {
	clock       utils.Clock
	maxVersions int
	logger      *zap.Logger
}

// NewService creates an output service
func NewService(cfg *config.DomainConfig, clock utils.Clock, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if clock == nil {
		clock = utils.RealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{clock: clock, maxVersions: cfg.MaxVersions, logger: logger}
}

// EditContent replaces the text of an output, keeping the previous text as a
// version. It reports whether the content changed.
func (s *Service) EditContent(canvas *aggregates.Canvas, outputID, content string) (bool, error) {
	changed := false
	err := s.mutate(canvas, outputID, func(o *entities.OutputData) error {
		if o.IsImage {
			return pkgerrors.NewValidationError("image outputs cannot be edited as text")
		}
		changed = o.EditContent(content, s.clock.Now(), s.maxVersions)
		o.IsEditing = false
		return nil
	})
	if err != nil {
		return false, err
	}
	if changed {
		s.logger.Debug("Output edited", zap.String("output_id", outputID))
	}
	return changed, nil
}

// SetEditing toggles the editing flag
func (s *Service) SetEditing(canvas *aggregates.Canvas, outputID string, editing bool) error {
	return s.mutate(canvas, outputID, func(o *entities.OutputData) error {
		o.IsEditing = editing
		return nil
	})
}

// RestoreVersion brings back an older version of the content
func (s *Service) RestoreVersion(canvas *aggregates.Canvas, outputID, versionID string) error {
	return s.mutate(canvas, outputID, func(o *entities.OutputData) error {
		return o.RestoreVersion(versionID, s.clock.Now(), s.maxVersions)
	})
}

// SetApproval changes the review status
func (s *Service) SetApproval(canvas *aggregates.Canvas, outputID string, status valueobjects.ApprovalStatus) error {
	return s.mutate(canvas, outputID, func(o *entities.OutputData) error {
		return o.SetApproval(status)
	})
}

// AddComment appends a comment to the thread
func (s *Service) AddComment(canvas *aggregates.Canvas, outputID, author, text string) (entities.Comment, error) {
	var comment entities.Comment
	err := s.mutate(canvas, outputID, func(o *entities.OutputData) error {
		var err error
		comment, err = o.AddComment(author, text, s.clock.Now())
		return err
	})
	return comment, err
}

// MarkSentToPlanning flags the output as handed over to the content planner
func (s *Service) MarkSentToPlanning(canvas *aggregates.Canvas, outputID string) error {
	return s.mutate(canvas, outputID, func(o *entities.OutputData) error {
		if o.AddedToPlanning {
			return pkgerrors.NewConflictError("output already sent to planning")
		}
		o.AddedToPlanning = true
		return nil
	})
}

func (s *Service) mutate(canvas *aggregates.Canvas, outputID string, fn func(*entities.OutputData) error) error {
	found, err := canvas.Mutate(outputID, func(data entities.NodeData) (entities.NodeData, error) {
		o, ok := data.(*entities.OutputData)
		if !ok {
			return nil, pkgerrors.NewValidationError(fmt.Sprintf("%s is not an output node", outputID)).
				WithCode(pkgerrors.CodeUnsupportedNode)
		}
		if err := fn(o); err != nil {
			return nil, err
		}
		return o, nil
	})
	if err != nil {
		return err
	}
	if !found {
		return pkgerrors.NewNotFoundError("output")
	}
	return nil
}
