// Package analysis runs OCR and style analysis on node images.
package analysis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/config"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	pkgerrors "canvas-backend/pkg/errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Target identifies one image of one node
type Target struct {
	NodeID  string `json:"nodeId" validate:"required"`
	ImageID string `json:"imageId" validate:"required"`
}

// BatchResult summarizes a batch run
type BatchResult struct {
	Total     int               `json:"total"`
	Succeeded int               `json:"succeeded"`
	Failed    int               `json:"failed"`
	Errors    map[string]string `json:"errors,omitempty"`
	// QuotaExceeded is set when a quota error stopped the batch early
	QuotaExceeded bool `json:"quotaExceeded,omitempty"`
}

// ProgressFunc is called after each group of a batch settles
type ProgressFunc func(done, total int)

// Service runs image analyses and records per-image state on the canvas
type Service struct {
	analyzer ports.ImageAnalyzer
	resolver *media.Resolver
	timeout  time.Duration
	width    atomic.Int64
	metrics  ports.Metrics
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewService creates an analysis service
func NewService(analyzer ports.ImageAnalyzer, resolver *media.Resolver, cfg *config.DomainConfig, metrics ports.Metrics, logger *zap.Logger) *Service {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		analyzer: analyzer,
		resolver: resolver,
		timeout:  cfg.AnalysisTimeout,
		metrics:  metrics,
		logger:   logger,
		tracer:   otel.Tracer("canvas-backend.application.analysis"),
	}
	s.SetBatchWidth(cfg.AnalysisBatchWidth)
	return s
}

// SetBatchWidth changes how many images of a batch run concurrently
func (s *Service) SetBatchWidth(width int) {
	if width < 1 {
		width = 1
	}
	s.width.Store(int64(width))
}

// BatchWidth returns the current concurrency width
func (s *Service) BatchWidth() int {
	return int(s.width.Load())
}

// Analyze runs one analysis on one image. The image moves to processing,
// then to done or error. A call exceeding the timeout fails with a timeout error.
func (s *Service) Analyze(ctx context.Context, canvas *aggregates.Canvas, target Target, kind entities.AnalysisKind) error {
	ctx, span := s.tracer.Start(ctx, "AnalysisService.Analyze",
		trace.WithAttributes(
			attribute.String("node.id", target.NodeID),
			attribute.String("image.id", target.ImageID),
			attribute.String("analysis.kind", string(kind)),
		),
	)
	defer span.End()

	item, err := findImage(canvas, target)
	if err != nil {
		return err
	}
	if kind != entities.AnalysisOCR && kind != entities.AnalysisStyle {
		return pkgerrors.NewValidationError(fmt.Sprintf("unknown analysis %q", kind))
	}

	s.updateImage(canvas, target, func(m *entities.MediaItem) {
		m.State = entities.AnalysisProcessing
		m.ProcessingKind = kind
		m.IsProcessing = true
		m.Error = ""
	})

	err = s.run(ctx, item, kind, func(ocrText string, style *entities.StyleAnalysis) {
		s.updateImage(canvas, target, func(m *entities.MediaItem) {
			if kind == entities.AnalysisOCR {
				m.OCRText = ocrText
			} else {
				m.StyleAnalysis = style
			}
			m.State = entities.AnalysisDone
			m.IsProcessing = false
		})
	})
	if err != nil {
		s.updateImage(canvas, target, func(m *entities.MediaItem) {
			m.State = entities.AnalysisError
			m.IsProcessing = false
			m.Error = err.Error()
		})
		s.metrics.RecordAnalysis(string(kind), "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	s.metrics.RecordAnalysis(string(kind), "success")
	return nil
}

// run races the remote call against the timeout and hands a result to apply
func (s *Service) run(ctx context.Context, item entities.MediaItem, kind entities.AnalysisKind, apply func(string, *entities.StyleAnalysis)) error {
	ref, err := s.resolver.Ref(item)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	type result struct {
		text  string
		style *entities.StyleAnalysis
		err   error
	}
	done := make(chan result, 1)
	go func() {
		if kind == entities.AnalysisOCR {
			text, err := s.analyzer.OCR(callCtx, ref)
			done <- result{text: text, err: err}
			return
		}
		raw, err := s.analyzer.AnalyzeStyle(callCtx, ref)
		if err != nil {
			done <- result{err: err}
			return
		}
		done <- result{style: Normalize(raw)}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return r.err
		}
		apply(r.text, r.style)
		return nil
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return pkgerrors.NewTimeoutError(fmt.Sprintf("%s analysis", kind))
	}
}

// AnalyzeBatch processes targets in groups of the batch width. Each group
// runs concurrently and settles fully before the next starts. Individual
// failures are recorded and the batch continues, except for quota errors,
// which stop it after the current group.
func (s *Service) AnalyzeBatch(ctx context.Context, canvas *aggregates.Canvas, targets []Target, kind entities.AnalysisKind, progress ProgressFunc) BatchResult {
	ctx, span := s.tracer.Start(ctx, "AnalysisService.AnalyzeBatch",
		trace.WithAttributes(
			attribute.Int("batch.size", len(targets)),
			attribute.String("analysis.kind", string(kind)),
		),
	)
	defer span.End()

	result := BatchResult{Total: len(targets)}
	width := s.BatchWidth()
	var mu sync.Mutex

	for start := 0; start < len(targets); start += width {
		end := start + width
		if end > len(targets) {
			end = len(targets)
		}

		var g errgroup.Group
		for _, target := range targets[start:end] {
			target := target
			g.Go(func() error {
				err := s.Analyze(ctx, canvas, target, kind)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					if result.Errors == nil {
						result.Errors = map[string]string{}
					}
					result.Errors[target.ImageID] = err.Error()
					result.Failed++
					if pkgerrors.IsQuota(err) {
						result.QuotaExceeded = true
					}
					s.logger.Warn("Image analysis failed",
						zap.String("node_id", target.NodeID),
						zap.String("image_id", target.ImageID),
						zap.String("kind", string(kind)),
						zap.Error(err),
					)
					return nil
				}
				result.Succeeded++
				return nil
			})
		}
		_ = g.Wait()

		if progress != nil {
			progress(end, len(targets))
		}
		if result.QuotaExceeded {
			s.logger.Warn("Analysis batch stopped by quota",
				zap.Int("processed", end),
				zap.Int("total", len(targets)),
			)
			break
		}
	}

	span.SetAttributes(
		attribute.Int("batch.failed", result.Failed),
		attribute.Bool("batch.quota_exceeded", result.QuotaExceeded),
	)
	return result
}

// Pending lists the images of a node that have no result for the given analysis
func Pending(node entities.Node, kind entities.AnalysisKind) []Target {
	var targets []Target
	for _, m := range entities.MediaOf(node.Data) {
		if !m.IsImage() || m.IsProcessing {
			continue
		}
		if kind == entities.AnalysisStyle && m.StyleAnalysis != nil {
			continue
		}
		if kind == entities.AnalysisOCR && m.OCRText != "" {
			continue
		}
		targets = append(targets, Target{NodeID: node.ID, ImageID: m.ID})
	}
	return targets
}

func (s *Service) updateImage(canvas *aggregates.Canvas, target Target, fn func(*entities.MediaItem)) {
	_, err := canvas.Mutate(target.NodeID, func(data entities.NodeData) (entities.NodeData, error) {
		entities.UpdateMedia(data, target.ImageID, fn)
		return data, nil
	})
	if err != nil {
		s.logger.Warn("Failed to record analysis state",
			zap.String("node_id", target.NodeID),
			zap.String("image_id", target.ImageID),
			zap.Error(err),
		)
	}
}

func findImage(canvas *aggregates.Canvas, target Target) (entities.MediaItem, error) {
	node, ok := canvas.Node(target.NodeID)
	if !ok {
		return entities.MediaItem{}, pkgerrors.NewNotFoundError("node")
	}
	for _, m := range entities.MediaOf(node.Data) {
		if m.ID == target.ImageID {
			if !m.IsImage() {
				return entities.MediaItem{}, pkgerrors.NewValidationError("media item is not an image")
			}
			return m, nil
		}
	}
	return entities.MediaItem{}, pkgerrors.NewNotFoundError("image")
}
