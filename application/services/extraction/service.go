// Package extraction resolves source nodes into normalized text content.
package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"canvas-backend/application/ports"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Section labels of a combined Instagram extraction
const (
	SectionTranscription = "Transcription:"
	SectionCaption       = "Original caption:"
	SectionImagesText    = "Text from images:"
)

// transcriptionWidth bounds concurrent file transcriptions
const transcriptionWidth = 3

// Result is the normalized outcome of an extraction
type Result struct {
	Content   string     `json:"content"`
	Title     string     `json:"title,omitempty"`
	Thumbnail string     `json:"thumbnail,omitempty"`
	Images    []string   `json:"images,omitempty"`
	WordCount int        `json:"wordCount"`
	Kind      SourceKind `json:"kind"`
	FromCache bool       `json:"fromCache"`
}

// Service runs extractions against the remote extractors through the content cache
type Service struct {
	extractors ports.Extractors
	cache      ports.ContentCache
	resolver   *media.Resolver
	bus        ports.EventBus
	clock      utils.Clock
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewService creates an extraction service. cache and bus may be nil.
func NewService(extractors ports.Extractors, cache ports.ContentCache, resolver *media.Resolver, bus ports.EventBus, clock utils.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = utils.RealClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		extractors: extractors,
		cache:      cache,
		resolver:   resolver,
		bus:        bus,
		clock:      clock,
		logger:     logger,
		tracer:     otel.Tracer("canvas-backend.application.extraction"),
	}
}

// Extract classifies the input and extracts it into the node. Plain text
// is recorded as is without any remote call.
func (s *Service) Extract(ctx context.Context, canvas *aggregates.Canvas, nodeID, input string) (Result, error) {
	if Classify(input) == KindText {
		return s.ExtractText(ctx, canvas, nodeID, input)
	}
	return s.ExtractURL(ctx, canvas, nodeID, input)
}

// ExtractURL resolves a URL through the matching remote extractor. A cached
// result short-circuits the remote call but still updates the node.
func (s *Service) ExtractURL(ctx context.Context, canvas *aggregates.Canvas, nodeID, rawURL string) (Result, error) {
	rawURL = strings.TrimSpace(rawURL)
	kind := Classify(rawURL)

	ctx, span := s.tracer.Start(ctx, "ExtractionService.ExtractURL",
		trace.WithAttributes(
			attribute.String("node.id", nodeID),
			attribute.String("source.kind", string(kind)),
		),
	)
	defer span.End()

	if kind == KindText {
		return Result{}, pkgerrors.NewValidationError("not a URL")
	}
	node, err := extractable(canvas, nodeID)
	if err != nil {
		return Result{}, err
	}
	if err := canvas.UpdateNode(nodeID, startPatch(node.Kind, rawURL)); err != nil {
		return Result{}, err
	}

	key := utils.ContentKey(rawURL)
	if cached, ok := s.cached(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		cached.FromCache = true
		if err := s.apply(ctx, canvas, nodeID, cached); err != nil {
			return Result{}, err
		}
		return cached, nil
	}

	result, err := s.fetch(ctx, kind, rawURL)
	if err == nil && strings.TrimSpace(result.Content) == "" {
		err = pkgerrors.NewValidationError("no content could be extracted from " + rawURL).
			WithCode(pkgerrors.CodeNoContentExtracted)
	}
	if err != nil {
		s.clearExtracting(canvas, nodeID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	result.Kind = kind
	result.WordCount = WordCount(result.Content)
	s.store(key, result)
	if err := s.apply(ctx, canvas, nodeID, result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// ExtractText records pasted text as the node content
func (s *Service) ExtractText(ctx context.Context, canvas *aggregates.Canvas, nodeID, text string) (Result, error) {
	node, err := extractable(canvas, nodeID)
	if err != nil {
		return Result{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return Result{}, pkgerrors.NewValidationError("text cannot be empty").WithCode(pkgerrors.CodeContentRequired)
	}

	var patch entities.Patch
	if node.Kind == entities.KindAttachment {
		patch = entities.Patch{"activeTab": entities.TabText, "text": text}
	} else {
		patch = entities.Patch{"sourceType": valueobjects.SourceText, "value": text}
	}
	if err := canvas.UpdateNode(nodeID, patch); err != nil {
		return Result{}, err
	}
	result := Result{Content: text, WordCount: WordCount(text), Kind: KindText}
	if err := s.apply(ctx, canvas, nodeID, result); err != nil {
		return Result{}, err
	}
	return result, nil
}

// ExtractFiles transcribes the audio and video files of a node that have
// no transcription yet and appends the transcripts to its content.
// Transcripts are cached by file name and size.
func (s *Service) ExtractFiles(ctx context.Context, canvas *aggregates.Canvas, nodeID string) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "ExtractionService.ExtractFiles",
		trace.WithAttributes(attribute.String("node.id", nodeID)),
	)
	defer span.End()

	node, err := extractable(canvas, nodeID)
	if err != nil {
		return Result{}, err
	}

	var pending []entities.MediaItem
	for _, item := range entities.MediaOf(node.Data) {
		if item.IsAudioVisual() && item.Transcription == "" {
			pending = append(pending, item)
		}
	}

	if len(pending) > 0 {
		if err := canvas.UpdateNode(nodeID, entities.Patch{"isExtracting": true}); err != nil {
			return Result{}, err
		}
	}

	transcripts := make([]string, len(pending))
	var mu sync.Mutex
	fromCache := len(pending) > 0
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(transcriptionWidth)
	for i, item := range pending {
		i, item := i, item
		g.Go(func() error {
			text, hit := s.transcribeFile(gctx, item)
			mu.Lock()
			transcripts[i] = text
			if !hit {
				fromCache = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	var added []string
	_, err = canvas.Mutate(nodeID, func(data entities.NodeData) (entities.NodeData, error) {
		added = added[:0]
		for i, item := range pending {
			if transcripts[i] == "" {
				continue
			}
			text := transcripts[i]
			entities.UpdateMedia(data, item.ID, func(m *entities.MediaItem) { m.Transcription = text })
			added = append(added, fmt.Sprintf("Transcription (%s):\n%s", item.Name, text))
		}
		switch d := data.(type) {
		case *entities.SourceData:
			d.ExtractedContent = joinSections(append([]string{d.ExtractedContent}, added...)...)
			d.WordCount = WordCount(d.ExtractedContent)
			d.IsExtracting = false
			if len(added) > 0 {
				now := s.clock.Now()
				d.ExtractedAt = &now
			}
		case *entities.AttachmentData:
			d.ExtractedContent = joinSections(append([]string{d.ExtractedContent}, added...)...)
			d.IsExtracting = false
		}
		return data, nil
	})
	if err != nil {
		return Result{}, err
	}

	updated, ok := canvas.Node(nodeID)
	if !ok {
		return Result{}, pkgerrors.NewNotFoundError("node")
	}
	content := contentOf(updated.Data)
	if strings.TrimSpace(content) == "" {
		return Result{}, pkgerrors.NewValidationError("no content could be extracted from files").
			WithCode(pkgerrors.CodeNoContentExtracted)
	}
	result := Result{Content: content, WordCount: WordCount(content), Kind: KindFile, FromCache: fromCache}
	s.publish(ctx, events.NewSourceExtracted(nodeID, string(KindFile), result.WordCount, result.FromCache, s.clock.Now()))
	return result, nil
}

// transcribeFile returns the transcript of one file and whether it came from the cache.
// A missing transcript or a failed call yields an empty string.
func (s *Service) transcribeFile(ctx context.Context, item entities.MediaItem) (string, bool) {
	key := utils.FileKey(item.Name, item.Size)
	if cached, ok := s.cached(key); ok {
		return cached.Content, true
	}
	ref, err := s.resolver.Ref(item)
	if err != nil {
		s.logger.Warn("Cannot resolve media for transcription", zap.String("file", item.Name), zap.Error(err))
		return "", false
	}
	transcript, err := s.extractors.Transcribe(ctx, ref)
	if err != nil {
		s.logger.Warn("Transcription failed", zap.String("file", item.Name), zap.Error(err))
		return "", false
	}
	text := strings.TrimSpace(transcript.Text)
	if !transcript.Available || text == "" {
		s.logger.Info("No transcript available", zap.String("file", item.Name))
		return "", false
	}
	s.store(key, Result{Content: text, Kind: KindFile, WordCount: WordCount(text)})
	return text, false
}

// fetch dispatches to the extractor of the detected kind
func (s *Service) fetch(ctx context.Context, kind SourceKind, rawURL string) (Result, error) {
	switch kind {
	case KindYouTube:
		ext, err := s.extractors.ExtractYouTube(ctx, rawURL)
		if err != nil {
			return Result{}, err
		}
		return fromExtracted(ext, ext.Content), nil
	case KindInstagram:
		ext, err := s.extractors.ExtractInstagram(ctx, rawURL)
		if err != nil {
			return Result{}, err
		}
		return fromExtracted(ext, s.instagramContent(ctx, rawURL, ext)), nil
	default:
		ext, err := s.extractors.FetchURL(ctx, rawURL)
		if err != nil {
			return Result{}, err
		}
		return fromExtracted(ext, ext.Content), nil
	}
}

// instagramContent combines the reel transcript, the caption and the text of
// carousel images into one labeled body. Secondary calls are best-effort.
func (s *Service) instagramContent(ctx context.Context, rawURL string, ext *ports.Extracted) string {
	var sections []string

	if ext.VideoURL != "" || IsReel(rawURL) {
		if ext.VideoURL == "" {
			s.logger.Warn("Reel without video URL, using caption only", zap.String("url", rawURL))
		} else {
			transcript, err := s.extractors.Transcribe(ctx, ports.MediaRef{URL: ext.VideoURL, MimeType: "video/mp4"})
			switch {
			case err != nil:
				s.logger.Warn("Reel transcription failed, using caption only", zap.String("url", rawURL), zap.Error(err))
			case transcript.Available && strings.TrimSpace(transcript.Text) != "":
				sections = append(sections, SectionTranscription+"\n"+strings.TrimSpace(transcript.Text))
			}
		}
	}

	if caption := strings.TrimSpace(ext.Caption); caption != "" {
		sections = append(sections, SectionCaption+"\n"+caption)
	}

	if len(ext.Images) > 1 {
		text, err := s.extractors.ExtractImagesText(ctx, ext.Images)
		if err != nil {
			s.logger.Warn("Image text extraction failed", zap.String("url", rawURL), zap.Int("images", len(ext.Images)), zap.Error(err))
		} else if text = strings.TrimSpace(text); text != "" {
			sections = append(sections, SectionImagesText+"\n"+text)
		}
	}

	if len(sections) == 0 {
		return strings.TrimSpace(ext.Content)
	}
	return strings.Join(sections, "\n\n")
}

// apply writes a result into the node and announces it
func (s *Service) apply(ctx context.Context, canvas *aggregates.Canvas, nodeID string, result Result) error {
	now := s.clock.Now()
	_, err := canvas.Mutate(nodeID, func(data entities.NodeData) (entities.NodeData, error) {
		switch d := data.(type) {
		case *entities.SourceData:
			d.ExtractedContent = result.Content
			d.Title = result.Title
			d.Thumbnail = result.Thumbnail
			d.ExtractedImages = result.Images
			d.WordCount = result.WordCount
			d.ContentKind = string(result.Kind)
			d.IsExtracting = false
			d.ExtractedAt = &now
		case *entities.AttachmentData:
			d.ExtractedContent = result.Content
			d.Title = result.Title
			d.IsExtracting = false
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	s.publish(ctx, events.NewSourceExtracted(nodeID, string(result.Kind), result.WordCount, result.FromCache, now))
	return nil
}

func (s *Service) clearExtracting(canvas *aggregates.Canvas, nodeID string) {
	if err := canvas.UpdateNode(nodeID, entities.Patch{"isExtracting": false}); err != nil {
		s.logger.Warn("Failed to clear extracting flag", zap.String("node_id", nodeID), zap.Error(err))
	}
}

func (s *Service) cached(key string) (Result, bool) {
	if s.cache == nil {
		return Result{}, false
	}
	raw, ok := s.cache.Get(key)
	if !ok {
		return Result{}, false
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		s.logger.Warn("Discarding unreadable cache entry", zap.String("key", key), zap.Error(err))
		return Result{}, false
	}
	return result, true
}

func (s *Service) store(key string, result Result) {
	if s.cache == nil {
		return
	}
	result.FromCache = false
	raw, err := json.Marshal(result)
	if err != nil {
		s.logger.Warn("Failed to encode cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	s.cache.Set(key, raw)
}

func (s *Service) publish(ctx context.Context, evts ...events.DomainEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, evts...); err != nil {
		s.logger.Warn("Failed to publish extraction event", zap.Error(err))
	}
}

// WordCount counts whitespace-separated words
func WordCount(text string) int {
	return len(strings.Fields(text))
}

func extractable(canvas *aggregates.Canvas, nodeID string) (entities.Node, error) {
	node, ok := canvas.Node(nodeID)
	if !ok {
		return entities.Node{}, pkgerrors.NewNotFoundError("node")
	}
	switch node.Kind {
	case entities.KindSource, entities.KindAttachment:
		return node, nil
	default:
		return entities.Node{}, pkgerrors.NewValidationError(fmt.Sprintf("%s nodes cannot be extracted", node.Kind)).
			WithCode(pkgerrors.CodeUnsupportedNode)
	}
}

func startPatch(kind entities.NodeKind, rawURL string) entities.Patch {
	if kind == entities.KindAttachment {
		return entities.Patch{"activeTab": entities.TabLink, "url": rawURL, "isExtracting": true}
	}
	return entities.Patch{"sourceType": valueobjects.SourceURL, "value": rawURL, "isExtracting": true}
}

func fromExtracted(ext *ports.Extracted, content string) Result {
	if ext == nil {
		return Result{}
	}
	return Result{
		Content:   strings.TrimSpace(content),
		Title:     ext.Title,
		Thumbnail: ext.Thumbnail,
		Images:    ext.Images,
	}
}

func contentOf(data entities.NodeData) string {
	switch d := data.(type) {
	case *entities.SourceData:
		return d.ExtractedContent
	case *entities.AttachmentData:
		return d.ExtractedContent
	}
	return ""
}

func joinSections(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n\n")
}
