// Package aggregation merges the inputs connected to a node into one generation context.
package aggregation

import (
	"context"
	"strings"

	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ImageRef is an image collected from an input node, already converted
// to a representation the remote functions can fetch
type ImageRef struct {
	NodeID    string
	ImageID   string
	URL       string
	StyleHint string
}

// Context is the merged input of a generation
type Context struct {
	Inputs     int
	TextBlocks []string
	Briefing   string
	Images     []ImageRef
	StyleHints []string
	// Images of media nodes that have no style analysis yet
	PendingAnalysis []analysis.Target
}

// Text joins the text blocks
func (c Context) Text() string {
	return strings.Join(c.TextBlocks, "\n\n")
}

// HasContent reports whether there is text context or a briefing
func (c Context) HasContent() bool {
	return strings.TrimSpace(c.Text()) != "" || strings.TrimSpace(c.Briefing) != ""
}

// ImageURLs returns the fetchable URLs of the collected images
func (c Context) ImageURLs() []string {
	urls := make([]string, 0, len(c.Images))
	for _, img := range c.Images {
		urls = append(urls, img.URL)
	}
	return urls
}

// StyleText joins the style hints of all collected images
func (c Context) StyleText() string {
	return strings.Join(c.StyleHints, "\n")
}

// Aggregator walks incoming edges and merges the payloads of connected nodes
type Aggregator struct {
	resolver *media.Resolver
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewAggregator creates an aggregator
func NewAggregator(resolver *media.Resolver, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		resolver: resolver,
		logger:   logger,
		tracer:   otel.Tracer("canvas-backend.application.aggregation"),
	}
}

// Aggregate collects the inputs of targetID in edge order. Images that cannot
// be converted to a fetchable form are skipped.
func (a *Aggregator) Aggregate(ctx context.Context, canvas *aggregates.Canvas, targetID string) Context {
	_, span := a.tracer.Start(ctx, "Aggregator.Aggregate",
		trace.WithAttributes(attribute.String("node.id", targetID)),
	)
	defer span.End()

	var out Context
	var candidates []ImageRef

	for _, edge := range canvas.IncomingEdges(targetID) {
		node, ok := canvas.Node(edge.Source)
		if !ok {
			continue
		}
		out.Inputs++

		switch d := node.Data.(type) {
		case *entities.SourceData:
			text := d.ExtractedContent
			if strings.TrimSpace(text) == "" && d.SourceType == valueobjects.SourceText {
				text = d.Value
			}
			out.addText(text)
			candidates = append(candidates, mediaImages(node.ID, d.Files, &out)...)
		case *entities.AttachmentData:
			out.addText(d.ExtractedContent)
			out.addText(d.Text)
			candidates = append(candidates, mediaImages(node.ID, d.Images, &out)...)
		case *entities.LibraryData:
			out.addText(joinNonEmpty("\n", d.Title, d.Content))
		case *entities.PromptData:
			if b := strings.TrimSpace(d.Briefing); b != "" {
				out.Briefing = b
			}
		case *entities.OutputData:
			if d.IsImage && d.ImageURL != "" {
				candidates = append(candidates, ImageRef{NodeID: node.ID, URL: d.ImageURL})
			} else {
				out.addText(d.TextContent())
			}
		case *entities.ImageSourceData:
			candidates = append(candidates, mediaImages(node.ID, d.Images, &out)...)
		}

		out.PendingAnalysis = append(out.PendingAnalysis, analysis.Pending(node, entities.AnalysisStyle)...)
	}

	out.Images = a.normalize(candidates)
	for _, img := range out.Images {
		if img.StyleHint != "" {
			out.StyleHints = append(out.StyleHints, img.StyleHint)
		}
	}

	span.SetAttributes(
		attribute.Int("inputs", out.Inputs),
		attribute.Int("images", len(out.Images)),
	)
	return out
}

// normalize converts every candidate concurrently, keeping input order
func (a *Aggregator) normalize(candidates []ImageRef) []ImageRef {
	converted := make([]ImageRef, len(candidates))
	ok := make([]bool, len(candidates))

	var g errgroup.Group
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			url, err := a.resolver.Fetchable(c.URL)
			if err != nil {
				a.logger.Warn("Skipping image that cannot be resolved",
					zap.String("node_id", c.NodeID),
					zap.String("image_id", c.ImageID),
					zap.Error(err),
				)
				return nil
			}
			c.URL = url
			converted[i] = c
			ok[i] = true
			return nil
		})
	}
	_ = g.Wait()

	images := make([]ImageRef, 0, len(candidates))
	for i := range converted {
		if ok[i] {
			images = append(images, converted[i])
		}
	}
	return images
}

// mediaImages lists the images of a media list; OCR text becomes context
func mediaImages(nodeID string, items []entities.MediaItem, out *Context) []ImageRef {
	var refs []ImageRef
	for _, m := range items {
		if !m.IsImage() || m.URL == "" {
			continue
		}
		if m.OCRText != "" {
			out.addText("Text from image:\n" + m.OCRText)
		}
		refs = append(refs, ImageRef{
			NodeID:    nodeID,
			ImageID:   m.ID,
			URL:       m.URL,
			StyleHint: m.StyleAnalysis.Describe(),
		})
	}
	return refs
}

func (c *Context) addText(text string) {
	if text = strings.TrimSpace(text); text != "" {
		c.TextBlocks = append(c.TextBlocks, text)
	}
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
