package aggregation

import (
	"context"
	"testing"

	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLocal map[string][]byte

func (s stubLocal) Put(name, mimeType string, data []byte) string { return "" }

func (s stubLocal) Get(ref string) ([]byte, string, bool) {
	data, ok := s[ref]
	return data, "image/png", ok
}

func addNode(t *testing.T, canvas *aggregates.Canvas, data entities.NodeData) string {
	t.Helper()
	id, err := canvas.AddNodeData(valueobjects.Position{}, data)
	require.NoError(t, err)
	return id
}

func connect(t *testing.T, canvas *aggregates.Canvas, source, target string) {
	t.Helper()
	_, err := canvas.Connect(entities.Edge{Source: source, Target: target})
	require.NoError(t, err)
}

func TestAggregate_CollectsAllVariants(t *testing.T) {
	canvas := aggregates.NewCanvas()
	gen := addNode(t, canvas, &entities.GeneratorData{Format: valueobjects.FormatPost, Quantity: 1})

	source := addNode(t, canvas, &entities.SourceData{
		SourceType:       valueobjects.SourceURL,
		ExtractedContent: "Article body",
		Files: []entities.MediaItem{{
			ID: "f1", MimeType: "image/png", URL: "https://cdn/a.png",
			OCRText:       "50% OFF",
			StyleAnalysis: &entities.StyleAnalysis{VisualStyle: "minimal"},
		}},
	})
	library := addNode(t, canvas, &entities.LibraryData{ItemID: "lib", Title: "Brand voice", Content: "Friendly and short"})
	firstPrompt := addNode(t, canvas, &entities.PromptData{Briefing: "old briefing"})
	secondPrompt := addNode(t, canvas, &entities.PromptData{Briefing: " Summarize "})
	textOutput := addNode(t, canvas, &entities.OutputData{Content: "Earlier post"})
	imageOutput := addNode(t, canvas, &entities.OutputData{IsImage: true, ImageURL: "https://cdn/gen.png"})
	images := addNode(t, canvas, &entities.ImageSourceData{Images: []entities.MediaItem{
		{ID: "i1", MimeType: "image/jpeg", URL: "local:i1"},
		{ID: "i2", MimeType: "image/jpeg", URL: "local:gone"},
	}})

	for _, id := range []string{source, library, firstPrompt, secondPrompt, textOutput, imageOutput, images} {
		connect(t, canvas, id, gen)
	}

	agg := NewAggregator(media.NewResolver(stubLocal{"local:i1": []byte("hi")}), nil)
	got := agg.Aggregate(context.Background(), canvas, gen)

	assert.Equal(t, 7, got.Inputs)
	assert.Equal(t, []string{
		"Article body",
		"Text from image:\n50% OFF",
		"Brand voice\nFriendly and short",
		"Earlier post",
	}, got.TextBlocks)
	assert.Equal(t, "Summarize", got.Briefing)
	assert.True(t, got.HasContent())

	assert.Equal(t, []string{"https://cdn/a.png", "https://cdn/gen.png", "data:image/png;base64,aGk="}, got.ImageURLs())
	assert.Equal(t, []string{"Style: minimal"}, got.StyleHints)
	assert.Equal(t, []analysis.Target{
		{NodeID: images, ImageID: "i1"},
		{NodeID: images, ImageID: "i2"},
	}, got.PendingAnalysis)
}

func TestAggregate_NoInputs(t *testing.T) {
	canvas := aggregates.NewCanvas()
	gen := addNode(t, canvas, &entities.GeneratorData{})

	got := NewAggregator(media.NewResolver(nil), nil).Aggregate(context.Background(), canvas, gen)

	assert.Zero(t, got.Inputs)
	assert.False(t, got.HasContent())
	assert.Empty(t, got.Images)
}

func TestAggregate_BriefingOnlyAndPastedText(t *testing.T) {
	canvas := aggregates.NewCanvas()
	gen := addNode(t, canvas, &entities.GeneratorData{})
	prompt := addNode(t, canvas, &entities.PromptData{Briefing: "Write about spring"})
	pasted := addNode(t, canvas, &entities.SourceData{SourceType: valueobjects.SourceText, Value: "raw pasted"})
	empty := addNode(t, canvas, &entities.SourceData{SourceType: valueobjects.SourceURL})
	connect(t, canvas, prompt, gen)
	connect(t, canvas, pasted, gen)
	connect(t, canvas, empty, gen)

	got := NewAggregator(media.NewResolver(nil), nil).Aggregate(context.Background(), canvas, gen)

	assert.Equal(t, 3, got.Inputs)
	assert.Equal(t, "raw pasted", got.Text())
	assert.Equal(t, "Write about spring", got.Briefing)
	assert.True(t, got.HasContent())
}
