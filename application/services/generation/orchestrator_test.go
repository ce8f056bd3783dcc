package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/application/ports/mocks"
	"canvas-backend/application/services/analysis"
	"canvas-backend/application/services/media"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// scriptedText answers each StreamText call with the next scripted reply
type scriptedText struct {
	mu       sync.Mutex
	replies  []reply
	requests []ports.TextRequest
}

type reply struct {
	content string
	err     error
}

func (s *scriptedText) StreamText(_ context.Context, req ports.TextRequest) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	r := reply{content: "default content"}
	if i := len(s.requests) - 1; i < len(s.replies) {
		r = s.replies[i]
	}
	if r.err != nil {
		return nil, r.err
	}
	var b strings.Builder
	for _, word := range strings.SplitAfter(r.content, " ") {
		if word != "" {
			b.WriteString(frame(word))
		}
	}
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(strings.NewReader(b.String())), nil
}

func (s *scriptedText) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

type harness struct {
	canvas *aggregates.Canvas
	text   *scriptedText
	images *mocks.MockImageGenerator
	bus    *mocks.RecordingEventBus
	orch   *Orchestrator
}

func newHarness(analyzer ports.ImageAnalyzer) *harness {
	h := &harness{
		canvas: aggregates.NewCanvas(),
		text:   &scriptedText{},
		images: new(mocks.MockImageGenerator),
		bus:    &mocks.RecordingEventBus{},
	}
	h.canvas.AssignID("canvas-1")
	resolver := media.NewResolver(nil)
	var analysisSvc *analysis.Service
	if analyzer != nil {
		analysisSvc = analysis.NewService(analyzer, resolver, nil, nil, nil)
	}
	h.orch = NewOrchestrator(Deps{
		Analysis: analysisSvc,
		Text:     h.text,
		Images:   h.images,
		Resolver: resolver,
		Bus:      h.bus,
		Clock:    utils.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
	})
	return h
}

func (h *harness) add(t *testing.T, kind entities.NodeKind, x, y float64, patch entities.Patch) string {
	t.Helper()
	id, err := h.canvas.AddNode(kind, valueobjects.Position{X: x, Y: y}, patch)
	require.NoError(t, err)
	return id
}

func (h *harness) connect(t *testing.T, source, target string) {
	t.Helper()
	_, err := h.canvas.Connect(entities.Edge{Source: source, Target: target})
	require.NoError(t, err)
}

func (h *harness) generator(t *testing.T) *entities.GeneratorData {
	t.Helper()
	for _, n := range h.canvas.Nodes() {
		if g, ok := n.Data.(*entities.GeneratorData); ok {
			return g
		}
	}
	t.Fatal("no generator")
	return nil
}

func (h *harness) outputs() []entities.Node {
	var out []entities.Node
	for _, n := range h.canvas.Nodes() {
		if n.Kind == entities.KindOutput {
			out = append(out, n)
		}
	}
	return out
}

// textSetup builds source("ABC") + prompt("Summarize") -> generator
func textSetup(t *testing.T, h *harness, genPatch entities.Patch) string {
	t.Helper()
	source := h.add(t, entities.KindSource, 0, 0, entities.Patch{"extractedContent": "ABC"})
	prompt := h.add(t, entities.KindPrompt, 0, 200, entities.Patch{"briefing": "Summarize"})
	gen := h.add(t, entities.KindGenerator, 300, 100, genPatch)
	h.connect(t, source, gen)
	h.connect(t, prompt, gen)
	return gen
}

func TestGenerate_TextQuantityThree(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	gen := textSetup(t, h, entities.Patch{"format": "post", "platform": "linkedin", "quantity": 3})
	h.text.replies = []reply{{content: "First take"}, {content: "Second take"}, {content: "Third take"}}

	outcome := h.orch.Generate(ctx, h.canvas, gen)

	require.Equal(t, OutcomeSucceeded, outcome.Kind, outcome.Message)
	assert.Len(t, outcome.OutputIDs, 3)
	assert.Equal(t, 3, outcome.Completed)
	assert.Equal(t, 3, outcome.Requested)

	outgoing := h.canvas.OutgoingEdges(gen)
	require.Len(t, outgoing, 3)
	for i, id := range outcome.OutputIDs {
		assert.Equal(t, id, outgoing[i].Target)
		node, ok := h.canvas.Node(id)
		require.True(t, ok)
		assert.Equal(t, valueobjects.Position{X: 700, Y: 100 + float64(i)*350}, node.Position)
		out := node.Data.(*entities.OutputData)
		assert.Equal(t, valueobjects.FormatPost, out.Format)
		assert.Equal(t, valueobjects.PlatformLinkedIn, out.Platform)
		assert.Equal(t, valueobjects.ApprovalDraft, out.ApprovalStatus)
		assert.Equal(t, i+1, out.Variation)
	}
	first, _ := h.canvas.Node(outcome.OutputIDs[0])
	assert.Equal(t, "First take", first.Data.(*entities.OutputData).Content)

	g := h.generator(t)
	assert.False(t, g.IsGenerating)
	assert.Equal(t, 100, g.Progress)
	assert.Equal(t, entities.StepDone, g.Step)
	assert.Equal(t, 3, g.GeneratedCount)

	require.Len(t, h.text.requests, 3)
	assert.Equal(t, "ABC", h.text.requests[0].Context)
	assert.Contains(t, h.text.requests[0].Briefing, "Summarize")
	assert.Contains(t, h.text.requests[1].Briefing, "variation 2 of 3")
	assert.Equal(t, 3, h.text.requests[2].Total)

	assert.Equal(t, []string{events.TypeOutputCreated, events.TypeOutputCreated, events.TypeOutputCreated}, h.bus.Types())
}

func TestGenerate_StreamsIntoOutputNode(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	gen := textSetup(t, h, nil)
	h.orch.text = trickleText{content: "Launch day is here for everyone"}

	type seen struct {
		content   string
		streaming bool
		progress  int
	}
	var mu sync.Mutex
	var states []seen
	unsubscribe := h.canvas.Subscribe(func(aggregates.Change) {
		for _, n := range h.canvas.Nodes() {
			if out, ok := n.Data.(*entities.OutputData); ok {
				mu.Lock()
				states = append(states, seen{out.Content, out.IsStreaming, out.StreamProgress})
				mu.Unlock()
			}
		}
	})
	defer unsubscribe()

	outcome := h.orch.Generate(ctx, h.canvas, gen)
	require.Equal(t, OutcomeSucceeded, outcome.Kind, outcome.Message)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, states)
	assert.Equal(t, seen{"Launch", true, 0}, states[0])

	var partial []string
	for _, st := range states {
		if st.streaming {
			assert.Less(t, st.progress, 100)
			partial = append(partial, st.content)
		}
	}
	assert.Greater(t, len(partial), 1)
	for _, p := range partial {
		assert.True(t, strings.HasPrefix("Launch day is here for everyone", p), p)
	}

	out, ok := h.canvas.Node(outcome.OutputIDs[0])
	require.True(t, ok)
	data := out.Data.(*entities.OutputData)
	assert.Equal(t, "Launch day is here for everyone", data.Content)
	assert.False(t, data.IsStreaming)
	assert.Equal(t, 100, data.StreamProgress)
	assert.Equal(t, []string{events.TypeOutputCreated}, h.bus.Types())
}

func TestGenerate_StreamErrorDropsPartialOutput(t *testing.T) {
	h := newHarness(nil)
	gen := textSetup(t, h, nil)
	h.orch.text = brokenStream{}

	outcome := h.orch.Generate(context.Background(), h.canvas, gen)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Empty(t, h.outputs())
	assert.Empty(t, h.canvas.OutgoingEdges(gen))
}

// trickleText streams one word per frame, delivered a byte at a time
type trickleText struct{ content string }

func (t trickleText) StreamText(context.Context, ports.TextRequest) (io.ReadCloser, error) {
	var b strings.Builder
	for _, word := range strings.SplitAfter(t.content, " ") {
		b.WriteString(frame(word))
	}
	b.WriteString("data: [DONE]\n\n")
	return io.NopCloser(iotest.OneByteReader(strings.NewReader(b.String()))), nil
}

// brokenStream sends one delta then fails the read
type brokenStream struct{}

func (brokenStream) StreamText(context.Context, ports.TextRequest) (io.ReadCloser, error) {
	return io.NopCloser(io.MultiReader(
		strings.NewReader(frame("partial text")),
		iotest.ErrReader(errors.New("connection reset")),
	)), nil
}

func TestStreamProgress(t *testing.T) {
	assert.Equal(t, 0, streamProgress(10, 0))
	assert.Equal(t, 50, streamProgress(750, 1500))
	assert.Equal(t, 99, streamProgress(5000, 1500))
}

func TestGenerate_EmptyVariationIsSkipped(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	gen := textSetup(t, h, entities.Patch{"quantity": 3})
	h.text.replies = []reply{{content: "one"}, {content: "   "}, {content: "three"}}

	outcome := h.orch.Generate(ctx, h.canvas, gen)

	require.Equal(t, OutcomeSucceeded, outcome.Kind)
	assert.Len(t, outcome.OutputIDs, 2)
	assert.Equal(t, 3, outcome.Completed)
	assert.Len(t, h.outputs(), 2)
	assert.Len(t, h.canvas.OutgoingEdges(gen), 2)
	assert.Equal(t, 3, h.generator(t).GeneratedCount)
}

func TestGenerate_QuotaAbortsLoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	gen := textSetup(t, h, entities.Patch{"quantity": 5})
	h.text.replies = []reply{
		{content: "kept"},
		{err: pkgerrors.NewQuotaError("generate-content")},
		{content: "never"},
	}

	outcome := h.orch.Generate(ctx, h.canvas, gen)

	assert.Equal(t, OutcomeQuotaExceeded, outcome.Kind)
	assert.True(t, pkgerrors.IsQuota(outcome.Err))
	assert.Len(t, outcome.OutputIDs, 1)
	assert.Equal(t, 1, outcome.Completed)
	assert.Equal(t, 2, h.text.calls())
	assert.Len(t, h.outputs(), 1)

	g := h.generator(t)
	assert.False(t, g.IsGenerating)
	assert.Equal(t, entities.StepError, g.Step)
	assert.NotEmpty(t, g.LastError)

	types := h.bus.Types()
	assert.Equal(t, events.TypeGenerationFailed, types[len(types)-1])
	failedEvt := h.bus.Events()[len(types)-1].(events.GenerationFailed)
	assert.Equal(t, string(OutcomeQuotaExceeded), failedEvt.Outcome)
}

func TestGenerate_RemoteFailure(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	gen := textSetup(t, h, nil)
	h.text.replies = []reply{{err: pkgerrors.NewExternalError("generate-content", errors.New("503"))}}

	outcome := h.orch.Generate(ctx, h.canvas, gen)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.False(t, pkgerrors.IsQuota(outcome.Err))
	assert.Empty(t, h.outputs())
	g := h.generator(t)
	assert.False(t, g.IsGenerating)
	assert.Equal(t, entities.StepError, g.Step)
}

func TestGenerate_AllEmptyFails(t *testing.T) {
	h := newHarness(nil)
	gen := textSetup(t, h, entities.Patch{"quantity": 2})
	h.text.replies = []reply{{content: " "}, {content: ""}}

	outcome := h.orch.Generate(context.Background(), h.canvas, gen)

	assert.Equal(t, OutcomeFailed, outcome.Kind)
	assert.Equal(t, 2, outcome.Completed)
	assert.Empty(t, h.outputs())
}

func TestGenerate_ValidationOutcomes(t *testing.T) {
	ctx := context.Background()

	t.Run("connections required", func(t *testing.T) {
		h := newHarness(nil)
		gen := h.add(t, entities.KindGenerator, 0, 0, nil)

		outcome := h.orch.Generate(ctx, h.canvas, gen)

		assert.Equal(t, OutcomeConnectionsRequired, outcome.Kind)
		assert.True(t, pkgerrors.HasCode(outcome.Err, pkgerrors.CodeConnectionsRequired))
		assert.Zero(t, h.text.calls())
		assert.False(t, h.generator(t).IsGenerating)
	})

	t.Run("content required", func(t *testing.T) {
		h := newHarness(nil)
		source := h.add(t, entities.KindSource, 0, 0, nil)
		gen := h.add(t, entities.KindGenerator, 300, 0, nil)
		h.connect(t, source, gen)

		outcome := h.orch.Generate(ctx, h.canvas, gen)

		assert.Equal(t, OutcomeContentRequired, outcome.Kind)
		assert.True(t, pkgerrors.HasCode(outcome.Err, pkgerrors.CodeContentRequired))
		assert.Zero(t, h.text.calls())
		g := h.generator(t)
		assert.False(t, g.IsGenerating)
		assert.Equal(t, entities.StepIdle, g.Step)
	})

	t.Run("already generating", func(t *testing.T) {
		h := newHarness(nil)
		gen := textSetup(t, h, entities.Patch{"isGenerating": true})

		outcome := h.orch.Generate(ctx, h.canvas, gen)

		assert.Equal(t, OutcomeFailed, outcome.Kind)
		assert.True(t, pkgerrors.IsType(outcome.Err, pkgerrors.ErrorTypeConflict))
		assert.Zero(t, h.text.calls())
	})

	t.Run("not a generator", func(t *testing.T) {
		h := newHarness(nil)
		prompt := h.add(t, entities.KindPrompt, 0, 0, nil)

		assert.Equal(t, OutcomeFailed, h.orch.Generate(ctx, h.canvas, prompt).Kind)
		assert.True(t, pkgerrors.IsNotFound(h.orch.Generate(ctx, h.canvas, "missing").Err))
	})
}

func TestRegenerate_ReplacesOutput(t *testing.T) {
	ctx := context.Background()
	h := newHarness(nil)
	gen := textSetup(t, h, entities.Patch{"format": "carousel", "platform": "instagram"})

	first := h.orch.Generate(ctx, h.canvas, gen)
	require.Equal(t, OutcomeSucceeded, first.Kind)
	require.Len(t, first.OutputIDs, 1)
	out, _ := h.canvas.Node(first.OutputIDs[0])
	assert.NotEmpty(t, out.Data.(*entities.OutputData).Content)
	edges := h.canvas.OutgoingEdges(gen)
	require.Len(t, edges, 1)
	assert.Equal(t, first.OutputIDs[0], edges[0].Target)

	second := h.orch.Regenerate(ctx, h.canvas, first.OutputIDs[0])

	require.Equal(t, OutcomeSucceeded, second.Kind)
	require.Len(t, second.OutputIDs, 1)
	assert.NotEqual(t, first.OutputIDs[0], second.OutputIDs[0])
	_, stillThere := h.canvas.Node(first.OutputIDs[0])
	assert.False(t, stillThere)
	assert.Len(t, h.outputs(), 1)
	assert.Len(t, h.canvas.OutgoingEdges(gen), 1)

	assert.True(t, pkgerrors.IsNotFound(h.orch.Regenerate(ctx, h.canvas, "missing").Err))
}

func TestRegenerate_KeepsOutputWhenProducerCannotRun(t *testing.T) {
	ctx := context.Background()

	t.Run("generator busy", func(t *testing.T) {
		h := newHarness(nil)
		gen := textSetup(t, h, nil)
		first := h.orch.Generate(ctx, h.canvas, gen)
		require.Equal(t, OutcomeSucceeded, first.Kind)
		require.NoError(t, h.canvas.UpdateNode(gen, entities.Patch{"isGenerating": true}))

		outcome := h.orch.Regenerate(ctx, h.canvas, first.OutputIDs[0])

		assert.Equal(t, OutcomeFailed, outcome.Kind)
		assert.True(t, pkgerrors.IsType(outcome.Err, pkgerrors.ErrorTypeConflict))
		_, kept := h.canvas.Node(first.OutputIDs[0])
		assert.True(t, kept)
		assert.Len(t, h.outputs(), 1)
		assert.Equal(t, 1, h.text.calls())
	})

	t.Run("inputs disconnected", func(t *testing.T) {
		h := newHarness(nil)
		gen := textSetup(t, h, nil)
		first := h.orch.Generate(ctx, h.canvas, gen)
		require.Equal(t, OutcomeSucceeded, first.Kind)
		for _, edge := range h.canvas.IncomingEdges(gen) {
			h.canvas.Disconnect(edge.ID)
		}

		outcome := h.orch.Regenerate(ctx, h.canvas, first.OutputIDs[0])

		assert.Equal(t, OutcomeConnectionsRequired, outcome.Kind)
		_, kept := h.canvas.Node(first.OutputIDs[0])
		assert.True(t, kept)
		assert.Equal(t, entities.StepDone, h.generator(t).Step)
	})

	t.Run("editor busy", func(t *testing.T) {
		h := newHarness(nil)
		upstream := h.add(t, entities.KindOutput, 0, 0, entities.Patch{"isImage": true, "imageUrl": "https://cdn/base.png"})
		editor := h.add(t, entities.KindImageEditor, 300, 0, entities.Patch{"editInstruction": "make it blue"})
		h.connect(t, upstream, editor)
		h.images.On("EditImage", mock.Anything, mock.Anything).Return("https://cdn/blue.png", nil).Once()
		first := h.orch.EditImage(ctx, h.canvas, editor)
		require.Equal(t, OutcomeSucceeded, first.Kind)
		require.NoError(t, h.canvas.UpdateNode(editor, entities.Patch{"isProcessing": true}))

		outcome := h.orch.Regenerate(ctx, h.canvas, first.OutputIDs[0])

		assert.True(t, pkgerrors.IsType(outcome.Err, pkgerrors.ErrorTypeConflict))
		_, kept := h.canvas.Node(first.OutputIDs[0])
		assert.True(t, kept)
		h.images.AssertNumberOfCalls(t, "EditImage", 1)
	})
}

type styleAnalyzer struct{ calls callCounter }

type callCounter struct {
	mu sync.Mutex
	n  int
}

func (c *callCounter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (a *styleAnalyzer) OCR(context.Context, ports.MediaRef) (string, error) { return "", nil }

func (a *styleAnalyzer) AnalyzeStyle(context.Context, ports.MediaRef) (map[string]interface{}, error) {
	a.calls.inc()
	return map[string]interface{}{"mood": "sunny"}, nil
}

func TestGenerate_Image(t *testing.T) {
	ctx := context.Background()
	analyzer := &styleAnalyzer{}
	h := newHarness(analyzer)

	images := h.add(t, entities.KindImageSource, 0, 0, entities.Patch{"images": []entities.MediaItem{
		{ID: "a", MimeType: "image/png", URL: "https://cdn/a.png"},
		{ID: "b", MimeType: "image/png", URL: "https://cdn/b.png"},
		{ID: "c", MimeType: "image/png", URL: "https://cdn/c.png", StyleAnalysis: &entities.StyleAnalysis{Mood: "calm"}},
	}})
	prompt := h.add(t, entities.KindPrompt, 0, 300, entities.Patch{"briefing": "Summer sale"})
	gen := h.add(t, entities.KindGenerator, 400, 0, entities.Patch{
		"format": "image", "imageType": "story", "imageStyle": "photo", "noText": true,
	})
	h.connect(t, images, gen)
	h.connect(t, prompt, gen)

	h.images.On("GenerateImage", mock.Anything, mock.MatchedBy(func(req ports.ImageRequest) bool {
		return req.AspectRatio == "9:16" &&
			req.ImageType == "story" &&
			req.Style == "photo" &&
			req.NoText &&
			req.Prompt == "Summer sale" &&
			len(req.References) == 2 &&
			strings.Contains(req.StyleContext, "Mood: sunny") &&
			strings.Contains(req.StyleContext, "Mood: calm") &&
			req.Instructions != ""
	})).Return("https://cdn/generated.png", nil).Once()

	outcome := h.orch.Generate(ctx, h.canvas, gen)

	require.Equal(t, OutcomeSucceeded, outcome.Kind, outcome.Message)
	require.Len(t, outcome.OutputIDs, 1)
	out, _ := h.canvas.Node(outcome.OutputIDs[0])
	data := out.Data.(*entities.OutputData)
	assert.True(t, data.IsImage)
	assert.Equal(t, "https://cdn/generated.png", data.ImageURL)
	assert.Equal(t, valueobjects.Position{X: 800, Y: 0}, out.Position)
	assert.Equal(t, 2, analyzer.calls.n)

	g := h.generator(t)
	assert.Equal(t, entities.StepDone, g.Step)
	assert.Equal(t, 100, g.Progress)
	h.images.AssertExpectations(t)
}

func TestGenerate_ImageQuota(t *testing.T) {
	h := newHarness(nil)
	prompt := h.add(t, entities.KindPrompt, 0, 0, entities.Patch{"briefing": "Logo"})
	gen := h.add(t, entities.KindGenerator, 400, 0, entities.Patch{"format": "image"})
	h.connect(t, prompt, gen)
	h.images.On("GenerateImage", mock.Anything, mock.Anything).Return("", pkgerrors.NewQuotaError("generate-image"))

	outcome := h.orch.Generate(context.Background(), h.canvas, gen)

	assert.Equal(t, OutcomeQuotaExceeded, outcome.Kind)
	assert.Empty(t, h.outputs())
	assert.Equal(t, entities.StepError, h.generator(t).Step)
}

func TestEditImage(t *testing.T) {
	ctx := context.Background()

	t.Run("base image from upstream output", func(t *testing.T) {
		h := newHarness(nil)
		upstream := h.add(t, entities.KindOutput, 0, 0, entities.Patch{"isImage": true, "imageUrl": "https://cdn/base.png"})
		editor := h.add(t, entities.KindImageEditor, 300, 0, entities.Patch{"editInstruction": "make it blue", "aspectRatio": "4:5"})
		h.connect(t, upstream, editor)

		h.images.On("EditImage", mock.Anything, ports.EditRequest{
			BaseImage: "https://cdn/base.png", Instruction: "make it blue", AspectRatio: "4:5",
		}).Return("https://cdn/blue.png", nil).Once()

		outcome := h.orch.EditImage(ctx, h.canvas, editor)

		require.Equal(t, OutcomeSucceeded, outcome.Kind, outcome.Message)
		out, _ := h.canvas.Node(outcome.OutputIDs[0])
		assert.Equal(t, "https://cdn/blue.png", out.Data.(*entities.OutputData).ImageURL)
		assert.Len(t, h.canvas.OutgoingEdges(editor), 1)
		node, _ := h.canvas.Node(editor)
		assert.False(t, node.Data.(*entities.ImageEditorData).IsProcessing)

		// Regenerating an edited output edits again
		h.images.On("EditImage", mock.Anything, mock.Anything).Return("https://cdn/blue2.png", nil).Once()
		again := h.orch.Regenerate(ctx, h.canvas, outcome.OutputIDs[0])
		require.Equal(t, OutcomeSucceeded, again.Kind)
		assert.Len(t, h.canvas.OutgoingEdges(editor), 1)
	})

	t.Run("missing base image", func(t *testing.T) {
		h := newHarness(nil)
		editor := h.add(t, entities.KindImageEditor, 0, 0, entities.Patch{"editInstruction": "crop"})

		outcome := h.orch.EditImage(ctx, h.canvas, editor)

		assert.Equal(t, OutcomeContentRequired, outcome.Kind)
		assert.True(t, pkgerrors.HasCode(outcome.Err, pkgerrors.CodeBaseImageRequired))
	})

	t.Run("missing instruction", func(t *testing.T) {
		h := newHarness(nil)
		editor := h.add(t, entities.KindImageEditor, 0, 0, entities.Patch{"imageUrl": "https://cdn/x.png", "editInstruction": "  "})

		outcome := h.orch.EditImage(ctx, h.canvas, editor)

		assert.True(t, pkgerrors.HasCode(outcome.Err, pkgerrors.CodeInstructionRequired))
		h.images.AssertNotCalled(t, "EditImage", mock.Anything, mock.Anything)
	})

	t.Run("remote failure", func(t *testing.T) {
		h := newHarness(nil)
		editor := h.add(t, entities.KindImageEditor, 0, 0, entities.Patch{"imageUrl": "https://cdn/x.png", "editInstruction": "crop"})
		h.images.On("EditImage", mock.Anything, mock.Anything).Return("", errors.New("boom"))

		outcome := h.orch.EditImage(ctx, h.canvas, editor)

		assert.Equal(t, OutcomeFailed, outcome.Kind)
		node, _ := h.canvas.Node(editor)
		data := node.Data.(*entities.ImageEditorData)
		assert.False(t, data.IsProcessing)
		assert.Equal(t, "boom", data.LastError)
		assert.Empty(t, h.outputs())
	})
}

func TestLookupImageType(t *testing.T) {
	tests := map[string]string{
		"feed":      "4:5",
		"Carousel":  "4:5",
		"thumbnail": "16:9",
		"story":     "9:16",
		"quote":     "1:1",
		"unknown":   "1:1",
		"":          "1:1",
	}
	for name, aspect := range tests {
		assert.Equal(t, aspect, LookupImageType(name).AspectRatio, name)
	}
}
