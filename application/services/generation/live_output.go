package generation

import (
	"context"
	"strings"
	"unicode/utf8"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
)

// liveOutput writes a streaming variation into its output node. The node is
// created with the first non-blank text and updated as deltas arrive.
type liveOutput struct {
	orch       *Orchestrator
	canvas     *aggregates.Canvas
	producerID string
	pos        valueobjects.Position
	template   entities.OutputData
	expected   int

	id  string
	err error
}

func (l *liveOutput) update(ctx context.Context, text string) {
	if l.err != nil {
		return
	}
	content := strings.TrimSpace(text)
	if content == "" {
		return
	}
	progress := streamProgress(utf8.RuneCountInString(content), l.expected)
	if l.id == "" {
		data := l.template
		data.Content = content
		data.IsStreaming = true
		data.StreamProgress = progress
		l.id, l.err = l.orch.createOutput(ctx, l.canvas, l.producerID, l.pos, &data)
		return
	}
	l.orch.setState(l.canvas, l.id, entities.Patch{
		"content":        content,
		"streamProgress": progress,
	})
}

// finish writes the final content and returns the output ID. An empty
// content yields no output.
func (l *liveOutput) finish(ctx context.Context, content string) (string, error) {
	if l.err != nil {
		return "", l.err
	}
	if content == "" {
		l.discard()
		return "", nil
	}
	if l.id == "" {
		data := l.template
		data.Content = content
		data.StreamProgress = progressDone
		return l.orch.createOutput(ctx, l.canvas, l.producerID, l.pos, &data)
	}
	l.orch.setState(l.canvas, l.id, entities.Patch{
		"content":        content,
		"isStreaming":    false,
		"streamProgress": progressDone,
	})
	if _, ok := l.canvas.Node(l.id); !ok {
		// removed by the user while streaming
		return "", nil
	}
	return l.id, nil
}

func (l *liveOutput) discard() {
	if l.id != "" {
		l.canvas.DeleteNode(l.id)
		l.id = ""
	}
}

// streamProgress estimates completion of a stream, staying below 100 until it ends
func streamProgress(received, expected int) int {
	if expected <= 0 {
		return 0
	}
	p := received * progressDone / expected
	if p >= progressDone {
		p = progressDone - 1
	}
	return p
}
