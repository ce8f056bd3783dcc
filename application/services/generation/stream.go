package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const doneSentinel = "[DONE]"

// DeltaParser incrementally parses a stream of newline-delimited
// "data:" frames carrying OpenAI-compatible chat completion deltas.
// Chunks may split frames at any byte; the incomplete tail is kept
// until the next chunk. It is not safe for concurrent use.
type DeltaParser struct {
	pending []byte
	text    strings.Builder
	done    bool
	frames  int
	skipped int
}

// Feed consumes a chunk and returns the text appended by the complete
// frames it contained. Frames after the sentinel are ignored.
func (p *DeltaParser) Feed(chunk []byte) string {
	if p.done {
		return ""
	}
	p.pending = append(p.pending, chunk...)

	var delta strings.Builder
	for !p.done {
		i := bytes.IndexByte(p.pending, '\n')
		if i < 0 {
			break
		}
		line := string(p.pending[:i])
		p.pending = p.pending[i+1:]
		delta.WriteString(p.line(line))
	}
	if len(p.pending) == 0 {
		p.pending = nil
	}
	return delta.String()
}

// Flush parses a trailing frame that was not newline terminated
func (p *DeltaParser) Flush() string {
	if p.done || len(p.pending) == 0 {
		return ""
	}
	line := string(p.pending)
	p.pending = nil
	return p.line(line)
}

// Text returns everything accumulated so far
func (p *DeltaParser) Text() string { return p.text.String() }

// Done reports whether the sentinel frame was seen
func (p *DeltaParser) Done() bool { return p.done }

// Skipped returns how many malformed frames were ignored
func (p *DeltaParser) Skipped() int { return p.skipped }

func (p *DeltaParser) line(line string) string {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, ":") || !strings.HasPrefix(line, "data:") {
		return ""
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == doneSentinel {
		p.done = true
		return ""
	}
	p.frames++

	var frame openai.ChatCompletionStreamResponse
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		p.skipped++
		return ""
	}
	var delta strings.Builder
	for _, choice := range frame.Choices {
		delta.WriteString(choice.Delta.Content)
	}
	p.text.WriteString(delta.String())
	return delta.String()
}

// ReadStream drains body through a DeltaParser until the sentinel or EOF,
// calling onDelta with the accumulated text after every chunk that added some.
func ReadStream(ctx context.Context, body io.Reader, onDelta func(text string)) (string, error) {
	var parser DeltaParser
	buf := make([]byte, 4096)
	for !parser.Done() {
		if err := ctx.Err(); err != nil {
			return parser.Text(), err
		}
		n, err := body.Read(buf)
		if n > 0 {
			if parser.Feed(buf[:n]) != "" && onDelta != nil {
				onDelta(parser.Text())
			}
		}
		if errors.Is(err, io.EOF) {
			if parser.Flush() != "" && onDelta != nil {
				onDelta(parser.Text())
			}
			break
		}
		if err != nil {
			return parser.Text(), err
		}
	}
	return parser.Text(), nil
}
