package generation

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frame(content string) string {
	return `data: {"id":"c1","object":"chat.completion.chunk","choices":[{"index":0,"delta":{"content":"` + content + `"}}]}` + "\n\n"
}

func TestDeltaParser_SplitAcrossChunks(t *testing.T) {
	stream := frame("Hello") + frame(", world") + "data: [DONE]\n\n" + frame("ignored")

	// Feed one byte at a time
	var p DeltaParser
	var deltas []string
	for i := 0; i < len(stream); i++ {
		if d := p.Feed([]byte{stream[i]}); d != "" {
			deltas = append(deltas, d)
		}
	}

	assert.Equal(t, []string{"Hello", ", world"}, deltas)
	assert.Equal(t, "Hello, world", p.Text())
	assert.True(t, p.Done())
}

func TestDeltaParser_SkipsMalformedFrames(t *testing.T) {
	var p DeltaParser
	input := strings.Join([]string{
		": keep-alive",
		"event: message",
		"data: {not json",
		`data:{"choices":[{"delta":{"content":"A"}}]}`,
		"data: {\"choices\":[]}",
		`data: {"choices":[{"delta":{"role":"assistant"}}]}`,
		"\r",
		`data: {"choices":[{"delta":{"content":"B"}}]}` + "\r",
		"",
	}, "\n")

	p.Feed([]byte(input))

	assert.Equal(t, "AB", p.Text())
	assert.Equal(t, 1, p.Skipped())
	assert.False(t, p.Done())
}

func TestDeltaParser_Flush(t *testing.T) {
	var p DeltaParser
	assert.Empty(t, p.Feed([]byte(`data: {"choices":[{"delta":{"content":"tail"}}]}`)))
	assert.Equal(t, "tail", p.Flush())
	assert.Empty(t, p.Flush())
}

func TestReadStream(t *testing.T) {
	body := strings.NewReader(frame("one ") + frame("two") + "data: [DONE]\n")
	var seen []string

	text, err := ReadStream(context.Background(), body, func(text string) { seen = append(seen, text) })

	require.NoError(t, err)
	assert.Equal(t, "one two", text)
	assert.Equal(t, "one two", seen[len(seen)-1])
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, frame("partial")), nil
	}
	return 0, errors.New("connection reset")
}

func TestReadStream_Errors(t *testing.T) {
	text, err := ReadStream(context.Background(), &failingReader{}, nil)
	assert.EqualError(t, err, "connection reset")
	assert.Equal(t, "partial", text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReadStream(ctx, strings.NewReader(frame("x")), nil)
	assert.ErrorIs(t, err, context.Canceled)

	text, err = ReadStream(context.Background(), io.LimitReader(strings.NewReader(""), 0), nil)
	require.NoError(t, err)
	assert.Empty(t, text)
}
