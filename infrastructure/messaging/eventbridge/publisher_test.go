package eventbridge

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"canvas-backend/domain/events"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEventBridge struct {
	inputs []*eventbridge.PutEventsInput
	failAt int
	err    error
}

func (f *fakeEventBridge) PutEvents(_ context.Context, in *eventbridge.PutEventsInput, _ ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error) {
	f.inputs = append(f.inputs, in)
	if f.err != nil {
		return nil, f.err
	}
	out := &eventbridge.PutEventsOutput{Entries: make([]types.PutEventsResultEntry, len(in.Entries))}
	if f.failAt > 0 && len(f.inputs) == f.failAt {
		out.FailedEntryCount = 1
		out.Entries[0].ErrorCode = aws.String("ThrottlingException")
	}
	return out, nil
}

func outputEvents(n int) []events.DomainEvent {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	out := make([]events.DomainEvent, n)
	for i := range out {
		out[i] = events.NewOutputCreated("c1", "g1", "o1", "post", "instagram", i+1, at)
	}
	return out
}

func TestPublisher_Batches(t *testing.T) {
	fake := &fakeEventBridge{}
	p := NewPublisher(fake, "canvas-events", nil)

	require.NoError(t, p.Publish(context.Background(), outputEvents(23)...))

	require.Len(t, fake.inputs, 3)
	assert.Len(t, fake.inputs[0].Entries, 10)
	assert.Len(t, fake.inputs[1].Entries, 10)
	assert.Len(t, fake.inputs[2].Entries, 3)

	entry := fake.inputs[0].Entries[0]
	assert.Equal(t, "canvas-events", aws.ToString(entry.EventBusName))
	assert.Equal(t, Source, aws.ToString(entry.Source))
	assert.Equal(t, events.TypeOutputCreated, aws.ToString(entry.DetailType))

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(entry.Detail)), &detail))
	assert.Equal(t, "g1", detail["generator_id"])
}

func TestPublisher_Failures(t *testing.T) {
	t.Run("partial failure", func(t *testing.T) {
		fake := &fakeEventBridge{failAt: 1}
		p := NewPublisher(fake, "bus", nil)
		err := p.Publish(context.Background(), outputEvents(2)...)
		assert.EqualError(t, err, "1 events failed to publish")
	})

	t.Run("client error", func(t *testing.T) {
		fake := &fakeEventBridge{err: errors.New("no credentials")}
		p := NewPublisher(fake, "bus", nil)
		err := p.Publish(context.Background(), outputEvents(1)...)
		assert.ErrorContains(t, err, "no credentials")
	})

	t.Run("nothing to send", func(t *testing.T) {
		fake := &fakeEventBridge{}
		p := NewPublisher(fake, "bus", nil)
		require.NoError(t, p.Publish(context.Background()))
		assert.Empty(t, fake.inputs)
	})
}
