package autosave

import (
	"context"
	"errors"
	"testing"
	"time"

	"canvas-backend/application/ports/mocks"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	"canvas-backend/domain/events"
	"canvas-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	canvas *aggregates.Canvas
	repo   *mocks.MockCanvasRepository
	bus    *mocks.RecordingEventBus
	clock  *utils.FakeClock
	saver  *Saver
}

func newFixture() *fixture {
	f := &fixture{
		canvas: aggregates.NewCanvas(),
		repo:   new(mocks.MockCanvasRepository),
		bus:    &mocks.RecordingEventBus{},
		clock:  utils.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)),
	}
	f.saver = New(f.canvas, f.repo, Options{Clock: f.clock, Bus: f.bus})
	return f
}

func (f *fixture) addPrompt(t *testing.T, briefing string) string {
	t.Helper()
	id, err := f.canvas.AddNode(entities.KindPrompt, valueobjects.Position{}, entities.Patch{"briefing": briefing})
	require.NoError(t, err)
	return id
}

func TestSaver_DebounceResetsTimer(t *testing.T) {
	f := newFixture()
	f.repo.On("Save", mock.Anything, mock.AnythingOfType("aggregates.Snapshot")).Return("canvas-1", nil).Once()

	id := f.addPrompt(t, "a")
	assert.Equal(t, StatusPending, f.saver.State().Status)

	f.clock.Advance(2 * time.Second)
	require.NoError(t, f.canvas.UpdateNode(id, entities.Patch{"briefing": "b"}))
	f.clock.Advance(2 * time.Second)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	f.clock.Advance(time.Second)
	f.repo.AssertNumberOfCalls(t, "Save", 1)

	state := f.saver.State()
	assert.Equal(t, StatusSaved, state.Status)
	assert.Equal(t, "canvas-1", state.CanvasID)
	require.NotNil(t, state.LastSavedAt)

	f.clock.Advance(2 * time.Second)
	assert.Equal(t, StatusIdle, f.saver.State().Status)

	// No mutation after the save never saves again
	f.clock.Advance(time.Minute)
	f.repo.AssertNumberOfCalls(t, "Save", 1)
	assert.Equal(t, []string{events.TypeCanvasSaved}, f.bus.Types())
}

func TestSaver_FirstSaveAllocatesID(t *testing.T) {
	f := newFixture()
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(s aggregates.Snapshot) bool { return s.ID == "" })).Return("new-id", nil).Once()
	f.repo.On("Save", mock.Anything, mock.MatchedBy(func(s aggregates.Snapshot) bool { return s.ID == "new-id" })).Return("new-id", nil).Once()

	id := f.addPrompt(t, "a")
	f.clock.Advance(3 * time.Second)
	assert.Equal(t, "new-id", f.canvas.ID())

	require.NoError(t, f.canvas.UpdateNode(id, entities.Patch{"briefing": "b"}))
	f.clock.Advance(3 * time.Second)

	f.repo.AssertExpectations(t)
	saved := f.bus.Events()
	require.Len(t, saved, 2)
	assert.True(t, saved[0].(events.CanvasSaved).Created)
	assert.False(t, saved[1].(events.CanvasSaved).Created)
}

func TestSaver_UnchangedGraphSkipsSave(t *testing.T) {
	f := newFixture()
	original := f.canvas.Name()

	f.canvas.SetName("Draft")
	f.canvas.SetName(original)
	assert.Equal(t, StatusPending, f.saver.State().Status)

	f.clock.Advance(3 * time.Second)

	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, StatusIdle, f.saver.State().Status)
}

func TestSaver_ErrorIsSticky(t *testing.T) {
	f := newFixture()
	f.repo.On("Save", mock.Anything, mock.Anything).Return("", errors.New("db down")).Once()
	f.repo.On("Save", mock.Anything, mock.Anything).Return("canvas-1", nil).Once()

	id := f.addPrompt(t, "a")
	f.clock.Advance(3 * time.Second)
	state := f.saver.State()
	assert.Equal(t, StatusError, state.Status)
	assert.Equal(t, "db down", state.Error)

	require.NoError(t, f.canvas.UpdateNode(id, entities.Patch{"briefing": "b"}))
	assert.Equal(t, StatusError, f.saver.State().Status)

	f.clock.Advance(3 * time.Second)
	state = f.saver.State()
	assert.Equal(t, StatusSaved, state.Status)
	assert.Empty(t, state.Error)
	f.repo.AssertNumberOfCalls(t, "Save", 2)
}

func TestSaver_LoadResetsBaseline(t *testing.T) {
	f := newFixture()
	f.addPrompt(t, "unsaved")
	assert.Equal(t, StatusPending, f.saver.State().Status)

	f.canvas.Load(aggregates.Snapshot{
		ID:   "other",
		Name: "Loaded",
		Nodes: []entities.Node{{
			ID: "p1", Kind: entities.KindPrompt, Data: &entities.PromptData{Briefing: "hello"},
		}},
	})

	assert.Equal(t, StatusIdle, f.saver.State().Status)
	f.clock.Advance(time.Minute)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)

	f.canvas.Reset("client-2")
	f.clock.Advance(time.Minute)
	f.repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, StatusIdle, f.saver.State().Status)
}

func TestSaver_LoadDuringSaveKeepsLoadedCanvas(t *testing.T) {
	tests := []struct {
		name     string
		canvasID string
		replace  func(c *aggregates.Canvas)
		wantID   string
	}{
		{
			name: "load other canvas",
			replace: func(c *aggregates.Canvas) {
				c.Load(aggregates.Snapshot{
					ID:   "canvas-B",
					Name: "B",
					Nodes: []entities.Node{{
						ID: "p1", Kind: entities.KindPrompt, Data: &entities.PromptData{Briefing: "from B"},
					}},
				})
			},
			wantID: "canvas-B",
		},
		{
			name:    "switch client",
			replace: func(c *aggregates.Canvas) { c.Reset("client-2") },
			wantID:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture()
			started := make(chan struct{})
			release := make(chan struct{})
			f.repo.On("Save", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
				close(started)
				<-release
			}).Return("old-canvas-row", nil).Once()

			f.addPrompt(t, "old canvas")
			done := make(chan error, 1)
			go func() { done <- f.saver.Flush(ctx) }()
			<-started

			tt.replace(f.canvas)
			close(release)
			require.NoError(t, <-done)

			assert.Equal(t, tt.wantID, f.canvas.ID())
			assert.Equal(t, StatusIdle, f.saver.State().Status)

			// The loaded graph is the baseline, so nothing is written over the old row
			f.clock.Advance(time.Minute)
			f.repo.AssertNumberOfCalls(t, "Save", 1)
		})
	}
}

func TestSaver_FlushAndClose(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.repo.On("Save", mock.Anything, mock.Anything).Return("canvas-1", nil).Once()

	f.addPrompt(t, "a")
	require.NoError(t, f.saver.Flush(ctx))
	f.repo.AssertNumberOfCalls(t, "Save", 1)

	// The debounce timer was cancelled by the flush
	f.clock.Advance(time.Minute)
	f.repo.AssertNumberOfCalls(t, "Save", 1)

	require.NoError(t, f.saver.Close(ctx))
	f.addPrompt(t, "after close")
	f.clock.Advance(time.Minute)
	f.repo.AssertNumberOfCalls(t, "Save", 1)
	assert.Zero(t, f.clock.Pending())
}
