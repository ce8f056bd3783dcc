package memory

import (
	"context"
	"testing"
	"time"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanvasStore(t *testing.T) {
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	store := NewCanvasStore(clock)
	ctx := context.Background()

	prompt := &entities.PromptData{Briefing: "original"}
	id, err := store.Save(ctx, aggregates.Snapshot{
		ClientID: "client-a",
		Name:     "first",
		Nodes:    []entities.Node{{ID: "p1", Kind: entities.KindPrompt, Data: prompt}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	// stored copies are detached from the caller
	prompt.Briefing = "changed"
	loaded, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "original", loaded.Nodes[0].Data.(*entities.PromptData).Briefing)

	clock.Advance(time.Minute)
	_, err = store.Save(ctx, aggregates.Snapshot{ClientID: "client-a", Name: "second"})
	require.NoError(t, err)
	_, err = store.Save(ctx, aggregates.Snapshot{ClientID: "client-b", Name: "other"})
	require.NoError(t, err)

	list, err := store.List(ctx, "client-a")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Name)

	require.NoError(t, store.Delete(ctx, id))
	_, err = store.Load(ctx, id)
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestLibraryStore(t *testing.T) {
	store := NewLibraryStore(ports.LibraryItem{ID: "i1", ClientID: "client-a", Title: "Voice"})

	item, err := store.Get(context.Background(), "client-a", "i1")
	require.NoError(t, err)
	assert.Equal(t, "Voice", item.Title)

	_, err = store.Get(context.Background(), "client-b", "i1")
	assert.True(t, pkgerrors.IsNotFound(err))

	store.Put(ports.LibraryItem{ID: "i2", Title: "Shared"})
	_, err = store.Get(context.Background(), "client-b", "i2")
	assert.NoError(t, err)
}
