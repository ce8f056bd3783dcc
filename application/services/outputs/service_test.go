package outputs

import (
	"testing"
	"time"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
	"canvas-backend/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *aggregates.Canvas, *utils.FakeClock, string) {
	t.Helper()
	clock := utils.NewFakeClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	canvas := aggregates.NewCanvas()
	id, err := canvas.AddNode(entities.KindOutput, valueobjects.Position{}, entities.Patch{"content": "v0"})
	require.NoError(t, err)
	return NewService(nil, clock, nil), canvas, clock, id
}

func output(t *testing.T, canvas *aggregates.Canvas, id string) *entities.OutputData {
	t.Helper()
	node, ok := canvas.Node(id)
	require.True(t, ok)
	return node.Data.(*entities.OutputData)
}

func TestEditContent_BoundedHistory(t *testing.T) {
	svc, canvas, clock, id := setup(t)

	for i := 1; i <= 7; i++ {
		clock.Advance(time.Minute)
		changed, err := svc.EditContent(canvas, id, "v"+string(rune('0'+i)))
		require.NoError(t, err)
		assert.True(t, changed)
	}
	changed, err := svc.EditContent(canvas, id, "v7")
	require.NoError(t, err)
	assert.False(t, changed)

	out := output(t, canvas, id)
	assert.Equal(t, "v7", out.Content)
	require.Len(t, out.Versions, 5)
	assert.Equal(t, "v6", out.Versions[0].Content)
	assert.Equal(t, "v2", out.Versions[4].Content)
	assert.Equal(t, entities.VersionLabelEdit, out.Versions[0].Label)
	assert.True(t, out.Versions[0].CreatedAt.After(out.Versions[1].CreatedAt))
}

func TestRestoreVersion(t *testing.T) {
	svc, canvas, _, id := setup(t)
	_, err := svc.EditContent(canvas, id, "v1")
	require.NoError(t, err)
	original := output(t, canvas, id).Versions[0]

	require.NoError(t, svc.RestoreVersion(canvas, id, original.ID))

	out := output(t, canvas, id)
	assert.Equal(t, "v0", out.Content)
	require.Len(t, out.Versions, 2)
	assert.Equal(t, "v1", out.Versions[0].Content)
	assert.Equal(t, entities.VersionLabelBeforeRestore, out.Versions[0].Label)

	err = svc.RestoreVersion(canvas, id, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestReviewOperations(t *testing.T) {
	svc, canvas, _, id := setup(t)

	require.NoError(t, svc.SetApproval(canvas, id, valueobjects.ApprovalApproved))
	assert.True(t, pkgerrors.IsValidation(svc.SetApproval(canvas, id, "maybe")))

	comment, err := svc.AddComment(canvas, id, "ana", "  Looks great  ")
	require.NoError(t, err)
	assert.Equal(t, "Looks great", comment.Text)
	_, err = svc.AddComment(canvas, id, "ana", " ")
	assert.True(t, pkgerrors.IsValidation(err))

	require.NoError(t, svc.MarkSentToPlanning(canvas, id))
	assert.True(t, pkgerrors.IsType(svc.MarkSentToPlanning(canvas, id), pkgerrors.ErrorTypeConflict))

	require.NoError(t, svc.SetEditing(canvas, id, true))

	out := output(t, canvas, id)
	assert.Equal(t, valueobjects.ApprovalApproved, out.ApprovalStatus)
	assert.Len(t, out.Comments, 1)
	assert.True(t, out.AddedToPlanning)
	assert.True(t, out.IsEditing)
}

func TestOperations_RejectOtherNodes(t *testing.T) {
	svc, canvas, _, _ := setup(t)
	promptID, err := canvas.AddNode(entities.KindPrompt, valueobjects.Position{}, nil)
	require.NoError(t, err)
	imageID, err := canvas.AddNode(entities.KindOutput, valueobjects.Position{}, entities.Patch{"isImage": true, "imageUrl": "https://cdn/x.png"})
	require.NoError(t, err)

	_, err = svc.EditContent(canvas, promptID, "x")
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnsupportedNode))

	_, err = svc.EditContent(canvas, imageID, "x")
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = svc.EditContent(canvas, "missing", "x")
	assert.True(t, pkgerrors.IsNotFound(err))
}
