package handlers

import (
	"net/http"

	"canvas-backend/domain/core/valueobjects"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// OutputHandler handles edits and review of output nodes
type OutputHandler struct {
	logger *zap.Logger
}

// NewOutputHandler creates a new output handler
func NewOutputHandler(logger *zap.Logger) *OutputHandler {
	return &OutputHandler{logger: logger}
}

// EditContentRequest represents the request body for editing output text
type EditContentRequest struct {
	Content string `json:"content"`
}

// EditingRequest toggles the editing flag
type EditingRequest struct {
	Editing bool `json:"editing"`
}

// RestoreRequest names the version to restore
type RestoreRequest struct {
	VersionID string `json:"versionId" validate:"required"`
}

// ApprovalRequest sets the review status
type ApprovalRequest struct {
	Status valueobjects.ApprovalStatus `json:"status" validate:"required,oneof=draft pending approved rejected"`
}

// CommentRequest represents the request body for a comment
type CommentRequest struct {
	Author string `json:"author,omitempty" validate:"max=200"`
	Text   string `json:"text" validate:"required,max=5000"`
}

func (h *OutputHandler) respondNode(w http.ResponseWriter, r *http.Request, status int) {
	node, _ := sessionFrom(r).Canvas().Node(chi.URLParam(r, "outputID"))
	respondJSON(w, status, node)
}

// EditContent handles PUT /outputs/{outputID}/content
func (h *OutputHandler) EditContent(w http.ResponseWriter, r *http.Request) {
	var req EditContentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if _, err := sessionFrom(r).EditContent(chi.URLParam(r, "outputID"), req.Content); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.respondNode(w, r, http.StatusOK)
}

// SetEditing handles PUT /outputs/{outputID}/editing
func (h *OutputHandler) SetEditing(w http.ResponseWriter, r *http.Request) {
	var req EditingRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := sessionFrom(r).SetEditing(chi.URLParam(r, "outputID"), req.Editing); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.respondNode(w, r, http.StatusOK)
}

// RestoreVersion handles POST /outputs/{outputID}/restore
func (h *OutputHandler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := sessionFrom(r).RestoreVersion(chi.URLParam(r, "outputID"), req.VersionID); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.respondNode(w, r, http.StatusOK)
}

// SetApproval handles PUT /outputs/{outputID}/approval
func (h *OutputHandler) SetApproval(w http.ResponseWriter, r *http.Request) {
	var req ApprovalRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := sessionFrom(r).SetApproval(chi.URLParam(r, "outputID"), req.Status); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.respondNode(w, r, http.StatusOK)
}

// AddComment handles POST /outputs/{outputID}/comments
func (h *OutputHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	comment, err := sessionFrom(r).AddComment(chi.URLParam(r, "outputID"), req.Author, req.Text)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// MarkSentToPlanning handles POST /outputs/{outputID}/planning
func (h *OutputHandler) MarkSentToPlanning(w http.ResponseWriter, r *http.Request) {
	if err := sessionFrom(r).MarkSentToPlanning(chi.URLParam(r, "outputID")); err != nil {
		respondError(w, h.logger, err)
		return
	}
	h.respondNode(w, r, http.StatusOK)
}
