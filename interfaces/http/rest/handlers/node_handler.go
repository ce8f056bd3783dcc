package handlers

import (
	"net/http"

	"canvas-backend/domain/core/aggregates"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// NodeHandler handles node and edge requests of a session's canvas
type NodeHandler struct {
	logger *zap.Logger
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(logger *zap.Logger) *NodeHandler {
	return &NodeHandler{logger: logger}
}

// CreateNodeRequest represents the request body for creating a node
type CreateNodeRequest struct {
	Type     entities.NodeKind     `json:"type" validate:"required"`
	Position valueobjects.Position `json:"position"`
	Data     entities.Patch        `json:"data,omitempty"`
}

// UpdateNodeRequest represents the request body for updating a node.
// Data fields are shallow-merged into the node's payload.
type UpdateNodeRequest struct {
	Position *valueobjects.Position `json:"position,omitempty"`
	Data     entities.Patch         `json:"data,omitempty"`
}

// LibraryNodeRequest represents the request body for adding a library node
type LibraryNodeRequest struct {
	ItemID   string                `json:"itemId" validate:"required"`
	Position valueobjects.Position `json:"position"`
}

// NodeChangesRequest carries a batch of structural node changes
type NodeChangesRequest struct {
	Changes []aggregates.NodeChange `json:"changes" validate:"required,dive"`
}

// ConnectRequest represents the request body for creating an edge
type ConnectRequest struct {
	Source       string `json:"source" validate:"required"`
	Target       string `json:"target" validate:"required"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// EdgeChangesRequest carries a batch of structural edge changes
type EdgeChangesRequest struct {
	Changes []aggregates.EdgeChange `json:"changes" validate:"required,dive"`
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req CreateNodeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	pos, err := valueobjects.NewPosition(req.Position.X, req.Position.Y)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	canvas := sessionFrom(r).Canvas()
	id, err := canvas.AddNode(req.Type, pos, req.Data)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	node, _ := canvas.Node(id)
	respondJSON(w, http.StatusCreated, node)
}

// GetNode handles GET /nodes/{nodeID}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, ok := sessionFrom(r).Canvas().Node(chi.URLParam(r, "nodeID"))
	if !ok {
		respondError(w, h.logger, pkgerrors.NewNotFoundError("node"))
		return
	}
	respondJSON(w, http.StatusOK, node)
}

// UpdateNode handles PATCH /nodes/{nodeID}
func (h *NodeHandler) UpdateNode(w http.ResponseWriter, r *http.Request) {
	var req UpdateNodeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	nodeID := chi.URLParam(r, "nodeID")
	canvas := sessionFrom(r).Canvas()
	if _, ok := canvas.Node(nodeID); !ok {
		respondError(w, h.logger, pkgerrors.NewNotFoundError("node"))
		return
	}
	if req.Position != nil {
		pos, err := valueobjects.NewPosition(req.Position.X, req.Position.Y)
		if err != nil {
			respondError(w, h.logger, err)
			return
		}
		canvas.MoveNode(nodeID, pos)
	}
	if err := canvas.UpdateNode(nodeID, req.Data); err != nil {
		respondError(w, h.logger, asValidation(err))
		return
	}
	node, _ := canvas.Node(nodeID)
	respondJSON(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{nodeID}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if !sessionFrom(r).Canvas().DeleteNode(chi.URLParam(r, "nodeID")) {
		respondError(w, h.logger, pkgerrors.NewNotFoundError("node"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyNodeChanges handles POST /nodes/changes
func (h *NodeHandler) ApplyNodeChanges(w http.ResponseWriter, r *http.Request) {
	var req NodeChangesRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := sessionFrom(r).Canvas().ApplyNodeChanges(req.Changes); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddLibraryNode handles POST /nodes/library
func (h *NodeHandler) AddLibraryNode(w http.ResponseWriter, r *http.Request) {
	var req LibraryNodeRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	sess := sessionFrom(r)
	id, err := sess.AddLibraryNode(r.Context(), req.ItemID, req.Position)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	node, _ := sess.Canvas().Node(id)
	respondJSON(w, http.StatusCreated, node)
}

// Connect handles POST /edges
func (h *NodeHandler) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	edge, err := entities.NewEdge(req.Source, req.Target, req.SourceHandle, req.TargetHandle)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	edge, err = sessionFrom(r).Canvas().Connect(edge)
	if err != nil {
		respondError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, edge)
}

// Disconnect handles DELETE /edges/{edgeID}
func (h *NodeHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	if !sessionFrom(r).Canvas().Disconnect(chi.URLParam(r, "edgeID")) {
		respondError(w, h.logger, pkgerrors.NewNotFoundError("edge"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ApplyEdgeChanges handles POST /edges/changes
func (h *NodeHandler) ApplyEdgeChanges(w http.ResponseWriter, r *http.Request) {
	var req EdgeChangesRequest
	if err := decode(r, &req); err != nil {
		respondError(w, h.logger, err)
		return
	}
	if err := sessionFrom(r).Canvas().ApplyEdgeChanges(req.Changes); err != nil {
		respondError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
