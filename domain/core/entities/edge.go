package entities

import (
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// Edge is a directed connection from one node's output to another node's input slot
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
	TargetHandle string `json:"targetHandle,omitempty"`
}

// NewEdge creates an edge with a fresh ID
func NewEdge(source, target, sourceHandle, targetHandle string) (Edge, error) {
	if source == "" || target == "" {
		return Edge{}, pkgerrors.NewValidationError("edge requires source and target")
	}
	if source == target {
		return Edge{}, pkgerrors.NewValidationError("cannot connect node to itself")
	}
	return Edge{
		ID:           valueobjects.NewID(),
		Source:       source,
		Target:       target,
		SourceHandle: sourceHandle,
		TargetHandle: targetHandle,
	}, nil
}

// Touches reports whether the edge references the node
func (e Edge) Touches(nodeID string) bool {
	return e.Source == nodeID || e.Target == nodeID
}

// SameLink reports whether two edges connect the same endpoints and handles
func (e Edge) SameLink(other Edge) bool {
	return e.Source == other.Source && e.Target == other.Target &&
		e.SourceHandle == other.SourceHandle && e.TargetHandle == other.TargetHandle
}
