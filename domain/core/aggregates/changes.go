package aggregates

import (
	"fmt"

	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// ChangeType names a bulk structural change coming from the editor
type ChangeType string

const (
	ChangePosition ChangeType = "position"
	ChangeRemove   ChangeType = "remove"
	ChangeAdd      ChangeType = "add"
)

// NodeChange is one structural node change. Position is used by position
// changes, Node by add changes.
type NodeChange struct {
	Type     ChangeType             `json:"type" validate:"required,oneof=position remove add"`
	ID       string                 `json:"id"`
	Position *valueobjects.Position `json:"position,omitempty"`
	Node     *entities.Node         `json:"item,omitempty"`
}

// EdgeChange is one structural edge change
type EdgeChange struct {
	Type ChangeType     `json:"type" validate:"required,oneof=remove add"`
	ID   string         `json:"id"`
	Edge *entities.Edge `json:"item,omitempty"`
}

// ApplyNodeChanges applies a batch of structural node changes in one commit.
// Removing a node cascades to its edges. Changes naming unknown nodes are skipped.
func (c *Canvas) ApplyNodeChanges(changes []NodeChange) error {
	if len(changes) == 0 {
		return nil
	}

	c.mu.Lock()
	nodes := make([]entities.Node, len(c.nodes))
	copy(nodes, c.nodes)
	prevNodes, prevEdges := c.nodes, c.edges
	c.nodes = nodes

	changed := false
	for _, ch := range changes {
		switch ch.Type {
		case ChangePosition:
			if ch.Position == nil {
				continue
			}
			if idx := c.indexOf(ch.ID); idx >= 0 {
				c.nodes[idx].Position = *ch.Position
				changed = true
			}
		case ChangeRemove:
			if c.removeNodeLocked(ch.ID) {
				changed = true
			}
		case ChangeAdd:
			if ch.Node == nil || ch.Node.Data == nil {
				continue
			}
			node := *ch.Node
			if node.ID == "" {
				node.ID = valueobjects.NewID()
			}
			if c.indexOf(node.ID) >= 0 {
				continue
			}
			node.Kind = node.Data.Kind()
			c.nodes = append(c.nodes, node)
			changed = true
		default:
			c.nodes, c.edges = prevNodes, prevEdges
			c.mu.Unlock()
			return pkgerrors.NewValidationError(fmt.Sprintf("unsupported node change %q", ch.Type))
		}
	}
	if !changed {
		c.nodes, c.edges = prevNodes, prevEdges
		c.mu.Unlock()
		return nil
	}
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeNodes, Revision: rev})
	return nil
}

// ApplyEdgeChanges applies a batch of structural edge changes in one commit.
// Added edges must reference existing nodes.
func (c *Canvas) ApplyEdgeChanges(changes []EdgeChange) error {
	if len(changes) == 0 {
		return nil
	}

	c.mu.Lock()
	prevEdges := c.edges
	changed := false
	for _, ch := range changes {
		switch ch.Type {
		case ChangeRemove:
			if c.removeEdgeLocked(ch.ID) {
				changed = true
			}
		case ChangeAdd:
			if ch.Edge == nil {
				continue
			}
			edge := *ch.Edge
			if c.indexOf(edge.Source) < 0 || c.indexOf(edge.Target) < 0 || edge.Source == edge.Target {
				c.edges = prevEdges
				c.mu.Unlock()
				return pkgerrors.NewValidationError("both nodes must exist in canvas")
			}
			if edge.ID == "" {
				edge.ID = valueobjects.NewID()
			}
			edges := make([]entities.Edge, len(c.edges), len(c.edges)+1)
			copy(edges, c.edges)
			c.edges = append(edges, edge)
			changed = true
		default:
			c.edges = prevEdges
			c.mu.Unlock()
			return pkgerrors.NewValidationError(fmt.Sprintf("unsupported edge change %q", ch.Type))
		}
	}
	if !changed {
		c.mu.Unlock()
		return nil
	}
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeEdges, Revision: rev})
	return nil
}
