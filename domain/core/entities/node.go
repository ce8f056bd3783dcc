package entities

import (
	"encoding/json"
	"fmt"

	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// NodeKind is the discriminant of the node data union
type NodeKind string

const (
	KindSource      NodeKind = "source"
	KindAttachment  NodeKind = "attachment"
	KindLibrary     NodeKind = "library"
	KindPrompt      NodeKind = "prompt"
	KindGenerator   NodeKind = "generator"
	KindOutput      NodeKind = "output"
	KindImageEditor NodeKind = "image-editor"
	KindImageSource NodeKind = "image-source"
)

// NodeData is implemented by one payload struct per node kind.
// Code that needs kind-specific behavior switches on the concrete type.
type NodeData interface {
	Kind() NodeKind
}

// Node is a single typed unit of the canvas graph. Nodes are owned by the
// canvas store and referenced by ID everywhere else.
type Node struct {
	ID       string
	Kind     NodeKind
	Position valueobjects.Position
	Data     NodeData
}

// nodeJSON is the persisted layout of a node: {id, type, position, data}
type nodeJSON struct {
	ID       string                `json:"id"`
	Type     NodeKind              `json:"type"`
	Position valueobjects.Position `json:"position"`
	Data     json.RawMessage       `json:"data"`
}

// MarshalJSON implements json.Marshaler
func (n Node) MarshalJSON() ([]byte, error) {
	data := n.Data
	if data == nil {
		var err error
		if data, err = NewNodeData(n.Kind); err != nil {
			return nil, err
		}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(nodeJSON{ID: n.ID, Type: n.Kind, Position: n.Position, Data: raw})
}

// UnmarshalJSON implements json.Unmarshaler
func (n *Node) UnmarshalJSON(b []byte) error {
	var wire nodeJSON
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	data, err := NewNodeData(wire.Type)
	if err != nil {
		return err
	}
	if len(wire.Data) > 0 && string(wire.Data) != "null" {
		if err := json.Unmarshal(wire.Data, data); err != nil {
			return fmt.Errorf("decode %s node data: %w", wire.Type, err)
		}
	}
	n.ID = wire.ID
	n.Kind = wire.Type
	n.Position = wire.Position
	n.Data = data
	return nil
}

// NewNodeData returns the default payload for a kind
func NewNodeData(kind NodeKind) (NodeData, error) {
	switch kind {
	case KindSource:
		return &SourceData{SourceType: valueobjects.SourceURL}, nil
	case KindAttachment:
		return &AttachmentData{ActiveTab: TabLink}, nil
	case KindLibrary:
		return &LibraryData{}, nil
	case KindPrompt:
		return &PromptData{}, nil
	case KindGenerator:
		return &GeneratorData{
			Format:   valueobjects.FormatPost,
			Platform: valueobjects.PlatformInstagram,
			Quantity: 1,
			Step:     StepIdle,
		}, nil
	case KindOutput:
		return &OutputData{ApprovalStatus: valueobjects.ApprovalDraft}, nil
	case KindImageEditor:
		return &ImageEditorData{AspectRatio: "1:1"}, nil
	case KindImageSource:
		return &ImageSourceData{}, nil
	default:
		return nil, pkgerrors.NewValidationError(fmt.Sprintf("unknown node type %q", kind)).
			WithCode(pkgerrors.CodeUnsupportedNode)
	}
}

// Clone returns a deep copy of the node
func (n Node) Clone() (Node, error) {
	data, err := CloneData(n.Data)
	if err != nil {
		return Node{}, err
	}
	n.Data = data
	return n, nil
}

// CloneData returns a deep copy of a payload
func CloneData(data NodeData) (NodeData, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	out, err := NewNodeData(data.Kind())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, err
	}
	return out, nil
}
