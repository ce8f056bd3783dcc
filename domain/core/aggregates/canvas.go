package aggregates

import (
	"fmt"
	"sync"
	"time"

	"canvas-backend/domain/config"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

// ChangeKind classifies a graph mutation for subscribers
type ChangeKind string

const (
	ChangeNodes  ChangeKind = "nodes"
	ChangeEdges  ChangeKind = "edges"
	ChangeName   ChangeKind = "name"
	ChangeLoaded ChangeKind = "loaded"
)

// Change describes a committed mutation
type Change struct {
	Kind     ChangeKind
	NodeID   string
	Revision uint64
}

// Snapshot is the persisted form of a whole canvas
type Snapshot struct {
	ID        string          `json:"id"`
	ClientID  string          `json:"client_id,omitempty"`
	Name      string          `json:"name"`
	Nodes     []entities.Node `json:"nodes"`
	Edges     []entities.Edge `json:"edges"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Canvas is the aggregate root owning the nodes and edges of one canvas.
//
// Payloads stored in the canvas are treated as immutable: every update
// builds a fresh payload and swaps it in, so readers holding an earlier
// Node value are never affected by later writes. Callers must not modify
// payloads obtained from the canvas; use UpdateNode or Mutate instead.
type Canvas struct {
	mu       sync.RWMutex
	id       string
	clientID string
	name     string
	nodes    []entities.Node
	edges    []entities.Edge
	revision uint64
	loads    uint64
	config   *config.DomainConfig

	listenersMu  sync.RWMutex
	listeners    map[int]func(Change)
	nextListener int
}

// NewCanvas creates an empty canvas with default configuration
func NewCanvas() *Canvas {
	return NewCanvasWithConfig(config.DefaultDomainConfig())
}

// NewCanvasWithConfig creates an empty canvas with specific configuration
func NewCanvasWithConfig(cfg *config.DomainConfig) *Canvas {
	if cfg == nil {
		cfg = config.DefaultDomainConfig()
	}
	return &Canvas{
		name:      cfg.DefaultCanvasName,
		config:    cfg,
		listeners: make(map[int]func(Change)),
	}
}

// ID returns the persisted canvas ID, empty until the first save
func (c *Canvas) ID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.id
}

// AssignID records the ID allocated by the first save
func (c *Canvas) AssignID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// AssignIDAt records a saved ID only if no snapshot has been loaded since
// generation was observed. It reports whether the ID was recorded.
func (c *Canvas) AssignIDAt(id string, generation uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loads != generation {
		return false
	}
	c.id = id
	return true
}

// Generation increases by one every time a snapshot is loaded or the canvas is reset
func (c *Canvas) Generation() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loads
}

// ClientID returns the tenant the canvas belongs to
func (c *Canvas) ClientID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientID
}

// Name returns the canvas name
func (c *Canvas) Name() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.name
}

// Revision increases by one on every committed mutation
func (c *Canvas) Revision() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.revision
}

// SetName renames the canvas
func (c *Canvas) SetName(name string) {
	c.mu.Lock()
	if name == "" {
		name = c.config.DefaultCanvasName
	}
	if name == c.name {
		c.mu.Unlock()
		return
	}
	c.name = name
	rev := c.bump()
	c.mu.Unlock()
	c.notify(Change{Kind: ChangeName, Revision: rev})
}

// AddNode creates a node of the given kind with default data shallow-merged
// with partial, and returns its ID.
func (c *Canvas) AddNode(kind entities.NodeKind, pos valueobjects.Position, partial entities.Patch) (string, error) {
	data, err := entities.NewNodeData(kind)
	if err != nil {
		return "", err
	}
	if len(partial) > 0 {
		if data, err = entities.ApplyPatch(data, partial); err != nil {
			return "", pkgerrors.NewValidationError(err.Error())
		}
	}
	return c.AddNodeData(pos, data)
}

// AddNodeData inserts a node carrying a fully built payload
func (c *Canvas) AddNodeData(pos valueobjects.Position, data entities.NodeData) (string, error) {
	if data == nil {
		return "", pkgerrors.NewValidationError("node data cannot be nil")
	}
	node := entities.Node{
		ID:       valueobjects.NewID(),
		Kind:     data.Kind(),
		Position: pos,
		Data:     data,
	}

	c.mu.Lock()
	if c.config.MaxNodesPerCanvas > 0 && len(c.nodes) >= c.config.MaxNodesPerCanvas {
		c.mu.Unlock()
		return "", pkgerrors.NewValidationError(fmt.Sprintf("maximum nodes reached: %d", c.config.MaxNodesPerCanvas))
	}
	nodes := make([]entities.Node, len(c.nodes), len(c.nodes)+1)
	copy(nodes, c.nodes)
	c.nodes = append(nodes, node)
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeNodes, NodeID: node.ID, Revision: rev})
	return node.ID, nil
}

// UpdateNode shallow-merges partial into the node's data. Unknown IDs are
// ignored so that late results for deleted nodes are dropped.
func (c *Canvas) UpdateNode(id string, partial entities.Patch) error {
	if len(partial) == 0 {
		return nil
	}
	_, err := c.Mutate(id, func(data entities.NodeData) (entities.NodeData, error) {
		return entities.ApplyPatch(data, partial)
	})
	return err
}

// Mutate atomically replaces a node's payload with the result of fn.
// fn receives a private copy it may modify and return. It reports whether
// the node existed.
func (c *Canvas) Mutate(id string, fn func(entities.NodeData) (entities.NodeData, error)) (bool, error) {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 {
		c.mu.Unlock()
		return false, nil
	}
	current, err := entities.CloneData(c.nodes[idx].Data)
	if err != nil {
		c.mu.Unlock()
		return true, err
	}
	next, err := fn(current)
	if err != nil {
		c.mu.Unlock()
		return true, err
	}
	if next == nil || next.Kind() != c.nodes[idx].Kind {
		c.mu.Unlock()
		return true, pkgerrors.NewValidationError("node data kind cannot change")
	}
	nodes := make([]entities.Node, len(c.nodes))
	copy(nodes, c.nodes)
	nodes[idx].Data = next
	c.nodes = nodes
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeNodes, NodeID: id, Revision: rev})
	return true, nil
}

// MoveNode changes a node's position
func (c *Canvas) MoveNode(id string, pos valueobjects.Position) bool {
	c.mu.Lock()
	idx := c.indexOf(id)
	if idx < 0 || c.nodes[idx].Position.Equals(pos) {
		c.mu.Unlock()
		return idx >= 0
	}
	nodes := make([]entities.Node, len(c.nodes))
	copy(nodes, c.nodes)
	nodes[idx].Position = pos
	c.nodes = nodes
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeNodes, NodeID: id, Revision: rev})
	return true
}

// DeleteNode removes the node and every edge touching it
func (c *Canvas) DeleteNode(id string) bool {
	c.mu.Lock()
	removed := c.removeNodeLocked(id)
	var rev uint64
	if removed {
		rev = c.bump()
	}
	c.mu.Unlock()

	if removed {
		c.notify(Change{Kind: ChangeNodes, NodeID: id, Revision: rev})
	}
	return removed
}

func (c *Canvas) removeNodeLocked(id string) bool {
	idx := c.indexOf(id)
	if idx < 0 {
		return false
	}
	nodes := make([]entities.Node, 0, len(c.nodes)-1)
	nodes = append(nodes, c.nodes[:idx]...)
	c.nodes = append(nodes, c.nodes[idx+1:]...)

	edges := make([]entities.Edge, 0, len(c.edges))
	for _, e := range c.edges {
		if !e.Touches(id) {
			edges = append(edges, e)
		}
	}
	c.edges = edges
	return true
}

// Connect adds an edge after checking both endpoints exist. Connecting an
// already linked pair returns the existing edge.
func (c *Canvas) Connect(edge entities.Edge) (entities.Edge, error) {
	if edge.Source == "" || edge.Target == "" {
		return entities.Edge{}, pkgerrors.NewValidationError("edge requires source and target")
	}
	if edge.Source == edge.Target {
		return entities.Edge{}, pkgerrors.NewValidationError("cannot connect node to itself")
	}

	c.mu.Lock()
	if c.indexOf(edge.Source) < 0 || c.indexOf(edge.Target) < 0 {
		c.mu.Unlock()
		return entities.Edge{}, pkgerrors.NewValidationError("both nodes must exist in canvas")
	}
	incoming := 0
	for _, e := range c.edges {
		if e.SameLink(edge) {
			c.mu.Unlock()
			return e, nil
		}
		if e.Target == edge.Target {
			incoming++
		}
	}
	target := c.nodes[c.indexOf(edge.Target)]
	if target.Kind == entities.KindGenerator && c.config.MaxInputSlots > 0 && incoming >= c.config.MaxInputSlots {
		c.mu.Unlock()
		return entities.Edge{}, pkgerrors.NewValidationError(
			fmt.Sprintf("generator accepts at most %d inputs", c.config.MaxInputSlots))
	}
	if edge.ID == "" {
		edge.ID = valueobjects.NewID()
	}
	edges := make([]entities.Edge, len(c.edges), len(c.edges)+1)
	copy(edges, c.edges)
	c.edges = append(edges, edge)
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeEdges, Revision: rev})
	return edge, nil
}

// Disconnect removes an edge by ID
func (c *Canvas) Disconnect(edgeID string) bool {
	c.mu.Lock()
	removed := c.removeEdgeLocked(edgeID)
	var rev uint64
	if removed {
		rev = c.bump()
	}
	c.mu.Unlock()

	if removed {
		c.notify(Change{Kind: ChangeEdges, Revision: rev})
	}
	return removed
}

func (c *Canvas) removeEdgeLocked(edgeID string) bool {
	for i, e := range c.edges {
		if e.ID == edgeID {
			edges := make([]entities.Edge, 0, len(c.edges)-1)
			edges = append(edges, c.edges[:i]...)
			c.edges = append(edges, c.edges[i+1:]...)
			return true
		}
	}
	return false
}

// Node returns a node by ID
func (c *Canvas) Node(id string) (entities.Node, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	idx := c.indexOf(id)
	if idx < 0 {
		return entities.Node{}, false
	}
	return c.nodes[idx], true
}

// Nodes returns the nodes in insertion order
func (c *Canvas) Nodes() []entities.Node {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nodes := make([]entities.Node, len(c.nodes))
	copy(nodes, c.nodes)
	return nodes
}

// Edges returns the edges in insertion order
func (c *Canvas) Edges() []entities.Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	edges := make([]entities.Edge, len(c.edges))
	copy(edges, c.edges)
	return edges
}

// IncomingEdges returns the edges targeting a node
func (c *Canvas) IncomingEdges(nodeID string) []entities.Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var edges []entities.Edge
	for _, e := range c.edges {
		if e.Target == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// OutgoingEdges returns the edges leaving a node
func (c *Canvas) OutgoingEdges(nodeID string) []entities.Edge {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var edges []entities.Edge
	for _, e := range c.edges {
		if e.Source == nodeID {
			edges = append(edges, e)
		}
	}
	return edges
}

// Snapshot captures the current graph for persistence
func (c *Canvas) Snapshot() Snapshot {
	snap, _ := c.SnapshotAt()
	return snap
}

// SnapshotAt returns a snapshot together with the load generation it belongs to
func (c *Canvas) SnapshotAt() (Snapshot, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	nodes := make([]entities.Node, len(c.nodes))
	copy(nodes, c.nodes)
	edges := make([]entities.Edge, len(c.edges))
	copy(edges, c.edges)
	return Snapshot{
		ID:       c.id,
		ClientID: c.clientID,
		Name:     c.name,
		Nodes:    nodes,
		Edges:    edges,
	}, c.loads
}

// Load replaces the whole graph with a persisted snapshot. Edges referencing
// nodes missing from the snapshot are dropped.
func (c *Canvas) Load(s Snapshot) {
	nodes := make([]entities.Node, 0, len(s.Nodes))
	ids := make(map[string]struct{}, len(s.Nodes))
	for _, n := range s.Nodes {
		if n.Data == nil {
			data, err := entities.NewNodeData(n.Kind)
			if err != nil {
				continue
			}
			n.Data = data
		}
		nodes = append(nodes, n)
		ids[n.ID] = struct{}{}
	}
	edges := make([]entities.Edge, 0, len(s.Edges))
	for _, e := range s.Edges {
		_, okSource := ids[e.Source]
		_, okTarget := ids[e.Target]
		if okSource && okTarget {
			edges = append(edges, e)
		}
	}

	c.mu.Lock()
	c.id = s.ID
	c.clientID = s.ClientID
	c.name = s.Name
	if c.name == "" {
		c.name = c.config.DefaultCanvasName
	}
	c.nodes = nodes
	c.edges = edges
	c.loads++
	rev := c.bump()
	c.mu.Unlock()

	c.notify(Change{Kind: ChangeLoaded, Revision: rev})
}

// Reset empties the canvas and scopes it to a client
func (c *Canvas) Reset(clientID string) {
	c.Load(Snapshot{ClientID: clientID})
}

// Subscribe registers fn to be called after every committed mutation.
// Callbacks run outside the canvas lock and may read the canvas.
func (c *Canvas) Subscribe(fn func(Change)) func() {
	c.listenersMu.Lock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	c.listenersMu.Unlock()

	return func() {
		c.listenersMu.Lock()
		delete(c.listeners, id)
		c.listenersMu.Unlock()
	}
}

func (c *Canvas) notify(change Change) {
	c.listenersMu.RLock()
	fns := make([]func(Change), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.RUnlock()

	for _, fn := range fns {
		fn(change)
	}
}

func (c *Canvas) bump() uint64 {
	c.revision++
	return c.revision
}

func (c *Canvas) indexOf(id string) int {
	for i := range c.nodes {
		if c.nodes[i].ID == id {
			return i
		}
	}
	return -1
}
