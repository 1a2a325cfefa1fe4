// Package graph holds the in-editor workflow graph model: node/edge
// mutation operations with their structural invariants, the node-type
// catalog, and DAG validation for the run path.
package graph

import (
	"errors"
	"fmt"

	"github.com/flowdeck/flowdeck/internal/flow"
)

var (
	// ErrDuplicateBranch is returned by Connect when the (source, handle)
	// pair already routes to a target on a branching node.
	ErrDuplicateBranch = errors.New("branch handle already connected")
	// ErrUnknownNode is returned by Connect when either endpoint does not exist.
	ErrUnknownNode = errors.New("edge references unknown node")
	// ErrSelfEdge is returned by Connect when source and target are the same node.
	ErrSelfEdge = errors.New("edge connects a node to itself")
)

// Graph is the mutable editor model of a workflow body. It is owned by a
// single editor instance; no internal locking. Structural invariants
// (unique ids, no dangling edges, one edge per branch handle) hold after
// every mutation; per-field parameter edits are not re-validated.
type Graph struct {
	nodes   []flow.Node
	edges   []flow.Edge
	catalog *Catalog
}

// New creates an empty Graph backed by the given catalog.
// A nil catalog falls back to the built-in one.
func New(catalog *Catalog) *Graph {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Graph{catalog: catalog}
}

// FromDefinition hydrates a Graph from its wire shape. The definition is
// copied; later mutations do not alias the input.
func FromDefinition(def flow.GraphDefinition, catalog *Catalog) *Graph {
	g := New(catalog)
	g.nodes = make([]flow.Node, len(def.Nodes))
	copy(g.nodes, def.Nodes)
	g.edges = make([]flow.Edge, len(def.Edges))
	copy(g.edges, def.Edges)
	return g
}

// Definition returns the wire shape of the graph. Round-tripping through
// FromDefinition is lossless: positions, parameters, and approval flags
// all survive.
func (g *Graph) Definition() flow.GraphDefinition {
	def := flow.GraphDefinition{
		Nodes: make([]flow.Node, len(g.nodes)),
		Edges: make([]flow.Edge, len(g.edges)),
	}
	copy(def.Nodes, g.nodes)
	copy(def.Edges, g.edges)
	return def
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []flow.Node { return g.nodes }

// Edges returns the edges.
func (g *Graph) Edges() []flow.Edge { return g.edges }

// Node returns the node with the given id, or nil.
func (g *Graph) Node(id string) *flow.Node {
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			return &g.nodes[i]
		}
	}
	return nil
}

// AddNode appends a new node of the given type at position, seeding its
// label and default parameters from the catalog, and returns it.
func (g *Graph) AddNode(t flow.NodeType, pos flow.Position) flow.Node {
	spec, _ := g.catalog.Lookup(t)
	n := flow.Node{
		ID:         flow.GenerateID("node"),
		Type:       t,
		Label:      spec.Label,
		Position:   pos,
		Parameters: spec.DefaultParameters(),
	}
	g.nodes = append(g.nodes, n)
	return n
}

// NodePatch carries a partial node update from the inspector. Nil fields
// are left untouched; Parameters are merged key by key.
type NodePatch struct {
	Label            *string
	Position         *flow.Position
	Parameters       map[string]any
	RequiresApproval *bool
}

// UpdateNode merges a partial update into the node. A missing id is a
// silent no-op: the inspector only ever edits the selected node, so this
// path is unreachable through normal interaction.
func (g *Graph) UpdateNode(id string, patch NodePatch) {
	n := g.Node(id)
	if n == nil {
		return
	}
	if patch.Label != nil {
		n.Label = *patch.Label
	}
	if patch.Position != nil {
		n.Position = *patch.Position
	}
	if patch.RequiresApproval != nil {
		n.RequiresApproval = *patch.RequiresApproval
	}
	if len(patch.Parameters) > 0 {
		if n.Parameters == nil {
			n.Parameters = make(map[string]any, len(patch.Parameters))
		}
		for k, v := range patch.Parameters {
			n.Parameters[k] = v
		}
	}
}

// DeleteNode removes the node and every edge touching it, so edges never
// dangle. Missing ids are a no-op.
func (g *Graph) DeleteNode(id string) {
	kept := g.nodes[:0]
	for _, n := range g.nodes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(g.nodes) {
		return
	}
	g.nodes = kept

	edges := g.edges[:0]
	for _, e := range g.edges {
		if e.Source != id && e.Target != id {
			edges = append(edges, e)
		}
	}
	g.edges = edges
}

// Connect creates an edge from source to target, optionally tagged with a
// branch handle. It rejects self edges, unknown endpoints and, on
// branching nodes, a second edge for the same (source, handle) pair: a
// branch routes to exactly one target.
func (g *Graph) Connect(source, target, handle string) (flow.Edge, error) {
	src := g.Node(source)
	if src == nil || g.Node(target) == nil {
		return flow.Edge{}, fmt.Errorf("%w: %s -> %s", ErrUnknownNode, source, target)
	}
	if source == target {
		return flow.Edge{}, fmt.Errorf("%w: %s", ErrSelfEdge, source)
	}

	if spec, _ := g.catalog.Lookup(src.Type); spec.Branching() {
		for _, e := range g.edges {
			if e.Source == source && e.SourceHandle == handle {
				return flow.Edge{}, fmt.Errorf("%w: (%s, %q)", ErrDuplicateBranch, source, handle)
			}
		}
	}

	e := flow.Edge{
		ID:           flow.GenerateID("edge"),
		Source:       source,
		Target:       target,
		SourceHandle: handle,
	}
	g.edges = append(g.edges, e)
	return e, nil
}

// Disconnect removes the edge with the given id. Missing ids are a no-op.
func (g *Graph) Disconnect(edgeID string) {
	kept := g.edges[:0]
	for _, e := range g.edges {
		if e.ID != edgeID {
			kept = append(kept, e)
		}
	}
	g.edges = kept
}
