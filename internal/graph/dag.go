package graph

import (
	"fmt"
	"sort"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// DAG is the validated execution view of a workflow body: adjacency maps,
// a topological order, and edge lookup per node pair. The editor
// deliberately does not enforce acyclicity; the run path does, here.
type DAG struct {
	nodes    map[string]*flow.Node
	children map[string][]string
	parents  map[string][]string
	edges    map[string][]flow.Edge // keyed source->target
	order    []string
}

// BuildDAG validates a graph definition for execution: unique node ids,
// no dangling edge references, no cycles. Returns the traversal structure
// on success.
func BuildDAG(def flow.GraphDefinition) (*DAG, error) {
	d := &DAG{
		nodes:    make(map[string]*flow.Node),
		children: make(map[string][]string),
		parents:  make(map[string][]string),
		edges:    make(map[string][]flow.Edge),
	}

	for i := range def.Nodes {
		n := &def.Nodes[i]
		if _, exists := d.nodes[n.ID]; exists {
			return nil, fmt.Errorf("duplicate node id: %s", n.ID)
		}
		d.nodes[n.ID] = n
	}

	for _, e := range def.Edges {
		if _, ok := d.nodes[e.Source]; !ok {
			return nil, fmt.Errorf("edge %s references unknown node: %s", e.ID, e.Source)
		}
		if _, ok := d.nodes[e.Target]; !ok {
			return nil, fmt.Errorf("edge %s references unknown node: %s", e.ID, e.Target)
		}
		key := e.Source + "->" + e.Target
		d.edges[key] = append(d.edges[key], e)
		d.children[e.Source] = append(d.children[e.Source], e.Target)
		d.parents[e.Target] = append(d.parents[e.Target], e.Source)
	}

	order, err := d.topoSort()
	if err != nil {
		return nil, err
	}
	d.order = order
	return d, nil
}

// topoSort is Kahn's algorithm with sorted tie-breaking for deterministic
// order.
func (d *DAG) topoSort() ([]string, error) {
	inDegree := make(map[string]int)
	for id := range d.nodes {
		inDegree[id] = 0
	}
	for _, children := range d.children {
		for _, c := range children {
			inDegree[c]++
		}
	}
	var queue []string
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)
	var order []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)
		for _, c := range d.children[node] {
			inDegree[c]--
			if inDegree[c] == 0 {
				queue = append(queue, c)
			}
		}
		sort.Strings(queue)
	}
	if len(order) != len(d.nodes) {
		return nil, fmt.Errorf("cycle detected in workflow graph")
	}
	return order, nil
}

func (d *DAG) TopologicalOrder() []string      { return d.order }
func (d *DAG) Children(nodeID string) []string { return d.children[nodeID] }
func (d *DAG) Parents(nodeID string) []string  { return d.parents[nodeID] }
func (d *DAG) Node(id string) *flow.Node       { return d.nodes[id] }
func (d *DAG) Len() int                        { return len(d.nodes) }

// Edges returns every edge from source to target. A branching node may
// route more than one handle to the same target.
func (d *DAG) Edges(source, target string) []flow.Edge {
	return d.edges[source+"->"+target]
}

// Roots returns all nodes without parents, sorted for determinism.
func (d *DAG) Roots() []string {
	var roots []string
	for id := range d.nodes {
		if len(d.parents[id]) == 0 {
			roots = append(roots, id)
		}
	}
	sort.Strings(roots)
	return roots
}

// Start resolves the run entry point: the single trigger-typed root by
// convention, falling back to the single root of any type. Multiple or
// zero roots are a validation error.
func (d *DAG) Start() (*flow.Node, error) {
	roots := d.Roots()
	var triggers []string
	for _, id := range roots {
		if d.nodes[id].Type == flow.NodeTypeTrigger {
			triggers = append(triggers, id)
		}
	}
	switch {
	case len(triggers) == 1:
		return d.nodes[triggers[0]], nil
	case len(triggers) > 1:
		return nil, fmt.Errorf("workflow has %d trigger nodes, want one", len(triggers))
	case len(roots) == 1:
		return d.nodes[roots[0]], nil
	case len(roots) == 0:
		return nil, fmt.Errorf("workflow has no start node")
	default:
		return nil, fmt.Errorf("workflow has %d start candidates, want one", len(roots))
	}
}
