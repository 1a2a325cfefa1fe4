// Package flow defines the shared domain types of the Flowdeck
// workflow-automation platform: workflow graphs, executions, approvals,
// connections, templates, and knowledge entries. Every other package
// speaks in these types.
package flow

import "time"

// NodeType is an open tag from the node-type catalog. Unknown tags are
// valid at the data-model level and degrade to a generic fallback in
// the editor.
type NodeType string

const (
	NodeTypeTrigger   NodeType = "trigger"
	NodeTypeAction    NodeType = "action"
	NodeTypeCondition NodeType = "condition"
	NodeTypeApproval  NodeType = "approval"
	NodeTypeAI        NodeType = "ai"
	NodeTypeDelay     NodeType = "delay"
)

// Position is a node's location on the editor canvas.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node is one step in a workflow graph.
type Node struct {
	ID               string         `json:"id"`
	Type             NodeType       `json:"type"`
	Label            string         `json:"label"`
	Position         Position       `json:"position"`
	Parameters       map[string]any `json:"parameters"`
	RequiresApproval bool           `json:"requiresApproval,omitempty"`
}

// Edge is a directed connection between two nodes. SourceHandle selects
// a branch for condition-type nodes (e.g. "yes"/"no").
type Edge struct {
	ID           string `json:"id"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle,omitempty"`
}

// GraphDefinition is the wire shape of a workflow body: the node/edge
// pair exchanged with the editor and embedded in templates.
type GraphDefinition struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Workflow is a user-owned automation. Node insertion order is used for
// list display only; execution order is derived from the graph.
type Workflow struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Nodes       []Node    `json:"nodes"`
	Edges       []Edge    `json:"edges"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Definition returns the workflow body as a GraphDefinition.
func (w *Workflow) Definition() GraphDefinition {
	return GraphDefinition{Nodes: w.Nodes, Edges: w.Edges}
}

// Template is a canned workflow body instantiated into a new Workflow on use.
type Template struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	BusinessType string          `json:"business_type,omitempty"`
	Description  string          `json:"description,omitempty"`
	Definition   GraphDefinition `json:"definition"`
}
