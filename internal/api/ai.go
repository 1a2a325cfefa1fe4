package api

import (
	"net/http"

	"github.com/flowdeck/flowdeck/internal/flow"
)

// clarifyWorkflow returns the questions the generator wants answered
// before producing a workflow. An empty list means generation can
// proceed directly.
func (s *Server) clarifyWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusServiceUnavailable, "ai features not available")
		return
	}

	var req struct {
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	questions, err := s.generator.Clarify(r.Context(), req.Description)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	texts := make([]string, 0, len(questions))
	for _, q := range questions {
		texts = append(texts, q.Text)
	}
	respondJSON(w, http.StatusOK, map[string]any{"questions": texts})
}

// generateWorkflow produces an unsaved workflow from a description. The
// client reviews it in the editor and saves via the workflows endpoint.
func (s *Server) generateWorkflow(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusServiceUnavailable, "ai features not available")
		return
	}

	var req struct {
		Description string                `json:"description"`
		Existing    *flow.GraphDefinition `json:"existing,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	var existing *flow.Workflow
	if req.Existing != nil {
		existing = &flow.Workflow{Nodes: req.Existing.Nodes, Edges: req.Existing.Edges}
	}

	generated, err := s.generator.Generate(r.Context(), req.Description, existing)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, flow.Workflow{
		Name:        generated.Name,
		Description: generated.Description,
		Nodes:       generated.Nodes,
		Edges:       generated.Edges,
	})
}

// suggestNodeParams proposes parameter values for a node type given
// editor context (label, current parameters, workflow metadata).
func (s *Server) suggestNodeParams(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusServiceUnavailable, "ai features not available")
		return
	}

	var req struct {
		NodeType flow.NodeType  `json:"node_type"`
		Context  map[string]any `json:"context,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.NodeType == "" {
		respondError(w, http.StatusBadRequest, "node_type is required")
		return
	}

	node := flow.Node{Type: req.NodeType}
	if label, ok := req.Context["label"].(string); ok {
		node.Label = label
	}
	if params, ok := req.Context["parameters"].(map[string]any); ok {
		node.Parameters = params
	}

	var wf *flow.Workflow
	if name, ok := req.Context["workflow_name"].(string); ok {
		wf = &flow.Workflow{Name: name}
	}

	params, err := s.generator.SuggestParams(r.Context(), node, wf)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"parameters": params})
}
