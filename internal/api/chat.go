package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/generate"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// executionChat answers a question about one execution using its stored
// record as grounding.
func (s *Server) executionChat(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil || s.executions == nil {
		respondError(w, http.StatusServiceUnavailable, "chat not available")
		return
	}

	var req struct {
		Message string `json:"message"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	ex, err := s.executions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "execution not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	var wf *flow.Workflow
	if s.workflowSvc != nil {
		wf, _ = s.workflowSvc.Get(r.Context(), ex.WorkflowID)
	}

	reply, err := s.generator.ExplainExecution(r.Context(), ex, wf, req.Message)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// assistantChat answers a general product question, with the caller's
// conversation history as context.
func (s *Server) assistantChat(w http.ResponseWriter, r *http.Request) {
	if s.generator == nil {
		respondError(w, http.StatusServiceUnavailable, "chat not available")
		return
	}

	var req struct {
		Message string             `json:"message"`
		History []generate.Message `json:"history,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	messages := append(req.History, generate.Message{Role: "user", Content: req.Message})
	reply, err := s.generator.Assist(r.Context(), messages, nil)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

// assistantContext summarizes the account state so the assistant can
// open a conversation with something concrete.
func (s *Server) assistantContext(w http.ResponseWriter, r *http.Request) {
	var parts []string

	if s.workflowSvc != nil {
		if wfs, err := s.workflowSvc.List(r.Context()); err == nil {
			active := 0
			for _, wf := range wfs {
				if wf.IsActive {
					active++
				}
			}
			parts = append(parts, fmt.Sprintf("%d workflows (%d active)", len(wfs), active))
		}
	}
	if s.executions != nil {
		if exs, err := s.executions.List(r.Context(), ""); err == nil {
			parts = append(parts, fmt.Sprintf("%d executions on record", len(exs)))
		}
	}
	if s.approvals != nil {
		if pending, err := s.approvals.List(r.Context(), flow.ApprovalPending); err == nil && len(pending) > 0 {
			parts = append(parts, fmt.Sprintf("%d approvals waiting for you", len(pending)))
		}
	}

	summary := "Nothing here yet. Create your first workflow or start from a template."
	if len(parts) > 0 {
		summary = "You have " + strings.Join(parts, ", ") + "."
	}
	respondJSON(w, http.StatusOK, map[string]string{"summary": summary})
}
