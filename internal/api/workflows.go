package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

func (s *Server) createWorkflow(w http.ResponseWriter, r *http.Request) {
	var wf flow.Workflow
	if !decodeBody(w, r, &wf) {
		return
	}
	if wf.Name == "" {
		respondError(w, http.StatusBadRequest, "workflow name is required")
		return
	}
	wf.OwnerID = userID(r)

	if err := s.workflowSvc.Create(r.Context(), &wf); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, wf)
}

func (s *Server) listWorkflows(w http.ResponseWriter, r *http.Request) {
	wfs, err := s.workflowSvc.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if wfs == nil {
		wfs = []*flow.Workflow{}
	}
	respondJSON(w, http.StatusOK, wfs)
}

func (s *Server) getWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

// updateWorkflow applies a partial update: only fields present in the
// body change, and the resulting graph is re-validated.
func (s *Server) updateWorkflow(w http.ResponseWriter, r *http.Request) {
	wf, ok := s.lookupWorkflow(w, r)
	if !ok {
		return
	}

	var patch struct {
		Name        *string     `json:"name"`
		Description *string     `json:"description"`
		Nodes       []flow.Node `json:"nodes"`
		Edges       []flow.Edge `json:"edges"`
		IsActive    *bool       `json:"is_active"`
	}
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Name != nil {
		wf.Name = *patch.Name
	}
	if patch.Description != nil {
		wf.Description = *patch.Description
	}
	if patch.Nodes != nil {
		wf.Nodes = patch.Nodes
	}
	if patch.Edges != nil {
		wf.Edges = patch.Edges
	}
	if patch.IsActive != nil {
		wf.IsActive = *patch.IsActive
	}

	if err := s.workflowSvc.Update(r.Context(), wf); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, wf)
}

func (s *Server) deleteWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.workflowSvc.Delete(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "workflow not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupWorkflow(w http.ResponseWriter, r *http.Request) (*flow.Workflow, bool) {
	id := chi.URLParam(r, "id")
	wf, err := s.workflowSvc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "workflow not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return nil, false
	}
	return wf, true
}
