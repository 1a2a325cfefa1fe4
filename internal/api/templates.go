package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		respondError(w, http.StatusServiceUnavailable, "templates not available")
		return
	}
	q := r.URL.Query()
	templates, err := s.templates.List(r.Context(), q.Get("category"), q.Get("business_type"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if templates == nil {
		templates = []*flow.Template{}
	}
	respondJSON(w, http.StatusOK, templates)
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// useTemplate instantiates a template into a new workflow owned by the
// requesting user.
func (s *Server) useTemplate(w http.ResponseWriter, r *http.Request) {
	t, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}

	wf, err := s.workflowSvc.CreateFromTemplate(r.Context(), t, userID(r))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusCreated, wf)
}

func (s *Server) lookupTemplate(w http.ResponseWriter, r *http.Request) (*flow.Template, bool) {
	if s.templates == nil {
		respondError(w, http.StatusServiceUnavailable, "templates not available")
		return nil, false
	}
	t, err := s.templates.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "template not found")
			return nil, false
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return nil, false
	}
	return t, true
}
