package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	if s.connectionSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "connections not available")
		return
	}
	conns, err := s.connectionSvc.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if conns == nil {
		conns = []flow.ConnectionSafe{}
	}
	respondJSON(w, http.StatusOK, conns)
}

// createConnection stores credentials for a service; used by the api_key
// entry flow. Credentials are encrypted before they hit storage and are
// never echoed back.
func (s *Server) createConnection(w http.ResponseWriter, r *http.Request) {
	if s.connectionSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "connections not available")
		return
	}

	var req struct {
		Type        string            `json:"type"`
		Name        string            `json:"name,omitempty"`
		Credentials map[string]string `json:"credentials,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Type == "" {
		respondError(w, http.StatusBadRequest, "type is required")
		return
	}

	conn := &flow.Connection{
		Type:        req.Type,
		Name:        req.Name,
		Credentials: req.Credentials,
	}
	if err := s.connectionSvc.Create(r.Context(), conn); err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusCreated, conn.Safe())
}

func (s *Server) deleteConnection(w http.ResponseWriter, r *http.Request) {
	if s.connectionSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "connections not available")
		return
	}
	if err := s.connectionSvc.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "connection not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorizeConnection tells the client how to connect a service: an
// OAuth redirect URL, an api_key marker, or demo mode.
func (s *Server) authorizeConnection(w http.ResponseWriter, r *http.Request) {
	if s.connectionSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "connections not available")
		return
	}

	var req struct {
		Type string `json:"type"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := s.connectionSvc.Authorize(r.Context(), req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) refreshConnection(w http.ResponseWriter, r *http.Request) {
	if s.connectionSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "connections not available")
		return
	}

	safe, err := s.connectionSvc.Refresh(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "connection not found")
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, safe)
}
