package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
	"github.com/flowdeck/flowdeck/internal/services"
)

func (s *Server) listApprovals(w http.ResponseWriter, r *http.Request) {
	if s.approvalSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "approvals not available")
		return
	}
	status := flow.ApprovalStatus(r.URL.Query().Get("status"))
	approvals, err := s.approvalSvc.List(r.Context(), status)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if approvals == nil {
		approvals = []*flow.Approval{}
	}
	respondJSON(w, http.StatusOK, approvals)
}

func (s *Server) getApproval(w http.ResponseWriter, r *http.Request) {
	if s.approvalSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "approvals not available")
		return
	}
	approval, err := s.approvalSvc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "approval not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusOK, approval)
}

// actionApproval resolves a pending approval. The first action wins;
// later attempts get 409.
func (s *Server) actionApproval(w http.ResponseWriter, r *http.Request) {
	if s.approvalSvc == nil {
		respondError(w, http.StatusServiceUnavailable, "approvals not available")
		return
	}

	var req struct {
		Action string `json:"action"`
		Reason string `json:"reason,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id := chi.URLParam(r, "id")
	var (
		approval *flow.Approval
		err      error
	)
	switch req.Action {
	case "approve":
		approval, err = s.approvalSvc.Approve(r.Context(), id)
	case "reject":
		approval, err = s.approvalSvc.Reject(r.Context(), id, req.Reason)
	default:
		respondError(w, http.StatusBadRequest, `action must be "approve" or "reject"`)
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			respondError(w, http.StatusNotFound, "approval not found")
		case errors.Is(err, services.ErrAlreadyResolved):
			respondError(w, http.StatusConflict, "approval already resolved")
		default:
			respondError(w, http.StatusInternalServerError, "something went wrong")
		}
		return
	}
	respondJSON(w, http.StatusOK, approval)
}
