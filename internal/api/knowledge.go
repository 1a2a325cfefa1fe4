package api

import (
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/extract"
	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
)

// maxImportSize bounds knowledge file uploads (16 MiB).
const maxImportSize = 16 << 20

func (s *Server) listKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		respondError(w, http.StatusServiceUnavailable, "knowledge base not available")
		return
	}
	entries, err := s.knowledge.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if entries == nil {
		entries = []*flow.KnowledgeEntry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) createKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		respondError(w, http.StatusServiceUnavailable, "knowledge base not available")
		return
	}

	var entry flow.KnowledgeEntry
	if !decodeBody(w, r, &entry) {
		return
	}
	if entry.Title == "" || entry.Content == "" {
		respondError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	entry.ID = flow.GenerateID("kb")
	now := time.Now()
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := s.knowledge.Create(r.Context(), &entry); err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}

func (s *Server) updateKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		respondError(w, http.StatusServiceUnavailable, "knowledge base not available")
		return
	}

	entry, err := s.knowledge.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "knowledge entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}

	var patch struct {
		Title    *string `json:"title"`
		Category *string `json:"category"`
		Content  *string `json:"content"`
	}
	if !decodeBody(w, r, &patch) {
		return
	}
	if patch.Title != nil {
		entry.Title = *patch.Title
	}
	if patch.Category != nil {
		entry.Category = *patch.Category
	}
	if patch.Content != nil {
		entry.Content = *patch.Content
	}
	entry.UpdatedAt = time.Now()

	if err := s.knowledge.Update(r.Context(), entry); err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

func (s *Server) deleteKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		respondError(w, http.StatusServiceUnavailable, "knowledge base not available")
		return
	}
	if err := s.knowledge.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "knowledge entry not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// importKnowledge accepts a multipart file upload, extracts its text,
// and stores it as a new knowledge entry titled after the filename.
func (s *Server) importKnowledge(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		respondError(w, http.StatusServiceUnavailable, "knowledge base not available")
		return
	}

	if err := r.ParseMultipartForm(maxImportSize); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(header.Filename)); byExt != "" {
			contentType = byExt
		}
	}

	text, err := extract.Extract(contentType, file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "could not read file: "+err.Error())
		return
	}
	if text == "" {
		respondError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	now := time.Now()
	entry := &flow.KnowledgeEntry{
		ID:        flow.GenerateID("kb"),
		Title:     strings.TrimSuffix(header.Filename, filepath.Ext(header.Filename)),
		Content:   text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.knowledge.Create(r.Context(), entry); err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	respondJSON(w, http.StatusCreated, entry)
}
