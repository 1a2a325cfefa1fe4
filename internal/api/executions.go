package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/flowdeck/flowdeck/internal/flow"
	"github.com/flowdeck/flowdeck/internal/repository"
	"github.com/flowdeck/flowdeck/internal/services"
)

type runRequest struct {
	WorkflowID  string         `json:"workflow_id"`
	TriggerData map[string]any `json:"trigger_data"`
}

// createExecution starts a background run and returns the execution
// record immediately. Progress is available via the events endpoint.
func (s *Server) createExecution(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}

	_, ex, events, ok := s.startRun(w, r, req)
	if !ok {
		return
	}

	// Nobody streams this run; drain so it can finish.
	go func() {
		for range events {
		}
	}()

	respondJSON(w, http.StatusCreated, ex)
}

func (s *Server) listExecutions(w http.ResponseWriter, r *http.Request) {
	if s.executions == nil {
		respondError(w, http.StatusServiceUnavailable, "run history not available")
		return
	}
	exs, err := s.executions.List(r.Context(), r.URL.Query().Get("workflow_id"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return
	}
	if exs == nil {
		exs = []*flow.Execution{}
	}
	respondJSON(w, http.StatusOK, exs)
}

func (s *Server) getExecution(w http.ResponseWriter, r *http.Request) {
	if s.executions == nil {
		respondError(w, http.StatusServiceUnavailable, "run history not available")
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
	respondJSON(w, http.StatusOK, ex)
}

// streamExecution runs a workflow and streams progress over the response
// body as newline-terminated "data: <json>" lines: a start event, one
// step event per node transition, and a final complete event. Closing
// the request aborts the stream; the run itself continues server-side.
func (s *Server) streamExecution(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}

	_, _, events, ok := s.startRun(w, r, req)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	for {
		select {
		case <-r.Context().Done():
			// Client went away; the run continues in the background.
			go func() {
				for range events {
				}
			}()
			return
		case ev, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n", data)
			if canFlush {
				flusher.Flush()
			}
		}
	}
}

// startRun resolves the workflow and starts it via the runner, mapping
// errors onto the API contract.
func (s *Server) startRun(w http.ResponseWriter, r *http.Request, req runRequest) (*flow.Workflow, *flow.Execution, <-chan flow.StreamEvent, bool) {
	if req.WorkflowID == "" {
		respondError(w, http.StatusBadRequest, "workflow_id is required")
		return nil, nil, nil, false
	}
	wf, err := s.workflowSvc.Get(r.Context(), req.WorkflowID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(w, http.StatusNotFound, "workflow not found")
			return nil, nil, nil, false
		}
		respondError(w, http.StatusInternalServerError, "something went wrong")
		return nil, nil, nil, false
	}

	ex, events, err := s.runner.Start(r.Context(), wf, req.TriggerData)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return nil, nil, nil, false
	}
	return wf, ex, events, true
}

// streamExecutionEvents replays an execution's buffered events via SSE
// and live-streams until the run completes. Reconnection is supported
// through the Last-Event-ID header.
func (s *Server) streamExecutionEvents(w http.ResponseWriter, r *http.Request) {
	executionID := chi.URLParam(r, "id")

	lastSeq := -1
	if idStr := r.Header.Get("Last-Event-ID"); idStr != "" {
		if n, err := strconv.Atoi(idStr); err == nil {
			lastSeq = n
		}
	}
	startSeq := lastSeq + 1

	events, notify, done, finalStatus, found := s.runManager.Subscribe(executionID, startSeq)
	if !found {
		// The buffer may have been GC'd; fall back to the stored record.
		if s.executions != nil {
			if ex, err := s.executions.Get(r.Context(), executionID); err == nil {
				s.sendSyntheticDone(w, ex)
				return
			}
		}
		respondError(w, http.StatusNotFound, "execution not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	for _, ev := range events {
		writeSSEEvent(w, ev)
	}
	flusher.Flush()

	if done {
		writeDoneEvent(w, finalStatus)
		flusher.Flush()
		return
	}

	for {
		select {
		case <-r.Context().Done():
			// Client disconnected; run continues in background.
			return
		case <-notify:
			nextSeq := startSeq + len(events)
			events, notify, done, finalStatus, found = s.runManager.Subscribe(executionID, nextSeq)
			if !found {
				return
			}
			startSeq = nextSeq

			for _, ev := range events {
				writeSSEEvent(w, ev)
			}
			flusher.Flush()

			if done {
				writeDoneEvent(w, finalStatus)
				flusher.Flush()
				return
			}
		}
	}
}

// writeSSEEvent writes a single event as an SSE frame with the seq as the id.
func writeSSEEvent(w http.ResponseWriter, rec services.EventRecord) {
	data, _ := json.Marshal(rec.Event)
	fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", rec.Seq, rec.Event.Type, data)
}

// writeDoneEvent writes the final "done" SSE event.
func writeDoneEvent(w http.ResponseWriter, status flow.ExecutionStatus) {
	data, _ := json.Marshal(map[string]any{"status": status})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
}

// sendSyntheticDone answers with a minimal SSE stream for executions
// whose event buffer has already been garbage-collected.
func (s *Server) sendSyntheticDone(w http.ResponseWriter, ex *flow.Execution) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	writeDoneEvent(w, ex.Status)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
